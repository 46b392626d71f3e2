package wsock

import "testing"

func TestParseFrameExtractsIDAndCommand(t *testing.T) {
	id, command, params, err := parseFrame([]byte(`{"id":"req-1","request":"sample","count":3,"device":"dev1"}`))
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if id != "req-1" || command != "sample" {
		t.Fatalf("id=%q command=%q, want req-1/sample", id, command)
	}
	if len(params) != 2 {
		t.Fatalf("params = %v, want count and device only", params)
	}
	if _, ok := params["id"]; ok {
		t.Error("id should not leak into params")
	}
}

func TestParseFrameRequiresID(t *testing.T) {
	if _, _, _, err := parseFrame([]byte(`{"request":"probe"}`)); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestParseFrameRequiresCommand(t *testing.T) {
	id, _, _, err := parseFrame([]byte(`{"id":"req-1"}`))
	if err == nil {
		t.Fatal("expected error for missing request")
	}
	if id != "req-1" {
		t.Errorf("id = %q, want req-1 even on a malformed frame", id)
	}
}

func TestRawToStringUnquotesJSONStrings(t *testing.T) {
	if got := rawToString([]byte(`"dev1"`)); got != "dev1" {
		t.Errorf("rawToString(quoted) = %q, want dev1", got)
	}
	if got := rawToString([]byte(`42`)); got != "42" {
		t.Errorf("rawToString(number) = %q, want 42", got)
	}
	if got := rawToString([]byte(`true`)); got != "true" {
		t.Errorf("rawToString(bool) = %q, want true", got)
	}
}
