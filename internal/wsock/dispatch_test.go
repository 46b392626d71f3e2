package wsock

import (
	"encoding/json"
	"io"
	"testing"
)

func TestBuildRequestSubstitutesDeviceParam(t *testing.T) {
	params := map[string]json.RawMessage{"device": json.RawMessage(`"dev1"`), "count": json.RawMessage(`5`)}
	req, err := buildRequest("127.0.0.1:1234", "sampleDevice", params)
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if req.URL.Path != "/dev1/sample" {
		t.Errorf("Path = %q, want /dev1/sample", req.URL.Path)
	}
	if req.URL.Query().Get("count") != "5" {
		t.Errorf("count query = %q, want 5", req.URL.Query().Get("count"))
	}
	if req.Method != "GET" {
		t.Errorf("Method = %q, want GET", req.Method)
	}
}

func TestBuildRequestRequiresDeviceParam(t *testing.T) {
	if _, err := buildRequest("127.0.0.1:1234", "currentDevice", map[string]json.RawMessage{}); err == nil {
		t.Fatal("expected error for missing device parameter")
	}
}

func TestBuildRequestRejectsUnknownCommand(t *testing.T) {
	if _, err := buildRequest("127.0.0.1:1234", "doesNotExist", nil); err == nil {
		t.Fatal("expected error for unrecognized request")
	}
}

func TestBuildRequestEncodesAssetMutationBody(t *testing.T) {
	params := map[string]json.RawMessage{
		"id":         json.RawMessage(`"tool1"`),
		"deviceUuid": json.RawMessage(`"dev1"`),
		"type":       json.RawMessage(`"Tool"`),
	}
	req, err := buildRequest("127.0.0.1:1234", "putAsset", params)
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if req.URL.Path != "/asset/tool1" {
		t.Errorf("Path = %q, want /asset/tool1", req.URL.Path)
	}
	if req.Method != "PUT" {
		t.Errorf("Method = %q, want PUT", req.Method)
	}
	body, _ := io.ReadAll(req.Body)
	var decoded map[string]string
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded["deviceUuid"] != "dev1" || decoded["type"] != "Tool" {
		t.Errorf("body = %v, want deviceUuid=dev1 type=Tool", decoded)
	}
}

func TestKindForStatusMapsKnownCodes(t *testing.T) {
	cases := map[int]string{
		400: "INVALID_PARAMETER_VALUE",
		404: "NOT_FOUND",
		403: "FORBIDDEN",
		429: "RATE_LIMITED",
		413: "PAYLOAD_TOO_LARGE",
		500: "INTERNAL_ERROR",
	}
	for status, want := range cases {
		if got := kindForStatus(status); got != want {
			t.Errorf("kindForStatus(%d) = %q, want %q", status, got, want)
		}
	}
}
