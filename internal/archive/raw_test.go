package archive

import (
	"testing"
	"time"
)

func TestParseRouteSet(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "shdr", map[string]bool{"shdr": true}},
		{"multiple_trims_space", "shdr, mqtt ,  ", map[string]bool{"shdr": true, "mqtt": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRouteSet(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("parseRouteSet(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for k := range tt.want {
				if !got[k] {
					t.Errorf("missing key %q", k)
				}
			}
		})
	}
}

func TestArchiverDisabledRecordsNothing(t *testing.T) {
	a := NewArchiver(nil, nil, Config{Enabled: false})
	// Should not panic even with a nil db/ctx since enabled is false.
	a.Record("shdr", "loader1", []byte("X|1|2"))
	a.Stop()
}

func TestArchiverIncludeFiltersRoutes(t *testing.T) {
	var routes []string
	a := &Archiver{enabled: true, include: map[string]bool{"shdr": true}}
	a.batcher = NewBatcher[RawMessageRow](100, time.Hour, func(rows []RawMessageRow) {
		for _, r := range rows {
			routes = append(routes, r.Route)
		}
	})
	a.Record("shdr", "loader1", []byte("X|1"))
	a.Record("mqtt", "broker", []byte("{}"))
	a.Stop()
	if len(routes) != 1 {
		t.Fatalf("expected only the included route archived, got %v", routes)
	}
	if routes[0] != "shdr" {
		t.Fatal("expected shdr archived")
	}
}
