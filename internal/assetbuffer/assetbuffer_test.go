package assetbuffer

import (
	"testing"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
)

func asset(id, device, typ string) *model.Asset {
	return &model.Asset{AssetID: id, DeviceUUID: device, Type: typ, Timestamp: time.Now()}
}

func TestInsertEvictsLRU(t *testing.T) {
	s := New(2)
	s.Insert(asset("a1", "dev1", "Tool"))
	s.Insert(asset("a2", "dev1", "Tool"))
	evictedID, evicted := s.Insert(asset("a3", "dev1", "Tool"))

	if !evicted || evictedID != "a1" {
		t.Fatalf("expected a1 evicted, got %q evicted=%v", evictedID, evicted)
	}
	if _, ok := s.Get("a1"); ok {
		t.Error("expected a1 to be gone")
	}
	if _, ok := s.Get("a3"); !ok {
		t.Error("expected a3 present")
	}
}

func TestRemoveAllTombstones(t *testing.T) {
	s := New(10)
	s.Insert(asset("a1", "dev1", "Tool"))
	s.Insert(asset("a2", "dev1", "Part"))

	removed := s.RemoveAll("dev1", "Tool")
	if len(removed) != 1 || removed[0] != "a1" {
		t.Fatalf("expected only a1 removed, got %v", removed)
	}
	a, _ := s.Get("a1")
	if !a.Removed {
		t.Error("expected a1 marked removed")
	}
	if s.Count("dev1", "") != 1 {
		t.Errorf("Count = %d, want 1 (a2 only)", s.Count("dev1", ""))
	}
}

func TestListOrderAndFilter(t *testing.T) {
	s := New(10)
	s.Insert(asset("a1", "dev1", "Tool"))
	s.Insert(asset("a2", "dev1", "Part"))
	s.Insert(asset("a3", "dev2", "Tool"))

	list := s.List("dev1", "", false, 0)
	if len(list) != 2 {
		t.Fatalf("expected 2 assets for dev1, got %d", len(list))
	}
	if list[0].AssetID != "a2" {
		t.Errorf("expected most-recently-inserted first, got %s", list[0].AssetID)
	}
}
