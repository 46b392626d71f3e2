// Package assetbuffer implements AssetStorage: a bounded map keyed by
// assetId with insertion-order LRU eviction, indexed by deviceUuid and type
// for count queries (spec.md §3), grounded on the teacher's bounded-map
// caching patterns (internal/ingest/pipeline.go activeCallMap/recorderCache).
package assetbuffer

import (
	"container/list"
	"sync"

	"github.com/snarg/mtc-agent/internal/model"
)

type entry struct {
	asset *model.Asset
	elem  *list.Element
}

// AssetStorage is a bounded, insertion-order-LRU store of assets.
type AssetStorage struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = least recently inserted/touched
	byID     map[string]*entry
}

func New(capacity int) *AssetStorage {
	return &AssetStorage{
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[string]*entry),
	}
}

// Insert adds or replaces an asset by id, evicting the least-recently
// inserted entry if the store is at capacity. Returns the evicted asset id,
// if any.
func (s *AssetStorage) Insert(a *model.Asset) (evictedID string, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byID[a.AssetID]; ok {
		s.order.MoveToBack(e.elem)
		e.asset = a
		return "", false
	}

	if s.capacity > 0 && len(s.byID) >= s.capacity {
		front := s.order.Front()
		if front != nil {
			evictedID = front.Value.(string)
			s.order.Remove(front)
			delete(s.byID, evictedID)
			evicted = true
		}
	}

	elem := s.order.PushBack(a.AssetID)
	s.byID[a.AssetID] = &entry{asset: a, elem: elem}
	return evictedID, evicted
}

func (s *AssetStorage) Get(assetID string) (*model.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[assetID]
	if !ok {
		return nil, false
	}
	return e.asset, true
}

// Remove marks an asset removed in place (MTConnect assets are tombstoned,
// not deleted outright, so ASSET_REMOVED observations can still reference
// them).
func (s *AssetStorage) Remove(assetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[assetID]
	if !ok {
		return false
	}
	e.asset.Removed = true
	return true
}

// RemoveAll tombstones every asset matching deviceUUID (if non-empty) and
// typ (if non-empty), returning the ids removed.
func (s *AssetStorage) RemoveAll(deviceUUID, typ string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, e := range s.byID {
		if deviceUUID != "" && e.asset.DeviceUUID != deviceUUID {
			continue
		}
		if typ != "" && e.asset.Type != typ {
			continue
		}
		if e.asset.Removed {
			continue
		}
		e.asset.Removed = true
		removed = append(removed, id)
	}
	return removed
}

// List returns assets matching the optional deviceUUID/type filters and
// removed state, most-recently-inserted first, capped at count (0 = no cap).
func (s *AssetStorage) List(deviceUUID, typ string, includeRemoved bool, count int) []*model.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Asset
	for e := s.order.Back(); e != nil; e = e.Prev() {
		id := e.Value.(string)
		ent := s.byID[id]
		a := ent.asset
		if deviceUUID != "" && a.DeviceUUID != deviceUUID {
			continue
		}
		if typ != "" && a.Type != typ {
			continue
		}
		if a.Removed && !includeRemoved {
			continue
		}
		out = append(out, a)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// Count returns the number of non-removed assets matching the filters,
// backing the agent's integer ASSET_COUNT event.
func (s *AssetStorage) Count(deviceUUID, typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.byID {
		if e.asset.Removed {
			continue
		}
		if deviceUUID != "" && e.asset.DeviceUUID != deviceUUID {
			continue
		}
		if typ != "" && e.asset.Type != typ {
			continue
		}
		n++
	}
	return n
}

func (s *AssetStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
