// Package agent implements the Agent coordinator (spec.md §4.4): the
// device registry, routing between pipeline transforms and the
// CircularBuffer/AssetStorage, connection-status fan-out, and
// auto-availability. Grounded on the teacher's Pipeline struct
// (internal/ingest/pipeline.go) as the coordinator-of-everything shape, and
// on IdentityResolver's (internal/ingest/identity.go) cache/rewrite-on-update
// pattern for the device registry.
package agent

import (
	"fmt"
	"sync"

	"github.com/snarg/mtc-agent/internal/model"
)

// Registry holds the live device tree in three indices (spec.md §4.4:
// insertion-order, by uuid, by name), plus a flattened data-item index kept
// consistent across device updates.
type Registry struct {
	mu sync.RWMutex

	byOrder    []*model.Device
	byUUID     map[string]*model.Device
	byName     map[string]*model.Device
	dataItems  map[string]*model.DataItem // data item id -> owning device's item
	deviceUUID map[string]string          // data item id -> owning device uuid
}

func NewRegistry() *Registry {
	return &Registry{
		byUUID:     make(map[string]*model.Device),
		byName:     make(map[string]*model.Device),
		dataItems:  make(map[string]*model.DataItem),
		deviceUUID: make(map[string]string),
	}
}

// preservedKinds lists the DataItem Types copied forward from the old
// device when receiveDevice replaces it (spec.md §4.4: "preserving the
// existing availability, asset-changed, asset-removed, and asset-count data
// items").
var preservedKinds = map[string]bool{
	"AVAILABILITY":  true,
	"ASSET_CHANGED": true,
	"ASSET_REMOVED": true,
	"ASSET_COUNT":   true,
}

// AddDevice installs a brand-new device. Returns an error if its uuid is
// already registered (spec.md §4.4 "addDevice rejects duplicate uuids").
func (r *Registry) AddDevice(d *model.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUUID[d.UUID]; exists {
		return fmt.Errorf("duplicate device uuid %q", d.UUID)
	}
	r.installLocked(d)
	return nil
}

// ReceiveDevice installs d as a live update to an existing device sharing
// its uuid, preserving the existing availability/asset-tracking data items
// by id into the new device before the old one is discarded (spec.md §4.4).
// removedIDs reports every data-item id present in the old device but
// absent from the new one, for the caller to orphan in the circular buffer.
func (r *Registry) ReceiveDevice(d *model.Device) (removedIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.byUUID[d.UUID]
	if !exists {
		r.installLocked(d)
		return nil
	}

	oldIDs := make(map[string]*model.DataItem)
	old.Walk(func(c *model.Component) {
		for _, di := range c.DataItems {
			oldIDs[di.ID] = di
		}
	})

	newIDs := make(map[string]bool)
	d.Walk(func(c *model.Component) {
		for _, di := range c.DataItems {
			newIDs[di.ID] = true
			if old, ok := oldIDs[di.ID]; ok && preservedKinds[di.Type] {
				*di = *old
			}
		}
	})

	for id := range oldIDs {
		if !newIDs[id] {
			removedIDs = append(removedIDs, id)
		}
	}

	r.removeLocked(old)
	r.installLocked(d)
	return removedIDs
}

func (r *Registry) installLocked(d *model.Device) {
	r.byOrder = append(r.byOrder, d)
	r.byUUID[d.UUID] = d
	r.byName[d.Name] = d
	d.Walk(func(c *model.Component) {
		for _, di := range c.DataItems {
			r.dataItems[di.ID] = di
			r.deviceUUID[di.ID] = d.UUID
		}
	})
}

func (r *Registry) removeLocked(d *model.Device) {
	for i, existing := range r.byOrder {
		if existing == d {
			r.byOrder = append(r.byOrder[:i], r.byOrder[i+1:]...)
			break
		}
	}
	delete(r.byUUID, d.UUID)
	delete(r.byName, d.Name)
	d.Walk(func(c *model.Component) {
		for _, di := range c.DataItems {
			delete(r.dataItems, di.ID)
			delete(r.deviceUUID, di.ID)
		}
	})
}

func (r *Registry) DataItem(id string) (*model.DataItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	di, ok := r.dataItems[id]
	return di, ok
}

// DeviceUUIDFor returns the uuid of the device owning a data item id.
func (r *Registry) DeviceUUIDFor(dataItemID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uuid, ok := r.deviceUUID[dataItemID]
	return uuid, ok
}

func (r *Registry) ByUUID(uuid string) (*model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byUUID[uuid]
	return d, ok
}

func (r *Registry) ByName(name string) (*model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Devices returns every device in insertion order — Probe's device tree
// snapshot (spec.md §4.6).
func (r *Registry) Devices() []*model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Device, len(r.byOrder))
	copy(out, r.byOrder)
	return out
}

// DefaultDeviceUUID returns the first registered device's uuid, used to
// resolve an asset's device when none is explicit (spec.md §4.4 "Asset
// receipt").
func (r *Registry) DefaultDeviceUUID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.byOrder) == 0 {
		return ""
	}
	return r.byOrder[0].UUID
}

// DataItemsBySourceOrAvailability returns every data item bound to source,
// or — if matchAvailability is set — every AVAILABILITY data item
// regardless of source, for the connection-status fan-out (spec.md §4.4).
func (r *Registry) DataItemsBySourceOrAvailability(source string, matchAvailability bool) []*model.DataItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.DataItem
	for _, di := range r.dataItems {
		if di.SourceAdapter == source || (matchAvailability && di.Type == "AVAILABILITY") {
			out = append(out, di)
		}
	}
	return out
}
