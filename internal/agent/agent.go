package agent

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/mtc-agent/internal/archive"
	"github.com/snarg/mtc-agent/internal/assetbuffer"
	"github.com/snarg/mtc-agent/internal/buffer"
	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
	"github.com/snarg/mtc-agent/internal/pipeline"
)

// Agent owns the device registry, CircularBuffer, AssetStorage, and
// connection-status tracking, implementing pipeline.Agent (spec.md §4.4).
type Agent struct {
	Registry *Registry
	Buffer   *buffer.CircularBuffer
	Assets   *assetbuffer.AssetStorage
	Status   *StatusTracker

	archiver *archive.Archiver
	log      zerolog.Logger

	// OnAllSourcesDown is invoked once every registered source has reported
	// StatusDisconnected, letting cmd/mtc-agent wire an orderly-shutdown
	// trigger through internal/hooks (spec.md §4.4 "Source failure").
	OnAllSourcesDown func()
}

// Options configures an Agent.
type Options struct {
	BufferSizeExp   uint
	CheckpointFreq  int
	AssetBufferSize int
	AutoAvailable   bool
	Archiver        *archive.Archiver // nil disables raw-message archival
	Log             zerolog.Logger
}

func New(opts Options) *Agent {
	a := &Agent{
		Registry: NewRegistry(),
		Buffer:   buffer.New(opts.BufferSizeExp, opts.CheckpointFreq),
		Assets:   assetbuffer.New(opts.AssetBufferSize),
		archiver: opts.Archiver,
		log:      opts.Log,
	}
	a.Status = NewStatusTracker(a, opts.AutoAvailable)
	return a
}

// AddDevice installs a device's data items into the buffer's classification
// table before registering it (spec.md §4.4), so that the first observation
// delivered for any of its data items is folded with the right merge rule.
func (a *Agent) AddDevice(d *model.Device) error {
	a.registerDataItems(d)
	return a.Registry.AddDevice(d)
}

// LoadDevices installs every device in devices via AddDevice, the boundary
// SPEC_FULL.md §17.5 describes: the agent accepts an already-constructed
// device tree (e.g. from model.LoadDevicesFile) and never touches a
// filesystem or device-model parser itself.
func (a *Agent) LoadDevices(devices []*model.Device) error {
	for _, d := range devices {
		if err := a.AddDevice(d); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveDevice installs d as a live update, preserving tracked data items
// and orphaning buffer entries for data items the new model dropped
// (spec.md §4.4).
func (a *Agent) ReceiveDevice(d *model.Device) {
	a.registerDataItems(d)
	removed := a.Registry.ReceiveDevice(d)
	if len(removed) > 0 {
		ids := make(map[string]bool, len(removed))
		for _, id := range removed {
			ids[id] = true
		}
		a.Buffer.RemoveDataItems(ids)
	}
}

func (a *Agent) registerDataItems(d *model.Device) {
	d.Walk(func(c *model.Component) {
		for _, di := range c.DataItems {
			a.Buffer.RegisterDataItem(di.ID, di.IsCondition(), di.IsDataSet())
		}
	})
}

// DataItem implements pipeline.Agent.
func (a *Agent) DataItem(id string) (*model.DataItem, bool) {
	return a.Registry.DataItem(id)
}

// LatestObservation implements pipeline.Agent.
func (a *Agent) LatestObservation(dataItemID string) (*observation.Observation, bool) {
	return a.Buffer.LatestOne(dataItemID)
}

// DeliverObservation implements pipeline.Agent (spec.md §4.4 "Observation
// receipt").
func (a *Agent) DeliverObservation(obs *observation.Observation) uint64 {
	return a.Buffer.AddToBuffer(obs)
}

// DeliverAsset implements pipeline.Agent (spec.md §4.4 "Asset receipt"):
// inserts the asset (evicting LRU if full) and delivers the paired
// ASSET_CHANGED observation plus a refreshed ASSET_COUNT, if the owning
// device declares those data items. ASSET_COUNT is delivered as an integer
// event holding the number of non-removed assets of this asset's type on
// the device; it is not a data-set keyed by asset type.
func (a *Agent) DeliverAsset(asset *model.Asset) {
	a.Assets.Insert(asset)
	a.emitAssetChanged(asset.DeviceUUID, asset.AssetID, asset.Type, false)
	a.emitAssetCount(asset.DeviceUUID, asset.Type)
}

// DeliverAssetCommand implements pipeline.Agent (RemoveAsset/RemoveAll).
func (a *Agent) DeliverAssetCommand(kind pipeline.AssetCommandKind, assetID, deviceUUID, assetType string) {
	switch kind {
	case pipeline.AssetCommandRemove:
		if a.Assets.Remove(assetID) {
			a.emitAssetChanged(deviceUUID, assetID, assetType, true)
			a.emitAssetCount(deviceUUID, assetType)
		}
	case pipeline.AssetCommandRemoveAll:
		removed := a.Assets.RemoveAll(deviceUUID, assetType)
		for _, id := range removed {
			a.emitAssetChanged(deviceUUID, id, assetType, true)
		}
		if len(removed) > 0 {
			a.emitAssetCount(deviceUUID, assetType)
		}
	}
}

func (a *Agent) emitAssetChanged(deviceUUID, assetID, assetType string, removed bool) {
	di := a.assetTrackingItem(deviceUUID, map[bool]string{false: "ASSET_CHANGED", true: "ASSET_REMOVED"}[removed])
	if di == nil {
		return
	}
	v := model.StringValue(assetID)
	a.DeliverObservation(observation.New(di.ID, observation.KindEvent, time.Now(), v))
}

func (a *Agent) emitAssetCount(deviceUUID, assetType string) {
	di := a.assetTrackingItem(deviceUUID, "ASSET_COUNT")
	if di == nil {
		return
	}
	count := a.Assets.Count(deviceUUID, assetType)
	a.DeliverObservation(observation.New(di.ID, observation.KindEvent, time.Now(), model.Int64Value(int64(count))))
}

// assetTrackingItem finds the AVAILABILITY-class tracking item of the given
// MTConnect Type on the device with deviceUUID.
func (a *Agent) assetTrackingItem(deviceUUID, typ string) *model.DataItem {
	d, ok := a.Registry.ByUUID(deviceUUID)
	if !ok {
		return nil
	}
	var found *model.DataItem
	d.Walk(func(c *model.Component) {
		if found != nil {
			return
		}
		for _, di := range c.DataItems {
			if di.Type == typ {
				found = di
				return
			}
		}
	})
	return found
}

// DeliverConnectionStatus implements pipeline.Agent, delegating to the
// StatusTracker (spec.md §4.4 "Connection status fan-out").
func (a *Agent) DeliverConnectionStatus(source string, status pipeline.ConnectionState) {
	a.Status.Update(source, status)
}

// DeliverCommand implements pipeline.Agent. Protocol commands (uuid,
// manufacturer, serialNumber, ...) are logged; the device model itself is
// not mutated by a wire-level command in this agent (spec.md §4.4 does not
// require live model mutation from SHDR `* cmd:value` lines beyond
// heartbeat negotiation, which the adapter already handles).
func (a *Agent) DeliverCommand(source, name, value string) {
	a.log.Debug().Str("source", source).Str("command", name).Str("value", value).Msg("adapter command received")
}

// DefaultDeviceUUID implements pipeline.Agent.
func (a *Agent) DefaultDeviceUUID() string {
	return a.Registry.DefaultDeviceUUID()
}

// ArchiveRaw records a raw adapter payload for audit purposes, if archival
// is enabled (SPEC_FULL §17.2). Called by adapter sources alongside their
// normal pipeline.Run, not from within the pipeline itself.
func (a *Agent) ArchiveRaw(route, source string, payload []byte) {
	if a.archiver != nil {
		a.archiver.Record(route, source, payload)
	}
}
