package pipeline

import (
	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

// Agent is the contract transforms use to reach shared state: the device
// registry, circular buffer, and asset storage. Pipeline transforms hold no
// shared state of their own except this contract (spec.md §5), which is
// implemented by internal/agent.Agent; defining it here (rather than
// importing internal/agent) avoids a cycle since internal/agent depends on
// internal/pipeline to build its transform graph.
type Agent interface {
	// DataItem resolves a data item id against the current device model.
	DataItem(id string) (*model.DataItem, bool)

	// LatestObservation returns the most recently delivered observation for
	// a data item, used by DuplicateFilter/DeltaFilter/PeriodFilter.
	LatestObservation(dataItemID string) (*observation.Observation, bool)

	// DeliverObservation commits an observation to the buffer, assigning
	// its sequence number, and fans it out to subscribers.
	DeliverObservation(obs *observation.Observation) uint64

	// DeliverAsset commits an asset to asset storage.
	DeliverAsset(a *model.Asset)

	// DeliverAssetCommand executes RemoveAsset/RemoveAll.
	DeliverAssetCommand(kind AssetCommandKind, assetID, deviceUUID, assetType string)

	// DeliverConnectionStatus updates source/availability state.
	DeliverConnectionStatus(source string, status ConnectionState)

	// DeliverCommand delivers a protocol command (uuid, manufacturer, ...).
	DeliverCommand(source, name, value string)

	// DefaultDeviceUUID resolves the device uuid to attach an asset to when
	// none is explicit in the payload.
	DefaultDeviceUUID() string
}
