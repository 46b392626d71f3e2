package agent

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
	"github.com/snarg/mtc-agent/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func newTestAgent(autoAvailable bool) *Agent {
	return New(Options{
		BufferSizeExp:   4,
		CheckpointFreq:  4,
		AssetBufferSize: 16,
		AutoAvailable:   autoAvailable,
		Log:             zerolog.Nop(),
	})
}

func TestDeliverObservationAssignsSequence(t *testing.T) {
	a := newTestAgent(false)
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "temp1", Category: model.CategorySample})
	require.NoError(t, a.AddDevice(d))

	obs := observation.New("temp1", observation.KindSample, time.Now(), model.DoubleValue(1.0))
	seq := a.DeliverObservation(obs)
	require.Equal(t, uint64(1), seq)

	latest, ok := a.LatestObservation("temp1")
	require.True(t, ok)
	require.Equal(t, 1.0, latest.Value.Float)
}

func TestDeliverAssetUpdatesCountAndChanged(t *testing.T) {
	a := newTestAgent(false)
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "achg", Type: "ASSET_CHANGED", Category: model.CategoryEvent})
	d.AddDataItem(&model.DataItem{ID: "acnt", Type: "ASSET_COUNT", Category: model.CategoryEvent})
	require.NoError(t, a.AddDevice(d))

	a.DeliverAsset(&model.Asset{AssetID: "tool1", DeviceUUID: "dev1", Type: "Tool"})

	changed, ok := a.LatestObservation("achg")
	require.True(t, ok)
	require.Equal(t, "tool1", changed.Value.Str)

	count, ok := a.LatestObservation("acnt")
	require.True(t, ok)
	require.Equal(t, int64(1), count.Value.Int)
}

func TestDeliverAssetCommandRemove(t *testing.T) {
	a := newTestAgent(false)
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "arem", Type: "ASSET_REMOVED", Category: model.CategoryEvent})
	require.NoError(t, a.AddDevice(d))

	a.Assets.Insert(&model.Asset{AssetID: "tool1", DeviceUUID: "dev1", Type: "Tool"})
	a.DeliverAssetCommand(pipeline.AssetCommandRemove, "tool1", "dev1", "Tool")

	removed, ok := a.LatestObservation("arem")
	require.True(t, ok)
	require.Equal(t, "tool1", removed.Value.Str)

	asset, ok := a.Assets.Get("tool1")
	require.True(t, ok)
	require.True(t, asset.Removed)
}

func TestConnectionStatusDisconnectSetsUnavailable(t *testing.T) {
	a := newTestAgent(false)
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "temp1", SourceAdapter: "shdr-a", Category: model.CategorySample})
	require.NoError(t, a.AddDevice(d))

	a.DeliverConnectionStatus("shdr-a", pipeline.StatusDisconnected)

	latest, ok := a.LatestObservation("temp1")
	require.True(t, ok)
	require.Equal(t, model.Unavailable, latest.Value.Str)
}

func TestConnectionStatusAutoAvailableMarksConnected(t *testing.T) {
	a := newTestAgent(true)
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "avail1", Type: "AVAILABILITY", SourceAdapter: "shdr-a", Category: model.CategoryEvent})
	require.NoError(t, a.AddDevice(d))

	a.DeliverConnectionStatus("shdr-a", pipeline.StatusConnected)

	latest, ok := a.LatestObservation("avail1")
	require.True(t, ok)
	require.Equal(t, "AVAILABLE", latest.Value.Str)
}

func TestStatusSnapshotTracksEverySource(t *testing.T) {
	a := newTestAgent(false)
	a.DeliverConnectionStatus("shdr-a", pipeline.StatusConnected)
	a.DeliverConnectionStatus("mqtt-b", pipeline.StatusConnecting)

	snap := a.Status.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "shdr-a", snap[0].Source)
	require.Equal(t, "mqtt-b", snap[1].Source)
}

func TestStatusActiveAndTotalCountTrackConnections(t *testing.T) {
	a := newTestAgent(false)
	a.DeliverConnectionStatus("shdr-a", pipeline.StatusConnected)
	a.DeliverConnectionStatus("mqtt-b", pipeline.StatusConnecting)
	a.DeliverConnectionStatus("shdr-c", pipeline.StatusConnected)

	require.Equal(t, 3, a.Status.TotalCount())
	require.Equal(t, 2, a.Status.ActiveCount())

	a.DeliverConnectionStatus("shdr-a", pipeline.StatusDisconnected)
	require.Equal(t, 3, a.Status.TotalCount())
	require.Equal(t, 1, a.Status.ActiveCount())
}

func TestReceiveDeviceOrphansRemovedDataItemsInBuffer(t *testing.T) {
	a := newTestAgent(false)
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "temp1", Category: model.CategorySample})
	require.NoError(t, a.AddDevice(d))

	obs := observation.New("temp1", observation.KindSample, time.Now(), model.DoubleValue(5.0))
	a.DeliverObservation(obs)

	d2 := model.NewDevice("dev1", "Mill")
	d2.AddDataItem(&model.DataItem{ID: "temp2", Category: model.CategorySample})
	a.ReceiveDevice(d2)

	got := a.Buffer.GetFromBuffer(1)
	require.NotNil(t, got)
	require.True(t, got.Orphan)
}
