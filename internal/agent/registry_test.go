package agent

import (
	"testing"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/stretchr/testify/require"
)

func buildDevice(uuid, name string, availID string) *model.Device {
	d := model.NewDevice(uuid, name)
	avail := &model.DataItem{ID: availID, Type: "AVAILABILITY", Category: model.CategoryEvent}
	d.AddDataItem(avail)
	return d
}

func TestAddDeviceRejectsDuplicateUUID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddDevice(buildDevice("dev1", "Mill", "avail1")))
	err := r.AddDevice(buildDevice("dev1", "Mill2", "avail2"))
	require.Error(t, err)
}

func TestReceiveDevicePreservesAvailabilityItem(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddDevice(buildDevice("dev1", "Mill", "avail1")))

	old, _ := r.DataItem("avail1")
	old.Type = "AVAILABILITY"

	updated := buildDevice("dev1", "MillRenamed", "avail1")
	removed := r.ReceiveDevice(updated)

	require.Empty(t, removed)
	di, ok := r.DataItem("avail1")
	require.True(t, ok)
	require.Equal(t, "AVAILABILITY", di.Type)

	d, ok := r.ByUUID("dev1")
	require.True(t, ok)
	require.Equal(t, "MillRenamed", d.Name)
}

func TestReceiveDeviceReportsRemovedDataItems(t *testing.T) {
	r := NewRegistry()
	d1 := model.NewDevice("dev1", "Mill")
	d1.AddDataItem(&model.DataItem{ID: "temp1", Category: model.CategorySample})
	require.NoError(t, r.AddDevice(d1))

	d2 := model.NewDevice("dev1", "Mill")
	// temp1 dropped, new item added
	d2.AddDataItem(&model.DataItem{ID: "temp2", Category: model.CategorySample})
	removed := r.ReceiveDevice(d2)

	require.Equal(t, []string{"temp1"}, removed)
	_, ok := r.DataItem("temp1")
	require.False(t, ok)
	_, ok = r.DataItem("temp2")
	require.True(t, ok)
}

func TestDefaultDeviceUUIDReturnsFirstRegistered(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, "", r.DefaultDeviceUUID())
	require.NoError(t, r.AddDevice(buildDevice("dev1", "Mill", "avail1")))
	require.NoError(t, r.AddDevice(buildDevice("dev2", "Lathe", "avail2")))
	require.Equal(t, "dev1", r.DefaultDeviceUUID())
}

func TestDataItemsBySourceOrAvailability(t *testing.T) {
	r := NewRegistry()
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "avail1", Type: "AVAILABILITY"})
	d.AddDataItem(&model.DataItem{ID: "temp1", SourceAdapter: "shdr-a"})
	d.AddDataItem(&model.DataItem{ID: "temp2", SourceAdapter: "shdr-b"})
	require.NoError(t, r.AddDevice(d))

	bySource := r.DataItemsBySourceOrAvailability("shdr-a", false)
	require.Len(t, bySource, 1)
	require.Equal(t, "temp1", bySource[0].ID)

	withAvail := r.DataItemsBySourceOrAvailability("shdr-a", true)
	ids := map[string]bool{}
	for _, di := range withAvail {
		ids[di.ID] = true
	}
	require.True(t, ids["temp1"])
	require.True(t, ids["avail1"])
	require.False(t, ids["temp2"])
}
