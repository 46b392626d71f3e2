package mqttadapter

import (
	"testing"

	"github.com/snarg/mtc-agent/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func TestParseTopicsBareAndBound(t *testing.T) {
	routes := ParseTopics("dev1:x/y, #, dev2:a/b")
	require.Equal(t, []pipeline.TopicRoute{
		{Pattern: "x/y", DeviceUUID: "dev1"},
		{Pattern: "#"},
		{Pattern: "a/b", DeviceUUID: "dev2"},
	}, routes)
}

func TestParseTopicsEmptyDefaultsToNil(t *testing.T) {
	require.Nil(t, ParseTopics(""))
	require.Nil(t, ParseTopics("   "))
}

func TestSubscriptionFiltersDefaultsToWildcard(t *testing.T) {
	a := &Adapter{}
	filters := a.subscriptionFilters()
	require.Equal(t, map[string]byte{"#": 1}, filters)
}

func TestSubscriptionFiltersStripsDeviceBinding(t *testing.T) {
	a := &Adapter{opts: Options{Topics: ParseTopics("dev1:x/y")}}
	filters := a.subscriptionFilters()
	require.Equal(t, map[string]byte{"x/y": 1}, filters)
}
