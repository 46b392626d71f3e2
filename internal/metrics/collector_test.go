package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeBufferStats struct {
	first, next uint64
}

func (f fakeBufferStats) FirstSequence() uint64 { return f.first }
func (f fakeBufferStats) NextSequence() uint64  { return f.next }

type fakeSourceStats struct {
	active, total int
}

func (f fakeSourceStats) ActiveCount() int { return f.active }
func (f fakeSourceStats) TotalCount() int  { return f.total }

func TestCollectorReportsBufferAndSourceGauges(t *testing.T) {
	c := NewCollector(nil, fakeBufferStats{first: 100, next: 142}, fakeSourceStats{active: 2, total: 3})

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	depth := gatherValue(t, reg, "mtc_agent_buffer_depth")
	if depth != 42 {
		t.Fatalf("buffer depth = %v, want 42", depth)
	}
	active := gatherValue(t, reg, "mtc_agent_sources_active")
	if active != 2 {
		t.Fatalf("sources active = %v, want 2", active)
	}
}

func TestCollectorReportsZeroWhenStatsNil(t *testing.T) {
	c := NewCollector(nil, nil, nil)

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got := gatherValue(t, reg, "mtc_agent_buffer_next_sequence"); got != 0 {
		t.Fatalf("next sequence = %v, want 0", got)
	}
	if got := gatherValue(t, reg, "mtc_agent_db_pool_total_conns"); got != 0 {
		t.Fatalf("db total conns = %v, want 0", got)
	}
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		if len(mf.Metric) == 0 {
			t.Fatalf("metric %s has no samples", name)
		}
		m := mf.Metric[0]
		if m.Gauge != nil {
			return m.Gauge.GetValue()
		}
		if m.Counter != nil {
			return m.Counter.GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
