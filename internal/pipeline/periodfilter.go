package pipeline

import (
	"sync"
	"time"

	"github.com/snarg/mtc-agent/internal/observation"
)

// periodState is the per-data-item bookkeeping PeriodFilter needs: the wall
// clock time of the last emission and, if a delayed emit is scheduled, the
// timer and the most recently seen observation it will deliver when it
// fires (spec.md §4.1.1: "replacing any previously scheduled value").
type periodState struct {
	lastEmit time.Time
	timer    *time.Timer
	pending  *observation.Observation
}

// NewPeriodFilter rate-limits Sample observations to one per configured
// period per data item, deferring a suppressed arrival's value to a timer
// that fires at lastEmit+period (spec.md §4.1.1 PeriodFilter algorithm),
// grounded on the teacher's time.AfterFunc batching in
// internal/ingest/batcher.go's Batcher. Observations for data items with no
// configured period, or of any kind other than Sample, pass through
// immediately.
func NewPeriodFilter(agent Agent) *Node {
	var mu sync.Mutex
	state := make(map[string]*periodState)

	node := &Node{Name: "PeriodFilter", Guard: OnKind(KindObservationRaw)}

	deliverLate := func(dataItemID, source string) {
		mu.Lock()
		st, ok := state[dataItemID]
		if !ok || st.pending == nil {
			if ok {
				st.timer = nil
			}
			mu.Unlock()
			return
		}
		obs := st.pending
		st.pending = nil
		st.timer = nil
		st.lastEmit = time.Now()
		mu.Unlock()

		node.dispatchChildren(&Entity{
			Kind:         KindObservationRaw,
			Source:       source,
			Timestamp:    obs.Timestamp,
			Observations: []*observation.Observation{obs},
		})
	}

	node.Apply = func(e *Entity) *Entity {
		now := time.Now()
		var immediate []*observation.Observation

		for _, o := range e.Observations {
			if o.Kind != observation.KindSample {
				immediate = append(immediate, o)
				continue
			}
			di, ok := agent.DataItem(o.DataItemID)
			if !ok || di.Period <= 0 {
				immediate = append(immediate, o)
				continue
			}

			period := time.Duration(di.Period * float64(time.Second))

			mu.Lock()
			st, ok := state[o.DataItemID]
			if !ok {
				st = &periodState{}
				state[o.DataItemID] = st
			}

			if st.lastEmit.IsZero() || now.Sub(st.lastEmit) >= period {
				st.lastEmit = now
				if st.timer != nil {
					st.timer.Stop()
					st.timer = nil
					st.pending = nil
				}
				mu.Unlock()
				immediate = append(immediate, o)
				continue
			}

			st.pending = o
			if st.timer == nil {
				remaining := period - now.Sub(st.lastEmit)
				id, src := o.DataItemID, e.Source
				st.timer = time.AfterFunc(remaining, func() { deliverLate(id, src) })
			}
			mu.Unlock()
		}

		if len(immediate) == 0 {
			return nil
		}
		e.Observations = immediate
		return e
	}

	return node
}
