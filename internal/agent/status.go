package agent

import (
	"sync"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
	"github.com/snarg/mtc-agent/internal/pipeline"
)

// ConnectionStatusData is a point-in-time snapshot of one source's
// connection state (SPEC_FULL §17.3), grounded on the teacher's
// TRInstanceStatusData/UpdateTRInstanceStatus pattern
// (internal/ingest/pipeline.go) so a diagnostic endpoint can report every
// source's last-seen state without touching the buffer lock.
type ConnectionStatusData struct {
	Source   string
	Status   pipeline.ConnectionState
	LastSeen time.Time
}

// StatusTracker implements spec.md §4.4's connection-status fan-out and
// auto-availability rule, plus the SPEC_FULL §17.3 snapshot exposure.
type StatusTracker struct {
	agent         *Agent
	autoAvailable bool

	mu    sync.RWMutex
	byID  map[string]ConnectionStatusData
	order []string
}

func NewStatusTracker(a *Agent, autoAvailable bool) *StatusTracker {
	return &StatusTracker{agent: a, autoAvailable: autoAvailable, byID: make(map[string]ConnectionStatusData)}
}

// Update records source's new status and applies the fan-out rule: on
// DISCONNECTED, every data item bound to source (or every AVAILABILITY data
// item, if autoAvailable) is set to its constant-or-UNAVAILABLE value; on
// CONNECTED with autoAvailable, AVAILABILITY data items are set to
// AVAILABLE (spec.md §4.4).
func (s *StatusTracker) Update(source string, status pipeline.ConnectionState) {
	s.mu.Lock()
	if _, seen := s.byID[source]; !seen {
		s.order = append(s.order, source)
	}
	s.byID[source] = ConnectionStatusData{Source: source, Status: status, LastSeen: time.Now()}
	s.mu.Unlock()

	switch status {
	case pipeline.StatusDisconnected:
		for _, di := range s.agent.Registry.DataItemsBySourceOrAvailability(source, s.autoAvailable) {
			s.agent.DeliverObservation(observation.New(di.ID, observation.KindEvent, time.Now(), di.InitialValue()))
		}
		if len(s.agent.sourcesLocked()) == 0 {
			s.agent.log.Warn().Msg("no external sources remain; initiating orderly shutdown")
			if s.agent.OnAllSourcesDown != nil {
				s.agent.OnAllSourcesDown()
			}
		}
	case pipeline.StatusConnected:
		if s.autoAvailable {
			for _, di := range s.agent.Registry.DataItemsBySourceOrAvailability(source, true) {
				if di.Type != "AVAILABILITY" {
					continue
				}
				s.agent.DeliverObservation(observation.New(di.ID, observation.KindEvent, time.Now(), model.StringValue("AVAILABLE")))
			}
		}
	}
}

// Snapshot returns every known source's last-reported status, in
// first-seen order.
func (s *StatusTracker) Snapshot() []ConnectionStatusData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConnectionStatusData, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Get returns the last-reported status for one source.
func (s *StatusTracker) Get(source string) (ConnectionStatusData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[source]
	return d, ok
}

// ActiveCount returns the number of sources currently reporting
// StatusConnected, for internal/metrics' live gauge.
func (s *StatusTracker) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, id := range s.order {
		if s.byID[id].Status == pipeline.StatusConnected {
			n++
		}
	}
	return n
}

// TotalCount returns the number of sources ever reported to this tracker.
func (s *StatusTracker) TotalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// sourcesLocked returns the sources currently reporting StatusConnected,
// used to decide whether every external source has failed (spec.md §4.4
// "Source failure").
func (a *Agent) sourcesLocked() []string {
	a.Status.mu.RLock()
	defer a.Status.mu.RUnlock()
	var connected []string
	for _, id := range a.Status.order {
		if a.Status.byID[id].Status == pipeline.StatusConnected {
			connected = append(connected, id)
		}
	}
	return connected
}
