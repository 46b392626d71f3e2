// Package hooks implements the "Hook/async context" component (spec.md §2):
// named lifecycle callbacks run at fixed points around starting and
// stopping the agent's sources and sinks, plus the coordinator that starts
// those sources concurrently and triggers orderly shutdown (coordinator.go).
// Grounded on the original agent's configuration::HookManager<Agent>
// (_examples/original_source/src/mtconnect/configuration/hook_manager.hpp)
// and its BeforeStart/AfterStart/BeforeStop hook lists
// (_examples/original_source/src/mtconnect/agent.hpp), reimplemented as
// ordered named-callback lists per phase rather than a templated C++ list,
// since Go has no equivalent of HookManager<T>.
package hooks

import "fmt"

// Phase names a point in the agent's lifecycle hooks can run at, matching
// the original agent's beforeStartHooks/afterStartHooks/beforeStopHooks
// naming (afterStop is an addition: the original never defined one, but
// archival/metrics flushing needs a place to run after sources and sinks
// have already stopped).
type Phase string

const (
	BeforeStart Phase = "before_start"
	AfterStart  Phase = "after_start"
	BeforeStop  Phase = "before_stop"
	AfterStop   Phase = "after_stop"
)

// Func is a single hook callback. Returning an error from a BeforeStart
// hook aborts startup; errors from any other phase are logged by the
// caller and do not stop remaining hooks from running.
type Func func() error

type namedHook struct {
	name string
	fn   Func
}

// Manager holds an ordered list of named hooks per phase, matching
// HookManager's add-to-end/addFirst/remove-by-name surface.
type Manager struct {
	hooks map[Phase][]namedHook
}

func NewManager() *Manager {
	return &Manager{hooks: make(map[Phase][]namedHook)}
}

// Add appends a named hook to the end of phase's list.
func (m *Manager) Add(phase Phase, name string, fn Func) {
	m.hooks[phase] = append(m.hooks[phase], namedHook{name: name, fn: fn})
}

// AddFirst prepends a named hook to phase's list.
func (m *Manager) AddFirst(phase Phase, name string, fn Func) {
	m.hooks[phase] = append([]namedHook{{name: name, fn: fn}}, m.hooks[phase]...)
}

// Remove drops a named hook from phase's list, reporting whether it was
// found.
func (m *Manager) Remove(phase Phase, name string) bool {
	list := m.hooks[phase]
	for i, h := range list {
		if h.name == name {
			m.hooks[phase] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Run executes every hook registered for phase, in order. It returns the
// first error encountered, tagged with the hook's name, but still runs
// every hook that follows it — matching HookManager::exec's unconditional
// run-them-all behavior rather than aborting the phase on the first
// failure.
func (m *Manager) Run(phase Phase) error {
	var firstErr error
	for _, h := range m.hooks[phase] {
		if err := h.fn(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s hook %q: %w", phase, h.name, err)
		}
	}
	return firstErr
}
