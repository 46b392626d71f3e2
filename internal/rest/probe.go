package rest

import "net/http"

// probeResponse wraps the device tree snapshot (spec.md §4.6 "Device model
// snapshot").
type probeResponse struct {
	Devices []deviceView `json:"devices"`
}

// probeAll serves GET /probe: every registered device.
func (h *handlers) probeAll(w http.ResponseWriter, r *http.Request) {
	devices := h.agent.Registry.Devices()
	out := make([]deviceView, len(devices))
	for i, d := range devices {
		out[i] = renderDevice(d)
	}
	WriteJSON(w, http.StatusOK, probeResponse{Devices: out})
}

// probeDevice serves GET /{device}/probe: one device's tree, identified by
// uuid or name.
func (h *handlers) probeDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := h.resolveDevice(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, probeResponse{Devices: []deviceView{renderDevice(d)}})
}
