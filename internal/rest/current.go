package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

// current serves GET /current (spec.md §4.6 row 2/3): a single latest-
// checkpoint snapshot, or — with ?at= — the reconstructed checkpoint at a
// past sequence, or — with ?interval= — a repeating multipart stream of
// snapshots.
func (h *handlers) current(w http.ResponseWriter, r *http.Request) {
	h.serveCurrent(w, r, nil)
}

func (h *handlers) currentDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := h.resolveDevice(w, r)
	if !ok {
		return
	}
	h.serveCurrent(w, r, d)
}

func (h *handlers) serveCurrent(w http.ResponseWriter, r *http.Request, device *model.Device) {
	errs := &ParamErrors{}
	at := QueryUintPtr(r, "at", errs)
	interval := QueryInt(r, "interval", -1, errs)
	heartbeat := QueryInt(r, "heartbeat", int(h.opts.DefaultHeartbeat.Milliseconds()), errs)
	filter := QueryPathFilter(r, h.resolvePathExpr(device))
	if errs.HasErrors() {
		WriteParamErrors(w, errs)
		return
	}

	snapshot := func() []byte {
		var obs []*observation.Observation
		if at != nil {
			obs = h.agent.Buffer.GetCheckpointAt(*at, filter).Observations(filter)
		} else {
			obs = h.agent.Buffer.Latest(filter).Observations(filter)
		}
		body, _ := json.Marshal(newObservationsByID(obs))
		return body
	}

	if interval < 0 {
		w.Header().Set("Content-Type", "application/json")
		w.Write(snapshot())
		return
	}

	stream, ok := newMultipartStream(w)
	if !ok {
		return
	}
	defer stream.Close()

	ticker := time.NewTicker(clampInterval(interval))
	defer ticker.Stop()
	_ = heartbeat // current re-emits every tick, so a separate keepalive isn't needed

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := stream.WriteChunk(snapshot()); err != nil {
				return
			}
		}
	}
}

func clampInterval(ms int) time.Duration {
	if ms <= 0 {
		ms = 10
	}
	return time.Duration(ms) * time.Millisecond
}

// observationsByID renders a checkpoint's observations keyed by data item
// id, the shape current clients expect (spec.md §3 Checkpoint).
type observationsByID map[string]observationView

func newObservationsByID(obs []*observation.Observation) observationsByID {
	out := make(observationsByID, len(obs))
	for _, o := range obs {
		out[o.DataItemID] = renderObservation(o)
	}
	return out
}
