package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
)

// sampleChunk is the wire shape of one /sample response or streamed chunk
// (spec.md §4.6 testable property S6: "each chunk carries observations
// whose sequences form a prefix-contiguous set... next-from advancing
// across chunks").
type sampleChunk struct {
	Observations  []observationView `json:"observations"`
	NextSequence  uint64            `json:"nextSequence"`
	FirstSequence uint64            `json:"firstSequence"`
	EndOfBuffer   bool              `json:"endOfBuffer"`
}

func (h *handlers) sample(w http.ResponseWriter, r *http.Request) {
	h.serveSample(w, r, nil)
}

func (h *handlers) sampleDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := h.resolveDevice(w, r)
	if !ok {
		return
	}
	h.serveSample(w, r, d)
}

func (h *handlers) serveSample(w http.ResponseWriter, r *http.Request, device *model.Device) {
	errs := &ParamErrors{}
	from := QueryUintPtr(r, "from", errs)
	to := QueryUintPtr(r, "to", errs)
	count := QueryInt(r, "count", h.opts.DefaultSampleCount, errs)
	interval := QueryInt(r, "interval", -1, errs)
	heartbeatMs := QueryInt(r, "heartbeat", int(h.opts.DefaultHeartbeat.Milliseconds()), errs)
	filter := QueryPathFilter(r, h.resolvePathExpr(device))
	if errs.HasErrors() {
		WriteParamErrors(w, errs)
		return
	}

	fetch := func(from *uint64) sampleChunk {
		obs, firstReturned, nextReturned, eob := h.agent.Buffer.GetObservations(count, filter, from, to)
		return sampleChunk{
			Observations:  renderObservations(obs),
			FirstSequence: firstReturned,
			NextSequence:  nextReturned,
			EndOfBuffer:   eob,
		}
	}

	if interval < 0 {
		chunk := fetch(from)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chunk)
		return
	}

	stream, ok := newMultipartStream(w)
	if !ok {
		return
	}
	defer stream.Close()

	pollTicker := time.NewTicker(clampInterval(interval))
	defer pollTicker.Stop()
	heartbeat := time.NewTicker(clampInterval(heartbeatMs))
	defer heartbeat.Stop()

	cursor := from
	lastWrite := time.Now()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-pollTicker.C:
			chunk := fetch(cursor)
			cursor = &chunk.NextSequence
			if len(chunk.Observations) == 0 {
				continue
			}
			body, _ := json.Marshal(chunk)
			if err := stream.WriteChunk(body); err != nil {
				return
			}
			lastWrite = time.Now()
		case <-heartbeat.C:
			if time.Since(lastWrite) < clampInterval(heartbeatMs) {
				continue
			}
			if err := stream.WriteChunk([]byte(`{"heartbeat":true}`)); err != nil {
				return
			}
			lastWrite = time.Now()
		}
	}
}
