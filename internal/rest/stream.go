package rest

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/snarg/mtc-agent/internal/metrics"
)

// multipartStream wraps the response in a multipart/x-mixed-replace writer
// (spec.md §4.6, SPEC_FULL.md §18.1), grounded on the teacher's SSE handler
// (internal/api/events.go) adapted from text/event-stream framing to MIME
// multipart boundary framing: one in-flight write at a time, Flush after
// every part, disconnect detected via r.Context().Done().
type multipartStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mw      *multipart.Writer
}

// newMultipartStream sets the streaming content-type header and returns a
// stream ready to accept chunks, or ok=false if the ResponseWriter can't
// flush (spec.md §7 "user-visible failures on REST").
func newMultipartStream(w http.ResponseWriter) (*multipartStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mw.Boundary()))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	metrics.StreamingSubscribers.Inc()
	return &multipartStream{w: w, flusher: flusher, mw: mw}, true
}

// WriteChunk writes one JSON part and flushes immediately (spec.md §5
// backpressure: a write error here terminates the stream per §9 Open
// Question, rather than silently buffering).
func (s *multipartStream) WriteChunk(body []byte) error {
	part, err := s.mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":   {"application/json"},
		"Content-Length": {fmt.Sprint(len(body))},
	})
	if err != nil {
		return err
	}
	if _, err := part.Write(body); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *multipartStream) Close() {
	s.mw.Close()
	s.flusher.Flush()
	metrics.StreamingSubscribers.Dec()
}
