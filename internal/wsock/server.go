// Package wsock implements the WebSocket sink (spec.md §4.6, SPEC_FULL.md
// §18.2): JSON-framed requests dispatched through the same chi router the
// REST sink builds (rest.Server.Router), so both sinks resolve to
// identical routes, parameter coercion, and mutation gating. Grounded on
// the teacher's declared github.com/gorilla/websocket dependency (go.mod)
// and on internal/api/events.go's one-goroutine-per-connection,
// context-cancellation-on-disconnect shape, generalized from SSE framing
// to JSON request/response framing.
package wsock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/snarg/mtc-agent/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin is already enforced by rest.CORSWithOrigins on the shared
	// router; the upgrade itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// Handler upgrades an HTTP request to a WebSocket connection and serves
// framed requests against router, which must be the *chi.Mux returned by
// the REST sink's Server.Router so every request goes through the same
// middleware and handlers REST clients see.
func Handler(router http.Handler, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		s := &session{
			conn:       conn,
			router:     router,
			log:        log,
			remoteAddr: r.RemoteAddr,
			ctx:        ctx,
			cancel:     cancel,
			outCh:      make(chan outFrame, 1),
		}
		metrics.WebSocketConnections.Inc()
		defer metrics.WebSocketConnections.Dec()
		s.serve()
	}
}

// session is one WebSocket connection. Each received frame is dispatched
// concurrently so a long-lived streaming request (current/sample with
// interval >= 0) doesn't block other requests multiplexed over the same
// connection. Outbound frames pass through a single-slot queue drained by
// one writer goroutine: if a client falls behind (the queue is still full
// when the next frame is ready), the session is terminated rather than
// buffered without bound (spec.md §9 Open Question: "recovery when a
// WebSocket streaming client falls behind the buffer is not clearly
// defined in the source; this specification terminates the session").
type session struct {
	conn       *websocket.Conn
	router     http.Handler
	log        zerolog.Logger
	remoteAddr string
	ctx        context.Context
	cancel     context.CancelFunc
	outCh      chan outFrame
	closeOnce  sync.Once
}

func (s *session) serve() {
	go s.writeLoop()
	defer s.terminate()
	defer s.conn.Close()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		go s.handle(raw)
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.outCh:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed, terminating session")
				s.terminate()
				return
			}
		}
	}
}

func (s *session) terminate() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}

func (s *session) handle(raw []byte) {
	id, command, params, err := parseFrame(raw)
	if err != nil {
		s.sendError(id, "MALFORMED_REQUEST", err.Error())
		return
	}

	req, err := buildRequest(s.remoteAddr, command, params)
	if err != nil {
		s.sendError(id, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}

	fw := newFrameWriter(func(status int, body []byte) {
		s.emit(id, status, body)
	})
	s.router.ServeHTTP(fw, req.WithContext(s.ctx))
	if len(fw.buf) > 0 {
		s.emit(id, fw.status, fw.buf)
	}
}

// emit frames one chunk of a dispatched handler's output: success bodies
// pass through verbatim; error bodies (the REST sink's ErrorBody JSON) are
// reduced to the "<Kind>: <message>" string spec.md §4.6 calls for.
func (s *session) emit(id string, status int, body []byte) {
	if status < http.StatusBadRequest {
		s.send(outFrame{ID: id, Body: string(body)})
		return
	}

	var errBody struct {
		Error   string   `json:"error"`
		Details []string `json:"details,omitempty"`
	}
	msg := string(body)
	if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
		msg = errBody.Error
		if len(errBody.Details) > 0 {
			msg += ": " + strings.Join(errBody.Details, "; ")
		}
	}
	s.send(outFrame{ID: id, Error: fmt.Sprintf("%s: %s", kindForStatus(status), msg)})
}

func (s *session) sendError(id, kind, msg string) {
	s.send(outFrame{ID: id, Error: fmt.Sprintf("%s: %s", kind, msg)})
}

// send enqueues f for the writer goroutine. A full queue means the client
// hasn't drained its previous frame yet; rather than block the caller (a
// request-handling goroutine) or grow the queue unboundedly, the session
// is terminated.
func (s *session) send(f outFrame) {
	select {
	case s.outCh <- f:
	case <-s.ctx.Done():
	default:
		s.log.Warn().Str("id", f.ID).Msg("websocket client falling behind, terminating session")
		s.terminate()
	}
}

// kindForStatus maps an HTTP status the REST handlers returned onto an
// error kind label for the WebSocket envelope, mirroring
// agenterrors.RestError.Kind for the status codes the REST sink produces.
func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_PARAMETER_VALUE"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL_ERROR"
	}
}
