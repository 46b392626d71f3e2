package wsock

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/snarg/mtc-agent/internal/agent"
	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
	"github.com/snarg/mtc-agent/internal/rest"
)

func newTestServer(t *testing.T) (*httptest.Server, *agent.Agent) {
	t.Helper()
	a := agent.New(agent.Options{
		BufferSizeExp:   6,
		CheckpointFreq:  4,
		AssetBufferSize: 16,
		Log:             zerolog.Nop(),
	})
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "temp1", Category: model.CategorySample})
	if err := a.AddDevice(d); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	a.DeliverObservation(observation.New("temp1", observation.KindSample, time.Now(), model.DoubleValue(42.5)))

	restSrv := rest.NewServer(a, rest.Options{Log: zerolog.Nop()})
	httpSrv := httptest.NewServer(Handler(restSrv.Router(), zerolog.Nop()))
	t.Cleanup(httpSrv.Close)
	return httpSrv, a
}

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestProbeRequestRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialTest(t, srv)

	if err := conn.WriteJSON(map[string]string{"id": "r1", "request": "probe"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp outFrame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.ID != "r1" {
		t.Errorf("ID = %q, want r1", resp.ID)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if !strings.Contains(resp.Body, "dev1") {
		t.Errorf("Body = %q, want it to mention dev1", resp.Body)
	}
}

func TestCurrentRequestReturnsLatestValue(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialTest(t, srv)

	if err := conn.WriteJSON(map[string]any{"id": "r2", "request": "current"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp outFrame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if !strings.Contains(resp.Body, "42.5") {
		t.Errorf("Body = %q, want it to contain 42.5", resp.Body)
	}
}

func TestUnknownDeviceRequestReturnsErrorEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialTest(t, srv)

	if err := conn.WriteJSON(map[string]string{"id": "r3", "request": "probeDevice", "device": "missing"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp outFrame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.ID != "r3" {
		t.Errorf("ID = %q, want r3", resp.ID)
	}
	if !strings.HasPrefix(resp.Error, "NOT_FOUND:") {
		t.Errorf("Error = %q, want it to start with NOT_FOUND:", resp.Error)
	}
}

func TestMissingRequestFieldReturnsError(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialTest(t, srv)

	if err := conn.WriteJSON(map[string]string{"id": "r4"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp outFrame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(resp.Error, "MALFORMED_REQUEST:") {
		t.Errorf("Error = %q, want it to start with MALFORMED_REQUEST:", resp.Error)
	}
}
