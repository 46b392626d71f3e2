package shdr

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/mtc-agent/internal/pipeline"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	lines    []string
	commands [][2]string
	statuses []pipeline.ConnectionState
}

func (h *recordingHandler) HandleData(_, line string, _ time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
}

func (h *recordingHandler) HandleCommand(_, name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, [2]string{name, value})
}

func (h *recordingHandler) HandleStatus(_ string, s pipeline.ConnectionState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, s)
}

func (h *recordingHandler) snapshot() (lines []string, statuses []pipeline.ConnectionState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...), append([]pipeline.ConnectionState(nil), h.statuses...)
}

// TestConnectorDeliversLinesAndHeartbeat spins up a bare TCP listener that
// plays a short SHDR session: it expects the initial "* PING", replies with
// a PONG negotiating a short heartbeat, then sends a data line.
func TestConnectorDeliversLinesAndHeartbeat(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.Equal(t, "* PING\n", line)

		conn.Write([]byte("* PONG 50\n"))
		conn.Write([]byte("2021-01-19T10:00:00Z|X|1\n"))

		time.Sleep(200 * time.Millisecond)
	}()

	handler := &recordingHandler{}
	c := New(Options{
		Source:            "test",
		Address:           ln.Addr().String(),
		ReconnectInterval: 500 * time.Millisecond,
		Log:               zerolog.Nop(),
	}, handler)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	<-serverDone
	lines, statuses := handler.snapshot()
	require.Contains(t, lines, "2021-01-19T10:00:00Z|X|1")
	require.Contains(t, statuses, pipeline.StatusConnected)
}

func TestNewClampsReconnectIntervalToMinimum(t *testing.T) {
	c := New(Options{ReconnectInterval: 10 * time.Millisecond}, &recordingHandler{})
	require.Equal(t, 500*time.Millisecond, c.opts.ReconnectInterval)
}
