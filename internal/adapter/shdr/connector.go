package shdr

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/mtc-agent/internal/pipeline"
)

// State mirrors spec.md §4.2's connection state machine.
type State int

const (
	StateClosed State = iota
	StateResolving
	StateConnecting
	StateConnected
	StateHeartbeating
)

// Handler receives entities produced by one adapter connection. Exactly one
// ConnectionStatus transition is delivered per connect attempt outcome
// (spec.md §4.2 invariant).
type Handler interface {
	HandleData(source, line string, ts time.Time)
	HandleCommand(source, name, value string)
	HandleStatus(source string, status pipeline.ConnectionState)
}

const defaultHeartbeatFallback = 10 * time.Second

// Options configures a Connector (spec.md §4.2).
type Options struct {
	Source            string // adapter identity used as SourceAdapter/routing key
	Address           string // host:port
	ReconnectInterval time.Duration
	HeartbeatFallback time.Duration // used until a PONG negotiates a real interval
	Log               zerolog.Logger
}

// Connector is a stateful SHDR TCP client (spec.md §4.2), reimplemented
// with a blocking read loop on its own goroutine instead of the original's
// asio callback chain — the strand model is expressed here as "one
// goroutine owns this connection's state," matching spec.md §5.
type Connector struct {
	opts    Options
	handler Handler

	mu              sync.Mutex
	state           State
	closing         bool
	heartbeatPeriod time.Duration

	dialer net.Dialer
}

func New(opts Options, handler Handler) *Connector {
	if opts.ReconnectInterval < 500*time.Millisecond {
		opts.ReconnectInterval = 500 * time.Millisecond
	}
	if opts.HeartbeatFallback <= 0 {
		opts.HeartbeatFallback = defaultHeartbeatFallback
	}
	return &Connector{opts: opts, handler: handler, heartbeatPeriod: opts.HeartbeatFallback}
}

// Run drives connect/reconnect until ctx is cancelled (spec.md §4.2's
// Resolving → Connecting → Connected → (Heartbeating?) → Closed cycle).
func (c *Connector) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.setState(StateClosed)
			return
		default:
		}

		conn, err := c.dialOnce(ctx)
		if err != nil {
			c.opts.Log.Error().Err(err).Str("addr", c.opts.Address).Msg("shdr: connect failed")
			c.handler.HandleStatus(c.opts.Source, pipeline.StatusDisconnected)
			if !c.sleepOrDone(ctx, c.opts.ReconnectInterval) {
				return
			}
			continue
		}

		c.handler.HandleStatus(c.opts.Source, pipeline.StatusConnected)
		c.runConnection(ctx, conn)
		// runConnection returns only on read/write failure or ctx
		// cancellation; either way this attempt's outcome has already been
		// reported, and the loop reconnects from the top.
		if ctx.Err() != nil {
			return
		}
		if !c.sleepOrDone(ctx, c.opts.ReconnectInterval) {
			return
		}
	}
}

func (c *Connector) sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Connector) dialOnce(ctx context.Context) (net.Conn, error) {
	c.setState(StateResolving)
	c.setState(StateConnecting)

	conn, err := c.dialer.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetLinger(0)
		tc.SetKeepAlive(true)
	}
	c.setState(StateConnected)
	return conn, nil
}

func (c *Connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// runConnection owns the connection for its lifetime: it sends the initial
// PING, reads lines until error/timeout, and dispatches each to the
// handler. A single mutex-guarded close coalesces read-error, write-error,
// and receive-timeout paths into one reconnect (spec.md §4.2 "guarded by a
// mutex to coalesce concurrent close reasons").
func (c *Connector) runConnection(ctx context.Context, conn net.Conn) {
	var closeOnce sync.Once
	closeConn := func(reason string) {
		closeOnce.Do(func() {
			c.opts.Log.Warn().Str("reason", reason).Str("addr", c.opts.Address).Msg("shdr: closing connection")
			conn.Close()
		})
	}

	writeCommand(conn, "PING")

	agg := &multilineAggregator{}
	reader := bufio.NewReaderSize(conn, 1024*1024)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closeConn("context cancelled")
		case <-done:
		}
	}()
	defer close(done)

	receiveLimit := 2 * c.heartbeatPeriod
	for {
		conn.SetReadDeadline(time.Now().Add(receiveLimit))
		raw, err := reader.ReadString('\n')
		if err != nil {
			if len(raw) == 0 {
				closeConn(err.Error())
				c.handler.HandleStatus(c.opts.Source, pipeline.StatusDisconnected)
				return
			}
			// Fall through: process whatever was read before the error,
			// then report disconnection on the next loop iteration.
		}

		cl := classifyLine(raw)
		switch cl.Kind {
		case LineBlank:
			// ignored, spec.md §4.2 "empty lines are ignored"
		case LinePing:
			// devices do not expect PING from the agent's perspective; a
			// device echoing PING back is treated as a no-op keepalive.
		case LinePong:
			if cl.PongInterval > 0 {
				c.mu.Lock()
				c.heartbeatPeriod = cl.PongInterval
				c.mu.Unlock()
				receiveLimit = 2 * cl.PongInterval
				c.setState(StateHeartbeating)
				go c.heartbeatLoop(ctx, conn, cl.PongInterval, done)
			}
		case LineCommand:
			c.handler.HandleCommand(c.opts.Source, cl.CommandName, cl.CommandValue)
		case LineMultilineBegin:
			agg.begin(cl.MultilineTag)
		case LineMultilineEnd:
			if agg.active() {
				if body, ok := agg.feed(cl, raw); ok {
					c.handler.HandleData(c.opts.Source, body, time.Now())
				}
			}
		case LineData:
			if agg.active() {
				agg.feed(cl, raw)
				continue
			}
			c.handler.HandleData(c.opts.Source, raw, time.Now())
		}

		if err != nil {
			closeConn(err.Error())
			c.handler.HandleStatus(c.opts.Source, pipeline.StatusDisconnected)
			return
		}
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, conn net.Conn, period time.Duration, done <-chan struct{}) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-t.C:
			writeCommand(conn, "PING")
		}
	}
}

func writeCommand(conn net.Conn, command string) error {
	_, err := fmt.Fprintf(conn, "* %s\n", command)
	return err
}
