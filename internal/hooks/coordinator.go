package hooks

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Coordinator starts the agent's sources concurrently and coordinates
// orderly shutdown: it is the Go replacement for the original agent's
// AsyncContext worker-thread pool
// (_examples/original_source/src/mtconnect/configuration/async_context.hpp),
// using a cancelable context and golang.org/x/sync/errgroup in place of a
// boost::asio thread pool and work guard.
type Coordinator struct {
	Hooks *Manager

	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator derives a cancelable context from parent (typically one
// already wired to os/signal via signal.NotifyContext in cmd/mtc-agent) so
// that a Ctrl-C and an internal TriggerShutdown both stop every task the
// same way.
func NewCoordinator(parent context.Context, log zerolog.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{Hooks: NewManager(), log: log, ctx: ctx, cancel: cancel}
}

// Context returns the coordinator's context; sources should treat its
// cancellation as the signal to stop.
func (c *Coordinator) Context() context.Context { return c.ctx }

// TriggerShutdown cancels the coordinator's context, starting orderly
// shutdown of every task started by Run. Safe to call more than once and
// from any goroutine — this is what Agent.OnAllSourcesDown is wired to
// (spec.md §4.4 "Source failure: if no external source remains, the agent
// initiates orderly shutdown").
func (c *Coordinator) TriggerShutdown() {
	c.cancel()
}

// Run executes BeforeStart hooks, launches every task concurrently under
// the coordinator's context, executes AfterStart hooks once they're
// launched, then blocks until every task returns (because the context was
// canceled, or one of them failed) before running BeforeStop and AfterStop
// hooks. It returns the first non-nil task error, mirroring
// errgroup.Group.Wait.
//
// Each task is expected to run until its context is canceled and then
// return nil; adapters with a non-error-returning Run method are wrapped
// by the caller (e.g. `func(ctx context.Context) error { connector.Run(ctx); return nil }`).
func (c *Coordinator) Run(tasks ...func(context.Context) error) error {
	if err := c.Hooks.Run(BeforeStart); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(c.ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error { return task(ctx) })
	}

	if err := c.Hooks.Run(AfterStart); err != nil {
		c.log.Error().Err(err).Msg("after-start hook failed")
	}

	err := g.Wait()

	if stopErr := c.Hooks.Run(BeforeStop); stopErr != nil {
		c.log.Error().Err(stopErr).Msg("before-stop hook failed")
	}
	if stopErr := c.Hooks.Run(AfterStop); stopErr != nil {
		c.log.Error().Err(stopErr).Msg("after-stop hook failed")
	}

	return err
}
