package hooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorRunsTasksUntilShutdownTriggered(t *testing.T) {
	c := NewCoordinator(context.Background(), zerolog.Nop())

	var started int32
	task := func(ctx context.Context) error {
		atomic.AddInt32(&started, 1)
		<-ctx.Done()
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(task, task) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&started) == 2 }, time.Second, time.Millisecond)

	c.TriggerShutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after TriggerShutdown")
	}
}

func TestCoordinatorPropagatesTaskError(t *testing.T) {
	c := NewCoordinator(context.Background(), zerolog.Nop())
	boom := errors.New("source failed")

	err := c.Run(func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestCoordinatorRunsLifecycleHooksAroundTasks(t *testing.T) {
	c := NewCoordinator(context.Background(), zerolog.Nop())
	var order []string
	c.Hooks.Add(BeforeStart, "before-start", func() error { order = append(order, "before-start"); return nil })
	c.Hooks.Add(AfterStart, "after-start", func() error { order = append(order, "after-start"); return nil })
	c.Hooks.Add(BeforeStop, "before-stop", func() error { order = append(order, "before-stop"); return nil })
	c.Hooks.Add(AfterStop, "after-stop", func() error { order = append(order, "after-stop"); return nil })

	err := c.Run(func(ctx context.Context) error { order = append(order, "task"); return nil })

	require.NoError(t, err)
	require.Equal(t, []string{"before-start", "after-start", "task", "before-stop", "after-stop"}, order)
}

func TestCoordinatorAbortsBeforeStartOnHookError(t *testing.T) {
	c := NewCoordinator(context.Background(), zerolog.Nop())
	c.Hooks.Add(BeforeStart, "bad", func() error { return errors.New("setup failed") })

	ran := false
	err := c.Run(func(ctx context.Context) error { ran = true; return nil })

	require.Error(t, err)
	require.False(t, ran)
}
