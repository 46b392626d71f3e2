package hooks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerRunsHooksInOrder(t *testing.T) {
	m := NewManager()
	var order []string
	m.Add(BeforeStart, "first", func() error { order = append(order, "first"); return nil })
	m.Add(BeforeStart, "second", func() error { order = append(order, "second"); return nil })
	m.AddFirst(BeforeStart, "zeroth", func() error { order = append(order, "zeroth"); return nil })

	require.NoError(t, m.Run(BeforeStart))
	require.Equal(t, []string{"zeroth", "first", "second"}, order)
}

func TestManagerRunsEveryHookEvenAfterAnErrorAndReturnsTheFirst(t *testing.T) {
	m := NewManager()
	var ran []string
	m.Add(BeforeStop, "a", func() error { ran = append(ran, "a"); return errors.New("boom-a") })
	m.Add(BeforeStop, "b", func() error { ran = append(ran, "b"); return errors.New("boom-b") })
	m.Add(BeforeStop, "c", func() error { ran = append(ran, "c"); return nil })

	err := m.Run(BeforeStop)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom-a")
	require.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestManagerRemoveDropsNamedHook(t *testing.T) {
	m := NewManager()
	m.Add(AfterStart, "keep", func() error { return nil })
	m.Add(AfterStart, "drop", func() error { return errors.New("should not run") })

	require.True(t, m.Remove(AfterStart, "drop"))
	require.False(t, m.Remove(AfterStart, "drop"))
	require.NoError(t, m.Run(AfterStart))
}

func TestManagerRunIsNoOpForUnregisteredPhase(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Run(AfterStop))
}
