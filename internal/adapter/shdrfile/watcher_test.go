package shdrfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/mtc-agent/internal/pipeline"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	lines []string
}

func (s *recordingSink) record(e *pipeline.Entity) *pipeline.Entity {
	if e.Kind == pipeline.KindData {
		s.lines = append(s.lines, e.Line)
	}
	return nil
}

func buildRecordingPipeline() (*pipeline.Pipeline, *recordingSink) {
	sink := &recordingSink{}
	root := &pipeline.Node{Name: "root", Guard: pipeline.Always(), Apply: sink.record}
	return pipeline.New(root), sink
}

func TestWatcherProcessesAppendedLines(t *testing.T) {
	dir := t.TempDir()
	p, sink := buildRecordingPipeline()

	w := New(p, "test", dir, zerolog.Nop())
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(dir, "device1.shdr")
	require.NoError(t, os.WriteFile(path, []byte("2021-01-19T10:00:00Z|X|1\n"), 0o644))

	require.Eventually(t, func() bool {
		return len(sink.lines) == 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, "2021-01-19T10:00:00Z|X|1", sink.lines[0])

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("2021-01-19T10:00:01Z|X|2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return len(sink.lines) == 2
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, "2021-01-19T10:00:01Z|X|2", sink.lines[1])
}

func TestWatcherIgnoresNonShdrFiles(t *testing.T) {
	dir := t.TempDir()
	p, sink := buildRecordingPipeline()

	w := New(p, "test", dir, zerolog.Nop())
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("X|1\n"), 0o644))
	time.Sleep(600 * time.Millisecond)
	require.Empty(t, sink.lines)
}

func TestStatusTransitions(t *testing.T) {
	dir := t.TempDir()
	p, _ := buildRecordingPipeline()
	w := New(p, "test", dir, zerolog.Nop())
	require.Equal(t, "starting", w.Status())
	require.NoError(t, w.Start())
	require.Equal(t, "watching", w.Status())
	w.Stop()
	require.Equal(t, "stopped", w.Status())
}
