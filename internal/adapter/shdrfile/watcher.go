// Package shdrfile implements a supplemental file/directory-watch SHDR
// ingest mode (SPEC_FULL.md §17.4): a fsnotify-driven alternative to the
// network adapter for deployments that drop SHDR line files into a
// directory instead of running a TCP server. Grounded on the teacher's
// internal/ingest/watcher.go FileWatcher (debounce timers, directory-walk
// watch registration), adapted from JSON call metadata to raw SHDR line
// files. Files already present when Start runs are not read until they are
// next created or written to.
package shdrfile

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/snarg/mtc-agent/internal/pipeline"
)

const debounceInterval = 500 * time.Millisecond

// Watcher monitors a directory for SHDR line files (spec.md §6 wire
// format), feeding each complete file's lines into a pipeline as Data
// entities, one file offset (read position) tracked per path so a file
// appended to after being read is not replayed from the top.
type Watcher struct {
	pipeline *pipeline.Pipeline
	source   string
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	stop    chan struct{}

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	offsetMu sync.Mutex
	offsets  map[string]int64

	filesProcessed atomic.Int64
	status         atomic.Value // string: "starting", "watching", "stopped"

	// Archive, if set, records every raw line for audit purposes before it
	// enters the pipeline (SPEC_FULL §17.2).
	Archive func(route, source string, payload []byte)
}

func New(p *pipeline.Pipeline, source, watchDir string, log zerolog.Logger) *Watcher {
	w := &Watcher{
		pipeline:       p,
		source:         source,
		watchDir:       watchDir,
		log:            log.With().Str("component", "shdrfile").Logger(),
		stop:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
		offsets:        make(map[string]int64),
	}
	w.status.Store("starting")
	return w
}

// Start registers fsnotify watches on watchDir and every subdirectory, then
// begins watching for new/appended .shdr files.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	dirCount := 0
	err = filepath.WalkDir(w.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("error walking directory")
			return nil
		}
		if d.IsDir() {
			if addErr := fw.Add(path); addErr != nil {
				w.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			} else {
				dirCount++
			}
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return err
	}

	w.log.Info().Int("directories", dirCount).Str("watch_dir", w.watchDir).Msg("shdr file watcher initialized")
	w.status.Store("watching")
	go w.watchLoop()
	return nil
}

func (w *Watcher) Stop() {
	w.status.Store("stopped")
	close(w.stop)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.log.Info().Int64("files_processed", w.filesProcessed.Load()).Msg("shdr file watcher stopped")
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if addErr := w.watcher.Add(event.Name); addErr != nil {
					w.log.Warn().Err(addErr).Str("path", event.Name).Msg("failed to watch new directory")
				}
				continue
			}
			if !strings.HasSuffix(strings.ToLower(event.Name), ".shdr") {
				continue
			}
			w.scheduleProcess(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces by 500ms to coalesce rapid Create+Write events
// and let the writer finish a batch of lines (grounded on the teacher's
// FileWatcher.scheduleProcess).
func (w *Watcher) scheduleProcess(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(debounceInterval)
		return
	}
	w.debounceTimers[path] = time.AfterFunc(debounceInterval, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
		w.processFile(path)
	})
}

// processFile reads every new line appended to path since the last read and
// drives each through the pipeline as a Data entity.
func (w *Watcher) processFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("failed to open shdr file")
		return
	}
	defer f.Close()

	w.offsetMu.Lock()
	offset := w.offsets[path]
	w.offsetMu.Unlock()

	if _, err := f.Seek(offset, 0); err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("failed to seek shdr file")
		return
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var read int64
	count := 0
	for scanner.Scan() {
		line := scanner.Text()
		read += int64(len(line)) + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		if w.Archive != nil {
			w.Archive("shdrfile", w.source, []byte(line))
		}
		w.pipeline.Run(pipeline.NewData(w.source, line, time.Now()))
		count++
	}
	if err := scanner.Err(); err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("error scanning shdr file")
	}

	w.offsetMu.Lock()
	w.offsets[path] = offset + read
	w.offsetMu.Unlock()

	w.filesProcessed.Add(1)
	w.log.Debug().Str("path", path).Int("lines", count).Msg("shdr file processed")
}

func (w *Watcher) Status() string {
	s, _ := w.status.Load().(string)
	return s
}
