package archive

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// RawMessageRow is one archived raw adapter message, grounded on the
// teacher's database.RawMessageRow.
type RawMessageRow struct {
	Route      string // e.g. "shdr", "mqtt"
	Source     string // adapter/source identity
	Payload    []byte
	ReceivedAt time.Time
}

// InsertRawMessages batch-inserts via CopyFrom, matching the teacher's
// database.InsertRawMessages.
func (db *DB) InsertRawMessages(ctx context.Context, rows []RawMessageRow) (int64, error) {
	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		copyRows[i] = []any{r.Route, r.Source, r.Payload, r.ReceivedAt}
	}
	return db.Pool.CopyFrom(ctx,
		pgx.Identifier{"raw_messages"},
		[]string{"route", "source", "payload", "received_at"},
		pgx.CopyFromRows(copyRows),
	)
}

// Archiver gates and batches raw-message archival (SPEC_FULL §17.2),
// directly modeled on the teacher's archiveRaw/rawBatcher
// (internal/ingest/pipeline.go), generalized from MQTT topics to MTConnect
// adapter routes.
type Archiver struct {
	db      *DB
	enabled bool
	include map[string]bool
	exclude map[string]bool
	batcher *Batcher[RawMessageRow]
	ctx     context.Context
}

// Config mirrors ARCHIVE_STORE/ARCHIVE_INCLUDE_ROUTES/ARCHIVE_EXCLUDE_ROUTES.
type Config struct {
	Enabled       bool
	IncludeRoutes string // comma-separated; empty means "all except excluded"
	ExcludeRoutes string
}

func NewArchiver(ctx context.Context, db *DB, cfg Config) *Archiver {
	a := &Archiver{
		db:      db,
		enabled: cfg.Enabled && db != nil,
		include: parseRouteSet(cfg.IncludeRoutes),
		exclude: parseRouteSet(cfg.ExcludeRoutes),
		ctx:     ctx,
	}
	if a.enabled {
		a.batcher = NewBatcher[RawMessageRow](100, 2*time.Second, a.flush)
	}
	return a
}

func parseRouteSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			set[part] = true
		}
	}
	return set
}

// Record archives a raw message if enabled and not excluded by route.
func (a *Archiver) Record(route, source string, payload []byte) {
	if !a.enabled {
		return
	}
	if len(a.include) > 0 {
		if !a.include[route] {
			return
		}
	} else if a.exclude[route] {
		return
	}
	a.batcher.Add(RawMessageRow{
		Route:      route,
		Source:     source,
		Payload:    payload,
		ReceivedAt: time.Now(),
	})
}

func (a *Archiver) flush(rows []RawMessageRow) {
	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()

	n, err := a.db.InsertRawMessages(ctx, rows)
	if err != nil {
		a.db.log.Error().Err(err).Int("count", len(rows)).Msg("failed to flush raw messages")
		return
	}
	a.db.log.Debug().Int64("inserted", n).Msg("flushed raw messages")
}

func (a *Archiver) Stop() {
	if a.enabled {
		a.batcher.Stop()
	}
}
