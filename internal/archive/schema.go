package archive

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS raw_messages (
	id          BIGSERIAL PRIMARY KEY,
	route       TEXT        NOT NULL,
	source      TEXT        NOT NULL,
	payload     BYTEA       NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS raw_messages_received_at_idx ON raw_messages (received_at);
CREATE INDEX IF NOT EXISTS raw_messages_route_idx ON raw_messages (route);
`

// InitSchema bootstraps the raw_messages table on a fresh database. It
// checks whether the table already exists as a proxy for "already
// initialized," a no-migration-library approach grounded on the teacher's
// database.InitSchema (internal/database/schema.go).
func (db *DB) InitSchema(ctx context.Context) error {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'raw_messages')`,
	).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		db.log.Debug().Msg("archive schema already initialized, skipping")
		return nil
	}

	db.log.Info().Msg("fresh archive database detected — applying schema")
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return err
	}
	db.log.Info().Msg("archive schema applied successfully")
	return nil
}
