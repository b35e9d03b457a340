// Package journal keeps an append-only record of scan outcomes in sqlite.
// The session log is capped at 50 entries for the operator UI; the journal
// is where a supervisor looks when a package is questioned days later.
// Writes are best-effort and never block the pipeline.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/opslatam/pistoleado/internal/log"
)

// Entry is one journaled outcome.
type Entry struct {
	ID         int64
	Timestamp  time.Time
	Kind       string
	Message    string
	ShipmentID string
	Container  string
	Provider   string
	Operator   string
}

// Journal is an append-only sqlite log.
type Journal struct {
	db     *sql.DB
	logger zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_journal (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          TEXT NOT NULL,
	kind        TEXT NOT NULL,
	message     TEXT NOT NULL,
	shipment_id TEXT NOT NULL DEFAULT '',
	container   TEXT NOT NULL DEFAULT '',
	provider    TEXT NOT NULL DEFAULT '',
	operator    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_scan_journal_shipment ON scan_journal(shipment_id);
`

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; the pipeline is single-threaded anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, logger: log.WithComponent("journal")}, nil
}

// Record appends one entry. Failures are logged and swallowed.
func (j *Journal) Record(ctx context.Context, e Entry) {
	if j == nil {
		return
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO scan_journal (ts, kind, message, shipment_id, container, provider, operator)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.Kind, e.Message,
		e.ShipmentID, e.Container, e.Provider, e.Operator)
	if err != nil {
		j.logger.Warn().Err(err).Str(log.FieldEventKind, e.Kind).Msg("journal write failed")
	}
}

// Recent returns the newest n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, ts, kind, message, shipment_id, container, provider, operator
		 FROM scan_journal ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Message, &e.ShipmentID, &e.Container, &e.Provider, &e.Operator); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = parsed
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
