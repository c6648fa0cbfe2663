// Package deadletter keeps rejected inbound events in a local SQLite file so
// operators can inspect and replay them.
package deadletter

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/yanun0323/errors"
)

// Entry is one rejected event.
type Entry struct {
	ID        int64
	Trace     uint64
	Kind      string
	Key       string
	Reason    string
	Error     string
	Attempts  int
	Payload   []byte
	CreatedAt time.Time
}

// Journal is an append-only SQLite table of dead letters.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one writer, sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "set pragma %s", pragma)
		}
	}

	schema := []string{`
		CREATE TABLE IF NOT EXISTS dead_letters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace INTEGER NOT NULL,
			kind TEXT NOT NULL,
			aggregate_key TEXT NOT NULL,
			reason TEXT NOT NULL,
			error TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			payload BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_dead_letters_key ON dead_letters (aggregate_key);",
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "create dead_letters table")
		}
	}

	return &Journal{db: db}, nil
}

// Record appends entry.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO dead_letters (trace, kind, aggregate_key, reason, error, attempts, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		int64(entry.Trace), entry.Kind, entry.Key, entry.Reason, entry.Error, entry.Attempts, entry.Payload, entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return errors.Wrap(err, "insert dead letter").With("trace", entry.Trace)
	}
	return nil
}

// List returns up to limit entries for key, oldest first. An empty key lists
// every aggregate.
func (j *Journal) List(ctx context.Context, key string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT id, trace, kind, aggregate_key, reason, error, attempts, payload, created_at FROM dead_letters"
	args := []any{}
	if key != "" {
		query += " WHERE aggregate_key = ?"
		args = append(args, key)
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query dead letters")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			trace int64
			ts    int64
		)
		if err := rows.Scan(&e.ID, &trace, &e.Kind, &e.Key, &e.Reason, &e.Error, &e.Attempts, &e.Payload, &ts); err != nil {
			return nil, errors.Wrap(err, "scan dead letter")
		}
		e.Trace = uint64(trace)
		e.CreatedAt = time.Unix(0, ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
