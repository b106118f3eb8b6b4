// Package sqldriver implements the record sink over database/sql. It is shared
// by the SQLite and PostgreSQL drivers, which only differ in how they open the
// connection and in their bind-parameter syntax.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/taperelay/pkg/record"
	"github.com/papercomputeco/taperelay/pkg/storage"
)

const schema = `CREATE TABLE IF NOT EXISTS records (
	id          TEXT PRIMARY KEY,
	captured_at TEXT NOT NULL,
	model       TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL DEFAULT '',
	request     TEXT NOT NULL,
	response    TEXT NOT NULL,
	meta        TEXT NOT NULL
)`

// Dialect captures what differs between SQL backends.
type Dialect struct {
	// Name is reported as the sink name (e.g. "sqlite").
	Name string

	// Placeholder returns the bind parameter for the n-th argument (1-based).
	Placeholder func(n int) string
}

// QuestionMark binds with "?", as SQLite does.
func QuestionMark(int) string { return "?" }

// DollarN binds with "$1", "$2", ..., as PostgreSQL does.
func DollarN(n int) string { return fmt.Sprintf("$%d", n) }

// Driver implements storage.Sink and storage.Reader over a *sql.DB.
type Driver struct {
	DB      *sql.DB
	Dialect Dialect
}

// New wraps db and creates the records table if it does not exist.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating records table: %w", err)
	}

	return &Driver{DB: db, Dialect: dialect}, nil
}

// Name implements storage.Sink.
func (d *Driver) Name() string {
	return d.Dialect.Name
}

func (d *Driver) placeholders(n int) string {
	ps := make([]string, n)
	for i := range n {
		ps[i] = d.Dialect.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

// Persist inserts a record.
func (d *Driver) Persist(ctx context.Context, rec *record.Record) error {
	if rec == nil {
		return storage.ErrNilRecord
	}

	meta, err := json.Marshal(rec.Meta)
	if err != nil {
		return fmt.Errorf("encoding record meta: %w", err)
	}

	query := "INSERT INTO records (id, captured_at, model, mode, request, response, meta) VALUES (" + d.placeholders(7) + ")"
	_, err = d.DB.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Meta.Model,
		string(rec.Meta.Mode),
		string(rec.Request),
		rec.Response,
		string(meta),
	)
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", rec.ID, err)
	}

	return nil
}

// Get retrieves a record by its ID.
func (d *Driver) Get(ctx context.Context, id string) (*record.Record, error) {
	query := "SELECT id, captured_at, request, response, meta FROM records WHERE id = " + d.Dialect.Placeholder(1)
	row := d.DB.QueryRowContext(ctx, query, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// List returns up to limit records, newest first. IDs are ULIDs, so ordering
// by ID orders by capture time.
func (d *Driver) List(ctx context.Context, limit int) ([]*record.Record, error) {
	query := "SELECT id, captured_at, request, response, meta FROM records ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT " + d.Dialect.Placeholder(1)
		args = append(args, limit)
	}

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	return out, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*record.Record, error) {
	var (
		rec        record.Record
		capturedAt string
		request    string
		meta       string
	)

	if err := s.Scan(&rec.ID, &capturedAt, &request, &rec.Response, &meta); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, capturedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing captured_at for %s: %w", rec.ID, err)
	}
	rec.Timestamp = ts

	rec.Request = json.RawMessage(request)

	if err := json.Unmarshal([]byte(meta), &rec.Meta); err != nil {
		return nil, fmt.Errorf("decoding meta for %s: %w", rec.ID, err)
	}

	return &rec, nil
}
