// Package jsonl provides a record sink that appends one JSON line per record
// to a date-partitioned log: a directory per month and a file per day.
//
//	<root>/2024-07/2024-07-01.jsonl
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/papercomputeco/taperelay/pkg/record"
	"github.com/papercomputeco/taperelay/pkg/storage"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
	extension   = ".jsonl"
)

// Driver implements storage.Sink by appending to daily JSONL files.
type Driver struct {
	root string

	// mu guards locks. Each file gets its own lock so that concurrent
	// appends to the same day never interleave while appends to different
	// days never contend.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDriver creates a sink rooted at root, creating the directory if needed.
func NewDriver(root string) (*Driver, error) {
	if root == "" {
		return nil, fmt.Errorf("jsonl root directory is required")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", root, err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	return &Driver{
		root:  abs,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Name implements storage.Sink.
func (d *Driver) Name() string {
	return "file"
}

// Root returns the absolute log directory.
func (d *Driver) Root() string {
	return d.root
}

// PathFor returns the file a record captured at rec.Timestamp is appended to.
func (d *Driver) PathFor(rec *record.Record) string {
	ts := rec.Timestamp.UTC()
	return filepath.Join(d.root, ts.Format(monthLayout), ts.Format(dayLayout)+extension)
}

// Persist appends rec as a single JSON line.
func (d *Driver) Persist(_ context.Context, rec *record.Record) error {
	if rec == nil {
		return storage.ErrNilRecord
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.ID, err)
	}
	line = append(line, '\n')

	path := d.PathFor(rec)

	lock := d.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating month directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", path, err)
	}

	return f.Close()
}

func (d *Driver) lockFor(path string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.locks[path]
	if !ok {
		l = &sync.Mutex{}
		d.locks[path] = l
	}
	return l
}

// Close is a no-op; files are opened per append.
func (d *Driver) Close() error {
	return nil
}
