// Package storageutils selects and constructs the configured record sink.
package storageutils

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/pkg/storage"
	"github.com/papercomputeco/taperelay/pkg/storage/inmemory"
	"github.com/papercomputeco/taperelay/pkg/storage/jsonl"
	"github.com/papercomputeco/taperelay/pkg/storage/openwebui"
	"github.com/papercomputeco/taperelay/pkg/storage/postgres"
	"github.com/papercomputeco/taperelay/pkg/storage/sqlite"
)

// Sink kinds accepted by NewSink.
const (
	KindFile      = "file"
	KindSQLite    = "sqlite"
	KindPostgres  = "postgres"
	KindMemory    = "memory"
	KindOpenWebUI = "openwebui"
)

// ErrUnknownKind is returned for an unrecognized sink kind.
var ErrUnknownKind = errors.New("unknown sink kind")

type NewSinkOpts struct {
	// Kind selects the sink. Ignored when ImportMode is set.
	Kind string

	// ImportMode selects the Open WebUI import sink regardless of Kind.
	ImportMode bool

	LogDir      string
	SQLitePath  string
	PostgresDSN string

	ImportURL    string
	ImportAPIKey string

	Logger *zap.Logger
}

// ResolveKind returns the sink kind NewSink will build for o.
func (o *NewSinkOpts) ResolveKind() string {
	if o.ImportMode {
		return KindOpenWebUI
	}
	if o.Kind == "" {
		return KindFile
	}
	return o.Kind
}

// NewSink builds the sink selected by o.
func NewSink(ctx context.Context, o *NewSinkOpts) (storage.Sink, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch kind := o.ResolveKind(); kind {
	case KindFile:
		return jsonl.NewDriver(o.LogDir)
	case KindSQLite:
		if o.SQLitePath == "" {
			return nil, errors.New("sqlite sink requires a database path")
		}
		return sqlite.NewDriver(ctx, o.SQLitePath)
	case KindPostgres:
		if o.PostgresDSN == "" {
			return nil, errors.New("postgres sink requires a connection string")
		}
		return postgres.NewDriver(ctx, o.PostgresDSN)
	case KindMemory:
		return inmemory.NewDriver(), nil
	case KindOpenWebUI:
		return openwebui.NewDriver(openwebui.Config{
			URL:    o.ImportURL,
			APIKey: o.ImportAPIKey,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
