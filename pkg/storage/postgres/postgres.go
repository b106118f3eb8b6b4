// Package postgres provides a PostgreSQL-backed record sink.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/papercomputeco/taperelay/pkg/storage/sqldriver"
)

const (
	applicationName = "taperelay"

	maxOpenConns    = 8
	maxIdleConns    = 2
	connMaxIdleTime = 5 * time.Minute
)

// Driver implements storage.Sink and storage.Reader using PostgreSQL.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver connects to connStr and creates the records table if needed.
// connStr is either a keyword/value string such as
// "host=localhost user=taperelay dbname=taperelay sslmode=disable" or a URI
// such as "postgres://taperelay@localhost:5432/taperelay?sslmode=disable".
func NewDriver(ctx context.Context, connStr string) (*Driver, error) {
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		// pgx keeps secrets out of parse errors.
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if _, ok := cfg.RuntimeParams["application_name"]; !ok {
		cfg.RuntimeParams["application_name"] = applicationName
	}

	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}

	drv, err := sqldriver.New(ctx, db, sqldriver.Dialect{
		Name:        "postgres",
		Placeholder: sqldriver.DollarN,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Driver: drv}, nil
}
