package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DB is the shared Postgres handle used by the stores.
type DB struct {
	*sqlx.DB
}

// Open connects to Postgres and verifies connectivity.
func Open(ctx context.Context, dsn string) (*DB, error) {
	sqlxDB, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	sqlxDB.SetMaxOpenConns(10)
	sqlxDB.SetMaxIdleConns(5)
	sqlxDB.SetConnMaxLifetime(30 * time.Minute)

	return &DB{DB: sqlxDB}, nil
}
