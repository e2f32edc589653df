// Package dbconn opens and verifies the PostgreSQL connection used by the
// device registry, alert history and telemetry retention layers.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Open establishes a PostgreSQL connection pool and verifies connectivity
// with a bounded ping, per spec §5 (connection acquisition timeout).
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// ConfigurePool sizes the pool per spec §5:
// worker_count x in-flight-db-ops-per-worker x safety_factor.
func ConfigurePool(db *sql.DB, workerCount int) {
	if workerCount <= 0 {
		workerCount = 50
	}
	maxOpen := workerCount * 2
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(30 * time.Minute)
}
