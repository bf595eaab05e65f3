package db

import (
	"context"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is nil when lookup history is disabled or the database is unreachable.
var Pool *pgxpool.Pool

var (
	newPool  = pgxpool.New
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

// InitPostgres opens a pool for databaseURL. An empty URL or a failed
// connection leaves Pool nil.
func InitPostgres(ctx context.Context, databaseURL string) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		log.Println("Postgres disabled, lookup history will not be recorded")
		Pool = nil
		return
	}

	pool, err := newPool(ctx, databaseURL)
	if err != nil {
		log.Printf("Warning: failed to create Postgres pool: %v", err)
		Pool = nil
		return
	}
	if err := pingPool(ctx, pool); err != nil {
		log.Printf("Warning: failed to connect to Postgres: %v", err)
		pool.Close()
		Pool = nil
		return
	}
	Pool = pool
	log.Println("Connected to Postgres")
}

func Close() {
	if Pool == nil {
		return
	}
	Pool.Close()
	Pool = nil
}
