package repository

import (
	"context"
	"time"

	"rsi-lens/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createLookupsTable = `
CREATE TABLE IF NOT EXISTS rsi_lookups (
    id           BIGSERIAL   PRIMARY KEY,
    symbol       TEXT        NOT NULL,
    mode         TEXT        NOT NULL CHECK (mode IN ('live', 'historical')),
    range_start  DATE,
    range_end    DATE,
    points       INTEGER     NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rsi_lookups_created_at
    ON rsi_lookups (created_at DESC);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LookupRepository stores metadata about served RSI lookups. RSI values
// themselves are never persisted.
type LookupRepository struct {
	pool   PgxPool
	tracer trace.Tracer
	now    func() time.Time
}

func NewLookupRepository(pool PgxPool, tracer trace.Tracer) *LookupRepository {
	return &LookupRepository{pool: pool, tracer: tracer, now: time.Now}
}

func (r *LookupRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "lookup-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createLookupsTable)
	return err
}

func (r *LookupRepository) RecordLookup(ctx context.Context, lookup domain.Lookup) error {
	ctx, span := r.tracer.Start(ctx, "lookup-repo.record-lookup")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", lookup.Symbol), attribute.String("mode", string(lookup.Mode)))

	createdAt := lookup.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO rsi_lookups (symbol, mode, range_start, range_end, points, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		lookup.Symbol, string(lookup.Mode), toDate(lookup.RangeStart), toDate(lookup.RangeEnd), lookup.Points, createdAt.UTC(),
	)
	return err
}

func (r *LookupRepository) RecentLookups(ctx context.Context, limit int) ([]domain.Lookup, error) {
	ctx, span := r.tracer.Start(ctx, "lookup-repo.recent-lookups")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, symbol, mode, range_start, range_end, points, created_at
		 FROM rsi_lookups
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lookups := make([]domain.Lookup, 0, limit)
	for rows.Next() {
		l, err := scanLookupRow(rows)
		if err != nil {
			return nil, err
		}
		lookups = append(lookups, l)
	}
	return lookups, rows.Err()
}

func scanLookupRow(s interface{ Scan(dest ...any) error }) (domain.Lookup, error) {
	var out domain.Lookup
	var mode string
	var start, end pgtype.Date
	var createdAt time.Time

	if err := s.Scan(&out.ID, &out.Symbol, &mode, &start, &end, &out.Points, &createdAt); err != nil {
		return domain.Lookup{}, err
	}
	out.Mode = domain.LookupMode(mode)
	out.RangeStart = fromDate(start)
	out.RangeEnd = fromDate(end)
	out.CreatedAt = createdAt.UTC()
	return out, nil
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: domain.TruncateDay(*t), Valid: true}
}

func fromDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := domain.TruncateDay(d.Time)
	return &t
}
