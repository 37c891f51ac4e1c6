package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"zip-weather/internal/journal"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// querier is the subset of pgxpool.Pool the journal uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresJournal appends lookup entries to Postgres.
type PostgresJournal struct {
	db    querier
	close func()
}

var _ journal.Store = (*PostgresJournal)(nil)

// NewPostgresJournal connects to dsn and applies pending migrations.
func NewPostgresJournal(ctx context.Context, dsn string) (*PostgresJournal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresJournal{db: pool, close: pool.Close}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *PostgresJournal) Record(ctx context.Context, e journal.Entry) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO "+e.TableName()+" (zip_code, outcome, from_cache, provider_status, at) VALUES ($1, $2, $3, $4, $5)",
		e.ZipCode, e.Outcome, e.FromCache, e.ProviderStatus, e.At,
	)
	if err != nil {
		return fmt.Errorf("insert lookup: %w", err)
	}
	return nil
}

// Summary counts entries per outcome recorded at or after since.
func (r *PostgresJournal) Summary(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		"SELECT outcome, count(*) FROM "+journal.Entry{}.TableName()+" WHERE at >= $1 GROUP BY outcome",
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize lookups: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = int(n)
	}
	return counts, rows.Err()
}

func (r *PostgresJournal) Close() error {
	if r.close != nil {
		r.close()
	}
	return nil
}
