package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/levenlabs/go-lflag"
	_ "github.com/lib/pq"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/types"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS forecasts (
	day        DATE PRIMARY KEY,
	json       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresProvider implements Database with a single forecasts table.
type PostgresProvider struct {
	db  *sqlx.DB
	dsn string
}

func configuredPostgres() *PostgresProvider {
	dsn := lflag.String("postgres-dsn", "", "PostgreSQL connection string for the postgres storage provider")

	p := &PostgresProvider{}
	lflag.Do(func() {
		p.dsn = *dsn
	})
	return p
}

// NewPostgresProvider wraps an open connection. The schema is not created.
func NewPostgresProvider(db *sqlx.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// Validate checks if the provider is properly configured.
func (p *PostgresProvider) Validate() error {
	if p.dsn == "" {
		return fmt.Errorf("postgres-dsn is required")
	}
	return nil
}

// Init connects to the database and creates the forecasts table.
func (p *PostgresProvider) Init(ctx context.Context) error {
	db, err := sqlx.Open("postgres", p.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	p.db = db
	return p.Migrate(ctx)
}

// Migrate creates the forecasts table if it does not exist.
func (p *PostgresProvider) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create forecasts table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *PostgresProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// SaveForecast upserts the output for its run date.
func (p *PostgresProvider) SaveForecast(ctx context.Context, day time.Time, output types.DailyForecastOutput) error {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}
	_, err = p.db.ExecContext(
		ctx,
		`INSERT INTO forecasts (day, json, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (day) DO UPDATE SET json = EXCLUDED.json, updated_at = EXCLUDED.updated_at`,
		dayKey(day),
		string(jsonBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// GetForecast implements Database.
func (p *PostgresProvider) GetForecast(ctx context.Context, day time.Time) (types.DailyForecastOutput, error) {
	return p.get(ctx, `SELECT json FROM forecasts WHERE day = $1`, dayKey(day))
}

// GetLatestForecast implements Database.
func (p *PostgresProvider) GetLatestForecast(ctx context.Context) (types.DailyForecastOutput, error) {
	return p.get(ctx, `SELECT json FROM forecasts ORDER BY day DESC LIMIT 1`)
}

func (p *PostgresProvider) get(ctx context.Context, query string, args ...interface{}) (types.DailyForecastOutput, error) {
	var raw []byte
	if err := p.db.GetContext(ctx, &raw, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.DailyForecastOutput{}, ErrForecastNotFound
		}
		return types.DailyForecastOutput{}, fmt.Errorf("failed to query forecast: %w", err)
	}
	var out types.DailyForecastOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal forecast json", slog.Any("err", err))
		return types.DailyForecastOutput{}, fmt.Errorf("failed to unmarshal forecast: %w", err)
	}
	return out, nil
}
