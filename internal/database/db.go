package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq" // PostgreSQL драйвер

	"github.com/Alias1177/Calibrator/models"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// ConnectTimeout bounds the ping retries, 30 seconds when zero
	ConnectTimeout time.Duration
}

// DSN builds the lib/pq connection string
func (p ConnectionParams) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode,
	)
}

// New opens a connection, retrying the ping with exponential backoff
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	timeout := params.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = timeout

	if err := backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS position_effectiveness (
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			avg_profit_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			success_rate DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			optimal_risk_pct DOUBLE PRECISION,
			optimal_leverage DOUBLE PRECISION,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (symbol, side)
		)
	`)
	if err != nil {
		return fmt.Errorf("creating position_effectiveness: %w", err)
	}
	return nil
}

// UpsertEffectiveness stores the effectiveness of a symbol and side
func (db *DB) UpsertEffectiveness(ctx context.Context, symbol string, side models.Direction, e models.Effectiveness) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO position_effectiveness (
			symbol, side, avg_profit_pct, success_rate, optimal_risk_pct, optimal_leverage, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (symbol, side)
		DO UPDATE SET
			avg_profit_pct = EXCLUDED.avg_profit_pct,
			success_rate = EXCLUDED.success_rate,
			optimal_risk_pct = EXCLUDED.optimal_risk_pct,
			optimal_leverage = EXCLUDED.optimal_leverage,
			updated_at = EXCLUDED.updated_at
	`,
		symbol, string(side), e.AvgProfitPct, e.SuccessRate, nullFloat(e.OptimalRiskPct), nullFloat(e.OptimalLeverage))
	if err != nil {
		return fmt.Errorf("upserting effectiveness %s: %w", models.EffectivenessKey(symbol, side), err)
	}
	return nil
}

// PostgresSource loads effectiveness from the position_effectiveness table
type PostgresSource struct {
	db *DB
}

// NewPostgresSource creates a source over db
func NewPostgresSource(db *DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Load implements models.EffectivenessSource
func (s *PostgresSource) Load(ctx context.Context) (map[string]models.Effectiveness, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, side, avg_profit_pct, success_rate, optimal_risk_pct, optimal_leverage
		FROM position_effectiveness
	`)
	if err != nil {
		return nil, fmt.Errorf("querying effectiveness: %w", err)
	}
	defer rows.Close()

	table := make(map[string]models.Effectiveness)
	for rows.Next() {
		key, e, err := scanEffectiveness(rows)
		if err != nil {
			return nil, err
		}
		table[key] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading effectiveness rows: %w", err)
	}
	if len(table) == 0 {
		return nil, ErrNoEffectiveness
	}
	return table, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEffectiveness maps one row; NULL optimal values mean "use the base value"
func scanEffectiveness(row rowScanner) (string, models.Effectiveness, error) {
	var (
		symbol, side     string
		e                models.Effectiveness
		optimalRisk, lev sql.NullFloat64
	)
	if err := row.Scan(&symbol, &side, &e.AvgProfitPct, &e.SuccessRate, &optimalRisk, &lev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", e, ErrNoEffectiveness
		}
		return "", e, fmt.Errorf("scanning effectiveness: %w", err)
	}

	dir := models.Direction(side)
	if !dir.Valid() {
		return "", e, fmt.Errorf("unknown side %q for %s", side, symbol)
	}
	if optimalRisk.Valid {
		e.OptimalRiskPct = optimalRisk.Float64
	}
	if lev.Valid {
		e.OptimalLeverage = lev.Float64
	}
	return models.EffectivenessKey(symbol, dir), e, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v > 0}
}
