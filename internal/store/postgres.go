package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goalwatch/goalwatch/internal/model"
)

// PGStore persists matches in a Postgres table, one row per match with the
// full snapshot as jsonb.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// PGConfig controls the connection pool.
type PGConfig struct {
	DatabaseURL string
	MinConns    int
	MaxConns    int
	MaxConnLife time.Duration
}

// NewPGStore creates and validates a connection pool, then ensures the
// matches table exists.
func NewPGStore(ctx context.Context, cfg PGConfig, logger *slog.Logger) (*PGStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MaxConnLife > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLife
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PGStore{pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS matches (
			id         text PRIMARY KEY,
			status     text NOT NULL,
			start_time timestamptz NOT NULL,
			data       jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure matches table: %w", err)
	}
	return nil
}

// Load reads every persisted match.
func (s *PGStore) Load(ctx context.Context) (map[string]model.Match, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM matches`)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := make(map[string]model.Match)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		var m model.Match
		if err := json.Unmarshal(data, &m); err != nil {
			s.logger.Warn("Skipping undecodable match row", "error", err)
			continue
		}
		m.Status = model.ParseStatus(string(m.Status))
		matches[m.ID] = m
	}
	return matches, rows.Err()
}

// Save replaces the persisted collection with the given snapshot: every
// match is upserted and rows absent from the snapshot are deleted, all in
// one transaction.
func (s *PGStore) Save(ctx context.Context, matches map[string]model.Match) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(matches))
	for id, m := range matches {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode match %s: %w", id, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO matches (id, status, start_time, data, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status,
				start_time = EXCLUDED.start_time,
				data = EXCLUDED.data,
				updated_at = NOW()`,
			id, string(m.Status), m.StartTime, data)
		if err != nil {
			return fmt.Errorf("upsert match %s: %w", id, err)
		}
		ids = append(ids, id)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM matches WHERE NOT (id = ANY($1))`, ids); err != nil {
		return fmt.Errorf("delete pruned matches: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("Saved matches to postgres", "count", len(matches))
	return nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}
