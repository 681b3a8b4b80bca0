package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stackseed/auth-service/internal/storage"
)

// applicationName виден в pg_stat_activity.
const applicationName = "auth-service"

// Storage — хранилище пользователей и сессий поверх pgxpool.
type Storage struct {
	db *pgxpool.Pool
}

// PoolOptions — параметры пула; нулевые значения оставляют настройки pgx
// (или параметры pool_* из URL).
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// New создаёт пул соединений к PostgreSQL и проверяет его пингом.
func New(ctx context.Context, dbURL string, opts PoolOptions) (*Storage, error) {
	const op = "storage.postgres.New"

	config, err := poolConfig(dbURL, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func poolConfig(dbURL string, opts PoolOptions) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = min(opts.MinConns, config.MaxConns)
	}
	if opts.MaxConnLifetime > 0 {
		config.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok {
		config.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	return config, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.db.Close()
}

var _ storage.Storage = (*Storage)(nil)
