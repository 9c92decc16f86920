// Package repository は印刷ジョブを SQL データベース（SQLite / PostgreSQL）に保存します。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config はデータベース接続設定です。
type Config struct {
	Driver          string
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// Open は接続を確立し、テーブルを作成した Store を返します。
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	var (
		db   *sql.DB
		pool *pgxpool.Pool
		name string
		err  error
	)
	switch cfg.Driver {
	case DriverPostgres:
		pool, err = openPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		db = stdlib.OpenDBFromPool(pool)
		name = dialect.Postgres
	case DriverSQLite, "":
		db, err = openSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		name = dialect.SQLite
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	store := newStore(db, pool, name, logger)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	logger.Info("successfully connected to database", zap.String("driver", name))
	return store, nil
}

func openPool(ctx context.Context, cfg Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	logger.Info("connecting to database", zap.String("driver", DriverPostgres))
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "smart-printer"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openSQLite(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = "smart-printer.db"
	}
	dsn = withPragmas(dsn)

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 書き込みを直列化する
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// withPragmas は外部キー制約とビジータイムアウトを DSN に付与します。
func withPragmas(dsn string) string {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, "?") {
		if !strings.Contains(dsn, "foreign_keys") {
			sep := "&"
			if !strings.Contains(dsn, "?") {
				sep = "?"
			}
			dsn += sep + "_pragma=foreign_keys(1)"
		}
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}
	if !strings.Contains(dsn, "busy_timeout") {
		dsn += "&_pragma=busy_timeout(5000)"
	}
	return dsn
}

// Close はデータベース接続を閉じます。
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.logger.Info("closing database connections")
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close database", zap.Error(err))
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// HealthCheck はデータベースへ ping します。
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.db.PingContext(ctx)
}

// Migrate は print_jobs / print_files テーブルを作成します（既存なら何もしません）。
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func schema(name string) []string {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	timestamp := "TIMESTAMP"
	if name == dialect.Postgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
		timestamp = "TIMESTAMPTZ"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS print_jobs (
	job_id TEXT PRIMARY KEY,
	color_mode TEXT NOT NULL CHECK (color_mode IN ('black-white', 'color')),
	sides TEXT NOT NULL CHECK (sides IN ('single', 'duplex')),
	orientation TEXT NOT NULL CHECK (orientation IN ('portrait', 'landscape')),
	page_range_type TEXT NOT NULL CHECK (page_range_type IN ('all', 'custom')),
	custom_range TEXT NOT NULL DEFAULT '',
	copies INTEGER NOT NULL CHECK (copies BETWEEN 1 AND 99),
	printer TEXT NOT NULL,
	total_pages INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	created_at ` + timestamp + ` NOT NULL,
	updated_at ` + timestamp + ` NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS print_files (
	` + idColumn + `,
	job_id TEXT NOT NULL REFERENCES print_jobs(job_id) ON DELETE CASCADE,
	original_filename TEXT NOT NULL,
	stored_filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size BIGINT NOT NULL,
	file_type TEXT NOT NULL,
	page_count INTEGER NOT NULL DEFAULT 0,
	page_count_method TEXT NOT NULL DEFAULT 'estimated',
	created_at ` + timestamp + ` NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_print_files_job_id ON print_files(job_id)`,
	}
}

func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized time format: " + s)
}
