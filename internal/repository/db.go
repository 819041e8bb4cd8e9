// Package repository is the persistence layer: documents, applicants and the
// audit log over database/sql with a driver chosen by configuration (pgx for
// Postgres, modernc sqlite for embedded deployments).
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	// database/sql drivers
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"visadocs/internal/common"
)

// Config for opening the persistence store.
type Config struct {
	Driver string // "pgx" or "sqlite"
	DSN    string
}

// queries carries every repository operation; it runs against either the pool
// or an open transaction, so a unit of work sees the same API as the store.
type queries struct {
	db     dbtx
	sb     sq.StatementBuilderType
	driver string
	logger *slog.Logger
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the long-lived handle over the database pool.
type Store struct {
	queries
	sqlDB *sql.DB
}

// UnitOfWork scopes repository operations to one transaction, acquired per
// file or per archive so a failure never bleeds into the next unit.
type UnitOfWork struct {
	queries
	tx *sql.Tx
}

// Open connects to the configured database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Driver != "pgx" && cfg.Driver != "sqlite" {
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported db driver %q", cfg.Driver), common.ErrInvalidInput)
	}

	logger.Info("connecting to database", "driver", cfg.Driver)
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY under the sequential pipeline.
		db.SetMaxOpenConns(1)
	}

	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if cfg.Driver == "pgx" {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	logger.Info("successfully connected to database")
	return &Store{
		queries: queries{db: db, sb: sb, driver: cfg.Driver, logger: logger},
		sqlDB:   db,
	}, nil
}

// Close closes the database pool.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Begin starts a unit of work.
func (s *Store) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.WrapError(err, "begin unit of work")
	}
	return &UnitOfWork{
		queries: queries{db: tx, sb: s.sb, driver: s.driver, logger: s.logger},
		tx:      tx,
	}, nil
}

// Commit finishes the unit of work.
func (u *UnitOfWork) Commit() error {
	return u.tx.Commit()
}

// Rollback abandons the unit of work. Safe to defer after Commit.
func (u *UnitOfWork) Rollback() {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		u.logger.Error("rollback failed", "error", err)
	}
}
