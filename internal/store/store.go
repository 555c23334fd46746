// Package store opens the vault's record store, applies migrations and runs
// work inside transactions with repositories bound to the transaction.
//
// SQLite (modernc.org/sqlite) is the default backend; a postgres:// DSN
// selects PostgreSQL through the pgx stdlib driver.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/heirvault/internal/dbx"
	"github.com/dmitrijs2005/heirvault/internal/migrations"
	"github.com/dmitrijs2005/heirvault/internal/repositories/auditlog"
	"github.com/dmitrijs2005/heirvault/internal/repositories/compartments"
	"github.com/dmitrijs2005/heirvault/internal/repositories/metadata"
	"github.com/dmitrijs2005/heirvault/internal/repositories/repomanager"
	"github.com/dmitrijs2005/heirvault/internal/repositories/secrets"
	"github.com/dmitrijs2005/heirvault/internal/repositories/users"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Repos groups the repositories bound to one handle.
type Repos struct {
	Users        users.Repository
	Compartments compartments.Repository
	Secrets      secrets.Repository
	AuditLog     auditlog.Repository
	Metadata     metadata.Repository
}

// Store owns the database handle.
type Store struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

// sqlOpen and migrate are seams for tests.
var (
	sqlOpen = sql.Open
	migrate = migrations.Up
)

// Open connects to dsn and brings the schema up to date.
func Open(ctx context.Context, dsn string) (*Store, error) {
	d := dbx.DialectFromDSN(dsn)
	db, err := sqlOpen(d.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d == dbx.SQLite {
		// one connection keeps in-memory databases shared and serialises writers
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, d), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, d dbx.Dialect) *Store {
	return &Store{db: db, rm: repomanager.NewSQLRepositoryManager(d)}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() dbx.Dialect { return s.rm.Dialect() }

// Repos returns repositories bound to the database handle. Do not use them
// inside a WithTx callback: with a single SQLite connection that deadlocks.
func (s *Store) Repos() Repos {
	return s.bind(s.db)
}

// WithTx runs fn with repositories bound to a new transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.bind(tx))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) bind(h dbx.DBTX) Repos {
	return Repos{
		Users:        s.rm.Users(h),
		Compartments: s.rm.Compartments(h),
		Secrets:      s.rm.Secrets(h),
		AuditLog:     s.rm.AuditLog(h),
		Metadata:     s.rm.Metadata(h),
	}
}
