// Package postgres stores accounts and conversations in PostgreSQL through
// the pgx database/sql driver. Schema changes are embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// runMigrations is a seam for tests.
var runMigrations = func(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

type Manager struct {
	db            *sql.DB
	accounts      *AccountRepository
	conversations *ConversationRepository
}

// Open connects to dsn, checks the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Manager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, common.Wrap(common.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.Wrap(common.ErrStoreUnavailable, err)
	}
	m, err := NewManager(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// NewManager migrates db and returns a Manager that owns it.
func NewManager(ctx context.Context, db *sql.DB) (*Manager, error) {
	if err := runMigrations(ctx, db); err != nil {
		return nil, common.Wrap(common.ErrStoreUnavailable, fmt.Errorf("migrations: %w", err))
	}
	return &Manager{
		db:            db,
		accounts:      NewAccountRepository(db),
		conversations: NewConversationRepository(db),
	}, nil
}

func (m *Manager) Accounts() store.AccountStore           { return m.accounts }
func (m *Manager) Conversations() store.ConversationStore { return m.conversations }
func (m *Manager) Close() error                           { return m.db.Close() }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func dbError(err error) error {
	return common.Wrap(common.ErrStoreUnavailable, fmt.Errorf("db error: %w", err))
}
