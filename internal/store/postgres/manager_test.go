package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/crim/internal/common"
)

func stubMigrations(t *testing.T, fn func(context.Context, *sql.DB) error) {
	t.Helper()
	orig := runMigrations
	runMigrations = fn
	t.Cleanup(func() { runMigrations = orig })
}

func TestNewManager_RunsMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	called := false
	stubMigrations(t, func(ctx context.Context, got *sql.DB) error {
		called = true
		assert.Same(t, db, got)
		return nil
	})

	m, err := NewManager(context.Background(), db)
	require.NoError(t, err)
	assert.True(t, called)
	assert.NotNil(t, m.Accounts())
	assert.NotNil(t, m.Conversations())

	require.NoError(t, m.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewManager_MigrationError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stubMigrations(t, func(context.Context, *sql.DB) error { return errors.New("bad migration") })

	_, err = NewManager(context.Background(), db)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "bad migration")
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "00001_init.sql", entries[0].Name())
}
