package sqlitecache

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// load reads back the stored key for username, or nil if there is none.
func (c *Cache) load(ctx context.Context, username string) ([]byte, error) {
	var der []byte
	err := c.db.QueryRowContext(ctx, `SELECT private_key FROM key_cache WHERE username = ?`, username).Scan(&der)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return der, err
}

func openCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "keys.db")
	c, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestOpen_CreatesDirectoryAndFile(t *testing.T) {
	_, path := openCache(t)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, fi.IsDir())
}

func TestOpen_ReopenKeepsSchema(t *testing.T) {
	ctx := context.Background()
	c, path := openCache(t)
	require.NoError(t, c.Save(ctx, "alice", []byte{1, 2, 3}))
	require.NoError(t, c.Close())

	again, err := Open(ctx, path)
	require.NoError(t, err)
	defer again.Close()

	got, err := again.load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestSaveLoad_Upsert(t *testing.T) {
	ctx := context.Background()
	c, _ := openCache(t)

	require.NoError(t, c.Save(ctx, "alice", []byte("old")))
	require.NoError(t, c.Save(ctx, "alice", []byte("new")))

	got, err := c.load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestLoad_Missing(t *testing.T) {
	c, _ := openCache(t)

	got, err := c.load(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestErase_RemovesOnlyThatUser(t *testing.T) {
	ctx := context.Background()
	c, _ := openCache(t)
	require.NoError(t, c.Save(ctx, "alice", []byte{0xA}))
	require.NoError(t, c.Save(ctx, "bob", []byte{0xB}))

	require.NoError(t, c.Erase(ctx, "alice"))
	require.NoError(t, c.Erase(ctx, "alice"))

	got, err := c.load(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.load(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB}, got)
}

func TestPurge_ReportsCount(t *testing.T) {
	ctx := context.Background()
	c, _ := openCache(t)
	require.NoError(t, c.Save(ctx, "alice", []byte{1}))
	require.NoError(t, c.Save(ctx, "bob", []byte{2}))

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpen_FailsWhenParentIsFile(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "state")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := Open(context.Background(), filepath.Join(blocker, "keys.db"))
	require.Error(t, err)
}
