// Package sqlitecache is a vault.Backing over a local SQLite file. Rows are
// overwritten with zeros before they are deleted and the database runs with
// secure_delete, so erased keys do not linger in free pages.
package sqlitecache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/crim/internal/dbx"
	"github.com/dmitrijs2005/crim/internal/filex"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Cache stores PKCS#8 DER private keys keyed by username.
type Cache struct {
	db *sql.DB
}

// Open creates (if needed) and migrates the cache database at path.
func Open(ctx context.Context, path string) (*Cache, error) {
	abs, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, err
	}

	dsn := "file:" + abs + "?_pragma=secure_delete(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open key cache: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("key cache migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("key cache migrations: %w", err)
	}
	return nil
}

// Save upserts der for username.
func (c *Cache) Save(ctx context.Context, username string, der []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO key_cache (username, private_key) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET private_key = excluded.private_key, installed_at = CURRENT_TIMESTAMP
	`, username, der)
	if err != nil {
		return fmt.Errorf("failed to save key for %s: %w", username, err)
	}
	return nil
}

// Erase zeroes and removes the entry for username. Missing entries are fine.
func (c *Cache) Erase(ctx context.Context, username string) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE key_cache SET private_key = zeroblob(length(private_key)) WHERE username = ?`, username); err != nil {
			return fmt.Errorf("failed to zero key for %s: %w", username, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM key_cache WHERE username = ?`, username); err != nil {
			return fmt.Errorf("failed to erase key for %s: %w", username, err)
		}
		return nil
	})
}

// Purge zeroes and removes every entry and reports how many there were.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	var n int64
	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE key_cache SET private_key = zeroblob(length(private_key))`); err != nil {
			return fmt.Errorf("failed to zero cached keys: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM key_cache`)
		if err != nil {
			return fmt.Errorf("failed to purge cached keys: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
