package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/dbx"
	"github.com/dmitrijs2005/crim/internal/models"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, acc *models.Account) error {
	query :=
		`INSERT INTO accounts (username, hash, salt, public_key, priv_key_enc, friends)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	friends, err := marshalFriends(acc.Friends)
	if err != nil {
		return dbError(err)
	}

	_, err = r.db.ExecContext(ctx, query,
		acc.Username, acc.Hash, acc.Salt, acc.PublicKey, acc.PrivKeyEnc, friends)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrDuplicateUsername
		}
		return dbError(err)
	}
	return nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query :=
		`SELECT username, hash, salt, public_key, priv_key_enc, friends FROM accounts
		 WHERE username = $1
		 `

	acc := &models.Account{}
	var friends []byte
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&acc.Username, &acc.Hash, &acc.Salt, &acc.PublicKey, &acc.PrivKeyEnc, &friends)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, dbError(err)
	}
	if err := json.Unmarshal(friends, &acc.Friends); err != nil {
		return nil, dbError(err)
	}
	return acc, nil
}

// AddFriend locks the account row so concurrent edits of the same list
// serialize.
func (r *AccountRepository) AddFriend(ctx context.Context, username, friend string) error {
	return r.editFriends(ctx, username, func(list []string) ([]string, error) {
		for _, f := range list {
			if f == friend {
				return nil, common.ErrAlreadyFriends
			}
		}
		return append(list, friend), nil
	})
}

func (r *AccountRepository) RemoveFriend(ctx context.Context, username, friend string) error {
	return r.editFriends(ctx, username, func(list []string) ([]string, error) {
		for i, f := range list {
			if f == friend {
				return append(list[:i:i], list[i+1:]...), nil
			}
		}
		return nil, common.ErrNotAFriend
	})
}

func (r *AccountRepository) editFriends(ctx context.Context, username string, edit func([]string) ([]string, error)) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT friends FROM accounts WHERE username = $1 FOR UPDATE`, username).Scan(&raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			return dbError(err)
		}

		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return dbError(err)
		}
		list, err = edit(list)
		if err != nil {
			return err
		}

		updated, err := marshalFriends(list)
		if err != nil {
			return dbError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET friends = $2 WHERE username = $1`, username, updated); err != nil {
			return dbError(err)
		}
		return nil
	})
}

func marshalFriends(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return string(b), err
}
