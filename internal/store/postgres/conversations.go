package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/models"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	query :=
		`INSERT INTO conversations (id, users, keys, messages)
		 VALUES ($1, $2, $3, $4)
		 `

	users, err := json.Marshal(conv.Users)
	if err != nil {
		return dbError(err)
	}
	keys, err := json.Marshal(conv.Keys)
	if err != nil {
		return dbError(err)
	}
	msgs := conv.Messages
	if msgs == nil {
		msgs = []models.EncryptedMessage{}
	}
	messages, err := json.Marshal(msgs)
	if err != nil {
		return dbError(err)
	}

	_, err = r.db.ExecContext(ctx, query, conv.ID, string(users), string(keys), string(messages))
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrStoreConflict
		}
		return dbError(err)
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	query :=
		`SELECT id, users, keys, messages FROM conversations
		 WHERE id = $1
		 `

	conv := &models.Conversation{}
	var users, keys, messages []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&conv.ID, &users, &keys, &messages)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, dbError(err)
	}

	for _, f := range []struct {
		raw []byte
		dst any
	}{{users, &conv.Users}, {keys, &conv.Keys}, {messages, &conv.Messages}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, dbError(err)
		}
	}
	return conv, nil
}

// AppendMessage appends in a single UPDATE, so concurrent senders never
// overwrite each other.
func (r *ConversationRepository) AppendMessage(ctx context.Context, id string, msg models.EncryptedMessage) error {
	query :=
		`UPDATE conversations SET messages = messages || jsonb_build_array($2::jsonb)
		 WHERE id = $1
		 `

	item, err := json.Marshal(msg)
	if err != nil {
		return dbError(err)
	}

	res, err := r.db.ExecContext(ctx, query, id, string(item))
	if err != nil {
		return dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) ListByParticipant(ctx context.Context, username string) ([]models.ConversationSummary, error) {
	query :=
		`SELECT id, users FROM conversations
		 WHERE users @> jsonb_build_array($1::text)
		 ORDER BY created_at, id
		 `

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var out []models.ConversationSummary
	for rows.Next() {
		var s models.ConversationSummary
		var users []byte
		if err := rows.Scan(&s.ID, &users); err != nil {
			return nil, dbError(err)
		}
		if err := json.Unmarshal(users, &s.Users); err != nil {
			return nil, dbError(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return out, nil
}
