// Package store declares the document-store contracts the core depends on.
//
// Implementations report a missing record as common.ErrNotFound, enforce
// username uniqueness themselves (common.ErrDuplicateUsername) and wrap
// transport or driver failures in common.ErrStoreUnavailable. Returned
// records are copies; mutating them never changes stored state.
package store

import (
	"context"

	"github.com/dmitrijs2005/crim/internal/models"
)

type AccountStore interface {
	// Create inserts a new account. An existing username is rejected
	// atomically by the store.
	Create(ctx context.Context, acc *models.Account) error
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	// AddFriend appends friend to username's list, or returns
	// common.ErrAlreadyFriends.
	AddFriend(ctx context.Context, username, friend string) error
	// RemoveFriend returns common.ErrNotAFriend if friend is not listed.
	RemoveFriend(ctx context.Context, username, friend string) error
}

type ConversationStore interface {
	// Create inserts conv; a duplicate id is common.ErrStoreConflict.
	Create(ctx context.Context, conv *models.Conversation) error
	Get(ctx context.Context, id string) (*models.Conversation, error)
	// AppendMessage atomically appends msg to the conversation's messages.
	// Concurrent appends must never lose each other.
	AppendMessage(ctx context.Context, id string, msg models.EncryptedMessage) error
	ListByParticipant(ctx context.Context, username string) ([]models.ConversationSummary, error)
}

// Manager vends the stores of one backend and owns its connections.
type Manager interface {
	Accounts() AccountStore
	Conversations() ConversationStore
	Close() error
}
