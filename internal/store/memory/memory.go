// Package memory is an in-process store backend used by default and in
// tests. Records are deep-copied on the way in and out.
package memory

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/models"
	"github.com/dmitrijs2005/crim/internal/store"
)

type Manager struct {
	accounts      *AccountStore
	conversations *ConversationStore
}

func NewManager() *Manager {
	return &Manager{
		accounts:      NewAccountStore(),
		conversations: NewConversationStore(),
	}
}

func (m *Manager) Accounts() store.AccountStore           { return m.accounts }
func (m *Manager) Conversations() store.ConversationStore { return m.conversations }
func (m *Manager) Close() error                           { return nil }

type AccountStore struct {
	mu   sync.RWMutex
	data map[string]*models.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{data: make(map[string]*models.Account)}
}

func (s *AccountStore) Create(_ context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[acc.Username]; ok {
		return common.ErrDuplicateUsername
	}
	s.data[acc.Username] = acc.Clone()
	return nil
}

func (s *AccountStore) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.data[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	return acc.Clone(), nil
}

func (s *AccountStore) AddFriend(_ context.Context, username, friend string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.data[username]
	if !ok {
		return common.ErrNotFound
	}
	if acc.HasFriend(friend) {
		return common.ErrAlreadyFriends
	}
	acc.Friends = append(acc.Friends, friend)
	return nil
}

func (s *AccountStore) RemoveFriend(_ context.Context, username, friend string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.data[username]
	if !ok {
		return common.ErrNotFound
	}
	for i, f := range acc.Friends {
		if f == friend {
			acc.Friends = append(acc.Friends[:i:i], acc.Friends[i+1:]...)
			return nil
		}
	}
	return common.ErrNotAFriend
}

type ConversationStore struct {
	mu    sync.RWMutex
	data  map[string]*models.Conversation
	order []string
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{data: make(map[string]*models.Conversation)}
}

func (s *ConversationStore) Create(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[conv.ID]; ok {
		return common.ErrStoreConflict
	}
	s.data[conv.ID] = conv.Clone()
	s.order = append(s.order, conv.ID)
	return nil
}

func (s *ConversationStore) Get(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.data[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return conv.Clone(), nil
}

func (s *ConversationStore) AppendMessage(_ context.Context, id string, msg models.EncryptedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.data[id]
	if !ok {
		return common.ErrNotFound
	}
	conv.Messages = append(conv.Messages, models.EncryptedMessage{Data: append([]byte(nil), msg.Data...)})
	return nil
}

// ListByParticipant returns conversations in creation order.
func (s *ConversationStore) ListByParticipant(_ context.Context, username string) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ConversationSummary
	for _, id := range s.order {
		conv := s.data[id]
		if conv.HasUser(username) {
			out = append(out, models.ConversationSummary{ID: conv.ID, Users: append([]string{}, conv.Users...)})
		}
	}
	return out, nil
}
