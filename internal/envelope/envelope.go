// Package envelope creates conversations and recovers their keys.
//
// Every conversation gets one random 256-bit key. It is wrapped separately
// for each participant with RSA-OAEP under that participant's public key,
// using the conversation id as the OAEP label. A participant recovers the
// key with nothing but their own private key.
package envelope

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/crim/internal/auth"
	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/cryptox"
	"github.com/dmitrijs2005/crim/internal/logging"
	"github.com/dmitrijs2005/crim/internal/models"
	"github.com/dmitrijs2005/crim/internal/store"
)

// Authorizer resolves a verified Session to the caller's private key.
type Authorizer interface {
	Authorize(s *auth.Session) (*rsa.PrivateKey, error)
}

type Envelope struct {
	accounts      store.AccountStore
	conversations store.ConversationStore
	authz         Authorizer
	log           logging.Logger

	newID func() string
}

func New(accounts store.AccountStore, conversations store.ConversationStore, authz Authorizer, log logging.Logger) *Envelope {
	return &Envelope{
		accounts:      accounts,
		conversations: conversations,
		authz:         authz,
		log:           log.With("module", "envelope"),
		newID:         uuid.NewString,
	}
}

// CreateConversation persists a new conversation between participants with
// one wrapped key per participant and no messages. Duplicate names are
// collapsed; the first occurrence fixes the order.
func (e *Envelope) CreateConversation(ctx context.Context, participants []string) (*models.Conversation, error) {
	users := dedupe(participants)
	if len(users) == 0 {
		return nil, common.ErrNoParticipants
	}

	pubs := make([]*rsa.PublicKey, len(users))
	for i, u := range users {
		pub, err := e.publicKey(ctx, u)
		if err != nil {
			return nil, err
		}
		pubs[i] = pub
	}

	key, err := cryptox.NewSymmetricKey()
	if err != nil {
		return nil, common.Wrap(common.ErrKeyGenFailure, err)
	}
	defer common.WipeByteArray(key)

	conv := &models.Conversation{
		ID:       e.newID(),
		Users:    users,
		Keys:     make([]models.WrappedKey, len(users)),
		Messages: []models.EncryptedMessage{},
	}
	for i, u := range users {
		wrapped, err := cryptox.WrapKey(pubs[i], key, []byte(conv.ID))
		if err != nil {
			return nil, common.Wrap(common.ErrEncryptFailure, fmt.Errorf("wrap for %s: %w", u, err))
		}
		conv.Keys[i] = models.WrappedKey{Owner: u, Key: wrapped}
	}

	if err := e.conversations.Create(ctx, conv); err != nil {
		return nil, storeErr(err)
	}

	e.log.Info(ctx, "conversation created", "id", conv.ID, "participants", len(users))
	return conv, nil
}

func (e *Envelope) publicKey(ctx context.Context, username string) (*rsa.PublicKey, error) {
	acc, err := e.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Wrap(common.ErrUnknownParticipant, fmt.Errorf("%q", username))
		}
		return nil, storeErr(err)
	}
	pub, err := cryptox.ParsePublicKey(acc.PublicKey)
	if err != nil {
		return nil, common.Wrap(common.ErrUnknownParticipant, fmt.Errorf("%q has no usable public key: %w", username, err))
	}
	return pub, nil
}

// UnwrapKey recovers the conversation key for the session's user. A caller
// with no wrapped entry gets common.ErrNotAParticipant before any session
// or key lookup happens. The caller must wipe the returned key.
func (e *Envelope) UnwrapKey(s *auth.Session, conv *models.Conversation) ([]byte, error) {
	if s == nil {
		return nil, common.ErrInvalidSession
	}
	wk, ok := conv.KeyFor(s.Username)
	if !ok {
		return nil, common.ErrNotAParticipant
	}

	priv, err := e.authz.Authorize(s)
	if err != nil {
		return nil, err
	}

	key, err := cryptox.UnwrapKey(priv, wk.Key, []byte(conv.ID))
	if err != nil {
		return nil, common.Wrap(common.ErrKeyUnwrapFailed, err)
	}
	return key, nil
}

// ListConversations returns the conversations the caller takes part in.
func (e *Envelope) ListConversations(ctx context.Context, s *auth.Session) ([]models.ConversationSummary, error) {
	if _, err := e.authz.Authorize(s); err != nil {
		return nil, err
	}
	list, err := e.conversations.ListByParticipant(ctx, s.Username)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func storeErr(err error) error {
	var ce *common.Error
	if errors.As(err, &ce) {
		return err
	}
	return common.Wrap(common.ErrStoreUnavailable, err)
}
