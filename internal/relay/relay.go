// Package relay sends and reads conversation messages by composing the key
// envelope with the message cipher against the conversation store.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/crim/internal/auth"
	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/logging"
	"github.com/dmitrijs2005/crim/internal/messages"
	"github.com/dmitrijs2005/crim/internal/models"
	"github.com/dmitrijs2005/crim/internal/store"
)

// KeyUnwrapper recovers a conversation key for a session.
type KeyUnwrapper interface {
	UnwrapKey(s *auth.Session, conv *models.Conversation) ([]byte, error)
}

type Relay struct {
	conversations store.ConversationStore
	keys          KeyUnwrapper
	log           logging.Logger
	now           func() time.Time
}

func New(conversations store.ConversationStore, keys KeyUnwrapper, log logging.Logger) *Relay {
	return &Relay{
		conversations: conversations,
		keys:          keys,
		log:           log.With("module", "relay"),
		now:           time.Now,
	}
}

// cipherFor loads the conversation and opens a message cipher for the
// session's user.
func (r *Relay) cipherFor(ctx context.Context, s *auth.Session, id string) (*models.Conversation, *messages.Cipher, error) {
	conv, err := r.conversations.Get(ctx, id)
	if err != nil {
		return nil, nil, storeErr(err)
	}

	key, err := r.keys.UnwrapKey(s, conv)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(key)

	c, err := messages.NewCipher(key, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, c, nil
}

// SendMessage encrypts content from the session's user and appends it to
// the conversation. The store appends atomically; a retried call after a
// timeout may store the message twice.
func (r *Relay) SendMessage(ctx context.Context, s *auth.Session, conversationID string, content []byte) error {
	_, c, err := r.cipherFor(ctx, s, conversationID)
	if err != nil {
		return err
	}
	defer c.Close()

	enc, err := c.Encrypt(models.RawMessage{
		Sender:    s.Username,
		Content:   content,
		Timestamp: r.now().UTC().Round(0),
	})
	if err != nil {
		return err
	}

	if err := r.conversations.AppendMessage(ctx, conversationID, enc); err != nil {
		return storeErr(err)
	}

	r.log.Debug(ctx, "message sent", "conversation", conversationID, "user", s.Username)
	return nil
}

// ReceiveMessages decrypts every stored message in order. One bad record
// fails the whole call with common.ErrDecryptFailure.
func (r *Relay) ReceiveMessages(ctx context.Context, s *auth.Session, conversationID string) ([]models.RawMessage, error) {
	conv, c, err := r.cipherFor(ctx, s, conversationID)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out := make([]models.RawMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		raw, err := c.Decrypt(m)
		if err != nil {
			r.log.Warn(ctx, "undecryptable message", "conversation", conversationID)
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func storeErr(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrUnknownConversation
	}
	var ce *common.Error
	if errors.As(err, &ce) {
		return err
	}
	return common.Wrap(common.ErrStoreUnavailable, err)
}
