// Package messages encrypts and decrypts individual message records with a
// conversation key.
//
// The conversation key is never used directly: an HKDF subkey bound to the
// conversation id keys AES-256-GCM, and the id is also the additional data,
// so a record copied into another conversation does not open.
package messages

import (
	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/cryptox"
	"github.com/dmitrijs2005/crim/internal/models"
)

const subkeyInfo = "crim message v1"

// Cipher is bound to one conversation.
type Cipher struct {
	key []byte
	aad []byte
}

// NewCipher derives the message key for conversationID from convKey.
func NewCipher(convKey []byte, conversationID string) (*Cipher, error) {
	if len(convKey) != cryptox.SymmetricKeySize {
		return nil, common.ErrKeyUnwrapFailed
	}
	key, err := cryptox.DeriveSubkey(convKey, []byte(conversationID), subkeyInfo, cryptox.SymmetricKeySize)
	if err != nil {
		return nil, common.Wrap(common.ErrKeyUnwrapFailed, err)
	}
	return &Cipher{key: key, aad: []byte(conversationID)}, nil
}

// Encrypt seals raw as nonce || AES-GCM(JSON{sender, content, timestamp}).
func (c *Cipher) Encrypt(raw models.RawMessage) (models.EncryptedMessage, error) {
	data, err := cryptox.SealJSON(raw, c.key, c.aad)
	if err != nil {
		return models.EncryptedMessage{}, common.Wrap(common.ErrEncryptFailure, err)
	}
	return models.EncryptedMessage{Data: data}, nil
}

// Decrypt returns the message or common.ErrDecryptFailure. It never returns
// partially decoded data.
func (c *Cipher) Decrypt(msg models.EncryptedMessage) (models.RawMessage, error) {
	var raw models.RawMessage
	if err := cryptox.OpenJSON(msg.Data, c.key, c.aad, &raw); err != nil {
		return models.RawMessage{}, common.ErrDecryptFailure
	}
	return raw, nil
}

// Close wipes the derived key.
func (c *Cipher) Close() {
	common.WipeByteArray(c.key)
}
