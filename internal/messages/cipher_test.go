package messages

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/cryptox"
	"github.com/dmitrijs2005/crim/internal/models"
)

func newTestCipher(t *testing.T, convID string) (*Cipher, []byte) {
	t.Helper()
	key, err := cryptox.NewSymmetricKey()
	require.NoError(t, err)
	c, err := NewCipher(key, convID)
	require.NoError(t, err)
	return c, key
}

func sample() models.RawMessage {
	return models.RawMessage{
		Sender:    "alice",
		Content:   []byte("hello"),
		Timestamp: time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC),
	}
}

func TestEncryptDecrypt(t *testing.T) {
	c, _ := newTestCipher(t, "c1")

	enc, err := c.Encrypt(sample())
	require.NoError(t, err)
	assert.False(t, bytes.Contains(enc.Data, []byte("hello")))
	assert.False(t, bytes.Contains(enc.Data, []byte("alice")))

	got, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, []byte("hello"), got.Content)
	assert.True(t, sample().Timestamp.Equal(got.Timestamp))
}

func TestEncrypt_FreshNoncePerRecord(t *testing.T) {
	c, _ := newTestCipher(t, "c1")

	a, err := c.Encrypt(sample())
	require.NoError(t, err)
	b, err := c.Encrypt(sample())
	require.NoError(t, err)
	assert.NotEqual(t, a.Data, b.Data)
}

func TestDecrypt_AnySingleByteFlipFails(t *testing.T) {
	c, _ := newTestCipher(t, "c1")
	enc, err := c.Encrypt(sample())
	require.NoError(t, err)

	for i := range enc.Data {
		tampered := models.EncryptedMessage{Data: append([]byte(nil), enc.Data...)}
		tampered.Data[i] ^= 0x80

		got, err := c.Decrypt(tampered)
		require.ErrorIs(t, err, common.ErrDecryptFailure, "byte %d", i)
		require.Equal(t, models.RawMessage{}, got, "byte %d", i)
	}
}

func TestDecrypt_Truncated(t *testing.T) {
	c, _ := newTestCipher(t, "c1")
	enc, err := c.Encrypt(sample())
	require.NoError(t, err)

	for _, n := range []int{0, 5, 12, len(enc.Data) - 1} {
		_, err := c.Decrypt(models.EncryptedMessage{Data: enc.Data[:n]})
		assert.ErrorIs(t, err, common.ErrDecryptFailure, "len %d", n)
	}
}

func TestDecrypt_WrongKeyOrConversation(t *testing.T) {
	c, key := newTestCipher(t, "c1")
	enc, err := c.Encrypt(sample())
	require.NoError(t, err)

	other, _ := newTestCipher(t, "c1")
	_, err = other.Decrypt(enc)
	assert.ErrorIs(t, err, common.ErrDecryptFailure)

	moved, err := NewCipher(key, "c2")
	require.NoError(t, err)
	_, err = moved.Decrypt(enc)
	assert.ErrorIs(t, err, common.ErrDecryptFailure)
}

func TestDecrypt_NonJSONPlaintext(t *testing.T) {
	c, _ := newTestCipher(t, "c1")

	data, err := cryptox.Seal(c.key, []byte("not json"), c.aad)
	require.NoError(t, err)

	_, err = c.Decrypt(models.EncryptedMessage{Data: data})
	assert.ErrorIs(t, err, common.ErrDecryptFailure)
}

func TestNewCipher_RejectsBadKeySize(t *testing.T) {
	_, err := NewCipher([]byte("short"), "c1")
	assert.ErrorIs(t, err, common.ErrKeyUnwrapFailed)
}

func TestClose_WipesKey(t *testing.T) {
	c, _ := newTestCipher(t, "c1")
	c.Close()
	assert.Equal(t, make([]byte, cryptox.SymmetricKeySize), c.key)
}
