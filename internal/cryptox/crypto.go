// Package cryptox holds the cryptographic primitives used by CRIM: the
// password KDF, RSA keypairs and their sealed storage form, RSA-OAEP key
// wrapping and AES-GCM sealing of records.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// SaltSize is the size of the per-account KDF salt.
	SaltSize = 32
	// MasterKeySize is the Argon2id output length.
	MasterKeySize = 32
	// SymmetricKeySize is the size of a conversation key.
	SymmetricKeySize = 32

	gcmNonceSize = 12
)

var errShortCiphertext = errors.New("ciphertext too short")

// DeriveMasterKey runs Argon2id over password and salt. The result keys the
// sealed private key and is never stored; only its verifier is.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, MasterKeySize)
}

// MakeVerifier returns the stored password hash for a master key.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// NewSymmetricKey returns a fresh random conversation key.
func NewSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSubkey expands secret into a size-byte key bound to salt and info
// using HKDF-SHA256.
func DeriveSubkey(secret, salt []byte, info string, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM. The random nonce is prepended to the
// returned ciphertext. aad is authenticated but not encrypted.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, aad), nil
}

// Open reverses Seal. Any modification of data or aad makes it fail.
func Open(key, data, aad []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, errShortCiphertext
	}
	nonce, ciphertext := data[:aesgcm.NonceSize()], data[aesgcm.NonceSize():]
	return aesgcm.Open(nil, nonce, ciphertext, aad)
}

// SealJSON serializes v to JSON and seals it with Seal.
//
// Example:
//
//	type Note struct {
//	    Text string `json:"text"`
//	}
//
//	data, err := SealJSON(Note{Text: "hi"}, key, []byte("conversation-id"))
func SealJSON(v any, key, aad []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	defer wipe(plaintext)
	return Seal(key, plaintext, aad)
}

// OpenJSON opens data sealed by SealJSON and unmarshals it into v. On error
// v must be treated as undefined.
func OpenJSON(data, key, aad []byte, v any) error {
	plaintext, err := Open(key, data, aad)
	if err != nil {
		return err
	}
	defer wipe(plaintext)
	return json.Unmarshal(plaintext, v)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
