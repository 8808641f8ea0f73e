package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

const (
	// DefaultRSABits is the modulus size for new account keypairs.
	DefaultRSABits = 3072
	// MinRSABits is the smallest accepted modulus size.
	MinRSABits = 2048

	publicKeyPEMType = "PUBLIC KEY"
	sealedKeyPEMType = "SEALED PRIVATE KEY"
	sealedKeyCipher  = "AES-256-GCM"
	sealedKeyKDF     = "argon2id"
)

var (
	ErrKeyTooSmall   = errors.New("rsa key size below minimum")
	ErrInvalidPEM    = errors.New("invalid pem block")
	ErrNotRSAKey     = errors.New("not an rsa key")
	ErrUnknownCipher = errors.New("unsupported private key cipher")
)

// GenerateKeyPair creates an RSA keypair of the given size.
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits < MinRSABits {
		return nil, ErrKeyTooSmall
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// MarshalPublicKey encodes pub as a PKIX "PUBLIC KEY" PEM block.
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: der}), nil
}

// ParsePublicKey decodes a PEM public key produced by MarshalPublicKey.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyPEMType {
		return nil, ErrInvalidPEM
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return pub, nil
}

// MarshalPrivateKeyDER encodes priv as PKCS#8 DER. The caller owns the
// returned buffer and should wipe it.
func MarshalPrivateKeyDER(priv *rsa.PrivateKey) ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(priv)
}

// ParsePrivateKeyDER decodes PKCS#8 DER into an RSA private key.
func ParsePrivateKeyDER(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return priv, nil
}

// SealPrivateKey encrypts priv under masterKey and returns a
// "SEALED PRIVATE KEY" PEM block. The body is AES-256-GCM over the PKCS#8
// DER; the nonce travels in the block headers.
func SealPrivateKey(priv *rsa.PrivateKey, masterKey []byte) ([]byte, error) {
	der, err := MarshalPrivateKeyDER(priv)
	if err != nil {
		return nil, err
	}
	defer wipe(der)

	sealed, err := Seal(masterKey, der, []byte(sealedKeyPEMType))
	if err != nil {
		return nil, err
	}

	block := &pem.Block{
		Type: sealedKeyPEMType,
		Headers: map[string]string{
			"Cipher": sealedKeyCipher,
			"KDF":    sealedKeyKDF,
			"Nonce":  hex.EncodeToString(sealed[:gcmNonceSize]),
		},
		Bytes: sealed[gcmNonceSize:],
	}
	return pem.EncodeToMemory(block), nil
}

// OpenPrivateKey reverses SealPrivateKey.
func OpenPrivateKey(data []byte, masterKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != sealedKeyPEMType {
		return nil, ErrInvalidPEM
	}
	if block.Headers["Cipher"] != sealedKeyCipher || block.Headers["KDF"] != sealedKeyKDF {
		return nil, ErrUnknownCipher
	}
	nonce, err := hex.DecodeString(block.Headers["Nonce"])
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	der, err := Open(masterKey, append(nonce, block.Bytes...), []byte(sealedKeyPEMType))
	if err != nil {
		return nil, err
	}
	defer wipe(der)

	return ParsePrivateKeyDER(der)
}

// WrapKey encrypts a symmetric key for pub with RSA-OAEP(SHA-256). label
// binds the wrapped key to its context (the conversation id).
func WrapKey(pub *rsa.PublicKey, key []byte, label []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, label)
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(priv *rsa.PrivateKey, wrapped []byte, label []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, label)
}

// WipePrivateKey zeroes the secret components of priv in place and drops
// the precomputed values, which hold their own copy of the key. The key
// cannot decrypt afterwards.
func WipePrivateKey(priv *rsa.PrivateKey) {
	if priv == nil {
		return
	}
	zero := func(n *big.Int) {
		if n != nil {
			n.SetInt64(0)
		}
	}
	zero(priv.D)
	for _, p := range priv.Primes {
		zero(p)
	}
	zero(priv.Precomputed.Dp)
	zero(priv.Precomputed.Dq)
	zero(priv.Precomputed.Qinv)
	priv.Precomputed = rsa.PrecomputedValues{}
}
