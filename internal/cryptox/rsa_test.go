package cryptox

import (
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixtureOnce sync.Once
	fixtureKey  *rsa.PrivateKey
	fixtureErr  error
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	fixtureOnce.Do(func() {
		fixtureKey, fixtureErr = GenerateKeyPair(MinRSABits)
	})
	require.NoError(t, fixtureErr)
	return fixtureKey
}

func TestGenerateKeyPair_RejectsSmallKeys(t *testing.T) {
	_, err := GenerateKeyPair(1024)
	assert.ErrorIs(t, err, ErrKeyTooSmall)
}

func TestPublicKey_PEMRoundTrip(t *testing.T) {
	priv := testKey(t)

	data, err := MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN PUBLIC KEY")

	pub, err := ParsePublicKey(data)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}

func TestParsePublicKey_Invalid(t *testing.T) {
	_, err := ParsePublicKey([]byte("garbage"))
	assert.ErrorIs(t, err, ErrInvalidPEM)
}

func TestSealPrivateKey_RoundTrip(t *testing.T) {
	priv := testKey(t)
	mk := DeriveMasterKey([]byte("pw1"), []byte("0123456789abcdef"))

	sealed, err := SealPrivateKey(priv, mk)
	require.NoError(t, err)
	assert.Contains(t, string(sealed), "SEALED PRIVATE KEY")
	assert.Contains(t, string(sealed), "Cipher: AES-256-GCM")

	got, err := OpenPrivateKey(sealed, mk)
	require.NoError(t, err)
	assert.True(t, priv.Equal(got))
}

func TestOpenPrivateKey_WrongKey(t *testing.T) {
	priv := testKey(t)
	mk := DeriveMasterKey([]byte("pw1"), []byte("0123456789abcdef"))
	other := DeriveMasterKey([]byte("pw2"), []byte("0123456789abcdef"))

	sealed, err := SealPrivateKey(priv, mk)
	require.NoError(t, err)

	_, err = OpenPrivateKey(sealed, other)
	assert.Error(t, err)

	_, err = OpenPrivateKey([]byte("not pem"), mk)
	assert.ErrorIs(t, err, ErrInvalidPEM)
}

func TestWrapUnwrap(t *testing.T) {
	priv := testKey(t)
	key, err := NewSymmetricKey()
	require.NoError(t, err)

	wrapped, err := WrapKey(&priv.PublicKey, key, []byte("c1"))
	require.NoError(t, err)
	assert.NotEqual(t, key, wrapped)

	got, err := UnwrapKey(priv, wrapped, []byte("c1"))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = UnwrapKey(priv, wrapped, []byte("c2"))
	assert.Error(t, err, "label binds the wrapped key to its conversation")
}

func TestPrivateKeyDER_RoundTrip(t *testing.T) {
	priv := testKey(t)

	der, err := MarshalPrivateKeyDER(priv)
	require.NoError(t, err)

	got, err := ParsePrivateKeyDER(der)
	require.NoError(t, err)
	assert.True(t, priv.Equal(got))
}

func TestWipePrivateKey(t *testing.T) {
	priv, err := ParsePrivateKeyDER(mustDER(t, testKey(t)))
	require.NoError(t, err)

	secret := []byte("0123456789abcdef0123456789abcdef")
	wrapped, err := WrapKey(&priv.PublicKey, secret, []byte("c1"))
	require.NoError(t, err)

	WipePrivateKey(priv)

	got, err := UnwrapKey(priv, wrapped, []byte("c1"))
	assert.Error(t, err, "a wiped key must not decrypt")
	assert.Nil(t, got)
	assert.Nil(t, priv.Precomputed.Dp)
	assert.Equal(t, int64(0), priv.D.Int64())
	for _, p := range priv.Primes {
		assert.Equal(t, int64(0), p.Int64())
	}

	WipePrivateKey(nil)
}

func mustDER(t *testing.T, priv *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := MarshalPrivateKeyDER(priv)
	require.NoError(t, err)
	return der
}
