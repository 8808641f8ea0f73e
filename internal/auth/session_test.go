package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/crim/internal/common"
)

func TestIssueAndVerify(t *testing.T) {
	iss, err := NewIssuer(time.Minute)
	require.NoError(t, err)

	s, err := iss.Issue("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)
	assert.NotEmpty(t, s.Token)

	require.NoError(t, iss.Verify(s))
}

func TestVerify_RejectsForgedUsername(t *testing.T) {
	iss, err := NewIssuer(time.Minute)
	require.NoError(t, err)

	s, err := iss.Issue("alice")
	require.NoError(t, err)

	forged := *s
	forged.Username = "bob"
	assert.ErrorIs(t, iss.Verify(&forged), common.ErrInvalidSession)
}

func TestVerify_RejectsExpired(t *testing.T) {
	iss, err := NewIssuer(time.Minute)
	require.NoError(t, err)

	s, err := iss.Issue("alice")
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	err = iss.Verify(s)
	assert.ErrorIs(t, err, common.ErrInvalidSession)
	assert.True(t, Expired(err))

	forged := *s
	forged.Username = "bob"
	err = iss.Verify(&forged)
	assert.ErrorIs(t, err, common.ErrInvalidSession)
	assert.False(t, Expired(err), "an expired token for someone else is not just expired")

	assert.False(t, Expired(iss.Verify(&Session{Username: "alice", Token: "garbage"})))
}

func TestVerify_RejectsOtherIssuerSecret(t *testing.T) {
	a, err := NewIssuer(time.Minute)
	require.NoError(t, err)
	b, err := NewIssuer(time.Minute)
	require.NoError(t, err)

	s, err := a.Issue("alice")
	require.NoError(t, err)
	assert.ErrorIs(t, b.Verify(s), common.ErrInvalidSession)
}

func TestVerify_NilAndEmpty(t *testing.T) {
	iss, err := NewIssuer(time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, iss.Verify(nil), common.ErrInvalidSession)
	assert.ErrorIs(t, iss.Verify(&Session{Username: "alice"}), common.ErrInvalidSession)
	assert.ErrorIs(t, iss.Verify(&Session{Username: "alice", Token: "x.y.z"}), common.ErrInvalidSession)
}
