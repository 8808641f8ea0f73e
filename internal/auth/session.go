// Package auth issues and verifies the Session value returned by a
// successful login. A Session is a username plus an HS256 token whose
// expiry bounds the lifetime of the unlocked private key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/crim/internal/common"
)

const issuer = "crim"

// Session is passed by the UI layer into every core call.
type Session struct {
	Username  string
	Token     string
	ExpiresAt time.Time
}

// Claims carries the session owner in the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with a process-local secret.
type Issuer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// NewIssuer creates an Issuer with a random 32-byte secret.
func NewIssuer(validity time.Duration) (*Issuer, error) {
	secret, err := common.GenerateRandBytes(32)
	if err != nil {
		return nil, fmt.Errorf("session secret: %w", err)
	}
	return &Issuer{secret: secret, validity: validity, now: time.Now}, nil
}

// Issue returns a new Session for username.
func (i *Issuer) Issue(username string) (*Session, error) {
	now := i.now()
	expires := now.Add(i.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, err
	}
	return &Session{Username: username, Token: signed, ExpiresAt: expires}, nil
}

// Verify checks the token signature, expiry and that it was issued for
// s.Username. Every failure maps to common.ErrInvalidSession.
func (i *Issuer) Verify(s *Session) error {
	if s == nil || s.Token == "" {
		return common.ErrInvalidSession
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(s.Token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		// An expired token has already passed the signature check.
		if errors.Is(err, jwt.ErrTokenExpired) && claims.Subject == s.Username {
			return common.Wrap(common.ErrInvalidSession, jwt.ErrTokenExpired)
		}
		return common.ErrInvalidSession
	}
	if !token.Valid || claims.Subject != s.Username {
		return common.ErrInvalidSession
	}
	return nil
}

// Expired reports whether err came from Verify rejecting a genuine token
// for its owner only because it has expired.
func Expired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
