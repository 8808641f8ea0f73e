// Package identity registers accounts and turns a username and password
// into an authenticated Session with the account's private key unlocked in
// the Key Vault.
//
// A password is stretched with Argon2id into a master key. The account
// stores only SHA-256 of that key as its verifier, and the master key seals
// the RSA private key. Unknown users and wrong passwords take the same path
// and fail with the same error value.
package identity

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"regexp"

	passwordvalidator "github.com/wagslane/go-password-validator"

	"github.com/dmitrijs2005/crim/internal/auth"
	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/cryptox"
	"github.com/dmitrijs2005/crim/internal/logging"
	"github.com/dmitrijs2005/crim/internal/models"
	"github.com/dmitrijs2005/crim/internal/store"
	"github.com/dmitrijs2005/crim/internal/vault"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// Options tunes account creation.
type Options struct {
	// RSABits is the modulus size of new keypairs; values below
	// cryptox.MinRSABits are rejected at key generation.
	RSABits int
	// MinPasswordEntropy is the minimum password entropy in bits; 0 disables
	// the check.
	MinPasswordEntropy float64
}

type Manager struct {
	accounts store.AccountStore
	vault    vault.KeyVault
	sessions *auth.Issuer
	log      logging.Logger
	opts     Options

	// seams for tests
	generateKey func(bits int) (*rsa.PrivateKey, error)
	randomSalt  func() ([]byte, error)
	issue       func(username string) (*auth.Session, error)
}

func NewManager(accounts store.AccountStore, v vault.KeyVault, sessions *auth.Issuer, log logging.Logger, opts Options) *Manager {
	if opts.RSABits == 0 {
		opts.RSABits = cryptox.DefaultRSABits
	}
	return &Manager{
		accounts:    accounts,
		vault:       v,
		sessions:    sessions,
		log:         log.With("module", "identity"),
		opts:        opts,
		generateKey: cryptox.GenerateKeyPair,
		randomSalt:  func() ([]byte, error) { return common.GenerateRandBytes(cryptox.SaltSize) },
		issue:       sessions.Issue,
	}
}

// ValidateUsername checks the allowed username alphabet and length.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return common.ErrInvalidUsername
	}
	return nil
}

// Register creates an account. The store enforces uniqueness, so two
// concurrent registrations of one name cannot both succeed.
func (m *Manager) Register(ctx context.Context, username string, password []byte) (*models.Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if m.opts.MinPasswordEntropy > 0 {
		if err := passwordvalidator.Validate(string(password), m.opts.MinPasswordEntropy); err != nil {
			return nil, common.Wrap(common.ErrWeakPassword, err)
		}
	}

	// Fail fast before the expensive keygen; Create still decides.
	if _, err := m.accounts.GetByUsername(ctx, username); err == nil {
		return nil, common.ErrDuplicateUsername
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, storeErr(err)
	}

	salt, err := m.randomSalt()
	if err != nil {
		return nil, common.Wrap(common.ErrKeyGenFailure, err)
	}

	masterKey := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(masterKey)

	priv, err := m.generateKey(m.opts.RSABits)
	if err != nil {
		return nil, common.Wrap(common.ErrKeyGenFailure, err)
	}
	defer cryptox.WipePrivateKey(priv)

	pub, err := cryptox.MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, common.Wrap(common.ErrKeyGenFailure, err)
	}
	sealed, err := cryptox.SealPrivateKey(priv, masterKey)
	if err != nil {
		return nil, common.Wrap(common.ErrKeyGenFailure, err)
	}

	acc := &models.Account{
		Username:   username,
		Hash:       cryptox.MakeVerifier(masterKey),
		Salt:       salt,
		PublicKey:  pub,
		PrivKeyEnc: sealed,
		Friends:    []string{},
	}
	if err := m.accounts.Create(ctx, acc); err != nil {
		return nil, storeErr(err)
	}

	m.log.Info(ctx, "account registered", "user", username)
	return acc, nil
}

// Login verifies the password, unlocks the private key into the vault and
// issues a Session.
func (m *Manager) Login(ctx context.Context, username string, password []byte) (*auth.Session, error) {
	acc, err := m.accounts.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, storeErr(err)
	}

	var salt, want []byte
	if acc != nil {
		salt, want = acc.Salt, acc.Hash
	} else {
		// Same KDF cost as a real account; want stays nil and never matches.
		if salt, err = m.randomSalt(); err != nil {
			return nil, common.Wrap(common.ErrKeyGenFailure, err)
		}
	}

	masterKey := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(masterKey)

	got := cryptox.MakeVerifier(masterKey)
	if subtle.ConstantTimeCompare(got, want) != 1 || acc == nil {
		m.log.Info(ctx, "login rejected")
		return nil, common.ErrInvalidCredentials
	}

	priv, err := cryptox.OpenPrivateKey(acc.PrivKeyEnc, masterKey)
	if err != nil {
		m.log.Error(ctx, "private key does not open under a verified password", "user", username)
		return nil, common.Wrap(common.ErrKeyVaultCorruption, err)
	}

	session, err := m.issue(username)
	if err != nil {
		cryptox.WipePrivateKey(priv)
		m.log.Error(ctx, "session signing failed", "user", username)
		return nil, common.Wrap(common.ErrSessionSigning, err)
	}
	if err := m.vault.Install(ctx, username, priv); err != nil {
		cryptox.WipePrivateKey(priv)
		return nil, err
	}

	m.log.Info(ctx, "login", "user", username)
	return session, nil
}

// Authorize checks s and returns the caller's unlocked private key.
func (m *Manager) Authorize(s *auth.Session) (*rsa.PrivateKey, error) {
	if err := m.sessions.Verify(s); err != nil {
		return nil, err
	}
	return m.vault.Get(s.Username)
}

// Logout wipes the caller's key. The token must be genuine and issued for
// s.Username; an expired one is still accepted, so an expired login never
// leaves a key behind.
func (m *Manager) Logout(ctx context.Context, s *auth.Session) error {
	if err := m.sessions.Verify(s); err != nil && !auth.Expired(err) {
		return err
	}
	if err := m.vault.Clear(ctx, s.Username); err != nil {
		return err
	}
	m.log.Info(ctx, "logout", "user", s.Username)
	return nil
}

// AddFriend adds an existing account to the caller's friend list.
func (m *Manager) AddFriend(ctx context.Context, s *auth.Session, friend string) error {
	if err := m.sessions.Verify(s); err != nil {
		return err
	}
	if friend == s.Username {
		return common.ErrSelfFriend
	}
	if _, err := m.accounts.GetByUsername(ctx, friend); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnknownParticipant
		}
		return storeErr(err)
	}
	if err := m.accounts.AddFriend(ctx, s.Username, friend); err != nil {
		return storeErr(err)
	}
	return nil
}

func (m *Manager) RemoveFriend(ctx context.Context, s *auth.Session, friend string) error {
	if err := m.sessions.Verify(s); err != nil {
		return err
	}
	if err := m.accounts.RemoveFriend(ctx, s.Username, friend); err != nil {
		return storeErr(err)
	}
	return nil
}

// Friends lists the caller's friends in the order they were added.
func (m *Manager) Friends(ctx context.Context, s *auth.Session) ([]string, error) {
	if err := m.sessions.Verify(s); err != nil {
		return nil, err
	}
	acc, err := m.accounts.GetByUsername(ctx, s.Username)
	if err != nil {
		return nil, storeErr(err)
	}
	return acc.Friends, nil
}

// storeErr passes typed errors through and tags anything else as an
// unavailable store.
func storeErr(err error) error {
	var ce *common.Error
	if errors.As(err, &ce) {
		return err
	}
	return common.Wrap(common.ErrStoreUnavailable, err)
}
