// Package vault holds decrypted private keys for the lifetime of a login
// session. Keys live in process memory; an optional Backing mirrors them to
// a local cache so a crashed process can be cleaned up on the next start.
package vault

import (
	"context"
	"crypto/rsa"
	"sync"

	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/cryptox"
	"github.com/dmitrijs2005/crim/internal/logging"
)

// KeyVault is the scoped holder of one private key per logged-in user.
type KeyVault interface {
	Install(ctx context.Context, username string, key *rsa.PrivateKey) error
	Get(username string) (*rsa.PrivateKey, error)
	Clear(ctx context.Context, username string) error
}

// Backing is a local store that mirrors installed keys as PKCS#8 DER.
type Backing interface {
	Save(ctx context.Context, username string, der []byte) error
	Erase(ctx context.Context, username string) error
	Purge(ctx context.Context) (int, error)
}

// MemoryVault is the default KeyVault. It is safe for concurrent use.
type MemoryVault struct {
	mu      sync.Mutex
	keys    map[string]*rsa.PrivateKey
	backing Backing
	log     logging.Logger
}

// Option configures a MemoryVault.
type Option func(*MemoryVault)

// WithBacking mirrors keys to b.
func WithBacking(b Backing) Option {
	return func(v *MemoryVault) { v.backing = b }
}

// WithLogger sets the logger used for backing failures.
func WithLogger(l logging.Logger) Option {
	return func(v *MemoryVault) { v.log = l.With("module", "vault") }
}

func NewMemoryVault(opts ...Option) *MemoryVault {
	v := &MemoryVault{
		keys: make(map[string]*rsa.PrivateKey),
		log:  logging.Nop(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Install stores key for username, wiping any key it replaces. When a
// Backing is configured and the mirror write fails, nothing is installed.
func (v *MemoryVault) Install(ctx context.Context, username string, key *rsa.PrivateKey) error {
	if v.backing != nil {
		der, err := cryptox.MarshalPrivateKeyDER(key)
		if err != nil {
			return common.Wrap(common.ErrKeyVaultCorruption, err)
		}
		err = v.backing.Save(ctx, username, der)
		common.WipeByteArray(der)
		if err != nil {
			return common.Wrap(common.ErrStoreUnavailable, err)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if old, ok := v.keys[username]; ok && old != key {
		cryptox.WipePrivateKey(old)
	}
	v.keys[username] = key
	return nil
}

// Get returns the key installed for username or common.ErrNoActiveSession.
func (v *MemoryVault) Get(username string) (*rsa.PrivateKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, ok := v.keys[username]
	if !ok {
		return nil, common.ErrNoActiveSession
	}
	return key, nil
}

// Clear wipes and drops the key for username. The in-memory copy is always
// removed, even if erasing the backing copy fails.
func (v *MemoryVault) Clear(ctx context.Context, username string) error {
	v.mu.Lock()
	if key, ok := v.keys[username]; ok {
		cryptox.WipePrivateKey(key)
		delete(v.keys, username)
	}
	v.mu.Unlock()

	if v.backing != nil {
		if err := v.backing.Erase(ctx, username); err != nil {
			return common.Wrap(common.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// ClearAll wipes every installed key. It is the termination path and keeps
// going after individual backing failures.
func (v *MemoryVault) ClearAll(ctx context.Context) {
	v.mu.Lock()
	users := make([]string, 0, len(v.keys))
	for u := range v.keys {
		users = append(users, u)
	}
	v.mu.Unlock()

	for _, u := range users {
		if err := v.Clear(ctx, u); err != nil {
			v.log.Warn(ctx, "vault clear failed", "user", u, "err", err)
		}
	}
}

// Len returns the number of installed keys.
func (v *MemoryVault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.keys)
}
