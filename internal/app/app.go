// Package app wires configuration into a running CRIM core: the document
// store, the Key Vault and its optional on-disk cache, and the identity,
// envelope and relay services built on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/crim/internal/auth"
	"github.com/dmitrijs2005/crim/internal/config"
	"github.com/dmitrijs2005/crim/internal/envelope"
	"github.com/dmitrijs2005/crim/internal/identity"
	"github.com/dmitrijs2005/crim/internal/logging"
	"github.com/dmitrijs2005/crim/internal/relay"
	"github.com/dmitrijs2005/crim/internal/store"
	"github.com/dmitrijs2005/crim/internal/store/memory"
	"github.com/dmitrijs2005/crim/internal/store/objectstore"
	"github.com/dmitrijs2005/crim/internal/store/postgres"
	"github.com/dmitrijs2005/crim/internal/vault"
	"github.com/dmitrijs2005/crim/internal/vault/sqlitecache"
)

var ErrUnknownBackend = errors.New("unknown store backend")

// seams for tests
var (
	openPostgres = func(ctx context.Context, dsn string) (store.Manager, error) {
		return postgres.Open(ctx, dsn)
	}
	openObjectStore = func(ctx context.Context, opts objectstore.Options) (store.Manager, error) {
		return objectstore.Open(ctx, opts)
	}
	notifySignals = func(c chan<- os.Signal) {
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger

	stores store.Manager
	cache  *sqlitecache.Cache
	vault  *vault.MemoryVault

	Identity *identity.Manager
	Envelope *envelope.Envelope
	Relay    *relay.Relay
}

// New opens the configured store, purges keys left in the cache by a
// previous process and builds the core services.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: logger, stores: stores}

	vaultOpts := []vault.Option{vault.WithLogger(logger)}
	if cfg.KeyCachePath != "" {
		cache, err := sqlitecache.Open(ctx, cfg.KeyCachePath)
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("open key cache: %w", err)
		}
		n, err := cache.Purge(ctx)
		if err != nil {
			_ = cache.Close()
			_ = stores.Close()
			return nil, fmt.Errorf("purge key cache: %w", err)
		}
		if n > 0 {
			logger.Warn(ctx, "purged stale keys from cache", "count", n)
		}
		a.cache = cache
		vaultOpts = append(vaultOpts, vault.WithBacking(cache))
	}
	a.vault = vault.NewMemoryVault(vaultOpts...)

	issuer, err := auth.NewIssuer(cfg.SessionTTL)
	if err != nil {
		_ = a.closeStorage()
		return nil, err
	}

	a.Identity = identity.NewManager(stores.Accounts(), a.vault, issuer, logger, identity.Options{
		RSABits:            cfg.RSABits,
		MinPasswordEntropy: cfg.MinPasswordEntropy,
	})
	a.Envelope = envelope.New(stores.Accounts(), stores.Conversations(), a.Identity, logger)
	a.Relay = relay.New(stores.Conversations(), a.Envelope, logger)

	logger.Info(ctx, "core started", "backend", cfg.StoreBackend, "key_cache", cfg.KeyCachePath != "")
	return a, nil
}

func openStores(ctx context.Context, cfg *config.Config) (store.Manager, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memory.NewManager(), nil
	case config.BackendPostgres:
		return openPostgres(ctx, cfg.DatabaseDSN)
	case config.BackendS3:
		return openObjectStore(ctx, objectstore.Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StoreBackend)
	}
}

// InitSignalHandler clears the Key Vault when the process receives SIGINT,
// SIGTERM or SIGQUIT and then calls onSignal. The handler stops when ctx is
// done.
func (a *App) InitSignalHandler(ctx context.Context, onSignal func()) {
	sigs := make(chan os.Signal, 1)
	notifySignals(sigs)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			a.logger.Info(ctx, "received signal, clearing key vault", "signal", sig.String())
			a.vault.ClearAll(context.Background())
			if onSignal != nil {
				onSignal()
			}
		case <-ctx.Done():
		}
	}()
}

// ActiveKeys reports how many private keys the vault holds.
func (a *App) ActiveKeys() int {
	return a.vault.Len()
}

// Close clears every private key and releases the store and key cache.
func (a *App) Close(ctx context.Context) error {
	a.vault.ClearAll(ctx)
	return a.closeStorage()
}

func (a *App) closeStorage() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	errs = append(errs, a.stores.Close())
	return errors.Join(errs...)
}
