// Package walletsrv implements the wallet service: it provisions one HD
// wallet per (user, network) when a user.verified event arrives, serves
// wallet lookups and emits wallet.created events.
package walletsrv

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hdcustody/walletd/pkg/cache"
	"github.com/hdcustody/walletd/pkg/config"
	"github.com/hdcustody/walletd/pkg/events"
	"github.com/hdcustody/walletd/pkg/generator"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const publishAttempts = 3

// Repository is the persistence surface the service needs.
type Repository interface {
	IndexSource
	Create(ctx context.Context, w *wallet.Wallet) error
	GetByUserAndNetwork(ctx context.Context, userID string, n wallet.Network) (*wallet.Wallet, error)
	UpdateLastAccessed(ctx context.Context, id uuid.UUID) error
}

// Publisher emits wallet.created events.
type Publisher interface {
	Publish(ctx context.Context, topic string, env events.Envelope) error
}

// Options carries the service dependencies.
type Options struct {
	Config     config.Wallet
	Topic      string
	Mnemonic   string
	Repository Repository
	Publisher  Publisher
	Cache      *cache.Cache
	Generators map[wallet.Network]generator.Generator
	Log        *zap.Logger
}

// Service provisions and looks up wallets.
type Service struct {
	opts      Options
	allocator *Allocator
	sem       *semaphore.Weighted
	bg        sync.WaitGroup

	// sleep is replaceable in tests to skip publish retry backoffs.
	sleep func(d time.Duration)
}

// NewService wires a wallet service from its dependencies.
func NewService(opts Options) (*Service, error) {
	if opts.Mnemonic == "" {
		return nil, errors.New("wallet service requires a mnemonic")
	}
	if opts.Generators == nil {
		gens, err := generator.NewAll(opts.Config.Paths())
		if err != nil {
			return nil, err
		}
		opts.Generators = gens
	}
	return &Service{
		opts:      opts,
		allocator: NewAllocator(opts.Repository, opts.Cache),
		sem:       semaphore.NewWeighted(int64(opts.Config.MaxConcurrentGenerations)),
		sleep:     time.Sleep,
	}, nil
}

// CreateWallet provisions a wallet for (user, network), or returns the
// existing one. Concurrency is capped by max_concurrent_generations. A
// wallet.created event is published in the background on fresh creation
// only.
func (s *Service) CreateWallet(ctx context.Context, userID string, n wallet.Network) (*wallet.Wallet, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if w, ok := s.cached(userID, n); ok {
		return w, nil
	}
	w, err := s.opts.Repository.GetByUserAndNetwork(ctx, userID, n)
	if err == nil {
		s.cacheWallet(w)
		return w, nil
	}
	if !errors.Is(err, wallet.ErrNotFound) {
		return nil, err
	}

	index, err := s.allocator.NextIndex(ctx, n)
	if err != nil {
		return nil, errors.Wrapf(generator.ErrGenerationFailed, "allocate index: %s", err)
	}

	gen, ok := s.opts.Generators[n]
	if !ok {
		return nil, errors.Wrapf(wallet.ErrUnsupportedNetwork, "%s", n)
	}
	address, err := gen.Generate(s.opts.Mnemonic, userID, index)
	if err != nil {
		return nil, err
	}
	w, err = wallet.New(userID, n, address, index)
	if err != nil {
		return nil, errors.Wrapf(generator.ErrGenerationFailed, "%s", err)
	}

	if err := s.opts.Repository.Create(ctx, w); err != nil {
		if errors.Is(err, wallet.ErrAlreadyExists) {
			// Lost a provisioning race; the winner's row is the wallet. The
			// allocated index stays burned.
			existing, lookupErr := s.opts.Repository.GetByUserAndNetwork(ctx, userID, n)
			if lookupErr == nil {
				s.cacheWallet(existing)
				s.opts.Log.Info("wallet already provisioned concurrently",
					zap.String("user_id", userID), zap.Stringer("network", n))
				return existing, nil
			}
			// No row behind the reported conflict: this must not be
			// acknowledged as an existing wallet, the event has to be
			// retried.
			return nil, errors.Wrapf(lookupErr,
				"wallet insert conflict for user %s on %s but no row found", userID, n)
		}
		return nil, err
	}
	s.cacheWallet(w)
	walletsCreatedCounter.WithLabelValues(n.String()).Inc()
	s.opts.Log.Info("wallet created",
		zap.String("user_id", userID),
		zap.Stringer("network", n),
		zap.String("address", w.Address),
		zap.Uint32("derivation_index", index))

	s.publishWalletCreated(w)
	return w, nil
}

// GetWallet returns the wallet for (user, network) and stamps its access
// time. On a cache hit the stamp runs in the background.
func (s *Service) GetWallet(ctx context.Context, userID string, n wallet.Network) (*wallet.Wallet, error) {
	if w, ok := s.cached(userID, n); ok {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.opts.Repository.UpdateLastAccessed(tctx, w.ID); err != nil {
				s.opts.Log.Warn("failed to stamp wallet access", zap.Error(err))
			}
		}()
		return w, nil
	}

	w, err := s.opts.Repository.GetByUserAndNetwork(ctx, userID, n)
	if err != nil {
		return nil, err
	}
	s.cacheWallet(w)
	if err := s.opts.Repository.UpdateLastAccessed(ctx, w.ID); err != nil {
		s.opts.Log.Warn("failed to stamp wallet access", zap.Error(err))
	}
	return w, nil
}

// Shutdown waits for background publishes and access stamps to drain.
func (s *Service) Shutdown() {
	s.bg.Wait()
}

// publishWalletCreated emits the event in the background with retries.
// After the last attempt the event is logged and dropped, the wallet row
// stays.
func (s *Service) publishWalletCreated(w *wallet.Wallet) {
	event := events.NewWalletCreated(w.UserID, w.Network.String(), w.Address)
	env, err := event.Envelope()
	if err != nil {
		s.opts.Log.Error("failed to serialise wallet.created event", zap.Error(err))
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		var lastErr error
		for attempt := 0; attempt < publishAttempts; attempt++ {
			if attempt > 0 {
				s.sleep(time.Duration(1<<(attempt-1)) * time.Second)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			lastErr = s.opts.Publisher.Publish(ctx, s.opts.Topic, env)
			cancel()
			if lastErr == nil {
				return
			}
		}
		publishFailuresCounter.Inc()
		s.opts.Log.Error("dropping wallet.created event after retries",
			zap.String("user_id", w.UserID),
			zap.Stringer("network", w.Network),
			zap.Error(lastErr))
	}()
}

func (s *Service) cached(userID string, n wallet.Network) (*wallet.Wallet, bool) {
	v, ok := s.opts.Cache.Get(walletKey(userID, n))
	if !ok {
		return nil, false
	}
	w, ok := v.(*wallet.Wallet)
	return w, ok
}

func (s *Service) cacheWallet(w *wallet.Wallet) {
	s.opts.Cache.SetTTL(walletKey(w.UserID, w.Network), w, s.opts.Config.CacheTTL())
}

func walletKey(userID string, n wallet.Network) string {
	return "wallet:" + userID + ":" + n.String()
}
