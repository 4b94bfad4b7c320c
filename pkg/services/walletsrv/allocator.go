package walletsrv

import (
	"context"
	"fmt"
	"sync"

	"github.com/hdcustody/walletd/pkg/cache"
	"github.com/hdcustody/walletd/pkg/wallet"
)

// IndexSource seeds the allocator from persistent state.
type IndexSource interface {
	NextDerivationIndex(ctx context.Context, n wallet.Network) (uint32, error)
}

// Allocator hands out monotonically increasing derivation indices per
// network. Within one process successive calls strictly increase; indices
// consumed by failed wallet creations are not reused (holes are fine). The
// database uniqueness constraint on (network, derivation_index) is the
// final authority across restarts.
type Allocator struct {
	repo  IndexSource
	cache *cache.Cache
	locks map[wallet.Network]*sync.Mutex
}

// NewAllocator returns an allocator seeded lazily from repo.
func NewAllocator(repo IndexSource, c *cache.Cache) *Allocator {
	locks := make(map[wallet.Network]*sync.Mutex, len(wallet.Networks))
	for _, n := range wallet.Networks {
		locks[n] = new(sync.Mutex)
	}
	return &Allocator{repo: repo, cache: c, locks: locks}
}

// NextIndex returns the next free derivation index for the network.
func (a *Allocator) NextIndex(ctx context.Context, n wallet.Network) (uint32, error) {
	lock, ok := a.locks[n]
	if !ok {
		return 0, fmt.Errorf("%w: %s", wallet.ErrUnsupportedNetwork, n)
	}
	lock.Lock()
	defer lock.Unlock()

	key := indexKey(n)
	if cached, ok := a.cache.Get(key); ok {
		index := cached.(uint32)
		a.cache.SetTTL(key, index+1, 0)
		return index, nil
	}

	base, err := a.repo.NextDerivationIndex(ctx, n)
	if err != nil {
		return 0, err
	}
	a.cache.SetTTL(key, base+1, 0)
	return base, nil
}

func indexKey(n wallet.Network) string {
	return "next_index:" + n.String()
}
