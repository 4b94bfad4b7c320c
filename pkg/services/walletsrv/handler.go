package walletsrv

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/hdcustody/walletd/pkg/events"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// dedupCapacity bounds the processed-event filter. Oldest entries fall out
// first, which at worst lets an ancient redelivery through to the database
// constraint.
const dedupCapacity = 10000

// Provisioner is the part of the wallet service the event handler drives.
type Provisioner interface {
	CreateWallet(ctx context.Context, userID string, n wallet.Network) (*wallet.Wallet, error)
}

// EventHandler turns user.verified events into wallet provisioning calls.
// Delivery is at-least-once, so it keeps an in-memory duplicate filter in
// front of the database constraints.
type EventHandler struct {
	log *zap.Logger
	svc Provisioner

	mtx       sync.Mutex
	processed *lru.Cache
}

// NewEventHandler returns a handler over svc.
func NewEventHandler(svc Provisioner, log *zap.Logger) (*EventHandler, error) {
	processed, err := lru.New(dedupCapacity)
	if err != nil {
		return nil, err
	}
	return &EventHandler{log: log, svc: svc, processed: processed}, nil
}

// HandleUserVerified processes one event. Duplicates and already existing
// wallets are success; any other failure removes the dedup mark so a
// redelivery gets a fresh attempt.
func (h *EventHandler) HandleUserVerified(ctx context.Context, e events.UserVerifiedEvent) error {
	eventsProcessedCounter.Inc()

	key := e.DedupKey()
	h.mtx.Lock()
	if h.processed.Contains(key) {
		h.mtx.Unlock()
		duplicateEventsCounter.Inc()
		h.log.Info("skipping duplicate user.verified event",
			zap.String("user_id", e.UserID), zap.String("network", e.Network))
		return nil
	}
	h.processed.Add(key, struct{}{})
	h.mtx.Unlock()

	err := h.handle(ctx, e)
	if err != nil {
		h.mtx.Lock()
		h.processed.Remove(key)
		h.mtx.Unlock()
		eventFailuresCounter.Inc()
	}
	return err
}

func (h *EventHandler) handle(ctx context.Context, e events.UserVerifiedEvent) error {
	n, err := wallet.ParseNetwork(e.Network)
	if err != nil {
		return err
	}
	w, err := h.svc.CreateWallet(ctx, e.UserID, n)
	if errors.Is(err, wallet.ErrAlreadyExists) {
		h.log.Info("wallet already exists",
			zap.String("user_id", e.UserID), zap.String("network", e.Network))
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "provision wallet for user %s", e.UserID)
	}
	h.log.Info("provisioned wallet for verified user",
		zap.String("user_id", e.UserID),
		zap.Stringer("network", w.Network),
		zap.String("address", w.Address))
	return nil
}
