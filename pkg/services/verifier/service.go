// Package verifier implements the verification service: it accepts identity
// documents, records verification attempts and emits user.verified events
// once an attempt completes.
package verifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hdcustody/walletd/pkg/config"
	"github.com/hdcustody/walletd/pkg/events"
	"github.com/hdcustody/walletd/pkg/verification"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const publishAttempts = 3

// Repository is the persistence surface the service needs.
type Repository interface {
	Save(ctx context.Context, v *verification.Verification) error
	GetByUserAndNetwork(ctx context.Context, userID string, n wallet.Network) (*verification.Verification, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status verification.Status, verifiedAt *time.Time) error
}

// Publisher emits user.verified events.
type Publisher interface {
	Publish(ctx context.Context, topic string, env events.Envelope) error
}

// Options carries the service dependencies.
type Options struct {
	Config     config.Verification
	Topic      string
	Repository Repository
	Publisher  Publisher
	Log        *zap.Logger
}

// Service records verification attempts.
type Service struct {
	opts Options
	sem  *semaphore.Weighted
	bg   sync.WaitGroup

	// sleep is replaceable in tests to skip the processing delay and the
	// publish retry backoffs.
	sleep func(d time.Duration)
}

// NewService wires a verification service from its dependencies.
func NewService(opts Options) *Service {
	return &Service{
		opts:  opts,
		sem:   semaphore.NewWeighted(int64(opts.Config.MaxConcurrentVerifications)),
		sleep: time.Sleep,
	}
}

// VerifyUser records a verification attempt for (user, network) and emits
// user.verified once it completes. A user already verified for the network
// gets the existing attempt back, no new row and no event. The call blocks
// through the processing delay; the event publish happens in the background
// and its failure does not fail the verification.
func (s *Service) VerifyUser(ctx context.Context, userID string, n wallet.Network, document []byte) (*verification.Verification, error) {
	if int64(len(document)) > s.opts.Config.MaxDocumentBytes() {
		return nil, errors.Wrapf(verification.ErrDocumentTooLarge,
			"%d bytes, limit %d MB", len(document), s.opts.Config.MaxDocumentSizeMB)
	}
	v, err := verification.New(userID, n, document)
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	verificationsStartedCounter.Inc()

	existing, err := s.opts.Repository.GetByUserAndNetwork(ctx, userID, n)
	if err == nil && existing.Status == verification.StatusVerified {
		s.opts.Log.Info("user already verified",
			zap.String("user_id", userID), zap.Stringer("network", n))
		return existing, nil
	}
	if err != nil && !errors.Is(err, verification.ErrNotFound) {
		return nil, err
	}

	if err := s.opts.Repository.Save(ctx, v); err != nil {
		return nil, err
	}
	s.opts.Log.Info("verification started",
		zap.String("user_id", userID),
		zap.Stringer("network", n),
		zap.String("verification_id", v.ID.String()))

	// Simulated document processing.
	s.sleep(s.opts.Config.Delay())

	v.Verify()
	if err := s.opts.Repository.UpdateStatus(ctx, v.ID, v.Status, v.VerifiedAt); err != nil {
		return nil, err
	}
	verificationsCompletedCounter.Inc()
	s.opts.Log.Info("verification completed",
		zap.String("user_id", userID),
		zap.Stringer("network", n),
		zap.String("verification_id", v.ID.String()))

	s.publishUserVerified(userID, n)
	return v, nil
}

// Shutdown waits for background publishes to drain.
func (s *Service) Shutdown() {
	s.bg.Wait()
}

// publishUserVerified emits the event in the background with retries. After
// the last attempt the event is logged and dropped; downstream can
// reconcile from the persisted row.
func (s *Service) publishUserVerified(userID string, n wallet.Network) {
	event := events.NewUserVerified(userID, n.String())
	env, err := event.Envelope()
	if err != nil {
		s.opts.Log.Error("failed to serialise user.verified event", zap.Error(err))
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
		verifyPublishFailuresCounter.Inc()
		s.opts.Log.Error("dropping user.verified event after retries",
			zap.String("user_id", userID),
			zap.Stringer("network", n),
			zap.Error(lastErr))
	}()
}
