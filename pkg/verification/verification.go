// Package verification holds the verification attempt domain model shared by
// the repository and the verifier service.
package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hdcustody/walletd/pkg/wallet"
)

// Status is the lifecycle state of a verification attempt.
type Status string

// Verification statuses.
const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Errors returned by the verification model and repository.
var (
	// ErrNotFound is returned when no attempt exists for (user, network).
	ErrNotFound = errors.New("verification not found")
	// ErrDocumentTooLarge is returned when the decoded document exceeds
	// the configured limit.
	ErrDocumentTooLarge = errors.New("document too large")
	// ErrEmptyUserID is returned for a user id outside 1..255 bytes.
	ErrEmptyUserID = errors.New("user id must be 1..255 bytes")
)

// Verification is a single verification attempt for a (user, network) pair.
// Attempts are created pending and move to verified once processing
// completes; they are never deleted.
type Verification struct {
	ID           uuid.UUID
	UserID       string
	Network      wallet.Network
	DocumentHash string
	Status       Status
	CreatedAt    time.Time
	VerifiedAt   *time.Time
	Version      int
}

// New hashes the document and returns a pending attempt.
func New(userID string, n wallet.Network, document []byte) (*Verification, error) {
	if len(userID) == 0 || len(userID) > 255 {
		return nil, ErrEmptyUserID
	}
	sum := sha256.Sum256(document)
	return &Verification{
		ID:           uuid.New(),
		UserID:       userID,
		Network:      n,
		DocumentHash: hex.EncodeToString(sum[:]),
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Verify transitions the attempt to verified, stamping VerifiedAt. The
// invariant VerifiedAt >= CreatedAt holds because the stamp is taken now.
func (v *Verification) Verify() {
	now := time.Now().UTC()
	if now.Before(v.CreatedAt) {
		now = v.CreatedAt
	}
	v.Status = StatusVerified
	v.VerifiedAt = &now
}
