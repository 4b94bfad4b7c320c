package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/hdcustody/walletd/pkg/verification"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
)

// VerificationRepository persists verification attempts. Attempts are
// append-only except for the status transition.
type VerificationRepository struct {
	db *sql.DB
}

// NewVerificationRepository returns a repository over db.
func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Save inserts a verification row.
func (r *VerificationRepository) Save(ctx context.Context, v *verification.Verification) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verifications (id, user_id, network, document_hash, status, verified_at, created_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0)`,
		v.ID, v.UserID, v.Network.String(), v.DocumentHash, string(v.Status), v.VerifiedAt, v.CreatedAt)
	return errors.Wrap(err, "insert verification")
}

// GetByUserAndNetwork returns the most recent attempt for (user, network)
// or verification.ErrNotFound.
func (r *VerificationRepository) GetByUserAndNetwork(ctx context.Context, userID string, n wallet.Network) (*verification.Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, network, document_hash, status, verified_at, created_at, version
		 FROM verifications WHERE user_id = $1 AND network = $2
		 ORDER BY created_at DESC LIMIT 1`,
		userID, n.String())

	var (
		v          verification.Verification
		network    string
		status     string
		verifiedAt sql.NullTime
	)
	err := row.Scan(&v.ID, &v.UserID, &network, &v.DocumentHash, &status, &verifiedAt, &v.CreatedAt, &v.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan verification")
	}
	parsed, err := wallet.ParseNetwork(network)
	if err != nil {
		return nil, err
	}
	v.Network = parsed
	v.Status = verification.Status(status)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		v.VerifiedAt = &t
	}
	return &v, nil
}

// UpdateStatus persists a status transition, stamping verified_at when the
// new status is verified.
func (r *VerificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status verification.Status, verifiedAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE verifications SET status = $1, verified_at = $2, version = version + 1 WHERE id = $3`,
		string(status), verifiedAt, id)
	return errors.Wrap(err, "update verification status")
}
