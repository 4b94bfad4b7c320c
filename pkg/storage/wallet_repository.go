package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
)

// WalletRepository persists wallets. Uniqueness of (user_id, network),
// wallet_address and (network, derivation_index) is enforced by the schema;
// violations surface as wallet.ErrAlreadyExists.
type WalletRepository struct {
	db *sql.DB
}

// NewWalletRepository returns a repository over db.
func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a wallet row.
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, network, wallet_address, derivation_index, created_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		w.ID, w.UserID, w.Network.String(), w.Address, int64(w.DerivationIndex), w.CreatedAt)
	return walletInsertError(err, w.UserID, w.Network)
}

// walletInsertError maps an insert failure onto the repository contract: a
// (user_id, network) collision is wallet.ErrAlreadyExists, any other unique
// violation (address, derivation index) is a conflict the caller has to
// retry with fresh inputs.
func walletInsertError(err error, userID string, n wallet.Network) error {
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueConstraint(err); ok {
		if constraint == walletUserNetworkConstraint {
			return errors.Wrapf(wallet.ErrAlreadyExists, "user %s network %s", userID, n)
		}
		return errors.Wrapf(err, "wallet conflict on %s", constraint)
	}
	return errors.Wrap(err, "insert wallet")
}

// GetByUserAndNetwork returns the wallet for (user, network) or
// wallet.ErrNotFound.
func (r *WalletRepository) GetByUserAndNetwork(ctx context.Context, userID string, n wallet.Network) (*wallet.Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, network, wallet_address, derivation_index, created_at, last_accessed_at, version
		 FROM wallets WHERE user_id = $1 AND network = $2`,
		userID, n.String())
	return scanWallet(row)
}

// Exists reports whether a wallet row exists for (user, network).
func (r *WalletRepository) Exists(ctx context.Context, userID string, n wallet.Network) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var id uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM wallets WHERE user_id = $1 AND network = $2`,
		userID, n.String()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "wallet exists")
	}
	return true, nil
}

// NextDerivationIndex computes max(derivation_index)+1 for the network, 0
// when the network has no wallets yet.
func (r *WalletRepository) NextDerivationIndex(ctx context.Context, n wallet.Network) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var next int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(derivation_index) + 1, 0) FROM wallets WHERE network = $1`,
		n.String()).Scan(&next)
	if err != nil {
		return 0, errors.Wrap(err, "next derivation index")
	}
	return uint32(next), nil
}

// UpdateLastAccessed stamps last_accessed_at for the wallet.
func (r *WalletRepository) UpdateLastAccessed(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET last_accessed_at = $1, version = version + 1 WHERE id = $2`,
		time.Now().UTC(), id)
	return errors.Wrap(err, "update last accessed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*wallet.Wallet, error) {
	var (
		w            wallet.Wallet
		network      string
		index        int64
		lastAccessed sql.NullTime
	)
	err := row.Scan(&w.ID, &w.UserID, &network, &w.Address, &index, &w.CreatedAt, &lastAccessed, &w.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan wallet")
	}
	n, err := wallet.ParseNetwork(network)
	if err != nil {
		return nil, err
	}
	w.Network = n
	w.DerivationIndex = uint32(index)
	if lastAccessed.Valid {
		t := lastAccessed.Time
		w.LastAccessedAt = &t
	}
	return &w, nil
}
