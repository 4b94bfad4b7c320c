package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wallet is a provisioned wallet address for a (user, network) pair. The
// private key behind the address is never stored, it is re-derivable from
// the service mnemonic and DerivationIndex.
type Wallet struct {
	ID              uuid.UUID
	UserID          string
	Network         Network
	Address         string
	DerivationIndex uint32
	CreatedAt       time.Time
	LastAccessedAt  *time.Time
	Version         int
}

// New validates the address format for the network and returns a Wallet with
// a fresh ID and creation time.
func New(userID string, n Network, address string, index uint32) (*Wallet, error) {
	if err := ValidateAddress(n, address); err != nil {
		return nil, err
	}
	return &Wallet{
		ID:              uuid.New(),
		UserID:          userID,
		Network:         n,
		Address:         address,
		DerivationIndex: index,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Checksum is an integrity digest over the identifying fields, used by
// downstream reconciliation.
func (w *Wallet) Checksum() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", w.UserID, w.Network, w.Address)))
	return hex.EncodeToString(sum[:])
}
