package storage

import (
	"testing"

	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWalletInsertError(t *testing.T) {
	require.NoError(t, walletInsertError(nil, "u", wallet.Ethereum))

	dup := &pq.Error{Code: "23505", Constraint: walletUserNetworkConstraint}
	err := walletInsertError(dup, "u", wallet.Ethereum)
	require.ErrorIs(t, err, wallet.ErrAlreadyExists)

	// Only the (user_id, network) constraint means "already exists";
	// address and index collisions are conflicts the caller retries.
	for _, constraint := range []string{walletAddressConstraint, walletNetworkIndexConstraint, ""} {
		err := walletInsertError(&pq.Error{Code: "23505", Constraint: constraint}, "u", wallet.Tron)
		require.Error(t, err, constraint)
		require.False(t, errors.Is(err, wallet.ErrAlreadyExists), constraint)
	}

	err = walletInsertError(errors.New("connection refused"), "u", wallet.Bitcoin)
	require.Error(t, err)
	require.False(t, errors.Is(err, wallet.ErrAlreadyExists))
}

func TestUniqueConstraint(t *testing.T) {
	name, ok := uniqueConstraint(&pq.Error{Code: "23505", Constraint: walletAddressConstraint})
	require.True(t, ok)
	require.Equal(t, walletAddressConstraint, name)

	// The constraint survives wrapping at layer boundaries.
	wrapped := errors.Wrap(&pq.Error{Code: "23505", Constraint: walletNetworkIndexConstraint}, "insert wallet")
	name, ok = uniqueConstraint(wrapped)
	require.True(t, ok)
	require.Equal(t, walletNetworkIndexConstraint, name)

	_, ok = uniqueConstraint(&pq.Error{Code: "23503"})
	require.False(t, ok)
	_, ok = uniqueConstraint(errors.New("not a pq error"))
	require.False(t, ok)
}
