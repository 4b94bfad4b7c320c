package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	w, err := New("user-1", Ethereum, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", 3)
	require.NoError(t, err)
	require.NotEqual(t, w.ID.String(), "00000000-0000-0000-0000-000000000000")
	require.Equal(t, "user-1", w.UserID)
	require.Equal(t, uint32(3), w.DerivationIndex)
	require.False(t, w.CreatedAt.IsZero())
	require.Nil(t, w.LastAccessedAt)
}

func TestNewRejectsInvalidAddress(t *testing.T) {
	_, err := New("user-1", Ethereum, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", 0)
	require.ErrorIs(t, err, ErrInvalidAddress, "wrong EIP-55 casing")

	_, err = New("user-1", Tron, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", 0)
	require.ErrorIs(t, err, ErrInvalidAddress, "network mismatch")
}

func TestChecksum(t *testing.T) {
	w, err := New("user-1", Ethereum, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", 0)
	require.NoError(t, err)

	sum := w.Checksum()
	require.Len(t, sum, 64)
	require.Equal(t, sum, w.Checksum(), "digest is stable")

	other, err := New("user-2", Ethereum, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", 1)
	require.NoError(t, err)
	require.NotEqual(t, sum, other.Checksum())
}
