package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	doc := []byte("hello")
	v, err := New("u1", wallet.Ethereum, doc)
	require.NoError(t, err)
	require.Equal(t, StatusPending, v.Status)
	require.Nil(t, v.VerifiedAt)
	sum := sha256.Sum256(doc)
	require.Equal(t, hex.EncodeToString(sum[:]), v.DocumentHash)
	require.NotEqual(t, "", v.ID.String())
}

func TestNewUserIDBounds(t *testing.T) {
	_, err := New("", wallet.Tron, nil)
	require.ErrorIs(t, err, ErrEmptyUserID)

	_, err = New(strings.Repeat("a", 256), wallet.Tron, nil)
	require.ErrorIs(t, err, ErrEmptyUserID)

	_, err = New(strings.Repeat("a", 255), wallet.Tron, nil)
	require.NoError(t, err)
}

func TestVerify(t *testing.T) {
	v, err := New("u1", wallet.Bitcoin, []byte("doc"))
	require.NoError(t, err)

	v.Verify()
	require.Equal(t, StatusVerified, v.Status)
	require.NotNil(t, v.VerifiedAt)
	require.False(t, v.VerifiedAt.Before(v.CreatedAt))
}
