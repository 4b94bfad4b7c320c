// Package generator derives per-network wallet addresses from the service
// mnemonic. Generators are pure functions of (mnemonic, user id, index): the
// BIP-39 passphrase "wallet-service:"+user_id binds the key tree to the
// user, the derivation index selects the leaf.
package generator

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/hdcustody/walletd/pkg/crypto/hd"
	"github.com/hdcustody/walletd/pkg/wallet"
)

// Default derivation base paths per network (BIP-44 coin types).
const (
	DefaultEthereumPath = "m/44'/60'/0'/0"
	DefaultBitcoinPath  = "m/44'/0'/0'/0"
	DefaultTronPath     = "m/44'/195'/0'/0"
)

// ErrGenerationFailed is returned when key derivation or address encoding
// produces an address that fails validation.
var ErrGenerationFailed = errors.New("wallet generation failed")

// Generator derives an address for one network.
type Generator interface {
	Network() wallet.Network
	// Generate is deterministic: equal inputs produce equal addresses.
	Generate(mnemonic, userID string, index uint32) (string, error)
}

// Passphrase returns the user-binding BIP-39 passphrase.
func Passphrase(userID string) string {
	return "wallet-service:" + userID
}

// New returns the generator for a network with the given base path ("" for
// the network default).
func New(n wallet.Network, basePath string) (Generator, error) {
	var def string
	switch n {
	case wallet.Ethereum:
		def = DefaultEthereumPath
	case wallet.Tron:
		def = DefaultTronPath
	case wallet.Bitcoin:
		def = DefaultBitcoinPath
	default:
		return nil, fmt.Errorf("%w: %s", wallet.ErrUnsupportedNetwork, n)
	}
	if basePath == "" {
		basePath = def
	}
	path, err := hd.ParsePath(basePath)
	if err != nil {
		return nil, fmt.Errorf("%s derivation path: %w", n, err)
	}
	b := base{network: n, path: path}
	switch n {
	case wallet.Ethereum:
		return &ethereumGenerator{b}, nil
	case wallet.Tron:
		return &tronGenerator{b}, nil
	default:
		return &bitcoinGenerator{b}, nil
	}
}

// NewAll builds generators for every supported network. paths may override
// base paths per network, missing entries use defaults.
func NewAll(paths map[wallet.Network]string) (map[wallet.Network]Generator, error) {
	out := make(map[wallet.Network]Generator, len(wallet.Networks))
	for _, n := range wallet.Networks {
		g, err := New(n, paths[n])
		if err != nil {
			return nil, err
		}
		out[n] = g
	}
	return out, nil
}

type base struct {
	network wallet.Network
	path    hd.Path
}

func (b base) Network() wallet.Network {
	return b.network
}

// derivePublicKey runs the full mnemonic -> seed -> child key chain and
// returns only the public key; all secret material is scrubbed before
// returning.
func (b base) derivePublicKey(mnemonic, userID string, index uint32) (*btcec.PublicKey, error) {
	seed, err := hd.Seed(mnemonic, Passphrase(userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, err)
	}
	defer hd.Zero(seed)

	keyBytes, err := hd.DerivePrivateKey(seed, b.path.Child(index))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, err)
	}
	priv, pub := btcec.PrivKeyFromBytes(keyBytes)
	hd.Zero(keyBytes)
	priv.Zero()
	return pub, nil
}

// finish validates the encoded address before handing it out.
func (b base) finish(address string, err error) (string, error) {
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrGenerationFailed, err)
	}
	if err := wallet.ValidateAddress(b.network, address); err != nil {
		return "", fmt.Errorf("%w: generated %q: %s", ErrGenerationFailed, address, err)
	}
	return address, nil
}
