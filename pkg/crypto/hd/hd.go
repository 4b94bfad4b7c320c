// Package hd implements the BIP-39/BIP-32 key derivation used by the wallet
// generators: mnemonic plus passphrase to seed, then a chain of child keys
// along a derivation path.
package hd

import (
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/tyler-smith/go-bip39"
)

// HardenedOffset marks hardened child indices in a derivation path.
const HardenedOffset = uint32(0x80000000)

// Path is a parsed BIP-32 derivation path.
type Path []uint32

// ParsePath parses a path in the conventional "m/44'/60'/0'/0" notation.
// Apostrophe (or "h"/"H") suffixes mark hardened components.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, "/")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) != "m" {
		return nil, fmt.Errorf("derivation path %q must start with m/", s)
	}
	path := make(Path, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") || strings.HasSuffix(part, "H") {
			hardened = true
			part = part[:len(part)-1]
		}
		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path component %q: %w", part, err)
		}
		if idx >= uint64(HardenedOffset) {
			return nil, fmt.Errorf("path component %d out of range", idx)
		}
		if hardened {
			idx += uint64(HardenedOffset)
		}
		path = append(path, uint32(idx))
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("empty derivation path %q", s)
	}
	return path, nil
}

// Child returns a copy of the path extended with a non-hardened index.
func (p Path) Child(index uint32) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, index)
}

// String renders the path back in "m/..." notation.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range p {
		b.WriteString("/")
		if idx >= HardenedOffset {
			b.WriteString(strconv.FormatUint(uint64(idx-HardenedOffset), 10))
			b.WriteString("'")
		} else {
			b.WriteString(strconv.FormatUint(uint64(idx), 10))
		}
	}
	return b.String()
}

// Seed derives the BIP-39 seed for a mnemonic and passphrase, checking the
// mnemonic against the english word list.
func Seed(mnemonic, passphrase string) ([]byte, error) {
	return bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
}

// ValidMnemonic reports whether m is a well-formed BIP-39 sentence.
func ValidMnemonic(m string) bool {
	return bip39.IsMnemonicValid(m)
}

// DerivePrivateKey walks the path from the master key of seed and returns
// the resulting secp256k1 private key. Callers own the returned slice and
// should scrub it with Zero when done.
func DerivePrivateKey(seed []byte, path Path) ([]byte, error) {
	key, chainCode, err := masterKey(seed)
	if err != nil {
		return nil, err
	}
	defer Zero(chainCode)
	for _, index := range path {
		next, nextChainCode, err := childKey(key, chainCode, index)
		Zero(key)
		Zero(chainCode)
		if err != nil {
			return nil, err
		}
		key, chainCode = next, nextChainCode
	}
	return key, nil
}

// Zero overwrites b with zero bytes.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func masterKey(seed []byte) ([]byte, []byte, error) {
	mac := hmac.New(sha512.New, []byte("Bitcoin seed"))
	if _, err := mac.Write(seed); err != nil {
		return nil, nil, err
	}
	sum := mac.Sum(nil)
	key := make([]byte, 32)
	chainCode := make([]byte, 32)
	copy(key, sum[:32])
	copy(chainCode, sum[32:])
	if err := validateScalar(key); err != nil {
		return nil, nil, fmt.Errorf("invalid bip32 master key: %w", err)
	}
	return key, chainCode, nil
}

func childKey(parentKey, parentChainCode []byte, index uint32) ([]byte, []byte, error) {
	if len(parentKey) != 32 || len(parentChainCode) != 32 {
		return nil, nil, fmt.Errorf("invalid bip32 parent key material")
	}

	data := make([]byte, 37)
	if index >= HardenedOffset {
		data[0] = 0x00
		copy(data[1:33], parentKey)
	} else {
		priv, _ := btcec.PrivKeyFromBytes(parentKey)
		copy(data[:33], priv.PubKey().SerializeCompressed())
	}
	data[33] = byte(index >> 24)
	data[34] = byte(index >> 16)
	data[35] = byte(index >> 8)
	data[36] = byte(index)

	mac := hmac.New(sha512.New, parentChainCode)
	if _, err := mac.Write(data); err != nil {
		return nil, nil, err
	}
	sum := mac.Sum(nil)
	il, ir := sum[:32], sum[32:]

	curveN := btcec.S256().Params().N
	ilInt := new(big.Int).SetBytes(il)
	if ilInt.Sign() == 0 || ilInt.Cmp(curveN) >= 0 {
		return nil, nil, fmt.Errorf("invalid bip32 child scalar")
	}
	childInt := new(big.Int).Add(ilInt, new(big.Int).SetBytes(parentKey))
	childInt.Mod(childInt, curveN)
	if childInt.Sign() == 0 {
		return nil, nil, fmt.Errorf("invalid bip32 child key: zero")
	}

	child := make([]byte, 32)
	childInt.FillBytes(child)
	chainCode := make([]byte, 32)
	copy(chainCode, ir)
	return child, chainCode, nil
}

func validateScalar(key []byte) error {
	k := new(big.Int).SetBytes(key)
	if k.Sign() == 0 || k.Cmp(btcec.S256().Params().N) >= 0 {
		return fmt.Errorf("scalar out of range")
	}
	return nil
}
