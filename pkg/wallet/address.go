package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// tronAddressPrefix is the version byte of mainnet Tron addresses ("T" in
// Base58Check).
const tronAddressPrefix = 0x41

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ValidateAddress checks addr against the format rules of the given network.
func ValidateAddress(n Network, addr string) error {
	var ok bool
	switch n {
	case Ethereum:
		ok = validEthereumAddress(addr)
	case Tron:
		ok = validTronAddress(addr)
	case Bitcoin:
		ok = validBitcoinAddress(addr)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedNetwork, n)
	}
	if !ok {
		return fmt.Errorf("%w: %q is not a valid %s address", ErrInvalidAddress, addr, n)
	}
	return nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of a 20-byte address.
func ChecksumAddress(addr []byte) string {
	unchecked := hex.EncodeToString(addr)
	hash := keccak256([]byte(unchecked))

	buf := []byte(unchecked)
	for i, c := range buf {
		if c >= 'a' && c <= 'f' {
			// Nibble i of the hash decides the case of hex digit i.
			nibble := hash[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x0f >= 8 {
				buf[i] = c - ('a' - 'A')
			}
		}
	}
	return "0x" + string(buf)
}

func validEthereumAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	raw, err := hex.DecodeString(addr[2:])
	if err != nil {
		return false
	}
	return ChecksumAddress(raw) == addr
}

func validTronAddress(addr string) bool {
	if len(addr) != 34 || addr[0] != 'T' {
		return false
	}
	payload, err := Base58CheckDecode(addr)
	if err != nil {
		return false
	}
	return len(payload) == 21 && payload[0] == tronAddressPrefix
}

func validBitcoinAddress(addr string) bool {
	if len(addr) < 26 || len(addr) > 35 {
		return false
	}
	for _, c := range addr {
		if !strings.ContainsRune(base58Alphabet, c) {
			return false
		}
	}
	return true
}

// EthereumAddress encodes an uncompressed secp256k1 public key (65 bytes,
// 0x04 prefix) as an EIP-55 checksummed address.
func EthereumAddress(uncompressedPub []byte) (string, error) {
	if len(uncompressedPub) != 65 || uncompressedPub[0] != 0x04 {
		return "", fmt.Errorf("%w: bad uncompressed public key", ErrInvalidAddress)
	}
	hash := keccak256(uncompressedPub[1:])
	return ChecksumAddress(hash[12:]), nil
}

// TronAddress encodes an uncompressed secp256k1 public key as a mainnet
// Base58Check Tron address.
func TronAddress(uncompressedPub []byte) (string, error) {
	if len(uncompressedPub) != 65 || uncompressedPub[0] != 0x04 {
		return "", fmt.Errorf("%w: bad uncompressed public key", ErrInvalidAddress)
	}
	hash := keccak256(uncompressedPub[1:])
	payload := append([]byte{tronAddressPrefix}, hash[12:]...)
	return Base58CheckEncode(payload), nil
}

// BitcoinAddress encodes a compressed secp256k1 public key (33 bytes) as a
// P2PKH Base58Check address.
func BitcoinAddress(compressedPub []byte) (string, error) {
	if len(compressedPub) != 33 {
		return "", fmt.Errorf("%w: bad compressed public key", ErrInvalidAddress)
	}
	sha := sha256.Sum256(compressedPub)
	rmd := ripemd160.New()
	rmd.Write(sha[:])
	payload := append([]byte{0x00}, rmd.Sum(nil)...)
	return Base58CheckEncode(payload), nil
}

// Base58CheckEncode appends a 4-byte double-SHA256 checksum to b and encodes
// the result in Base58.
func Base58CheckEncode(b []byte) string {
	buf := make([]byte, 0, len(b)+4)
	buf = append(buf, b...)
	sum := checksum(b)
	buf = append(buf, sum[:]...)
	return base58.Encode(buf)
}

// Base58CheckDecode decodes s and verifies its trailing checksum, returning
// the payload without it.
func Base58CheckDecode(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) < 5 {
		return nil, fmt.Errorf("invalid base58check length %d", len(b))
	}
	payload, sum := b[:len(b)-4], b[len(b)-4:]
	if want := checksum(payload); !bytes.Equal(sum, want[:]) {
		return nil, fmt.Errorf("base58check checksum mismatch")
	}
	return payload, nil
}

func checksum(b []byte) [4]byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	var sum [4]byte
	copy(sum[:], second[:4])
	return sum
}

func keccak256(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}
