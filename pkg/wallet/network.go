package wallet

import (
	"fmt"
	"strings"
)

// Network is a supported blockchain network.
type Network string

// Supported networks.
const (
	Ethereum Network = "ethereum"
	Tron     Network = "tron"
	Bitcoin  Network = "bitcoin"
)

// Networks lists all supported networks.
var Networks = []Network{Ethereum, Tron, Bitcoin}

// ParseNetwork folds case and returns the matching network or
// ErrUnsupportedNetwork.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(s)); n {
	case Ethereum, Tron, Bitcoin:
		return n, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedNetwork, s)
	}
}

// String implements fmt.Stringer.
func (n Network) String() string {
	return string(n)
}
