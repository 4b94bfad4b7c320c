package generator

import "github.com/hdcustody/walletd/pkg/wallet"

// ethereumGenerator derives EIP-55 checksummed addresses from the keccak
// hash of the uncompressed public key.
type ethereumGenerator struct {
	base
}

func (g *ethereumGenerator) Generate(mnemonic, userID string, index uint32) (string, error) {
	pub, err := g.derivePublicKey(mnemonic, userID, index)
	if err != nil {
		return "", err
	}
	return g.finish(wallet.EthereumAddress(pub.SerializeUncompressed()))
}
