package generator

import "github.com/hdcustody/walletd/pkg/wallet"

// tronGenerator derives mainnet Base58Check addresses. Tron shares the
// Ethereum key image: keccak over the uncompressed public key, 0x41 version
// byte, Base58Check.
type tronGenerator struct {
	base
}

func (g *tronGenerator) Generate(mnemonic, userID string, index uint32) (string, error) {
	pub, err := g.derivePublicKey(mnemonic, userID, index)
	if err != nil {
		return "", err
	}
	return g.finish(wallet.TronAddress(pub.SerializeUncompressed()))
}
