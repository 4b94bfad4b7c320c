package generator

import "github.com/hdcustody/walletd/pkg/wallet"

// bitcoinGenerator derives legacy P2PKH addresses: hash160 over the
// compressed public key, 0x00 version byte, Base58Check.
type bitcoinGenerator struct {
	base
}

func (g *bitcoinGenerator) Generate(mnemonic, userID string, index uint32) (string, error) {
	pub, err := g.derivePublicKey(mnemonic, userID, index)
	if err != nil {
		return "", err
	}
	return g.finish(wallet.BitcoinAddress(pub.SerializeCompressed()))
}
