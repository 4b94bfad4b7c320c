package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hdcustody/walletd/pkg/crypto/mnemonic"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walletd.yml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  database_url: postgres://localhost/wallet
`))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.BootstrapServers)
	require.Equal(t, "wallet-service-group", cfg.Kafka.ConsumerGroup)
	require.Equal(t, "user.verified", cfg.Kafka.TopicUserVerified)
	require.Equal(t, "wallet.created", cfg.Kafka.TopicWalletCreated)
	require.Equal(t, 30, cfg.Database.PoolSize)
	require.Equal(t, time.Second, cfg.Kafka.PollTimeout())
	require.Equal(t, 2*time.Second, cfg.Verification.Delay())
	require.Equal(t, int64(5*1024*1024), cfg.Verification.MaxDocumentBytes())
	require.Equal(t, time.Hour, cfg.Wallet.CacheTTL())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
log_level: debug
kafka:
  kafka_bootstrap_servers: ["k1:9092", "k2:9092"]
  batch_processing_size: 25
verification:
  max_document_size_mb: 1
wallet:
  derivation_paths:
    ethereum: "m/44'/60'/1'/0"
`))
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.BootstrapServers)
	require.Equal(t, 25, cfg.Kafka.BatchProcessingSize)
	require.Equal(t, int64(1024*1024), cfg.Verification.MaxDocumentBytes())
	require.Equal(t, map[wallet.Network]string{wallet.Ethereum: "m/44'/60'/1'/0"}, cfg.Wallet.Paths())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"no brokers":     func(c *Config) { c.Kafka.BootstrapServers = nil },
		"no group":       func(c *Config) { c.Kafka.ConsumerGroup = "" },
		"batch size":     func(c *Config) { c.Kafka.BatchProcessingSize = 0 },
		"poll timeout":   func(c *Config) { c.Kafka.ConsumerPollTimeoutMS = 0 },
		"pool size":      func(c *Config) { c.Database.PoolSize = -1 },
		"verify cap":     func(c *Config) { c.Verification.MaxConcurrentVerifications = 0 },
		"doc size":       func(c *Config) { c.Verification.MaxDocumentSizeMB = 0 },
		"negative delay": func(c *Config) { c.Verification.VerificationDelaySeconds = -1 },
		"gen cap":        func(c *Config) { c.Wallet.MaxConcurrentGenerations = 0 },
		"cache ttl":      func(c *Config) { c.Wallet.CacheTTLSeconds = 0 },
		"bad path network": func(c *Config) {
			c.Wallet.DerivationPaths = map[string]string{"solana": "m/44'/0'/0'/0"}
		},
		"bad path": func(c *Config) {
			c.Wallet.DerivationPaths = map[string]string{"tron": "44'/x"}
		},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, Default().Validate())
}

func TestResolveMnemonic(t *testing.T) {
	w := Wallet{Mnemonic: testMnemonic}
	got, err := w.ResolveMnemonic()
	require.NoError(t, err)
	require.Equal(t, testMnemonic, got)
}

func TestResolveMnemonicEncrypted(t *testing.T) {
	env, err := mnemonic.Encrypt(testMnemonic, "key")
	require.NoError(t, err)

	w := Wallet{Mnemonic: env, MnemonicEncrypted: true, EncryptionKey: "key"}
	got, err := w.ResolveMnemonic()
	require.NoError(t, err)
	require.Equal(t, testMnemonic, got)

	w.EncryptionKey = "wrong"
	_, err = w.ResolveMnemonic()
	require.ErrorIs(t, err, mnemonic.ErrSecurity)
}

func TestResolveMnemonicFatal(t *testing.T) {
	_, err := Wallet{}.ResolveMnemonic()
	require.ErrorIs(t, err, mnemonic.ErrSecurity)

	_, err = Wallet{Mnemonic: "twelve bogus words that are not in the bip39 english list at all"}.ResolveMnemonic()
	require.ErrorIs(t, err, mnemonic.ErrSecurity)
}
