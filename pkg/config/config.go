// Package config contains the YAML configuration shared by both services.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hdcustody/walletd/pkg/crypto/hd"
	"github.com/hdcustody/walletd/pkg/crypto/mnemonic"
	"github.com/hdcustody/walletd/pkg/wallet"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top level structure of a walletd configuration file. One
// file can carry both service sections; each service reads only its own.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`

	Database     Database     `yaml:"database"`
	Kafka        Kafka        `yaml:"kafka"`
	Verification Verification `yaml:"verification"`
	Wallet       Wallet       `yaml:"wallet"`

	Prometheus BasicService `yaml:"prometheus"`
	Pprof      BasicService `yaml:"pprof"`
}

// Database holds connection pool settings. The two services point at
// independent databases, so each config file carries its own section.
type Database struct {
	URL      string `yaml:"database_url"`
	PoolSize int    `yaml:"db_pool_size"`
}

// Kafka holds broker, topic and consumer group settings.
type Kafka struct {
	BootstrapServers      []string `yaml:"kafka_bootstrap_servers"`
	ConsumerGroup         string   `yaml:"kafka_consumer_group"`
	TopicUserVerified     string   `yaml:"kafka_topic_user_verified"`
	TopicWalletCreated    string   `yaml:"kafka_topic_wallet_created"`
	BatchProcessingSize   int      `yaml:"batch_processing_size"`
	ConsumerPollTimeoutMS int      `yaml:"consumer_poll_timeout_ms"`
}

// PollTimeout returns the poll timeout as a duration.
func (k Kafka) PollTimeout() time.Duration {
	return time.Duration(k.ConsumerPollTimeoutMS) * time.Millisecond
}

// Verification configures the verification service.
type Verification struct {
	Address                    string `yaml:"address"`
	MaxConcurrentVerifications int    `yaml:"max_concurrent_verifications"`
	VerificationDelaySeconds   int    `yaml:"verification_delay_seconds"`
	MaxDocumentSizeMB          int    `yaml:"max_document_size_mb"`
}

// Delay returns the simulated processing delay.
func (v Verification) Delay() time.Duration {
	return time.Duration(v.VerificationDelaySeconds) * time.Second
}

// MaxDocumentBytes returns the document limit in bytes.
func (v Verification) MaxDocumentBytes() int64 {
	return int64(v.MaxDocumentSizeMB) * 1024 * 1024
}

// Wallet configures the wallet service.
type Wallet struct {
	Address                  string            `yaml:"address"`
	Mnemonic                 string            `yaml:"mnemonic"`
	MnemonicEncrypted        bool              `yaml:"mnemonic_encrypted"`
	EncryptionKey            string            `yaml:"encryption_key"`
	MaxConcurrentGenerations int               `yaml:"max_concurrent_generations"`
	CacheTTLSeconds          int               `yaml:"cache_ttl_seconds"`
	DerivationPaths          map[string]string `yaml:"derivation_paths"`
}

// CacheTTL returns the wallet cache TTL.
func (w Wallet) CacheTTL() time.Duration {
	return time.Duration(w.CacheTTLSeconds) * time.Second
}

// ResolveMnemonic returns the clear mnemonic, decrypting it when configured
// so, and checks it is a valid BIP-39 sentence. Any failure here is fatal
// for the wallet service.
func (w Wallet) ResolveMnemonic() (string, error) {
	if w.Mnemonic == "" {
		return "", errors.Wrap(mnemonic.ErrSecurity, "mnemonic not configured")
	}
	clear := w.Mnemonic
	if w.MnemonicEncrypted {
		var err error
		clear, err = mnemonic.Decrypt(w.Mnemonic, w.EncryptionKey)
		if err != nil {
			return "", err
		}
	}
	if !hd.ValidMnemonic(clear) {
		return "", errors.Wrap(mnemonic.ErrSecurity, "mnemonic is not a valid BIP-39 sentence")
	}
	return clear, nil
}

// Paths returns the configured derivation base paths keyed by network.
func (w Wallet) Paths() map[wallet.Network]string {
	out := make(map[wallet.Network]string, len(w.DerivationPaths))
	for k, v := range w.DerivationPaths {
		n, err := wallet.ParseNetwork(k)
		if err != nil {
			continue
		}
		out[n] = v
	}
	return out
}

// BasicService is a simple base for side services like Prometheus
// monitoring or pprof.
type BasicService struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
}

// Default returns a config with the documented option defaults pre-seeded.
func Default() Config {
	return Config{
		LogLevel: "info",
		Database: Database{
			PoolSize: 30,
		},
		Kafka: Kafka{
			BootstrapServers:      []string{"localhost:9092"},
			ConsumerGroup:         "wallet-service-group",
			TopicUserVerified:     "user.verified",
			TopicWalletCreated:    "wallet.created",
			BatchProcessingSize:   10,
			ConsumerPollTimeoutMS: 1000,
		},
		Verification: Verification{
			Address:                    ":8080",
			MaxConcurrentVerifications: 50,
			VerificationDelaySeconds:   2,
			MaxDocumentSizeMB:          5,
		},
		Wallet: Wallet{
			Address:                  ":8081",
			MaxConcurrentGenerations: 50,
			CacheTTLSeconds:          3600,
		},
	}
}

// Load reads and validates the config file at path, applying defaults for
// options the file leaves out.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "problem unmarshaling config data")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option ranges shared by both services.
func (c Config) Validate() error {
	if len(c.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka_bootstrap_servers must not be empty")
	}
	if c.Kafka.ConsumerGroup == "" {
		return errors.New("kafka_consumer_group must not be empty")
	}
	if c.Kafka.BatchProcessingSize <= 0 {
		return errors.New("batch_processing_size must be positive")
	}
	if c.Kafka.ConsumerPollTimeoutMS <= 0 {
		return errors.New("consumer_poll_timeout_ms must be positive")
	}
	if c.Database.PoolSize <= 0 {
		return errors.New("db_pool_size must be positive")
	}
	if c.Verification.MaxConcurrentVerifications <= 0 {
		return errors.New("max_concurrent_verifications must be positive")
	}
	if c.Verification.MaxDocumentSizeMB <= 0 {
		return errors.New("max_document_size_mb must be positive")
	}
	if c.Verification.VerificationDelaySeconds < 0 {
		return errors.New("verification_delay_seconds must not be negative")
	}
	if c.Wallet.MaxConcurrentGenerations <= 0 {
		return errors.New("max_concurrent_generations must be positive")
	}
	if c.Wallet.CacheTTLSeconds <= 0 {
		return errors.New("cache_ttl_seconds must be positive")
	}
	for k, v := range c.Wallet.DerivationPaths {
		if _, err := wallet.ParseNetwork(k); err != nil {
			return fmt.Errorf("derivation_paths: %w", err)
		}
		if _, err := hd.ParsePath(v); err != nil {
			return fmt.Errorf("derivation_paths[%s]: %w", k, err)
		}
	}
	return nil
}
