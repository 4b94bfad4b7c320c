// Package storage provides the PostgreSQL persistence layer: connection
// pool setup, schema bootstrap and the wallet/verification repositories.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/hdcustody/walletd/pkg/config"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// commandTimeout bounds every repository statement.
const commandTimeout = 60 * time.Second

// Open sets up a pooled connection to the configured database.
func Open(cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS verifications (
		id UUID PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		network VARCHAR(16) NOT NULL,
		document_hash CHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		verified_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		version INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_verifications_user_id ON verifications (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_verifications_network ON verifications (network)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		id UUID PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		network VARCHAR(16) NOT NULL,
		wallet_address VARCHAR(64) NOT NULL,
		derivation_index BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		last_accessed_at TIMESTAMPTZ,
		version INTEGER NOT NULL DEFAULT 0,
		CONSTRAINT wallets_user_network_key UNIQUE (user_id, network),
		CONSTRAINT wallets_address_key UNIQUE (wallet_address),
		CONSTRAINT wallets_network_index_key UNIQUE (network, derivation_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wallets_user_id ON wallets (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wallets_network ON wallets (network)`,
}

// Bootstrap creates tables and indexes if they don't exist and verifies
// connectivity.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "database unreachable")
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "bootstrap schema")
		}
	}
	return nil
}

// Ping checks database liveness, used by health endpoints.
func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Named unique constraints of the wallets table. Only a collision on the
// (user_id, network) pair means "this user already has a wallet"; address
// and derivation-index collisions are distinct failures that must not be
// acknowledged as an existing wallet.
const (
	walletUserNetworkConstraint  = "wallets_user_network_key"
	walletAddressConstraint      = "wallets_address_key"
	walletNetworkIndexConstraint = "wallets_network_index_key"
)

// uniqueConstraint returns the name of the violated unique constraint when
// err is a Postgres unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}
