// Package server implements the walletd service subcommands.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hdcustody/walletd/pkg/broker"
	"github.com/hdcustody/walletd/pkg/cache"
	"github.com/hdcustody/walletd/pkg/config"
	"github.com/hdcustody/walletd/pkg/services/metrics"
	"github.com/hdcustody/walletd/pkg/services/verifier"
	"github.com/hdcustody/walletd/pkg/services/walletsrv"
	"github.com/hdcustody/walletd/pkg/storage"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// NewCommands returns the walletd service commands.
func NewCommands() []cli.Command {
	flags := []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to the YAML configuration file",
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "enable debug logging",
		},
	}
	return []cli.Command{
		{
			Name:   "verification",
			Usage:  "start the verification service",
			Action: startVerification,
			Flags:  flags,
		},
		{
			Name:   "wallet",
			Usage:  "start the wallet service",
			Action: startWallet,
			Flags:  flags,
		},
	}
}

func startVerification(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, logCloser, err := handleLoggingParams(ctx.Bool("debug"), cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = logCloser() }()

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()
	if err := storage.Bootstrap(context.Background(), db); err != nil {
		return cli.NewExitError(fmt.Errorf("database bootstrap: %w", err), 1)
	}

	producer := broker.NewProducer(cfg.Kafka, log)
	svc := verifier.NewService(verifier.Options{
		Config:     cfg.Verification,
		Topic:      cfg.Kafka.TopicUserVerified,
		Repository: storage.NewVerificationRepository(db),
		Publisher:  producer,
		Log:        log,
	})
	srv := verifier.NewServer(verifier.ServerOptions{
		Address: cfg.Verification.Address,
		Service: svc,
		Log:     log,
	})

	prometheus := metrics.NewPrometheusService(cfg.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.Pprof, log)

	srv.Start()
	prometheus.Start()
	pprof.Start()
	log.Info("verification service started", zap.String("version", config.Version))

	waitForSignal(log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	svc.Shutdown()
	if err := producer.Close(); err != nil {
		log.Error("producer close failed", zap.Error(err))
	}
	prometheus.ShutDown()
	pprof.ShutDown()
	log.Info("verification service stopped")
	return nil
}

func startWallet(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, logCloser, err := handleLoggingParams(ctx.Bool("debug"), cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = logCloser() }()

	// An unusable mnemonic is fatal, the service must not start without its
	// key material.
	seedPhrase, err := cfg.Wallet.ResolveMnemonic()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()
	if err := storage.Bootstrap(context.Background(), db); err != nil {
		return cli.NewExitError(fmt.Errorf("database bootstrap: %w", err), 1)
	}

	sharedCache := cache.New(cfg.Wallet.CacheTTL(), "wallet-service:")
	producer := broker.NewProducer(cfg.Kafka, log)
	svc, err := walletsrv.NewService(walletsrv.Options{
		Config:     cfg.Wallet,
		Topic:      cfg.Kafka.TopicWalletCreated,
		Mnemonic:   seedPhrase,
		Repository: storage.NewWalletRepository(db),
		Publisher:  producer,
		Cache:      sharedCache,
		Log:        log,
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	handler, err := walletsrv.NewEventHandler(svc, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	consumer := broker.NewConsumer(cfg.Kafka, handler.HandleUserVerified, log)
	srv := walletsrv.NewServer(walletsrv.ServerOptions{
		Address: cfg.Wallet.Address,
		Service: svc,
		Cache:   sharedCache,
		PingDB: func(ctx context.Context) error {
			return storage.Ping(ctx, db)
		},
		ConsumerRunning: consumer.Running,
		Log:             log,
	})

	prometheus := metrics.NewPrometheusService(cfg.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.Pprof, log)

	consumer.Start()
	srv.Start()
	prometheus.Start()
	pprof.Start()
	log.Info("wallet service started", zap.String("version", config.Version))

	waitForSignal(log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	consumer.Shutdown()
	svc.Shutdown()
	if err := producer.Close(); err != nil {
		log.Error("producer close failed", zap.Error(err))
	}
	prometheus.ShutDown()
	pprof.ShutDown()
	log.Info("wallet service stopped")
	return nil
}

func waitForSignal(log *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", zap.Stringer("signal", sig))
}
