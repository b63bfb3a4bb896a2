package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"treasury/internal/amqp"
	"treasury/internal/budget"
	"treasury/internal/cli"
	apphttp "treasury/internal/http"
	"treasury/internal/identity"
	"treasury/internal/log"
	"treasury/internal/metrics"
	"treasury/internal/middleware/ratelimit"
	"treasury/internal/receipts"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	logger.Info("Starting treasury console",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"collection", cfg.Collection())

	ctx := context.Background()
	backendResult, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open document store", "error", err)
		os.Exit(1)
	}
	store := backendResult.Store

	m := metrics.New()
	ids := identity.NewProvider(cfg.DefaultUserName, cfg.DefaultUserRole)
	repo := budget.NewRepository(store, budget.Options{
		Collection: cfg.Collection(),
		Identity:   ids,
		Metrics:    m,
		Logger:     logger.WithComponent(log.ComponentBudget).Slog(),
	})
	form := budget.NewForm(repo, m)

	// Change events are only published when a broker is configured.
	forwardCtx, stopForwarder := context.WithCancel(context.Background())
	forwarderDone := make(chan struct{})
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		fwd := amqp.NewForwarder(amqpClient, m, 0)
		unsubscribe := fwd.Attach(store, cfg.Collection())
		go func() {
			defer close(forwarderDone)
			defer unsubscribe()
			fwd.Run(forwardCtx)
		}()
		logger.Info("Publishing budget changes", "exchange", cfg.AMQPExchange)
	} else {
		close(forwarderDone)
		logger.Info("AMQP disabled - no AMQP_URL provided, ledger mirror will rely on resync")
	}

	receiptStore, err := receipts.New(ctx, cfg)
	if err != nil {
		logger.Warn("Receipt uploads disabled", "error", err, "driver", cfg.ReceiptsDriver)
		receiptStore = nil
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Repo:      repo,
		Form:      form,
		Store:     store,
		Receipts:  receiptStore,
		Identity:  ids,
		Metrics:   m,
		Logger:    logger,
		APIKey:    cfg.StoreAPIKey,
		RateLimit: ratelimit.DefaultConfig(),
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		repo.Close()
		stopForwarder()
		<-forwarderDone
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Failed to close document store", "error", err)
		}
	})

	// Start the bulk load before the first request arrives.
	repo.Snapshot()

	logger.Info("Listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
