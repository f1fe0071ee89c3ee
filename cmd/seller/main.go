package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zono819/token-seller/internal/adapter/gateway"
	"github.com/zono819/token-seller/internal/infrastructure/binance"
	"github.com/zono819/token-seller/internal/infrastructure/config"
	"github.com/zono819/token-seller/internal/infrastructure/eventhub"
	"github.com/zono819/token-seller/internal/infrastructure/logger"
	"github.com/zono819/token-seller/internal/server"
	"github.com/zono819/token-seller/internal/usecase/supervisor"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("token-seller %s (built: %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.ParseLevel(cfg.Log.Level), os.Stdout).
		WithFormat(logger.Format(cfg.Log.Format))
	logger.SetDefault(log)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("Received signal: %v, initiating graceful shutdown...", sig)
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Seller error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting %s in %s mode", cfg.App.Name, cfg.App.Environment)

	keystore, err := config.LoadKeystore(cfg.Seller.KeysFile)
	if err != nil {
		return fmt.Errorf("failed to load keystore: %w", err)
	}
	if keystore.Proxy() != nil {
		log.Info("Using authenticated proxy for exchange sessions")
	}

	registry := gateway.Registry{
		binance.ExchangeKey: binance.Factory,
	}

	hub := eventhub.New()
	sup := supervisor.New(supervisor.Options{
		Registry:        registry,
		Keystore:        keystore,
		Sink:            hub,
		Logger:          log,
		PollInterval:    cfg.Seller.PollInterval,
		BackoffInterval: cfg.Seller.BackoffInterval,
		CallTimeout:     cfg.Seller.CallTimeout,
	})

	log.Info("Loading markets for %d exchange(s)", len(keystore.Exchanges()))
	sup.LoadMarkets(ctx)

	// Start tasks declared in the config file
	for _, t := range cfg.Tasks {
		price, err := t.TargetPrice()
		if err != nil {
			return err
		}
		id, err := sup.Create(t.Exchange, t.Symbol, price)
		if err != nil {
			log.Error("Failed to create task %s %s: %v", t.Exchange, t.Symbol, err)
			continue
		}
		log.Info("Task %s started: %s %s", id, t.Exchange, t.Symbol)
	}

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.New(sup, hub, log).Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error: %v", err)
	}
	sup.Shutdown(shutdownCtx)

	log.Info("Seller stopped")
	return nil
}
