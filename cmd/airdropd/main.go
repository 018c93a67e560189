package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dan-merlea/sc-krogan-public/config"
	nhbstate "github.com/dan-merlea/sc-krogan-public/core/state"
	"github.com/dan-merlea/sc-krogan-public/integrations/history"
	"github.com/dan-merlea/sc-krogan-public/integrations/webhooks"
	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
	"github.com/dan-merlea/sc-krogan-public/native/common"
	"github.com/dan-merlea/sc-krogan-public/observability/logging"
	"github.com/dan-merlea/sc-krogan-public/observability/metrics"
	telemetry "github.com/dan-merlea/sc-krogan-public/observability/otel"
	"github.com/dan-merlea/sc-krogan-public/rpc"
	"github.com/dan-merlea/sc-krogan-public/storage"
)

const serviceName = "airdropd"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "airdropd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to airdropd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		Pretty:     cfg.Logging.Pretty,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()

	owner, err := cfg.Owner()
	if err != nil {
		return err
	}
	signer, err := cfg.Signer()
	if err != nil {
		return err
	}

	hub := rpc.NewEventHub()
	engine := nativeairdrop.NewEngine()
	engine.SetState(nativeairdrop.StateStore(nhbstate.NewManager(db)))
	engine.SetEmitter(hub)
	engine.SetMetrics(metrics.Airdrop())
	engine.SetPauses(common.NewPauses(cfg.Pauses.Modules()))
	engine.SetLogger(logger.With(slog.String("module", nativeairdrop.ModuleName)))
	engine.SetMaxBatch(cfg.MaxClaimBatch)
	if err := engine.Init(owner, signer); err != nil {
		return fmt.Errorf("init airdrop module: %w", err)
	}

	var (
		sinks        nativeairdrop.SettlementSinks
		historyStore *history.Store
	)
	if cfg.History.Driver != config.HistoryDriverNone {
		historyStore, err = history.Open(cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return err
		}
		defer historyStore.Close()
		sinks = append(sinks, historyStore)
	}
	if cfg.Webhook.Enabled() {
		dispatcher, err := webhooks.NewDispatcher(cfg.Webhook.Endpoint, []byte(cfg.Webhook.SigningSecret()),
			webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, 0, 0),
			webhooks.WithLogger(logger.With(slog.String("component", "webhooks"))))
		if err != nil {
			return err
		}
		defer dispatcher.Close()
		sinks = append(sinks, dispatcher)
	}
	if len(sinks) > 0 {
		engine.SetSettlementSink(sinks)
	}

	server, err := rpc.NewServer(engine, rpc.ServerConfig{
		ListenAddress: cfg.ListenAddress,
		ReadTimeout:   time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:  time.Duration(cfg.WriteTimeout) * time.Second,
		Auth: rpc.AuthConfig{
			Enabled:  cfg.Auth.Enabled,
			Secret:   cfg.Auth.Secret(),
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		},
		RateLimit: rpc.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
	})
	if err != nil {
		return err
	}
	server.SetLogger(logger)
	server.SetHub(hub)
	if historyStore != nil {
		server.SetHistory(historyStore)
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	logger.Info("airdropd started",
		slog.String("addr", cfg.ListenAddress),
		slog.String("owner", owner.String()),
		slog.String("signer", signer.String()),
		slog.String("network", cfg.NetworkName))

	select {
	case <-stopCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
