package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/authz"
	"github.com/wagmicrew/TFX-APP-sub001/internal/config"
	"github.com/wagmicrew/TFX-APP-sub001/internal/expo"
	"github.com/wagmicrew/TFX-APP-sub001/internal/intake"
	"github.com/wagmicrew/TFX-APP-sub001/internal/observability/logging"
	"github.com/wagmicrew/TFX-APP-sub001/internal/observability/metrics"
	"github.com/wagmicrew/TFX-APP-sub001/internal/platform"
	impl "github.com/wagmicrew/TFX-APP-sub001/internal/service/impl"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"
	transport "github.com/wagmicrew/TFX-APP-sub001/internal/transport/http"
	"github.com/wagmicrew/TFX-APP-sub001/pkg/db"
)

func main() {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "notifyd",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})

	slog.SetDefault(logger)
	metrics.MustRegister("notifyd")

	logger.Info("starting service")

	cfg := config.Load()

	gdb, err := db.OpenGorm(db.Config{
		DSN:    cfg.DatabaseURL,
		LogSQL: strings.EqualFold(cfg.LogLevel, "debug"),
	})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("auto migrate", "error", err)
		os.Exit(1)
	}

	gw := expo.New(cfg.ExpoURL, cfg.ExpoAccessToken, cfg.ExpoTimeout)

	dispatch := impl.NewDispatchServiceImpl(st, gw, logger, impl.DispatchConfig{
		BatchSize:       cfg.PushBatchSize,
		ReceiptSettle:   cfg.ReceiptSettle,
		ReceiptLookback: cfg.ReceiptLookback,
	})
	notifications := impl.NewNotificationServiceImpl(st, dispatch, logger)
	sessions := impl.NewSessionServiceImpl(st, dispatch, logger)

	appliers := impl.NewPlatformAppliers(platform.New(cfg.PlatformURL, cfg.PlatformKey, cfg.PlatformTimeout))
	syncsvc, err := impl.NewSyncServiceImpl(st, appliers, logger)
	if err != nil {
		logger.Error("sync service init", "error", err)
		os.Exit(1)
	}

	// HS256 shared secret if provided, JWKS otherwise.
	var tokens authz.TokenValidator
	if cfg.SigningKey != "" {
		logger.Info("using HS256 shared-secret token validation")
		tokens = authz.NewHMACValidator(cfg.SigningKey, cfg.Issuer)
	} else {
		logger.Info("using JWKS token validation", "url", cfg.JWKSURL)
		jv, err := authz.NewJWKSValidator(context.Background(), cfg.JWKSURL, cfg.Issuer)
		if err != nil {
			logger.Error("jwks init", "error", err)
			os.Exit(1)
		}
		tokens = jv
	}

	handler := &transport.Handler{
		Tokens:        tokens,
		Sessions:      sessions,
		Notifications: notifications,
		Sync:          syncsvc,
		Records:       st.PushRecords(),
		AdminKeyHash:  cfg.AdminKeyHash,
		CORSOrigins:   cfg.CORSOrigins,
		ReadyChecks: map[string]func(context.Context) error{
			"database": func(ctx context.Context) error {
				sqlDB, err := gdb.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"push_gateway": gw.Healthy,
		},
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	runEvery := func(name string, interval time.Duration, job func(context.Context)) {
		wg.Add(1)
		logger.Info("worker started", "worker", name, "interval", interval)
		go func() {
			defer wg.Done()
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-workerCtx.Done():
					return
				case <-t.C:
					job(workerCtx)
				}
			}
		}()
	}

	runEvery("receipt_reconcile", cfg.ReceiptInterval, func(ctx context.Context) {
		res, err := dispatch.ReconcileReceipts(ctx)
		if err != nil {
			logger.Error("receipt reconciliation failed", "error", err)
			return
		}
		if res.RecordsChecked > 0 {
			logger.Info("receipts reconciled",
				"records", res.RecordsChecked, "cleared_tokens", res.TokensCleared, "deferred", res.Deferred)
		}
	})

	runEvery("session_sweep", cfg.SessionSweepInterval, func(ctx context.Context) {
		if n, err := sessions.ExpireStale(ctx); err != nil {
			logger.Error("session sweep failed", "error", err)
		} else if n > 0 {
			logger.Info("expired stale sessions", "count", n)
		}
	})

	runEvery("prune", cfg.PruneInterval, func(ctx context.Context) {
		cutoff := time.Now().UTC().Add(-cfg.RetentionPeriod)
		if n, err := st.Notifications().PruneOlderThan(ctx, cutoff); err != nil {
			logger.Error("notification prune failed", "error", err)
		} else if n > 0 {
			logger.Info("pruned read notifications", "count", n)
		}
		if n, err := st.SyncOps().PruneTerminal(ctx, cutoff); err != nil {
			logger.Error("sync prune failed", "error", err)
		} else if n > 0 {
			logger.Info("pruned settled sync operations", "count", n)
		}
	})

	var intakeWorker *intake.Worker
	if len(cfg.KafkaBrokers) > 0 {
		intakeWorker = intake.NewWorker(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, notifications, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("intake worker started", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
			if err := intakeWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("intake worker stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           transport.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("notification service listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}

	stopWorkers()
	if intakeWorker != nil {
		_ = intakeWorker.Close()
	}
	wg.Wait()
	dispatch.Close()
	logger.Info("stopped")
}
