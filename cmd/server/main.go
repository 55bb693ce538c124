package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	goredislib "github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/groupexchange/internal/access"
	"github.com/mmynk/groupexchange/internal/auth"
	"github.com/mmynk/groupexchange/internal/config"
	"github.com/mmynk/groupexchange/internal/exchange"
	"github.com/mmynk/groupexchange/internal/ledger"
	"github.com/mmynk/groupexchange/internal/lock"
	"github.com/mmynk/groupexchange/internal/middleware"
	"github.com/mmynk/groupexchange/internal/notify"
	"github.com/mmynk/groupexchange/internal/observability"
	"github.com/mmynk/groupexchange/internal/service"
	"github.com/mmynk/groupexchange/internal/storage/sqlite"
	"github.com/mmynk/groupexchange/pkg/api"
	"github.com/mmynk/groupexchange/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("GROUPX_CONFIG"), "path to a config file (yaml, toml or json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.DBPath)

	metrics := observability.NewMetrics("")

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	breakerCfg := ledger.DefaultBreakerConfig()
	if cfg.Breaker.MaxFailures > 0 {
		breakerCfg.ConsecutiveFailures = cfg.Breaker.MaxFailures
	}
	if cfg.Breaker.OpenTimeout > 0 {
		breakerCfg.Timeout = cfg.Breaker.OpenTimeout
	}
	ledgerClient := ledger.NewBreaker(store, breakerCfg, metrics.SetBreakerState)

	dispatcher := notify.NewDispatcher(notify.LogSink{Logger: logger}, cfg.NotifyBuffer, metrics.RecordNotification)
	defer dispatcher.Close()

	threshold, err := cfg.Broker.Threshold()
	if err != nil {
		return err
	}

	engine := exchange.New(store, ledgerClient,
		exchange.WithLocker(locker),
		exchange.WithUserLookup(store),
		exchange.WithNotifier(dispatcher),
		exchange.WithMetrics(metrics),
		exchange.WithBrokerPolicy(exchange.BrokerPolicy{MaxHoursWithoutApproval: threshold}),
		exchange.WithLedgerTimeout(cfg.LedgerTimeout),
		exchange.WithLogger(logger),
	)
	policy := access.NewPolicy(cfg.Broker.IDs)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	mux := http.NewServeMux()

	// Register Connect services. Auth runs before logging so the caller is known.
	exchangePath, exchangeHandler := api.NewExchangeServiceHandler(
		service.NewExchangeService(engine, policy, store, store, logger),
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(logger)),
	)
	mux.Handle(exchangePath, exchangeHandler)

	authPath, authHandler := api.NewAuthServiceHandler(
		service.NewAuthService(authenticator, jwtManager, store, cfg.DefaultTenantID, logger),
		connect.WithInterceptors(middleware.OptionalAuth(jwtManager), middleware.LoggingInterceptor(logger)),
	)
	mux.Handle(authPath, authHandler)

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(corsMiddleware(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newLocker returns a Redis lock when configured and an in-process lock
// otherwise. The returned func releases the Redis client.
func newLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (exchange.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("Using in-process exchange locks")
		return lock.NewLocal(), func() {}, nil
	}

	client := goredislib.NewClient(&goredislib.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	locker, err := lock.NewRedis(pingCtx, client, lock.DefaultRedisOptions())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("Using redis exchange locks", "address", cfg.RedisAddr)
	return locker, func() { _ = client.Close() }, nil
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
