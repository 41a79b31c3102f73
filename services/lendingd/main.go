package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"poolledger/config"
	"poolledger/core/events"
	"poolledger/core/state"
	"poolledger/gateway/middleware"
	nativecommon "poolledger/native/common"
	"poolledger/observability"
	"poolledger/observability/logging"
	telemetry "poolledger/observability/otel"
	"poolledger/services/lending/engine"
	"poolledger/services/lending/journal"
	"poolledger/services/lending/server"
	lendingdconfig "poolledger/services/lendingd/config"
	"poolledger/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	cfg, err := lendingdconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("POOLLEDGER_ENV"))
	logOpts := logging.Options{Level: logging.ParseLevel(cfg.Logging.Level)}
	if cfg.Logging.File != "" {
		logOpts.File = &logging.FileConfig{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	logger := logging.Setup("lendingd", env, logOpts)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "lendingd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}.WithEnvDefaults())
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		log.Fatalf("open state db: %v", err)
	}
	defer db.Close()

	j, err := journal.Open(cfg.JournalPath(), logger)
	if err != nil {
		log.Fatalf("open event journal: %v", err)
	}
	defer j.Close()

	ledger, err := engine.ParseAddress(cfg.Ledger)
	if err != nil {
		log.Fatalf("parse ledger account: %v", err)
	}
	rt, err := engine.NewLocal(state.NewManager(db), engine.Config{
		Ledger:  ledger,
		Pauses:  nativecommon.NewPauseSet(),
		Emitter: events.Fanout{j, observability.Events()},
		Logger:  logger,
		Metrics: observability.Lending(),
	})
	if err != nil {
		log.Fatalf("init lending runtime: %v", err)
	}
	defer rt.Close()

	if cfg.GenesisPath != "" {
		gen, err := config.LoadGenesis(cfg.GenesisPath)
		if err != nil {
			log.Fatalf("load genesis: %v", err)
		}
		if err := applyGenesis(context.Background(), rt, gen, logger); err != nil {
			log.Fatalf("apply genesis: %v", err)
		}
	}

	srv, err := server.New(server.Config{
		Engine:        rt,
		Module:        rt,
		Events:        j,
		Auth:          newAuthenticator(cfg.Auth, logger),
		Limiter:       middleware.NewRateLimiter(rateLimits(cfg.RateLimits), logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "lendingd", MetricsPrefix: "lendingd", LogRequests: true, Enabled: true}, logger),
		CORS:          &middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins, AllowCredentials: cfg.CORS.AllowCredentials},
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.ListenAddress, err)
	}
	if !cfg.TLS.Enabled() {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			log.Fatalf("plaintext lendingd mode is restricted to loopback listeners or dev environment")
		}
	}
	tlsCfg, err := loadServerTLS(cfg.TLS)
	if err != nil {
		log.Fatalf("configure tls: %v", err)
	}
	if tlsCfg != nil {
		listener = tls.NewListener(listener, tlsCfg)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", "address", cfg.ListenAddress, "tls", tlsCfg != nil, "ledger", ledger.String())
		serverErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve http", "error", err)
		}
	}
}

func newAuthenticator(cfg lendingdconfig.AuthConfig, logger *slog.Logger) *middleware.Authenticator {
	var optional []string
	if cfg.AllowAnonymousReads {
		optional = []string{"/healthz", "/v1/pools", "/v1/owner", "/v1/assets", "/v1/accounts"}
	}
	return middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        !cfg.Disabled,
		HMACSecret:     cfg.Secret(),
		Issuer:         cfg.Issuer,
		Audience:       cfg.Audience,
		OptionalPaths:  optional,
		AllowAnonymous: cfg.AllowAnonymousReads,
		ClockSkew:      cfg.ClockSkew,
	}, logger)
}

func rateLimits(cfg map[string]lendingdconfig.RateLimitConfig) map[string]middleware.RateLimit {
	limits := map[string]middleware.RateLimit{
		server.BucketRead:  {RatePerSecond: 20, Burst: 40},
		server.BucketWrite: {RatePerSecond: 5, Burst: 10},
		server.BucketAdmin: {RatePerSecond: 1, Burst: 5},
	}
	for name, limit := range cfg {
		limits[name] = middleware.RateLimit{
			RatePerSecond: limit.RatePerSecond,
			Burst:         limit.Burst,
			DefaultTokens: limit.DefaultTokens,
			Tokens:        limit.Tokens,
		}
	}
	return limits
}

func loadServerTLS(cfg lendingdconfig.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		if cfg.AllowInsecure {
			return nil, nil
		}
		return nil, fmt.Errorf("tls credentials are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("read client ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse client ca: invalid pem data")
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		tlsCfg.ClientAuth = tls.NoClientCert
	}
	return tlsCfg, nil
}
