package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"playmint/cmd/internal/passphrase"
	"playmint/config"
	"playmint/core/events"
	"playmint/core/genesis"
	"playmint/core/state"
	"playmint/crypto"
	"playmint/gateway/attest"
	"playmint/gateway/middleware"
	"playmint/integrations/webhooks"
	"playmint/native/bank"
	"playmint/native/issuance"
	"playmint/observability/logging"
	"playmint/observability/metrics"
	telemetry "playmint/observability/otel"
	"playmint/rpc"
	"playmint/storage"
)

const (
	operatorPassEnv = "PLAYMINT_OPERATOR_PASS"
	genesisPathEnv  = "PLAYMINT_GENESIS"
	serviceName     = "playmintd"
)

// ledger is what the daemon needs from a token ledger: minting for the engine
// and the journal for exports.
type ledger interface {
	issuance.Ledger
	bank.Journal
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML roster (overrides PLAYMINT_GENESIS and config GenesisFile)")
	flag.Parse()

	passSource := passphrase.NewSource(operatorPassEnv, "operator keystore")
	bootLogger := logging.Setup(serviceName, strings.TrimSpace(os.Getenv("PLAYMINT_ENV")))

	var loadOpts []config.LoadOption
	if _, err := os.Stat(*configFile); errors.Is(err, os.ErrNotExist) {
		pass, err := passSource.Get()
		if err != nil {
			bootLogger.Error("operator passphrase required to create default config", slog.Any("error", err))
			os.Exit(1)
		}
		loadOpts = append(loadOpts, config.WithKeystorePassphrase(pass))
	}
	cfg, err := config.Load(*configFile, loadOpts...)
	if err != nil {
		bootLogger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithFile(serviceName, cfg.Logging.Environment, cfg.Logging.Level, cfg.LogFile())
	defer logCloser.Close()
	logger.Info("config loaded", slog.String("path", *configFile), slog.Any("config", cfg))

	if err := run(cfg, *genesisFlag, passSource, logger); err != nil {
		logger.Error("playmintd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, genesisFlag string, passSource *passphrase.Source, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.TelemetryConfig(serviceName))
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := storage.Open(cfg.Storage.Backend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer db.Close()

	tokens, closeLedger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	gateway, err := buildGateway(cfg.Gateway)
	if err != nil {
		return err
	}

	engine, err := issuance.NewEngine(cfg.EngineConfig(), state.NewRecordStore(db), tokens, gateway)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	engine.SetLogger(logger)
	engine.SetMetrics(metrics.Issuance())

	if err := applyGenesis(ctx, cfg, genesisFlag, engine, passSource, logger); err != nil {
		return err
	}

	stream := events.NewBroadcaster()
	emitters := events.Multi{stream}
	if endpoint := strings.TrimSpace(cfg.Webhook.Endpoint); endpoint != "" {
		dispatcher, err := webhooks.NewDispatcher(endpoint, []byte(cfg.Webhook.ResolvedSecret()),
			webhooks.WithTopics(cfg.Webhook.Topics...),
			webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, 2*time.Second, 30*time.Second),
			webhooks.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("configure webhooks: %w", err)
		}
		defer dispatcher.Close()
		emitters = append(emitters, dispatcher)
		logger.Info("webhook delivery enabled", slog.String("endpoint", endpoint))
	}
	engine.SetEmitter(emitters)

	server, err := rpc.NewServer(engine, tokens, stream, rpc.ServerConfig{
		RateLimits:      cfg.RateLimits(),
		SignatureMaxAge: cfg.SignatureMaxAge(),
		CORS:            middleware.CORSConfig{AllowedOrigins: cfg.API.AllowedOrigins},
		Operator:        cfg.OperatorAuth(),
		LogRequests:     cfg.API.LogRequests,
	}, logger)
	if err != nil {
		return fmt.Errorf("configure rpc: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.API.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.API.ReadHeaderTimeout) * time.Second,
	}
	listener, err := net.Listen("tcp", cfg.API.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", slog.String("addr", listener.Addr().String()))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGraceSeconds)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	return nil
}

func openLedger(cfg *config.Config) (ledger, func(), error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Ledger.Driver))
	if driver == "" || driver == "memory" {
		return bank.NewMemoryLedger(), func() {}, nil
	}
	journal, err := bank.OpenJournal(driver, cfg.Ledger.DSN)
	if err != nil {
		return nil, nil, err
	}
	return journal, func() { _ = journal.Close() }, nil
}

func buildGateway(cfg config.Gateway) (issuance.Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "permissive":
		return attest.Permissive{}, nil
	case "allowlist":
		members := make([]crypto.Address, 0, len(cfg.Allowlist))
		for _, raw := range cfg.Allowlist {
			addr, err := crypto.ParseAddress(raw)
			if err != nil {
				return nil, fmt.Errorf("gateway allowlist: %w", err)
			}
			members = append(members, addr)
		}
		return attest.NewAllowlist(members...), nil
	case "jwt":
		return attest.NewJWTVerifier(cfg.ResolvedSecret(), cfg.Issuer, cfg.ClockSkewDuration())
	default:
		return nil, fmt.Errorf("gateway: unknown mode %q", cfg.Mode)
	}
}

func applyGenesis(ctx context.Context, cfg *config.Config, flagPath string, engine *issuance.Engine, passSource *passphrase.Source, logger *slog.Logger) error {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(genesisPathEnv))
	}
	if path == "" {
		path = strings.TrimSpace(cfg.GenesisFile)
	}

	spec := &genesis.Spec{}
	if path != "" {
		loaded, err := genesis.Load(path)
		if err != nil {
			return err
		}
		spec = loaded
	}

	var owner crypto.Address
	if strings.TrimSpace(spec.Owner) == "" && strings.TrimSpace(cfg.OperatorKeystore) != "" {
		ready, err := engine.Bootstrapped(ctx)
		if err != nil {
			return err
		}
		if !ready {
			pass, err := passSource.Get()
			if err != nil {
				return err
			}
			key, err := crypto.LoadFromKeystore(cfg.OperatorKeystore, pass)
			if err != nil {
				return fmt.Errorf("load operator key: %w", err)
			}
			owner = key.PubKey().Address()
		}
	}

	applied, err := genesis.Apply(ctx, engine, spec, owner)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if applied {
		logger.Info("genesis applied",
			slog.String("path", path),
			slog.Int("validators", len(spec.Validators)),
			slog.Int("beneficiaries", len(spec.Beneficiaries)))
	}
	return nil
}
