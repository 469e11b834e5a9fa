package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gavelhq/gavel/internal/api"
	"github.com/gavelhq/gavel/internal/auth"
	"github.com/gavelhq/gavel/internal/config"
	"github.com/gavelhq/gavel/internal/crypto"
	"github.com/gavelhq/gavel/internal/engine"
	"github.com/gavelhq/gavel/internal/evidence"
	"github.com/gavelhq/gavel/internal/evidence/pgstore"
	"github.com/gavelhq/gavel/internal/evidence/sqlstore"
	"github.com/gavelhq/gavel/internal/gate"
	"github.com/gavelhq/gavel/internal/genai"
	"github.com/gavelhq/gavel/internal/integrity"
	"github.com/gavelhq/gavel/internal/notify"
	"github.com/gavelhq/gavel/internal/policy"
	"github.com/gavelhq/gavel/internal/repair"
)

func main() {
	if err := run(os.Args[1:], os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, "gavel-gateway:", err)
		os.Exit(1)
	}
}

type keySigner struct {
	keyID string
	priv  ed25519.PrivateKey
}

func (s keySigner) KeyID() string { return s.keyID }

func (s keySigner) Sign(digest []byte) ([]byte, error) {
	return crypto.SignDigest(s.priv, digest)
}

func run(args []string, getenv func(string) string) error {
	fs := flag.NewFlagSet("gavel-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to gavel config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("GAVEL_CONFIG_PATH")
	}
	if cfgFile == "" {
		return fmt.Errorf("config path required (-config or GAVEL_CONFIG_PATH)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	now := func() string { return time.Now().UTC().Format(time.RFC3339) }

	library := policy.NewLibrary(now)
	for _, path := range cfg.PackPaths {
		report, err := policy.LoadInto(library, path)
		if err != nil {
			return fmt.Errorf("load pack %s: %w", path, err)
		}
		logger.Info("pack loaded",
			zap.String("path", path),
			zap.Int("accepted", report.Accepted),
			zap.Int("rejected", len(report.Rejected)))
		for _, rej := range report.Rejected {
			logger.Warn("policy rejected",
				zap.String("policy_id", rej.ID),
				zap.Strings("errors", rej.Result.Errors))
		}
	}

	store, closeStore, err := openStore(cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	var signer evidence.Signer
	if cfg.SigningKey.PrivateKeyPath != "" {
		priv, _, err := crypto.LoadPrivateKey(cfg.SigningKey.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("load signing key: %w", err)
		}
		signer = keySigner{keyID: cfg.SigningKey.KeyID, priv: priv}
	}

	ledger := evidence.NewLedger(store, signer, now, uuid.NewString)

	var generator genai.Generator
	if cfg.GenAI.Enabled {
		generator = genai.NewClient(genai.ClientConfig{
			BaseURL:     cfg.GenAI.BaseURL,
			APIKey:      cfg.GenAI.APIKey,
			Model:       cfg.GenAI.Model,
			CallTimeout: cfg.GenAI.CallTimeout(),
			MaxRetries:  uint(cfg.GenAI.MaxRetries),
			RPS:         cfg.GenAI.RPS,
			Burst:       cfg.GenAI.Burst,
		}, logger)
	}

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)

	checker := integrity.NewChecker(generator, logger)
	reconciler := repair.NewReconciler(generator, logger)
	gates := gate.NewManager(ledger, logger, now, uuid.NewString)
	eng := engine.New(library, checker, reconciler, ledger, gates, metrics, engine.Options{
		StepTimeout:      cfg.Engine.StepTimeout(),
		RepairThreshold:  cfg.Engine.RepairThreshold,
		RepairMaxRetries: cfg.Engine.RepairMaxRetries,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Notify.Enabled {
		outbox := notify.NewOutbox()
		poster := notify.NewWebhookPoster(cfg.Notify.WebhookURL, 10*time.Second)
		go notify.RunWorker(ctx, outbox, poster, cfg.Notify.PollInterval(), logger)
		go watchPendingGates(ctx, gates, outbox)
	}

	operators := make([]auth.Operator, 0, len(cfg.Operators))
	for _, op := range cfg.Operators {
		operators = append(operators, auth.Operator{Token: op.Token, Actor: op.Actor, Role: op.Role})
	}

	h := &api.Handler{
		Auth:    auth.NewStaticAuthenticator(operators),
		Engine:  eng,
		Library: library,
		Ledger:  ledger,
		Logger:  logger,
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gavel-gateway listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg config.DBConfig) (evidence.Store, func(), error) {
	switch cfg.Driver {
	case "":
		return evidence.NewInMemoryStore(), func() {}, nil
	case "sqlite":
		store, err := sqlstore.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		store, err := pgstore.OpenPostgres(context.Background(), cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

// watchPendingGates enqueues a notification for every gate that enters
// AWAITING_HUMAN. Enqueue is idempotent per gate id, so re-observing a
// still-pending gate is harmless.
func watchPendingGates(ctx context.Context, gates *gate.Manager, outbox *notify.Outbox) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, g := range gates.Pending() {
				outbox.Enqueue(notify.GateNotice{
					GateID:         g.ID,
					WorkflowID:     g.WorkflowID,
					StepID:         g.StepID,
					PolicyID:       g.PolicyID,
					GateType:       string(g.Type),
					IntegrityScore: g.Score,
					TriggeredAt:    g.TriggeredAt,
				})
			}
		}
	}
}
