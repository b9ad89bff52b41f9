package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/authz"
	"github.com/P-U-C/b1e55ed/pkg/config"
	"github.com/P-U-C/b1e55ed/pkg/contributor"
	"github.com/P-U-C/b1e55ed/pkg/crypto"
	"github.com/P-U-C/b1e55ed/pkg/escalation"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/finance"
	"github.com/P-U-C/b1e55ed/pkg/httpapi"
	"github.com/P-U-C/b1e55ed/pkg/identity"
	"github.com/P-U-C/b1e55ed/pkg/karma"
	"github.com/P-U-C/b1e55ed/pkg/killswitch"
	"github.com/P-U-C/b1e55ed/pkg/kms"
	"github.com/P-U-C/b1e55ed/pkg/observability"
	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
	"github.com/P-U-C/b1e55ed/pkg/projections"

	_ "github.com/lib/pq"          // Postgres driver
	_ "modernc.org/sqlite"         // embedded SQLite driver, lite mode
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable so tests can stub it out without exec'ing the
// binary.
var startServer = runServer

// Run is the entrypoint logic, separated from main so it can be exercised
// directly in tests.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		startServer()
		return 0
	}

	switch args[1] {
	case "server":
		startServer()
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stdout, "Unknown command: %s. Defaulting to server...\n", args[1])
		startServer()
		return 0
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: b1e55ednode [command]")
	_, _ = fmt.Fprintln(w, "\nCommands:")
	_, _ = fmt.Fprintln(w, "  server   Run the node (default)")
	_, _ = fmt.Fprintln(w, "  help     Show this message")
}

//nolint:gocyclo
func runServer() {
	log.Println("[b1e55ed] node starting")
	ctx := context.Background()
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.EventLogDir, 0o755); err != nil {
		log.Fatalf("create event log dir: %v", err)
	}

	db, sqlStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	signer, err := loadOrCreateSigner(cfg)
	if err != nil {
		log.Fatalf("load signing key: %v", err)
	}

	es, err := eventstore.OpenWriter(ctx, cfg.EventLogDir, sqlStore, signer)
	if err != nil {
		log.Fatalf("open event log: %v", err)
	}
	defer es.Close()
	logger.Info("event log ready", "head_seq", mustHeadSeq(ctx, es))

	ks, err := killswitch.Open(ctx, es, killswitch.Thresholds{
		L1DailyLossPct:     cfg.KillSwitchL1DailyLossPct,
		L2PortfolioHeatPct: cfg.KillSwitchL2PortfolioHeat,
		L3CrisisThreshold:  cfg.KillSwitchL3CrisisThreshold,
		L4MaxDrawdownPct:   cfg.KillSwitchL4MaxDrawdownPct,
	})
	if err != nil {
		log.Fatalf("open kill switch: %v", err)
	}

	// Producer clients start empty: a real producer integration (the TA
	// engine, the onchain indexer, ...) is an external collaborator per
	// pkg/orchestrator's own boundary, wired in here once one exists.
	clients := make(map[orchestrator.Domain]orchestrator.ProducerClient)
	for _, d := range orchestrator.AllDomains() {
		clients[d] = orchestrator.NewLogProducerClient(nil)
	}

	baseSize := finance.NewMoney(cfg.BaseSizeMinor, cfg.BaseSizeCurrency)

	orch, err := orchestrator.Open(ctx, es, ks, clients, orchestrator.Config{
		CycleDeadline:    time.Duration(cfg.CycleDeadlineSeconds) * time.Second,
		PhaseDeadline:    time.Duration(cfg.PhaseDeadlineSeconds) * time.Second,
		EntryThreshold:   cfg.EntryThreshold,
		CTSTrigger:       cfg.CTSTrigger,
		StalenessWindow:  time.Duration(cfg.StalenessSeconds) * time.Second,
		RewardRatio:      2.0,
		BaseSize:         baseSize,
		RegimeThresholds: orchestrator.DefaultRegimeThresholds(),
		FailureBound:     orchestrator.DefaultFailureBound,
	})
	if err != nil {
		log.Fatalf("open orchestrator: %v", err)
	}

	contributors := contributor.NewEngine(contributor.NewMemoryStore(), es, contributor.DefaultAntiGamingConfig())

	karmaEngine, err := karma.NewEngine(ctx, karma.NewMemoryStore(), es, signer, karma.Policy{
		Enabled:         cfg.KarmaEnabled,
		Percentage:      cfg.KarmaPercentage,
		TreasuryAddress: cfg.KarmaTreasuryAddress,
	}, logger)
	if err != nil {
		log.Fatalf("open karma engine: %v", err)
	}

	escalations := escalation.NewManager()

	az := authz.NewEngine()
	if err := httpapi.RegisterRolePermissions(ctx, az); err != nil {
		log.Fatalf("register role permissions: %v", err)
	}

	keySet, err := identity.NewInMemoryKeySet()
	if err != nil {
		log.Fatalf("init identity key set: %v", err)
	}
	tokens := identity.NewTokenManager(keySet)

	upcasters := projections.NewUpcastRegistry()

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = "b1e55ed-node"
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.Environment = cfg.ExecutionMode
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		log.Fatalf("init observability: %v", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			logger.Warn("observability shutdown", "err", err)
		}
	}()

	server, err := httpapi.NewServer(ctx, httpapi.Deps{
		EventStore:   es,
		Orchestrator: orch,
		KillSwitch:   ks,
		Karma:        karmaEngine,
		Contributors: contributors,
		Escalations:  escalations,
		Authz:        az,
		Tokens:       tokens,
		Upcasters:    upcasters,
		Log:          logger,
	})
	if err != nil {
		log.Fatalf("start ingress server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("ingress ready", "addr", httpServer.Addr, "mode", cfg.ExecutionMode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ingress server failed", "err", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ingress shutdown", "err", err)
	}
}

// newLogger builds the structured logger the rest of the process shares,
// honoring LOG_LEVEL since config.Config otherwise only carries the value
// through without anyone reading it.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openStore picks the event log's SQL backend: embedded SQLite when
// DatabaseURL is unset (lite mode), Postgres otherwise. Both implement the
// same eventstore.Store contract, so nothing downstream branches on which
// one is in play.
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, eventstore.Store, error) {
	if cfg.DatabaseURL == "" {
		path := filepath.Join(cfg.EventLogDir, "b1e55ed.db")
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("ping sqlite: %w", err)
		}
		log.Printf("[b1e55ed] sqlite: embedded at %s (lite mode)", path)
		return db, eventstore.NewSQLiteStore(db), nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Println("[b1e55ed] postgres: connected")
	return db, eventstore.NewPostgresStore(db), nil
}

// loadOrCreateSigner restores the node's Ed25519 event-signing key from an
// on-disk keystore sealed by pkg/kms, generating one on first boot. The raw
// private key never touches disk outside the KMS-encrypted envelope.
func loadOrCreateSigner(cfg *config.Config) (*crypto.Ed25519Signer, error) {
	passphrase := os.Getenv("KMS_PASSPHRASE")
	if passphrase == "" {
		return nil, fmt.Errorf("KMS_PASSPHRASE must be set to unlock the signing keystore")
	}

	keystorePath := filepath.Join(cfg.EventLogDir, "kms", "keystore.json")
	keyManager, err := kms.NewLocalKMS(keystorePath, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("open kms keystore: %w", err)
	}

	sealedKeyPath := filepath.Join(cfg.EventLogDir, "kms", "node-signing-key.sealed")
	sealed, err := os.ReadFile(sealedKeyPath)
	if err == nil {
		raw, err := keyManager.Decrypt(string(sealed))
		if err != nil {
			return nil, fmt.Errorf("decrypt node signing key: %w", err)
		}
		priv, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode node signing key: %w", err)
		}
		return crypto.NewEd25519SignerFromKey(priv, "b1e55ed-node-key"), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read sealed signing key: %w", err)
	}

	signer, err := crypto.NewEd25519Signer("b1e55ed-node-key")
	if err != nil {
		return nil, fmt.Errorf("generate node signing key: %w", err)
	}

	sealed2, err := keyManager.Encrypt(base64.StdEncoding.EncodeToString(signer.PrivateKeyBytes()))
	if err != nil {
		return nil, fmt.Errorf("seal node signing key: %w", err)
	}
	if err := os.WriteFile(sealedKeyPath, []byte(sealed2), 0o600); err != nil {
		return nil, fmt.Errorf("write sealed signing key: %w", err)
	}
	return signer, nil
}

func mustHeadSeq(ctx context.Context, es *eventstore.EventStore) uint64 {
	head, err := es.Head(ctx)
	if err != nil {
		return 0
	}
	return head.Seq
}
