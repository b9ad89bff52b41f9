package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/P-U-C/b1e55ed/pkg/eventstore"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // embedded SQLite driver, lite mode
)

// runVerifyCmd replays the event log and checks hash linkage, content
// hashes, and signatures. It talks to the database directly — no running
// node required — the same way a node's own boot-time integrity check
// does, just with the full-replay option exposed to the operator.
//
// Exit codes:
//
//	0 = chain valid
//	1 = chain broken
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	dbURL := cmd.String("database-url", envOr("DATABASE_URL", ""), "Postgres DSN; empty uses the embedded SQLite file")
	eventLogDir := cmd.String("event-log-dir", envOr("EVENT_LOG_DIR", "data/eventlog"), "directory holding the embedded SQLite file")
	trustedKey := cmd.String("trusted-key", "", "hex-encoded Ed25519 public key to verify signatures against (REQUIRED)")
	fast := cmd.Bool("fast", false, "verify from the latest checkpoint only, not the full chain")
	jsonOutput := cmd.Bool("json", false, "output results as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if *trustedKey == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --trusted-key is required")
		return 2
	}

	ctx := context.Background()
	store, closeDB, err := openVerifyStore(ctx, *dbURL, *eventLogDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeDB()

	if err := store.Init(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: init store: %v\n", err)
		return 2
	}

	var result *eventstore.VerifyResult
	if *fast {
		result, err = eventstore.FastVerify(ctx, store, *trustedKey)
	} else {
		result, err = eventstore.Verify(ctx, store, *trustedKey)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "Checked:  %d events (seq %d..%d)\n", result.EventsChecked, result.FromSeq, result.ToSeq)
		if result.CheckpointUsed > 0 {
			_, _ = fmt.Fprintf(stdout, "Checkpoint used: seq %d\n", result.CheckpointUsed)
		}
		if result.Valid {
			_, _ = fmt.Fprintln(stdout, "Status:   VALID")
		} else {
			_, _ = fmt.Fprintln(stdout, "Status:   BROKEN")
			for _, b := range result.Breaks {
				_, _ = fmt.Fprintf(stdout, "  - %s\n", b)
			}
		}
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func openVerifyStore(ctx context.Context, dbURL, eventLogDir string) (eventstore.Store, func(), error) {
	if dbURL == "" {
		path := filepath.Join(eventLogDir, "b1e55ed.db")
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping sqlite: %w", err)
		}
		return eventstore.NewSQLiteStore(db), func() { _ = db.Close() }, nil
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return eventstore.NewPostgresStore(db), func() { _ = db.Close() }, nil
}
