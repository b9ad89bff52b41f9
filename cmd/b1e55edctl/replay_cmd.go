package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/projections"
)

// runReplayCmd rebuilds every projection from genesis and checks the
// replay-equivalence invariant: a projection folded fresh from the log
// must reach the exact same state, step for step, as one built live. It
// reuses runVerifyCmd's store-opening logic — this still needs no running
// node, just the database the node writes to.
//
// Exit codes:
//
//	0 = replay matches live, bit for bit
//	1 = divergence found
//	2 = runtime error
func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	dbURL := cmd.String("database-url", envOr("DATABASE_URL", ""), "Postgres DSN; empty uses the embedded SQLite file")
	eventLogDir := cmd.String("event-log-dir", envOr("EVENT_LOG_DIR", "data/eventlog"), "directory holding the embedded SQLite file")
	jsonOutput := cmd.Bool("json", false, "output results as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	store, closeDB, err := openVerifyStore(ctx, *dbURL, *eventLogDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeDB()

	es, err := eventstore.OpenReader(ctx, store)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open event log: %v\n", err)
		return 2
	}

	receipt, err := projections.VerifyReplayEquivalence(ctx, es, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(receipt, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		steps, _ := receipt.Output["total_steps"].(int)
		_, _ = fmt.Fprintf(stdout, "Replayed: %d steps\n", steps)
		if receipt.Success {
			_, _ = fmt.Fprintln(stdout, "Status:   EQUIVALENT")
		} else {
			_, _ = fmt.Fprintln(stdout, "Status:   DIVERGED")
			_, _ = fmt.Fprintf(stdout, "  - %s\n", receipt.Error)
		}
	}

	if !receipt.Success {
		return 1
	}
	return 0
}
