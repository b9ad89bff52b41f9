package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
)

// addrToken registers the two flags every HTTP-backed subcommand needs and
// returns their final values, env vars standing in for a flag the operator
// didn't pass.
func addrToken(cmd *flag.FlagSet) (addrPtr, tokenPtr *string) {
	addr := cmd.String("addr", envOr("B1E55ED_ADDR", "http://localhost:8080"), "node ingress address")
	token := cmd.String("token", envOr("B1E55ED_TOKEN", ""), "bearer token")
	return addr, token
}

func printResult(stdout io.Writer, jsonOutput bool, label string, v interface{}) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return 2
	}
	if jsonOutput {
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "%s:\n%s\n", label, string(data))
	return 0
}

func runEventCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("event", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr, token := addrToken(cmd)
	eventType := cmd.String("type", "", "event type (REQUIRED)")
	payloadPath := cmd.String("payload", "-", "path to JSON payload, or - for stdin")
	dedupeKey := cmd.String("dedupe-key", "", "idempotency key")
	jsonOutput := cmd.Bool("json", false, "output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *eventType == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --type is required")
		return 2
	}

	payload, err := readPayload(*payloadPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read payload: %v\n", err)
		return 2
	}

	req := map[string]interface{}{
		"type":    *eventType,
		"payload": json.RawMessage(payload),
	}
	if *dedupeKey != "" {
		req["dedupe_key"] = *dedupeKey
	}

	var out map[string]interface{}
	if err := newNodeClient(*addr, *token).do("POST", "/v1/events", req, &out); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printResult(stdout, *jsonOutput, "event appended", out)
}

func runSignalCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("signal", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr, token := addrToken(cmd)
	contributorID := cmd.String("contributor", "", "contributor ID (REQUIRED)")
	eventType := cmd.String("type", "", "signal event type (REQUIRED)")
	conviction := cmd.Float64("conviction", 0, "conviction score, 0..1")
	payloadPath := cmd.String("payload", "-", "path to JSON payload, or - for stdin")
	jsonOutput := cmd.Bool("json", false, "output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *contributorID == "" || *eventType == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --contributor and --type are required")
		return 2
	}

	payload, err := readPayload(*payloadPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read payload: %v\n", err)
		return 2
	}

	req := map[string]interface{}{
		"contributor_id": *contributorID,
		"event_type":     *eventType,
		"conviction":     *conviction,
		"payload":        json.RawMessage(payload),
	}

	var out map[string]interface{}
	if err := newNodeClient(*addr, *token).do("POST", "/v1/signals", req, &out); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printResult(stdout, *jsonOutput, "signal submitted", out)
}

func runCycleCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("cycle", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr, token := addrToken(cmd)
	inputPath := cmd.String("input", "-", `path to a JSON object {"assets":[...],"features":{...},"prices":{...}}, or - for stdin`)
	jsonOutput := cmd.Bool("json", false, "output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	input, err := readPayload(*inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read input: %v\n", err)
		return 2
	}

	var req json.RawMessage = input
	var out map[string]interface{}
	if err := newNodeClient(*addr, *token).do("POST", "/v1/cycles", req, &out); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printResult(stdout, *jsonOutput, "cycle completed", out)
}

func runKillSwitchCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: b1e55edctl kill-switch get|deescalate|approve|apply [flags]")
		return 2
	}
	sub, rest := args[0], args[1:]

	cmd := flag.NewFlagSet("kill-switch "+sub, flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr, token := addrToken(cmd)
	jsonOutput := cmd.Bool("json", false, "output as JSON")

	switch sub {
	case "get":
		if err := cmd.Parse(rest); err != nil {
			return 2
		}
		var out map[string]interface{}
		if err := newNodeClient(*addr, *token).do("GET", "/v1/kill-switch", nil, &out); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return printResult(stdout, *jsonOutput, "kill switch", out)

	case "deescalate":
		targetLevel := cmd.Int("target-level", 0, "target level to de-escalate to, 0..4")
		reason := cmd.String("reason", "", "reason for de-escalation (REQUIRED)")
		if err := cmd.Parse(rest); err != nil {
			return 2
		}
		if *reason == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --reason is required")
			return 2
		}
		req := map[string]interface{}{"target_level": *targetLevel, "reason": *reason}
		var out map[string]interface{}
		if err := newNodeClient(*addr, *token).do("POST", "/v1/kill-switch/deescalate", req, &out); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return printResult(stdout, *jsonOutput, "de-escalation requested", out)

	case "approve":
		intentID := cmd.String("intent", "", "intent ID (REQUIRED)")
		approverID := cmd.String("approver", "", "approver ID (REQUIRED)")
		if err := cmd.Parse(rest); err != nil {
			return 2
		}
		if *intentID == "" || *approverID == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --intent and --approver are required")
			return 2
		}
		req := map[string]interface{}{"intent_id": *intentID, "approver_id": *approverID}
		var out map[string]interface{}
		if err := newNodeClient(*addr, *token).do("POST", "/v1/kill-switch/deescalate/approve", req, &out); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return printResult(stdout, *jsonOutput, "de-escalation approved", out)

	case "apply":
		intentID := cmd.String("intent", "", "intent ID (REQUIRED)")
		if err := cmd.Parse(rest); err != nil {
			return 2
		}
		if *intentID == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --intent is required")
			return 2
		}
		req := map[string]interface{}{"intent_id": *intentID}
		var out map[string]interface{}
		if err := newNodeClient(*addr, *token).do("POST", "/v1/kill-switch/deescalate/apply", req, &out); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return printResult(stdout, *jsonOutput, "de-escalation applied", out)

	default:
		_, _ = fmt.Fprintf(stderr, "Unknown kill-switch subcommand: %s\n", sub)
		return 2
	}
}

func runKarmaCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] != "settle" {
		_, _ = fmt.Fprintln(stderr, "Usage: b1e55edctl karma settle --intents <csv> --tx <hash> --mode <paper|live>")
		return 2
	}

	cmd := flag.NewFlagSet("karma settle", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr, token := addrToken(cmd)
	intents := cmd.String("intents", "", "comma-separated intent IDs (REQUIRED)")
	txHash := cmd.String("tx", "", "settlement transaction hash")
	mode := cmd.String("mode", "paper", "execution mode: paper|live")
	jsonOutput := cmd.Bool("json", false, "output as JSON")
	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if *intents == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --intents is required")
		return 2
	}

	req := map[string]interface{}{
		"intent_ids":     strings.Split(*intents, ","),
		"tx_hash":        *txHash,
		"execution_mode": *mode,
	}

	var out map[string]interface{}
	if err := newNodeClient(*addr, *token).do("POST", "/v1/karma/settle", req, &out); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printResult(stdout, *jsonOutput, "karma settled", out)
}

func runReadCmd(name string, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(stderr)
	addr, token := addrToken(cmd)
	jsonOutput := cmd.Bool("json", false, "output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var out interface{}
	if err := newNodeClient(*addr, *token).do("GET", "/v1/"+name, nil, &out); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printResult(stdout, *jsonOutput, name, out)
}
