package main

import (
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint logic, separated from main so it can be exercised
// directly in tests.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "replay":
		return runReplayCmd(args[2:], stdout, stderr)
	case "signal":
		return runSignalCmd(args[2:], stdout, stderr)
	case "cycle":
		return runCycleCmd(args[2:], stdout, stderr)
	case "event":
		return runEventCmd(args[2:], stdout, stderr)
	case "kill-switch":
		return runKillSwitchCmd(args[2:], stdout, stderr)
	case "karma":
		return runKarmaCmd(args[2:], stdout, stderr)
	case "positions", "regime", "leaderboard":
		return runReadCmd(args[1], args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	lines := []string{
		"Usage: b1e55edctl <command> [arguments]",
		"",
		"Commands operating on a running node (over HTTP, needs --addr/--token):",
		"  event       Append a raw event: event --type <t> --payload <file|->  [--dedupe-key k]",
		"  signal      Submit a contributor signal: signal --contributor <id> --type <t> --conviction <f> --payload <file|->",
		"  cycle       Trigger a brain cycle: cycle --input <file|->",
		"  kill-switch Inspect or de-escalate the kill switch: kill-switch get|deescalate|approve|apply [flags]",
		"  karma       Settle karma for a batch of intents: karma settle --intents <csv> --tx <hash> --mode <paper|live>",
		"  positions   Print the current positions projection",
		"  regime      Print the current regime projection",
		"  leaderboard Print the current contributor leaderboard",
		"",
		"Commands operating directly on the event log (no running node needed):",
		"  verify      Replay the event log and check hash/signature integrity",
		"  replay      Rebuild every projection from genesis and check replay equivalence",
		"",
		"  help        Show this message",
	}
	for _, l := range lines {
		_, _ = io.WriteString(w, l+"\n")
	}
}
