// Package killswitch implements the node's one deterministic safety FSM:
// a level that only escalates automatically and only de-escalates through
// an elevated-authorization ceremony. Every other component treats the
// current level as the final word on what the node is allowed to do.
package killswitch

import "fmt"

// Level is the kill switch's severity, strictly ordered so that comparisons
// (target <= prev) are the whole auto-escalate-only rule.
type Level int

const (
	L0Nominal   Level = 0
	L1Caution   Level = 1
	L2Defensive Level = 2
	L3Lockdown  Level = 3
	L4Emergency Level = 4
	// L5Shutdown is never set by this package: no auto trigger targets it
	// (Evaluate stops at L4Emergency) and de-escalation only lowers the
	// level. Open restores it if the latest kill-switch event names it.
	L5Shutdown Level = 5
)

// Messages gives each level its operator-facing description. The L5
// message is deliberately the same one carried over from the reference
// this was built from — a Easter egg is not a bug to be "fixed" away.
var Messages = map[Level]string{
	L0Nominal:   "Normal operation.",
	L1Caution:   "Caution. Reduce size. Tighten stops.",
	L2Defensive: "Defensive. No new positions.",
	L3Lockdown:  "Lockdown. Close non-core. Halt new.",
	L4Emergency: "Emergency. Close everything.",
	L5Shutdown:  "L5 is not a bug. It is a feature. The most important one.",
}

func (l Level) String() string {
	if msg, ok := Messages[l]; ok {
		return fmt.Sprintf("L%d(%s)", int(l), msg)
	}
	return fmt.Sprintf("L%d", int(l))
}

// Decision is the outcome of an Evaluate or de-escalation call that
// actually changed the level. A nil *Decision with a nil error means the
// inputs didn't warrant any change.
type Decision struct {
	Level         Level  `json:"level"`
	PreviousLevel Level  `json:"previous_level"`
	Reason        string `json:"reason"`
	Auto          bool   `json:"auto"`
	Actor         string `json:"actor"`
}

// Triggers carries the auto-escalate inputs for one Evaluate call. Any
// field left nil is simply not checked this round — the orchestrator only
// computes the metrics relevant to the phase it's in.
type Triggers struct {
	DailyLossPct     *float64
	PortfolioHeatPct *float64
	CrisisConfidence *float64
	MaxDrawdownPct   *float64
	Reason           string
}

// Thresholds are the per-level trigger boundaries, normally sourced from
// pkg/config.Config.
type Thresholds struct {
	L1DailyLossPct     float64
	L2PortfolioHeatPct float64
	L3CrisisThreshold  float64
	L4MaxDrawdownPct   float64
}
