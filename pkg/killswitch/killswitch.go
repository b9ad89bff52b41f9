package killswitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/P-U-C/b1e55ed/pkg/eventstore"
)

// ErrNotElevated is returned when a de-escalation is attempted without an
// elevated-authorization claim.
var ErrNotElevated = errors.New("killswitch: caller lacks elevated authorization")

// ErrDeescalateDenied is returned when the authorization engine denies the
// kill_switch:deescalate relation for the caller.
var ErrDeescalateDenied = errors.New("killswitch: deescalate relation denied")

// ErrStateUnrecoverable is returned by Open when the event log cannot be
// read to determine the last kill-switch level. Unlike an empty log (no
// transition ever recorded, which legitimately means L0Nominal), this means
// the log exists but answering "what level was it left at" failed — so the
// safe move is to refuse to start rather than silently re-arm at the least
// restrictive level.
var ErrStateUnrecoverable = errors.New("killswitch: cannot read last kill-switch state")

// KillSwitch is the node's single safety FSM. Exactly one exists per node,
// sharing the event store's single-writer lease.
type KillSwitch struct {
	mu         sync.Mutex
	level      Level
	thresholds Thresholds
	es         *eventstore.EventStore
}

type levelPayload struct {
	Level         int    `json:"level"`
	PreviousLevel int    `json:"previous_level"`
	Reason        string `json:"reason"`
	Auto          bool   `json:"auto"`
	Actor         string `json:"actor"`
}

// Open restores the kill switch level from the latest system.kill_switch.v1
// event in es. A log that has never recorded a transition legitimately
// starts at L0Nominal, the least restrictive level — but any other failure
// to read the log is fatal: Open returns ErrStateUnrecoverable rather than
// guessing, since guessing L0Nominal would silently re-arm full trading on
// a node that may have been at L4Emergency or L5Shutdown when it last
// wrote. Callers must not run the node past a non-nil error here.
func Open(ctx context.Context, es *eventstore.EventStore, thresholds Thresholds) (*KillSwitch, error) {
	ks := &KillSwitch{level: L0Nominal, thresholds: thresholds, es: es}

	e, err := es.LatestOfType(ctx, eventstore.KindKillSwitchChanged)
	if err != nil {
		if err == eventstore.ErrNotFound {
			return ks, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStateUnrecoverable, err)
	}
	var p levelPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: decode last kill-switch event: %v", ErrStateUnrecoverable, err)
	}
	ks.level = Level(p.Level)
	return ks, nil
}

// Level returns the current level.
func (ks *KillSwitch) Level() Level {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.level
}

// CanOpenNewPositions reports whether the node may open new positions at
// the current level. False from L2Defensive up.
func (ks *KillSwitch) CanOpenNewPositions() bool {
	return ks.Level() < L2Defensive
}

// CanTrade reports whether the node may trade at all. False only at
// L5Shutdown.
func (ks *KillSwitch) CanTrade() bool {
	return ks.Level() < L5Shutdown
}

// Evaluate checks auto-escalate triggers against thresholds and, if any
// target a level above the current one, escalates and persists the
// transition. Returns nil, nil if nothing warranted a change — this is the
// common case and is not an error.
//
// Auto-escalate-only: if every trigger's target level is at or below the
// current level, Evaluate is a no-op regardless of how the inputs compare
// to thresholds. Nothing in this function can lower the level.
func (ks *KillSwitch) Evaluate(ctx context.Context, t Triggers) (*Decision, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	prev := ks.level
	target := prev
	why := t.Reason

	if t.DailyLossPct != nil && *t.DailyLossPct >= ks.thresholds.L1DailyLossPct {
		target = maxLevel(target, L1Caution)
		if why == "" {
			why = fmt.Sprintf("daily_loss_pct=%.4f", *t.DailyLossPct)
		}
	}
	if t.PortfolioHeatPct != nil && *t.PortfolioHeatPct >= ks.thresholds.L2PortfolioHeatPct {
		target = maxLevel(target, L2Defensive)
		if why == "" {
			why = fmt.Sprintf("portfolio_heat_pct=%.4f", *t.PortfolioHeatPct)
		}
	}
	if t.CrisisConfidence != nil && *t.CrisisConfidence >= ks.thresholds.L3CrisisThreshold {
		target = maxLevel(target, L3Lockdown)
		if why == "" {
			why = fmt.Sprintf("crisis_confidence=%.4f", *t.CrisisConfidence)
		}
	}
	if t.MaxDrawdownPct != nil && *t.MaxDrawdownPct >= ks.thresholds.L4MaxDrawdownPct {
		target = maxLevel(target, L4Emergency)
		if why == "" {
			why = fmt.Sprintf("max_drawdown_pct=%.4f", *t.MaxDrawdownPct)
		}
	}

	if target <= prev {
		return nil, nil
	}

	if why == "" {
		why = Messages[target]
	}
	dec := &Decision{Level: target, PreviousLevel: prev, Reason: why, Auto: true, Actor: "system"}
	if err := ks.persist(ctx, dec); err != nil {
		return nil, err
	}
	ks.level = target
	return dec, nil
}

func (ks *KillSwitch) persist(ctx context.Context, dec *Decision) error {
	_, err := ks.es.Append(ctx, eventstore.KindKillSwitchChanged, levelPayload{
		Level:         int(dec.Level),
		PreviousLevel: int(dec.PreviousLevel),
		Reason:        dec.Reason,
		Auto:          dec.Auto,
		Actor:         dec.Actor,
	})
	if err != nil {
		return fmt.Errorf("killswitch: persist transition: %w", err)
	}
	return nil
}

func maxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}
