package killswitch

import (
	"context"
	"fmt"

	"github.com/P-U-C/b1e55ed/pkg/authz"
	"github.com/P-U-C/b1e55ed/pkg/escalation"
	"github.com/P-U-C/b1e55ed/pkg/identity"
)

// RequestDeescalate opens an elevated-authorization intent for lowering the
// kill switch to targetLevel. It does not change the level — that only
// happens once the intent clears its approval quorum and ApplyDeescalate is
// called. Reuses pkg/escalation's ceremony machinery rather than a bespoke
// approval path, since de-escalating the kill switch and changing karma
// settlement policy are the same kind of operation: something only an
// operator holding elevated authorization may do, and only after a
// deliberate approval step.
func (ks *KillSwitch) RequestDeescalate(ctx context.Context, mgr *escalation.Manager, requestedBy string, targetLevel Level, reason string) (*escalation.Intent, error) {
	current := ks.Level()
	if targetLevel >= current {
		return nil, fmt.Errorf("killswitch: target level %s is not a de-escalation from %s", targetLevel, current)
	}

	return mgr.CreateIntent(ctx, escalation.KindKillSwitchDeescalate, requestedBy, reason,
		map[string]interface{}{
			"target_level":  int(targetLevel),
			"current_level": int(current),
		}, nil)
}

// ApplyDeescalate performs the level transition for an approved intent. It
// re-checks three independent things before touching state: the intent
// itself reached quorum approval, the caller's token carries the separate
// elevated-authorization claim (compromising a normal operator token must
// not be enough), and the authorization engine grants the caller the
// kill_switch:deescalate relation. Any one failing denies the whole call.
func (ks *KillSwitch) ApplyDeescalate(ctx context.Context, intent *escalation.Intent, claims *identity.IdentityClaims, az *authz.Engine) (*Decision, error) {
	if intent.Kind != escalation.KindKillSwitchDeescalate {
		return nil, fmt.Errorf("killswitch: intent %s is not a deescalate request", intent.IntentID)
	}
	if intent.Status != escalation.StatusApproved {
		return nil, fmt.Errorf("killswitch: intent %s has not been approved (status=%s)", intent.IntentID, intent.Status)
	}
	if claims == nil || !claims.Elevated {
		return nil, ErrNotElevated
	}
	allowed, err := az.Check(ctx, "kill_switch", "deescalate", claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("killswitch: authz check: %w", err)
	}
	if !allowed {
		return nil, ErrDeescalateDenied
	}

	targetRaw, ok := intent.Payload["target_level"]
	if !ok {
		return nil, fmt.Errorf("killswitch: intent %s missing target_level", intent.IntentID)
	}
	target, err := toLevel(targetRaw)
	if err != nil {
		return nil, fmt.Errorf("killswitch: intent %s: %w", intent.IntentID, err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	prev := ks.level
	dec := &Decision{
		Level:         target,
		PreviousLevel: prev,
		Reason:        intent.Reason,
		Auto:          false,
		Actor:         claims.Subject,
	}
	if err := ks.persist(ctx, dec); err != nil {
		return nil, err
	}
	ks.level = target
	return dec, nil
}

func toLevel(v interface{}) (Level, error) {
	switch n := v.(type) {
	case int:
		return Level(n), nil
	case int64:
		return Level(n), nil
	case float64:
		return Level(int(n)), nil
	default:
		return 0, fmt.Errorf("unexpected target_level type %T", v)
	}
}
