package httpapi

import (
	"context"
	"fmt"

	"github.com/P-U-C/b1e55ed/pkg/authz"
	"github.com/P-U-C/b1e55ed/pkg/identity"
)

// Action identifies one ingress operation: the four the role table in
// spec.md §6 grants or denies per principal type, plus append_raw_event.
type Action string

const (
	ActionSubmitSignal   Action = "submit_signal"
	ActionTriggerCycle   Action = "trigger_cycle"
	ActionSetKillSwitch  Action = "set_kill_switch"
	ActionSettleKarma    Action = "settle_karma"
	ActionAppendRawEvent Action = "append_raw_event"
)

// rolePermissions is the literal role table: which principal types may
// perform which action. append_raw_event has no row in spec.md's table —
// it is the raw append_event ingress operation, reserved to the operator
// role as the conservative default for an API with no declared shape
// constraint on what it writes.
var rolePermissions = map[Action][]identity.PrincipalType{
	ActionSubmitSignal:   {identity.PrincipalOperator, identity.PrincipalAgent, identity.PrincipalCurator, identity.PrincipalTester},
	ActionTriggerCycle:   {identity.PrincipalOperator},
	ActionSetKillSwitch:  {identity.PrincipalOperator},
	ActionSettleKarma:    {identity.PrincipalOperator},
	ActionAppendRawEvent: {identity.PrincipalOperator},
}

// RegisterRolePermissions writes every allowed (action, role) pair from
// the table above into az as ReBAC tuples, so the ingress's permission
// check is one az.Check call rather than a second, parallel permission
// system living only in this package.
func RegisterRolePermissions(ctx context.Context, az *authz.Engine) error {
	for action, roles := range rolePermissions {
		for _, role := range roles {
			tuple := authz.RelationTuple{
				Object:   fmt.Sprintf("action:%s", action),
				Relation: "allowed",
				Subject:  fmt.Sprintf("role:%s", role),
			}
			if err := az.WriteTuple(ctx, tuple); err != nil {
				return fmt.Errorf("httpapi: register permission %s/%s: %w", action, role, err)
			}
		}
	}
	return nil
}

// Authorize checks whether a principal of the given type may perform
// action, per the tuples RegisterRolePermissions wrote.
func Authorize(ctx context.Context, az *authz.Engine, action Action, principalType identity.PrincipalType) error {
	allowed, err := az.Check(ctx, fmt.Sprintf("action:%s", action), "allowed", fmt.Sprintf("role:%s", principalType))
	if err != nil {
		return fmt.Errorf("httpapi: authorize %s: %w", action, err)
	}
	if !allowed {
		return fmt.Errorf("%w: role %q cannot %s", ErrRoleForbidden, principalType, action)
	}
	return nil
}
