package httpapi_test

import (
	"context"
	"testing"

	"github.com/P-U-C/b1e55ed/pkg/authz"
	"github.com/P-U-C/b1e55ed/pkg/httpapi"
	"github.com/P-U-C/b1e55ed/pkg/identity"
	"github.com/stretchr/testify/require"
)

func TestAuthorize_FollowsTheRoleTable(t *testing.T) {
	ctx := context.Background()
	az := authz.NewEngine()
	require.NoError(t, httpapi.RegisterRolePermissions(ctx, az))

	// submit_signal is open to every role in the table.
	for _, role := range []identity.PrincipalType{
		identity.PrincipalOperator, identity.PrincipalAgent,
		identity.PrincipalCurator, identity.PrincipalTester,
	} {
		require.NoError(t, httpapi.Authorize(ctx, az, httpapi.ActionSubmitSignal, role), "role %s", role)
	}

	// trigger_cycle, set_kill_switch, settle_karma, and append_raw_event are
	// operator-only.
	restricted := []httpapi.Action{
		httpapi.ActionTriggerCycle, httpapi.ActionSetKillSwitch,
		httpapi.ActionSettleKarma, httpapi.ActionAppendRawEvent,
	}
	for _, action := range restricted {
		require.NoError(t, httpapi.Authorize(ctx, az, action, identity.PrincipalOperator), "action %s", action)
		err := httpapi.Authorize(ctx, az, action, identity.PrincipalAgent)
		require.ErrorIs(t, err, httpapi.ErrRoleForbidden, "action %s should deny agent", action)
	}
}

func TestAuthorize_UnregisteredEngineDeniesEverything(t *testing.T) {
	ctx := context.Background()
	az := authz.NewEngine()

	err := httpapi.Authorize(ctx, az, httpapi.ActionSubmitSignal, identity.PrincipalOperator)
	require.ErrorIs(t, err, httpapi.ErrRoleForbidden)
}
