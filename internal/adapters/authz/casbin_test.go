package authz

import (
	"context"
	"testing"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/stretchr/testify/require"
)

func TestEnforcer_DefaultRoles(t *testing.T) {
	t.Parallel()

	enf, err := NewEnforcer(nil)
	require.NoError(t, err)

	ctx := context.Background()
	manager := access.Actor{ID: "mgr-1", TenantID: "tenant-1", Roles: []string{"manager"}}
	admin := access.Actor{ID: "adm-1", TenantID: "tenant-1", Roles: []string{"employee", "admin"}}
	employee := access.Actor{ID: "emp-1", TenantID: "tenant-1", Roles: []string{"employee"}}

	ok, err := enf.Can(ctx, manager, access.CapManageRequests)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = enf.Can(ctx, manager, access.CapBypassLock)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = enf.Can(ctx, admin, access.CapOverrideLock)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = enf.Can(ctx, employee, access.CapManageSchedule)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEnforcer_ConfiguredRoles(t *testing.T) {
	t.Parallel()

	enf, err := NewEnforcer(map[string][]string{
		"planner": {string(access.CapManageSchedule)},
	})
	require.NoError(t, err)

	ctx := context.Background()
	planner := access.Actor{ID: "p-1", TenantID: "tenant-1", Roles: []string{"planner"}}
	manager := access.Actor{ID: "mgr-1", TenantID: "tenant-1", Roles: []string{"manager"}}

	ok, err := enf.Can(ctx, planner, access.CapManageSchedule)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = enf.Can(ctx, manager, access.CapManageSchedule)
	require.NoError(t, err)
	require.False(t, ok, "configured roles replace the defaults")

	require.NoError(t, enf.Grant("planner", access.CapManageRequests))
	ok, err = enf.Can(ctx, planner, access.CapManageRequests)
	require.NoError(t, err)
	require.True(t, ok)
}
