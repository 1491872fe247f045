//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	repo "github.com/ogurasousui/workforce-scheduling/internal/adapters/repository/postgres"
	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/audit"
	"github.com/ogurasousui/workforce-scheduling/internal/core/conflict"
	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
	"github.com/ogurasousui/workforce-scheduling/internal/core/schedule"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/config"
	pg "github.com/ogurasousui/workforce-scheduling/internal/platform/db/postgres"
)

const migrationsDir = "../../../../assets/migrations"

type stack struct {
	schedule *schedule.Service
	approval *approval.Service
}

func TestSchedulingIntegration(t *testing.T) {
	ctx := context.Background()
	pool := openPool(t)
	s := newStack(pool)

	tenant := "tenant-" + uuid.NewString()
	manager := access.Actor{ID: "manager-1", TenantID: tenant, Roles: []string{"manager"}}
	employee := access.Actor{ID: "employee-" + uuid.NewString(), TenantID: tenant, Roles: []string{"employee"}}

	_, err := s.schedule.OpenWindow(ctx, manager, schedule.OpenWindowInput{
		From: date(2026, time.January, 1),
		To:   date(2026, time.December, 31),
	})
	require.NoError(t, err)

	t.Run("overlapping shift is rejected", func(t *testing.T) {
		first, err := s.schedule.CreateShift(ctx, manager, schedule.CreateShiftInput{
			EmployeeID: employee.ID,
			StartsAt:   at(2026, time.March, 2, 9),
			EndsAt:     at(2026, time.March, 2, 17),
		})
		require.NoError(t, err)

		_, err = s.schedule.CreateShift(ctx, manager, schedule.CreateShiftInput{
			EmployeeID: employee.ID,
			StartsAt:   at(2026, time.March, 2, 12),
			EndsAt:     at(2026, time.March, 2, 20),
		})
		var cerr *conflict.Error
		require.ErrorAs(t, err, &cerr)
		require.Equal(t, conflict.ReasonOverlap, cerr.Reason)
		require.Equal(t, first.ID, cerr.ConflictingID)

		// 接するシフトは重複とみなさない
		_, err = s.schedule.CreateShift(ctx, manager, schedule.CreateShiftInput{
			EmployeeID: employee.ID,
			StartsAt:   at(2026, time.March, 2, 17),
			EndsAt:     at(2026, time.March, 2, 21),
		})
		require.NoError(t, err)
	})

	t.Run("exclusion constraint backs the service check", func(t *testing.T) {
		shifts := repo.NewShiftRepository(pool)
		_, err := shifts.Create(ctx, &schedule.Shift{
			TenantID:   tenant,
			EmployeeID: employee.ID,
			StartsAt:   at(2026, time.March, 2, 10),
			EndsAt:     at(2026, time.March, 2, 11),
		})
		reason, ok := conflict.ReasonOf(err)
		require.True(t, ok, "expected conflict, got %v", err)
		require.Equal(t, conflict.ReasonOverlap, reason)
	})

	t.Run("published dates are locked", func(t *testing.T) {
		_, err := s.schedule.Publish(ctx, manager, schedule.PublishInput{Until: date(2026, time.March, 31)})
		require.NoError(t, err)

		_, err = s.schedule.CreateShift(ctx, manager, schedule.CreateShiftInput{
			EmployeeID: employee.ID,
			StartsAt:   at(2026, time.March, 10, 9),
			EndsAt:     at(2026, time.March, 10, 17),
		})
		reason, ok := conflict.ReasonOf(err)
		require.True(t, ok, "expected conflict, got %v", err)
		require.Equal(t, conflict.ReasonLocked, reason)

		_, err = s.schedule.CreateShift(ctx, manager, schedule.CreateShiftInput{
			EmployeeID: employee.ID,
			StartsAt:   at(2026, time.April, 10, 9),
			EndsAt:     at(2026, time.April, 10, 17),
		})
		require.NoError(t, err)
	})

	t.Run("second overlapping leave cannot be approved", func(t *testing.T) {
		first, err := s.approval.Submit(ctx, employee, approval.SubmitInput{
			Payload: approval.LeavePayload{Type: approval.LeaveAnnual, Start: at(2026, time.April, 20, 0), End: at(2026, time.April, 23, 0)},
		})
		require.NoError(t, err)
		second, err := s.approval.Submit(ctx, employee, approval.SubmitInput{
			Payload: approval.LeavePayload{Type: approval.LeaveSick, Start: at(2026, time.April, 22, 0), End: at(2026, time.April, 24, 0)},
		})
		require.NoError(t, err)

		approved, err := s.approval.Approve(ctx, manager, approval.ReviewInput{ID: first.ID})
		require.NoError(t, err)
		require.Equal(t, approval.StatusApproved, approved.Status)

		_, err = s.approval.Approve(ctx, manager, approval.ReviewInput{ID: second.ID})
		reason, ok := conflict.ReasonOf(err)
		require.True(t, ok, "expected conflict, got %v", err)
		require.Equal(t, conflict.ReasonOverlap, reason)

		got, err := s.approval.Get(ctx, manager, approval.GetInput{ID: second.ID})
		require.NoError(t, err)
		require.Equal(t, approval.StatusPending, got.Status)
	})
}

func newStack(pool *pgxpool.Pool) stack {
	shifts := repo.NewShiftRepository(pool)
	windows := repo.NewWindowRepository(pool)
	requests := repo.NewApprovalRepository(pool)
	locker := pg.NewAdvisoryLocker()
	tx := pg.NewTransactionManager(pool)
	recorder := audit.NewBestEffort(repo.NewAuditRepository(pool), nil, nil)
	gate := schedule.NewGate(publishlock.ModeEnforce, time.UTC, nil)
	authz := access.DefaultRoles()

	scheduleSvc := schedule.NewService(schedule.Dependencies{
		Shifts:     shifts,
		Windows:    windows,
		Locker:     locker,
		Authorizer: authz,
		Audit:      recorder,
		Gate:       gate,
		Tx:         tx,
	})
	approvalSvc := approval.NewService(requests, authz, recorder, nil, tx)
	approvalSvc.RegisterEffect(approval.KindLeave, schedule.NewLeaveEffect(shifts, windows, requests, locker, gate))
	approvalSvc.RegisterEffect(approval.KindSwap, schedule.NewSwapEffect(shifts, windows, locker, gate))

	return stack{schedule: scheduleSvc, approval: approvalSvc}
}

func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	cfg, err := config.Load(configPathFromEnv())
	require.NoError(t, err)
	require.NoError(t, resetMigrations(cfg.Database.DSN(), migrationsDir))

	pool, err := pg.NewPool(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func resetMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func configPathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "../../../../assets/local.yaml"
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}
