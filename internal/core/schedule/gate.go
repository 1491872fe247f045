package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/conflict"
	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
	"github.com/sirupsen/logrus"
)

// Gate は公開ロックをモードとテナントのタイムゾーンに従って評価します。
type Gate struct {
	mode   publishlock.Mode
	loc    *time.Location
	logger logrus.FieldLogger
}

// NewGate は Gate を生成します。loc が nil の場合は UTC です。
func NewGate(mode publishlock.Mode, loc *time.Location, logger logrus.FieldLogger) *Gate {
	if mode == "" {
		mode = publishlock.ModeEnforce
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Gate{mode: mode, loc: loc, logger: logger}
}

// Location はロック判定に使うタイムゾーンです。
func (g *Gate) Location() *time.Location {
	return g.loc
}

// Check は start の日付がロックされていれば conflict.Locked を返します。
// window が nil の場合は何も公開されていないため常に許可します。
func (g *Gate) Check(window *publishlock.Window, resourceType, resourceID string, start time.Time) error {
	if window == nil {
		return nil
	}
	date := publishlock.DateOf(start, g.loc)
	result, err := publishlock.Check(g.mode, date, window.PublishedUntil)
	if errors.Is(err, publishlock.ErrLocked) {
		return conflict.Locked(resourceType, resourceID, date)
	}
	if err != nil {
		return err
	}
	if result.Violation {
		g.logger.WithFields(logrus.Fields{
			"tenant_id":       window.TenantID,
			"resource_type":   resourceType,
			"resource_id":     resourceID,
			"date":            date.Format("2006-01-02"),
			"published_until": window.PublishedUntil.Format("2006-01-02"),
			"mode":            string(result.Mode),
		}).Warn("publishlock.shadow_violation")
	}
	return nil
}

// canBypass は actor がロックを無視できるかを返します。
func canBypass(ctx context.Context, authz access.Authorizer, actor access.Actor) (bool, error) {
	if authz == nil {
		return false, nil
	}
	return authz.Can(ctx, actor, access.CapBypassLock)
}

func loadWindow(ctx context.Context, windows WindowRepository, tenantID string) (*publishlock.Window, error) {
	window, err := windows.FindForShare(ctx, tenantID)
	if errors.Is(err, ErrWindowNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return window, nil
}
