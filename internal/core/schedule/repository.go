package schedule

import (
	"context"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
)

// ShiftRepository はシフトの永続化の抽象です。
type ShiftRepository interface {
	Create(ctx context.Context, shift *Shift) (*Shift, error)
	Update(ctx context.Context, shift *Shift) (*Shift, error)
	Delete(ctx context.Context, tenantID, id string) error
	FindByID(ctx context.Context, tenantID, id string) (*Shift, error)
	// FindByIDForUpdate は行ロック付きで読み込みます。同じシフトへの並行した更新は終了まで待たされます。
	FindByIDForUpdate(ctx context.Context, tenantID, id string) (*Shift, error)
	// ListOverlapping は employeeID のシフトのうち [from, to) と重なるものを返します。
	ListOverlapping(ctx context.Context, tenantID, employeeID string, from, to time.Time) ([]*Shift, error)
	List(ctx context.Context, filter ShiftFilter) ([]*Shift, string, error)
	Reassign(ctx context.Context, tenantID string, moves []Reassignment, updatedAt time.Time) error
}

// ShiftFilter は一覧取得用フィルタです。
type ShiftFilter struct {
	TenantID   string
	EmployeeID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// WindowRepository はテナントごとのスケジュール期間の永続化の抽象です。
type WindowRepository interface {
	// Find は Window を読み込みます。存在しない場合は ErrWindowNotFound です。
	Find(ctx context.Context, tenantID string) (*publishlock.Window, error)
	// FindForShare は共有ロックで Window を読み込み、判定中のウォーターマーク変更を待たせます。
	FindForShare(ctx context.Context, tenantID string) (*publishlock.Window, error)
	// FindForUpdate は排他ロックで Window を読み込みます。
	FindForUpdate(ctx context.Context, tenantID string) (*publishlock.Window, error)
	Save(ctx context.Context, window publishlock.Window) (*publishlock.Window, error)
}

// Locker は社員・週単位のアドバイザリロックを取得します。ロックはトランザクション終了時に解放されます。
type Locker interface {
	Lock(ctx context.Context, keys ...string) error
}

// LeaveFinder は承認済み休暇の区間を検索します。
type LeaveFinder interface {
	ListApprovedLeaves(ctx context.Context, tenantID, employeeID string, from, to time.Time) ([]LeaveSpan, error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, ...string) error {
	return nil
}
