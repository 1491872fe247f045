package attendance

import (
	"context"
	"time"
)

// Repository は打刻記録の永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, entry *TimeEntry) (*TimeEntry, error)
	Update(ctx context.Context, entry *TimeEntry) (*TimeEntry, error)
	FindByID(ctx context.Context, tenantID, id string) (*TimeEntry, error)
	// FindOpen は employeeID の勤務中の記録を返します。無ければ ErrEntryNotFound です。
	FindOpen(ctx context.Context, tenantID, employeeID string) (*TimeEntry, error)
	// ListOverlapping は [from, to) と重なる退勤済みの記録を返します。
	ListOverlapping(ctx context.Context, tenantID, employeeID string, from, to time.Time) ([]*TimeEntry, error)
	List(ctx context.Context, filter ListFilter) ([]*TimeEntry, string, error)
}

// ListFilter は一覧取得用フィルタです。
type ListFilter struct {
	TenantID   string
	EmployeeID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Locker は社員単位のアドバイザリロックを取得します。
type Locker interface {
	Lock(ctx context.Context, keys ...string) error
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, ...string) error {
	return nil
}

func lockKey(tenantID, employeeID string) string {
	return tenantID + ":" + employeeID + ":rcp"
}
