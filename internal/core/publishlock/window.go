package publishlock

import (
	"strings"
	"time"
)

// Window はテナントのスケジュール期間と公開済み日付 (ウォーターマーク) を表します。
type Window struct {
	TenantID       string
	From           time.Time
	To             time.Time
	PublishedUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewWindow は未公開の Window を生成します。
func NewWindow(tenantID string, from, to time.Time) (Window, error) {
	tenant := strings.TrimSpace(tenantID)
	if tenant == "" {
		return Window{}, ErrInvalidTenantID
	}
	from = normalizeDate(from)
	to = normalizeDate(to)
	if to.Before(from) {
		return Window{}, ErrInvalidWindow
	}
	return Window{TenantID: tenant, From: from, To: to}, nil
}

// IsLocked は target がこの Window の公開済み範囲に含まれるかを返します。
func (w Window) IsLocked(target time.Time) bool {
	return IsLocked(target, w.PublishedUntil)
}

// Publish はウォーターマークを until まで前進させます。
// 同じ日付の場合は変更なしとして扱い、後退はエラーです。
func (w Window) Publish(until time.Time) (Window, error) {
	until = normalizeDate(until)
	if until.Before(w.From) || until.After(w.To) {
		return Window{}, ErrOutsideWindow
	}
	if w.PublishedUntil != nil && until.Before(*w.PublishedUntil) {
		return Window{}, ErrWatermarkRegression
	}
	next := w
	next.PublishedUntil = &until
	return next, nil
}

// Extend は期間の終端を後ろに延ばします。
func (w Window) Extend(to time.Time) (Window, error) {
	to = normalizeDate(to)
	if to.Before(w.To) {
		return Window{}, ErrInvalidWindow
	}
	next := w
	next.To = to
	return next, nil
}

// Override は管理者操作としてウォーターマークを任意の値 (nil を含む) に設定します。
func (w Window) Override(until *time.Time) Window {
	next := w
	next.PublishedUntil = cloneDate(until)
	return next
}
