package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
)

// Shift は社員 1 人に割り当てられた勤務枠です。
type Shift struct {
	ID         string
	TenantID   string
	EmployeeID string
	StartsAt   time.Time
	EndsAt     time.Time
	Note       *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Span はシフトを社員を所有者とする区間として返します。
func (s *Shift) Span() interval.Interval {
	return interval.Interval{Start: s.StartsAt, End: s.EndsAt, OwnerID: s.EmployeeID}
}

// LeaveSpan は承認済み休暇の区間です。
type LeaveSpan struct {
	RequestID string
	Span      interval.Interval
}

// Reassignment はシフトの担当者変更です。
type Reassignment struct {
	ShiftID    string
	EmployeeID string
}

// LockKeys は span が含まれる ISO 週ごとのロックキーを昇順で返します。
// 重なる 2 つの区間は必ず共通のキーを持つため、同じキー集合で直列化できます。
func LockKeys(tenantID, employeeID string, span interval.Interval, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	seen := make(map[string]struct{})
	last := span.End.Add(-time.Nanosecond).In(loc)
	last = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)
	day := span.Start.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	for !day.After(last) {
		year, week := day.ISOWeek()
		seen[fmt.Sprintf("%s:%s:%04d-W%02d", tenantID, employeeID, year, week)] = struct{}{}
		day = day.AddDate(0, 0, 7)
	}
	year, week := last.ISOWeek()
	seen[fmt.Sprintf("%s:%s:%04d-W%02d", tenantID, employeeID, year, week)] = struct{}{}

	return sortedKeys(seen)
}

// MergeKeys は複数のキー集合を重複なく昇順にまとめます。
func MergeKeys(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, key := range set {
			seen[key] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(seen map[string]struct{}) []string {
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
