package attendance

import (
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
)

// Source は打刻の記録元です。
type Source string

const (
	SourceClock      Source = "clock"
	SourceCorrection Source = "correction"
)

// TimeEntry は RCP (勤怠打刻) の 1 勤務分の記録です。ClockOut が nil の間は勤務中です。
type TimeEntry struct {
	ID         string
	TenantID   string
	EmployeeID string
	ClockIn    time.Time
	ClockOut   *time.Time
	Source     Source
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen は退勤が未記録かを返します。
func (e *TimeEntry) IsOpen() bool {
	return e.ClockOut == nil
}

// Span は退勤済みの記録を区間として返します。勤務中の記録は false を返します。
func (e *TimeEntry) Span() (interval.Interval, bool) {
	if e.ClockOut == nil {
		return interval.Interval{}, false
	}
	return interval.Interval{Start: e.ClockIn, End: *e.ClockOut, OwnerID: e.EmployeeID}, true
}
