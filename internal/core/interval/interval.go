package interval

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidRange = errors.New("interval: start must be before end")
	ErrInvalidOwner = errors.New("interval: owner id is required")
)

// Interval は半開区間 [Start, End) で表されるシフト・休暇などの時間帯です。
// 生成後は変更せず、編集時は新しい値に置き換えます。
type Interval struct {
	Start   time.Time
	End     time.Time
	OwnerID string
}

// New は Interval を生成します。start >= end の場合は ErrInvalidRange を返します。
func New(start, end time.Time, ownerID string) (Interval, error) {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return Interval{}, ErrInvalidOwner
	}
	if !start.Before(end) {
		return Interval{}, ErrInvalidRange
	}
	return Interval{Start: start, End: end, OwnerID: owner}, nil
}

// Overlaps は 2 つの区間が重なるかを返します。端点が接するだけの場合は重なりとみなしません。
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains は t が区間内にあるかを返します。
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Duration は区間の長さです。
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// WithOwner は所有者だけを差し替えた新しい区間を返します。
func (i Interval) WithOwner(ownerID string) (Interval, error) {
	return New(i.Start, i.End, ownerID)
}
