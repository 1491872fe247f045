package conflict

import (
	"errors"
	"fmt"
	"time"
)

// ErrConflict はスケジュール競合 (重複またはロック違反) を表す番兵エラーです。
var ErrConflict = errors.New("conflict: schedule conflict")

// Reason は競合の種類です。
type Reason string

const (
	ReasonOverlap Reason = "overlap"
	ReasonLocked  Reason = "locked"
)

// Error は競合の詳細を保持します。errors.Is(err, ErrConflict) で判定できます。
type Error struct {
	Reason        Reason
	ResourceType  string
	ResourceID    string
	OwnerID       string
	ConflictingID string
	Date          *time.Time
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonLocked:
		if e.Date != nil {
			return fmt.Sprintf("conflict: period locked (%s on %s)", e.ResourceType, e.Date.Format("2006-01-02"))
		}
		return fmt.Sprintf("conflict: period locked (%s)", e.ResourceType)
	default:
		if e.ConflictingID != "" {
			return fmt.Sprintf("conflict: schedule conflict (%s overlaps %s)", e.ResourceType, e.ConflictingID)
		}
		return fmt.Sprintf("conflict: schedule conflict (%s)", e.ResourceType)
	}
}

func (e *Error) Unwrap() error {
	return ErrConflict
}

// Overlap は重複による競合を生成します。
func Overlap(resourceType, ownerID, conflictingID string) *Error {
	return &Error{Reason: ReasonOverlap, ResourceType: resourceType, OwnerID: ownerID, ConflictingID: conflictingID}
}

// Locked は公開ロック違反による競合を生成します。
func Locked(resourceType, resourceID string, date time.Time) *Error {
	d := date
	return &Error{Reason: ReasonLocked, ResourceType: resourceType, ResourceID: resourceID, Date: &d}
}

// ReasonOf は err に含まれる競合の種類を返します。
func ReasonOf(err error) (Reason, bool) {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Reason, true
	}
	if errors.Is(err, ErrConflict) {
		return ReasonOverlap, true
	}
	return "", false
}
