package publishlock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrLocked              = errors.New("publishlock: period locked")
	ErrInvalidMode         = errors.New("publishlock: invalid mode")
	ErrInvalidWindow       = errors.New("publishlock: window end before start")
	ErrOutsideWindow       = errors.New("publishlock: date outside schedule window")
	ErrWatermarkRegression = errors.New("publishlock: published_until cannot move backward")
	ErrInvalidTenantID     = errors.New("publishlock: invalid tenant id")
)

// Mode は公開ロックの適用モードです。
type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// ParseMode は設定値から Mode を解釈します。空文字は enforce として扱います。
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeEnforce:
		return ModeEnforce, nil
	case ModeShadow:
		return ModeShadow, nil
	case ModeDisabled:
		return ModeDisabled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

// DateOf は loc におけるカレンダー日付を UTC 午前 0 時で返します。
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsLocked は target の日付が publishedUntil 以前 (同日を含む) であれば true を返します。
// publishedUntil が nil の場合は何も公開されていないため false です。
func IsLocked(target time.Time, publishedUntil *time.Time) bool {
	if publishedUntil == nil {
		return false
	}
	return !normalizeDate(target).After(normalizeDate(*publishedUntil))
}

// CheckResult はモード付きのロック判定結果です。
type CheckResult struct {
	Mode           Mode
	Target         time.Time
	PublishedUntil *time.Time
	Violation      bool
}

// Check はモードに従ってロックを評価します。ErrLocked を返すのは enforce モードのみです。
// 呼び出し側が権限を判断し、バイパスする場合はこの関数を呼びません。
func Check(mode Mode, target time.Time, publishedUntil *time.Time) (CheckResult, error) {
	result := CheckResult{Mode: mode, Target: normalizeDate(target), PublishedUntil: cloneDate(publishedUntil)}

	switch mode {
	case ModeDisabled:
		return result, nil
	case ModeShadow:
		result.Violation = IsLocked(target, publishedUntil)
		return result, nil
	case ModeEnforce, "":
		result.Mode = ModeEnforce
		result.Violation = IsLocked(target, publishedUntil)
		if result.Violation {
			return result, ErrLocked
		}
		return result, nil
	default:
		return CheckResult{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func cloneDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := normalizeDate(*t)
	return &d
}
