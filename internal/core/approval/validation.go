package approval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	MaxLeaveNoteLength = 1024
	MaxNoteLength      = 1000
)

var validate = validator.New()

// ValidateLeave は休暇申請の内容を検証します。
func ValidateLeave(p LeavePayload) error {
	v := &ValidationError{}
	if err := validate.Var(string(p.Type), "required,oneof=annual sick on_demand unpaid other"); err != nil {
		v.add("type", "must be one of annual, sick, on_demand, unpaid, other")
	}
	if p.Start.IsZero() {
		v.add("start", "is required")
	}
	if p.End.IsZero() {
		v.add("end", "is required")
	}
	if !p.Start.IsZero() && !p.End.IsZero() && !p.Start.Before(p.End) {
		v.add("end", "must be after start")
	}
	checkLength(v, "note", p.Note, MaxLeaveNoteLength)
	return v.orNil()
}

// ValidateSwap はシフト交換申請の内容を検証します。
func ValidateSwap(p SwapPayload) error {
	v := &ValidationError{}
	checkID(v, "shift_id", p.ShiftID)
	if p.CounterpartyShiftID != nil {
		checkID(v, "counterparty_shift_id", *p.CounterpartyShiftID)
		if strings.TrimSpace(*p.CounterpartyShiftID) == strings.TrimSpace(p.ShiftID) {
			v.add("counterparty_shift_id", "must differ from shift_id")
		}
	}
	checkLength(v, "note", p.Note, MaxNoteLength)
	return v.orNil()
}

// ValidateCorrection は打刻修正申請の内容を検証します。
func ValidateCorrection(p CorrectionPayload) error {
	v := &ValidationError{}
	checkID(v, "time_entry_id", p.TimeEntryID)
	if p.ClockIn.IsZero() {
		v.add("clock_in", "is required")
	}
	if p.ClockOut.IsZero() {
		v.add("clock_out", "is required")
	}
	if !p.ClockIn.IsZero() && !p.ClockOut.IsZero() && !p.ClockIn.Before(p.ClockOut) {
		v.add("clock_out", "must be after clock_in")
	}
	if err := validate.Var(strings.TrimSpace(p.Reason), "required"); err != nil {
		v.add("reason", "is required")
	}
	checkLength(v, "reason", p.Reason, MaxNoteLength)
	return v.orNil()
}

// ValidatePayload は種別に応じた検証関数へ振り分けます。
func ValidatePayload(p Payload) error {
	switch typed := p.(type) {
	case LeavePayload:
		return ValidateLeave(typed)
	case SwapPayload:
		return ValidateSwap(typed)
	case CorrectionPayload:
		return ValidateCorrection(typed)
	default:
		return ErrInvalidKind
	}
}

// normalizePayload は ID の前後の空白を取り除いた Payload を返します。
func normalizePayload(p Payload) Payload {
	switch typed := p.(type) {
	case SwapPayload:
		typed.ShiftID = strings.TrimSpace(typed.ShiftID)
		if typed.CounterpartyShiftID != nil {
			cp := strings.TrimSpace(*typed.CounterpartyShiftID)
			typed.CounterpartyShiftID = &cp
		}
		return typed
	case CorrectionPayload:
		typed.TimeEntryID = strings.TrimSpace(typed.TimeEntryID)
		return typed
	default:
		return p
	}
}

func validateReviewNote(note *string) error {
	if note == nil {
		return nil
	}
	v := &ValidationError{}
	checkLength(v, "note", *note, MaxNoteLength)
	return v.orNil()
}

func checkLength(v *ValidationError, field, value string, max int) {
	if err := validate.Var(value, fmt.Sprintf("max=%d", max)); err != nil {
		v.add(field, fmt.Sprintf("must be at most %d characters (got %d)", max, utf8.RuneCountInString(value)))
	}
}

func checkID(v *ValidationError, field, value string) {
	if _, err := uuid.Parse(strings.TrimSpace(value)); err != nil {
		v.add(field, "must be a valid uuid")
	}
}

func normalizeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if _, err := uuid.Parse(trimmed); err != nil {
		return "", ErrInvalidID
	}
	return trimmed, nil
}
