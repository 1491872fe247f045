package approval

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	shiftA = "0b6f4a52-5a43-4e7e-8c7d-3a1f0c2b0001"
	shiftB = "0b6f4a52-5a43-4e7e-8c7d-3a1f0c2b0002"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return vErr.FieldErrors
}

func TestValidateLeave(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	valid := LeavePayload{Type: LeaveAnnual, Start: start, End: start.AddDate(0, 0, 5), Note: strings.Repeat("a", MaxLeaveNoteLength)}
	if err := ValidateLeave(valid); err != nil {
		t.Fatalf("expected valid leave, got %v", err)
	}

	invalid := LeavePayload{Type: "holiday", Start: start, End: start, Note: strings.Repeat("a", MaxLeaveNoteLength+1)}
	fe := fieldErrors(t, ValidateLeave(invalid))
	for _, field := range []string{"type", "end", "note"} {
		if _, ok := fe[field]; !ok {
			t.Fatalf("expected %s error, got %+v", field, fe)
		}
	}
}

func TestValidateSwap(t *testing.T) {
	t.Parallel()

	if err := ValidateSwap(SwapPayload{ShiftID: shiftA}); err != nil {
		t.Fatalf("expected valid swap, got %v", err)
	}
	other := shiftB
	if err := ValidateSwap(SwapPayload{ShiftID: shiftA, CounterpartyShiftID: &other}); err != nil {
		t.Fatalf("expected valid exchange, got %v", err)
	}

	same := shiftA
	fe := fieldErrors(t, ValidateSwap(SwapPayload{ShiftID: "nope", CounterpartyShiftID: &same}))
	if _, ok := fe["shift_id"]; !ok {
		t.Fatalf("expected shift_id error, got %+v", fe)
	}
}

func TestValidateCorrection(t *testing.T) {
	t.Parallel()

	in := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	if err := ValidateCorrection(CorrectionPayload{TimeEntryID: shiftA, ClockIn: in, ClockOut: in.Add(8 * time.Hour), Reason: "forgot to clock out"}); err != nil {
		t.Fatalf("expected valid correction, got %v", err)
	}

	fe := fieldErrors(t, ValidateCorrection(CorrectionPayload{TimeEntryID: shiftA, ClockIn: in, ClockOut: in, Reason: "  "}))
	if _, ok := fe["clock_out"]; !ok {
		t.Fatalf("expected clock_out error, got %+v", fe)
	}
	if _, ok := fe["reason"]; !ok {
		t.Fatalf("expected reason error, got %+v", fe)
	}
}

func TestValidationError_MessageIsSorted(t *testing.T) {
	t.Parallel()

	v := &ValidationError{}
	v.add("z", "last")
	v.add("a", "first")
	if got := v.Error(); got != "approval: validation failed: a: first; z: last" {
		t.Fatalf("unexpected message %q", got)
	}
	if (&ValidationError{}).orNil() != nil {
		t.Fatal("empty ValidationError must collapse to nil")
	}
}
