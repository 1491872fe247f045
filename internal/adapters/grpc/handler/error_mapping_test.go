package handler

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/attendance"
	"github.com/ogurasousui/workforce-scheduling/internal/core/conflict"
	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
	"github.com/ogurasousui/workforce-scheduling/internal/core/schedule"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatusError_Codes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"missing actor", access.ErrMissingActor, codes.Unauthenticated},
		{"validation", &approval.ValidationError{FieldErrors: map[string]string{"start": "required"}}, codes.InvalidArgument},
		{"shift too long", schedule.ErrShiftTooLong, codes.InvalidArgument},
		{"wrapped invalid id", fmt.Errorf("load: %w", approval.ErrInvalidID), codes.InvalidArgument},
		{"shift not found", schedule.ErrShiftNotFound, codes.NotFound},
		{"request not found", approval.ErrRequestNotFound, codes.NotFound},
		{"forbidden", schedule.ErrForbidden, codes.PermissionDenied},
		{"not creator", approval.ErrNotCreator, codes.PermissionDenied},
		{"overlap", conflict.Overlap("shift", "emp-1", "shift-9"), codes.FailedPrecondition},
		{"terminal transition", &approval.TransitionError{From: approval.StatusApproved, To: approval.StatusCancelled}, codes.FailedPrecondition},
		{"watermark regression", publishlock.ErrWatermarkRegression, codes.FailedPrecondition},
		{"already clocked in", attendance.ErrAlreadyClockedIn, codes.FailedPrecondition},
		{"stale write", approval.ErrStaleWrite, codes.Aborted},
		{"concurrent shift update", schedule.ErrConcurrentUpdate, codes.Aborted},
		{"unknown", errors.New("boom"), codes.Internal},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := status.Code(toStatusError(tc.err)); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if toStatusError(nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestToStatusError_PassesThroughStatus(t *testing.T) {
	t.Parallel()

	in := status.Error(codes.InvalidArgument, "starts_at is required")
	if got := toStatusError(in); got != in {
		t.Fatalf("expected the same status error, got %v", got)
	}
}

func TestToStatusError_ConflictDetails(t *testing.T) {
	t.Parallel()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	st := status.Convert(toStatusError(conflict.Locked("shift", "shift-1", date)))

	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %s", st.Code())
	}

	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok {
			info = ei
		}
	}
	if info == nil {
		t.Fatalf("expected ErrorInfo detail, got %v", st.Details())
	}
	if info.GetReason() != "LOCKED" || info.GetMetadata()["date"] != "2024-01-15" || info.GetMetadata()["resource_id"] != "shift-1" {
		t.Fatalf("unexpected error info %+v", info)
	}
}
