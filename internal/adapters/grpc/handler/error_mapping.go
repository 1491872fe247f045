package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/attendance"
	"github.com/ogurasousui/workforce-scheduling/internal/core/conflict"
	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
	"github.com/ogurasousui/workforce-scheduling/internal/core/schedule"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const conflictDomain = "workforce.scheduling"

func toStatusError(err error) error {
	var validation *approval.ValidationError

	switch {
	case err == nil:
		return nil
	case isStatus(err):
		return err
	case errors.Is(err, access.ErrMissingActor):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.As(err, &validation),
		errors.Is(err, interval.ErrInvalidRange),
		errors.Is(err, interval.ErrInvalidOwner),
		errors.Is(err, publishlock.ErrInvalidWindow),
		errors.Is(err, publishlock.ErrInvalidTenantID),
		errors.Is(err, schedule.ErrInvalidID),
		errors.Is(err, schedule.ErrInvalidEmployeeID),
		errors.Is(err, schedule.ErrInvalidPageSize),
		errors.Is(err, schedule.ErrInvalidPageToken),
		errors.Is(err, schedule.ErrInvalidRange),
		errors.Is(err, schedule.ErrShiftTooLong),
		errors.Is(err, schedule.ErrNoteTooLong),
		errors.Is(err, schedule.ErrNoUpdateFields),
		errors.Is(err, schedule.ErrShiftNotOwned),
		errors.Is(err, approval.ErrInvalidID),
		errors.Is(err, approval.ErrInvalidKind),
		errors.Is(err, approval.ErrInvalidStatus),
		errors.Is(err, approval.ErrInvalidPageSize),
		errors.Is(err, approval.ErrInvalidPageToken),
		errors.Is(err, attendance.ErrInvalidID),
		errors.Is(err, attendance.ErrInvalidRange),
		errors.Is(err, attendance.ErrInvalidPageSize),
		errors.Is(err, attendance.ErrInvalidPageToken),
		errors.Is(err, attendance.ErrEntryNotOwned):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, schedule.ErrShiftNotFound),
		errors.Is(err, schedule.ErrWindowNotFound),
		errors.Is(err, approval.ErrRequestNotFound),
		errors.Is(err, attendance.ErrEntryNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, schedule.ErrForbidden),
		errors.Is(err, approval.ErrForbidden),
		errors.Is(err, approval.ErrNotCreator),
		errors.Is(err, attendance.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, conflict.ErrConflict):
		return conflictStatus(err)
	case errors.Is(err, approval.ErrInvalidTransition),
		errors.Is(err, publishlock.ErrOutsideWindow),
		errors.Is(err, publishlock.ErrWatermarkRegression),
		errors.Is(err, attendance.ErrAlreadyClockedIn),
		errors.Is(err, attendance.ErrNotClockedIn):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, approval.ErrStaleWrite),
		errors.Is(err, schedule.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// conflictStatus は競合の種類と対象を ErrorInfo として付加します。
func conflictStatus(err error) error {
	st := status.New(codes.FailedPrecondition, err.Error())

	info := &errdetails.ErrorInfo{Domain: conflictDomain, Reason: "SCHEDULE_CONFLICT", Metadata: map[string]string{}}
	var cErr *conflict.Error
	if errors.As(err, &cErr) {
		info.Reason = strings.ToUpper(string(cErr.Reason))
		putIfSet(info.Metadata, "resource_type", cErr.ResourceType)
		putIfSet(info.Metadata, "resource_id", cErr.ResourceID)
		putIfSet(info.Metadata, "owner_id", cErr.OwnerID)
		putIfSet(info.Metadata, "conflicting_id", cErr.ConflictingID)
		if cErr.Date != nil {
			info.Metadata["date"] = cErr.Date.Format(time.DateOnly)
		}
	}

	withDetails, detailErr := st.WithDetails(info)
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

func putIfSet(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func isStatus(err error) bool {
	_, ok := status.FromError(err)
	return ok
}
