package schedule

import "errors"

var (
	ErrInvalidID         = errors.New("schedule: invalid id")
	ErrInvalidEmployeeID = errors.New("schedule: invalid employee id")
	ErrInvalidPageSize   = errors.New("schedule: invalid page size")
	ErrInvalidPageToken  = errors.New("schedule: invalid page token")
	ErrInvalidRange      = errors.New("schedule: invalid time range")
	ErrShiftTooLong      = errors.New("schedule: shift exceeds maximum duration")
	ErrNoteTooLong       = errors.New("schedule: note too long")
	ErrShiftNotFound     = errors.New("schedule: shift not found")
	ErrShiftNotOwned     = errors.New("schedule: shift does not belong to employee")
	ErrWindowNotFound    = errors.New("schedule: schedule window not found")
	ErrForbidden         = errors.New("schedule: schedule capability required")
	ErrNoUpdateFields    = errors.New("schedule: no fields to update")
	ErrConcurrentUpdate  = errors.New("schedule: shift changed concurrently")
)
