package attendance

import "errors"

var (
	ErrInvalidID        = errors.New("attendance: invalid id")
	ErrInvalidRange     = errors.New("attendance: clock_out must be after clock_in")
	ErrInvalidPageSize  = errors.New("attendance: invalid page size")
	ErrInvalidPageToken = errors.New("attendance: invalid page token")
	ErrAlreadyClockedIn = errors.New("attendance: already clocked in")
	ErrNotClockedIn     = errors.New("attendance: not clocked in")
	ErrEntryNotFound    = errors.New("attendance: time entry not found")
	ErrEntryNotOwned    = errors.New("attendance: time entry does not belong to employee")
	ErrForbidden        = errors.New("attendance: manage capability required")
)
