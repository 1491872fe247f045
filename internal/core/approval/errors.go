package approval

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidID         = errors.New("approval: invalid id")
	ErrInvalidKind       = errors.New("approval: invalid kind")
	ErrInvalidStatus     = errors.New("approval: invalid status")
	ErrInvalidPageSize   = errors.New("approval: invalid page size")
	ErrInvalidPageToken  = errors.New("approval: invalid page token")
	ErrInvalidTransition = errors.New("approval: invalid status transition")
	ErrStaleWrite        = errors.New("approval: request already resolved by another writer")
	ErrForbidden         = errors.New("approval: manage capability required")
	ErrNotCreator        = errors.New("approval: only the creator can cancel")
	ErrRequestNotFound   = errors.New("approval: request not found")
)

// TransitionError は終端状態からの遷移など、許可されない遷移を表します。
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("approval: invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError はフィールド単位の入力検証エラーをまとめます。
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "approval: validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "approval: validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) orNil() error {
	if v == nil || len(v.FieldErrors) == 0 {
		return nil
	}
	return v
}
