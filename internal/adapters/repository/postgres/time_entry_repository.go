package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/workforce-scheduling/internal/core/attendance"
	pgdb "github.com/ogurasousui/workforce-scheduling/internal/platform/db/postgres"
)

const (
	timeEntryColumns    = `id, tenant_id, employee_id, clock_in, clock_out, source, created_at, updated_at`
	timeEntryOpenIndex  = "time_entries_one_open_idx"
	timeEntryRangeCheck = "time_entries_range_check"
)

// TimeEntryRepository は PostgreSQL を利用した打刻記録の永続化の実装です。
type TimeEntryRepository struct {
	pool pgdb.Queryer
}

// NewTimeEntryRepository は TimeEntryRepository を生成します。
func NewTimeEntryRepository(pool pgdb.Queryer) *TimeEntryRepository {
	return &TimeEntryRepository{pool: pool}
}

// Create は打刻記録を新規作成します。
func (r *TimeEntryRepository) Create(ctx context.Context, e *attendance.TimeEntry) (*attendance.TimeEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO time_entries (tenant_id, employee_id, clock_in, clock_out, source, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+timeEntryColumns,
		e.TenantID,
		e.EmployeeID,
		e.ClockIn,
		nullableTime(e.ClockOut),
		string(e.Source),
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanTimeEntry(row)
	if err != nil {
		return nil, translateTimeEntryPgError(err)
	}
	return created, nil
}

// Update は打刻記録を更新します。
func (r *TimeEntryRepository) Update(ctx context.Context, e *attendance.TimeEntry) (*attendance.TimeEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE time_entries
           SET clock_in = $1,
               clock_out = $2,
               source = $3,
               updated_at = $4
         WHERE id = $5 AND tenant_id = $6
        RETURNING `+timeEntryColumns,
		e.ClockIn,
		nullableTime(e.ClockOut),
		string(e.Source),
		e.UpdatedAt,
		e.ID,
		e.TenantID,
	)

	updated, err := scanTimeEntry(row)
	if err != nil {
		return nil, translateTimeEntryPgError(err)
	}
	return updated, nil
}

// FindByID は ID で打刻記録を取得します。
func (r *TimeEntryRepository) FindByID(ctx context.Context, tenantID, id string) (*attendance.TimeEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+timeEntryColumns+`
          FROM time_entries
         WHERE id = $1 AND tenant_id = $2
         LIMIT 1
    `, id, tenantID)

	found, err := scanTimeEntry(row)
	if err != nil {
		return nil, translateTimeEntryPgError(err)
	}
	return found, nil
}

// FindOpen は勤務中の記録を取得します。
func (r *TimeEntryRepository) FindOpen(ctx context.Context, tenantID, employeeID string) (*attendance.TimeEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+timeEntryColumns+`
          FROM time_entries
         WHERE tenant_id = $1 AND employee_id = $2 AND clock_out IS NULL
         LIMIT 1
    `, tenantID, employeeID)

	found, err := scanTimeEntry(row)
	if err != nil {
		return nil, translateTimeEntryPgError(err)
	}
	return found, nil
}

// ListOverlapping は [from, to) と重なる退勤済みの記録を返します。
func (r *TimeEntryRepository) ListOverlapping(ctx context.Context, tenantID, employeeID string, from, to time.Time) ([]*attendance.TimeEntry, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+timeEntryColumns+`
          FROM time_entries
         WHERE tenant_id = $1
           AND employee_id = $2
           AND clock_out IS NOT NULL
           AND clock_in < $4
           AND clock_out > $3
         ORDER BY clock_in, id
    `, tenantID, employeeID, from, to)
	if err != nil {
		return nil, translateTimeEntryPgError(err)
	}
	defer rows.Close()

	var entries []*attendance.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, translateTimeEntryPgError(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translateTimeEntryPgError(err)
	}
	return entries, nil
}

// List は打刻記録の一覧を出勤時刻の新しい順で取得します。
func (r *TimeEntryRepository) List(ctx context.Context, filter attendance.ListFilter) ([]*attendance.TimeEntry, string, error) {
	if strings.TrimSpace(filter.TenantID) == "" {
		return nil, "", attendance.ErrInvalidID
	}
	if filter.Limit <= 0 {
		return nil, "", attendance.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", attendance.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 6)
	conditions := make([]string, 0, 4)

	args = append(args, filter.TenantID)
	conditions = append(conditions, "tenant_id = $1")

	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, "employee_id = $"+strconv.Itoa(len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, "(clock_out IS NULL OR clock_out > $"+strconv.Itoa(len(args))+")")
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, "clock_in < $"+strconv.Itoa(len(args)))
	}

	args = append(args, limitWithBuffer)
	limitPlaceholder := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT ` + timeEntryColumns + `
          FROM time_entries
         WHERE ` + strings.Join(conditions, " AND ") + `
         ORDER BY clock_in DESC, id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateTimeEntryPgError(err)
	}
	defer rows.Close()

	entries := make([]*attendance.TimeEntry, 0, filter.Limit)
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, "", translateTimeEntryPgError(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", translateTimeEntryPgError(err)
	}

	var nextToken string
	if len(entries) == limitWithBuffer {
		entries = entries[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return entries, nextToken, nil
}

func scanTimeEntry(row pgx.Row) (*attendance.TimeEntry, error) {
	var (
		id         string
		tenantID   string
		employeeID string
		clockIn    time.Time
		clockOut   sql.NullTime
		source     string
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := row.Scan(&id, &tenantID, &employeeID, &clockIn, &clockOut, &source, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendance.ErrEntryNotFound
		}
		return nil, err
	}

	out := timePtr(clockOut)
	if out != nil {
		utc := out.UTC()
		out = &utc
	}

	return &attendance.TimeEntry{
		ID:         id,
		TenantID:   tenantID,
		EmployeeID: employeeID,
		ClockIn:    clockIn.UTC(),
		ClockOut:   out,
		Source:     attendance.Source(source),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func translateTimeEntryPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return attendance.ErrEntryNotFound
	}

	if pgErr, ok := pgErrorCode(err); ok {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == timeEntryOpenIndex {
				return attendance.ErrAlreadyClockedIn
			}
		case checkViolationCode:
			if pgErr.ConstraintName == timeEntryRangeCheck {
				return attendance.ErrInvalidRange
			}
		case invalidTextCode:
			return attendance.ErrInvalidID
		}
	}

	return err
}
