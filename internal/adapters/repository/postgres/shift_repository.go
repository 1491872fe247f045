package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/workforce-scheduling/internal/core/conflict"
	"github.com/ogurasousui/workforce-scheduling/internal/core/schedule"
	pgdb "github.com/ogurasousui/workforce-scheduling/internal/platform/db/postgres"
)

const (
	shiftColumns            = `id, tenant_id, employee_id, starts_at, ends_at, note, created_at, updated_at`
	shiftRangeConstraint    = "shifts_range_check"
	deferShiftOverlapClause = `SET CONSTRAINTS shifts_no_overlap DEFERRED`
	checkShiftOverlapClause = `SET CONSTRAINTS shifts_no_overlap IMMEDIATE`
)

// ShiftRepository は PostgreSQL を利用したシフト永続化の実装です。
type ShiftRepository struct {
	pool pgdb.Queryer
}

// NewShiftRepository は ShiftRepository を生成します。
func NewShiftRepository(pool pgdb.Queryer) *ShiftRepository {
	return &ShiftRepository{pool: pool}
}

// Create はシフトを新規作成します。
func (r *ShiftRepository) Create(ctx context.Context, s *schedule.Shift) (*schedule.Shift, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO shifts (tenant_id, employee_id, starts_at, ends_at, note, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+shiftColumns,
		s.TenantID,
		s.EmployeeID,
		s.StartsAt,
		s.EndsAt,
		nullableString(s.Note),
		s.CreatedAt,
		s.UpdatedAt,
	)

	created, err := scanShift(row)
	if err != nil {
		return nil, translateShiftPgError(err, s)
	}
	return created, nil
}

// Update はシフトを更新します。
func (r *ShiftRepository) Update(ctx context.Context, s *schedule.Shift) (*schedule.Shift, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE shifts
           SET employee_id = $1,
               starts_at = $2,
               ends_at = $3,
               note = $4,
               updated_at = $5
         WHERE id = $6 AND tenant_id = $7
        RETURNING `+shiftColumns,
		s.EmployeeID,
		s.StartsAt,
		s.EndsAt,
		nullableString(s.Note),
		s.UpdatedAt,
		s.ID,
		s.TenantID,
	)

	updated, err := scanShift(row)
	if err != nil {
		return nil, translateShiftPgError(err, s)
	}
	return updated, nil
}

// Delete はシフトを削除します。
func (r *ShiftRepository) Delete(ctx context.Context, tenantID, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM shifts WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return translateShiftPgError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrShiftNotFound
	}
	return nil
}

// FindByID は ID でシフトを取得します。
func (r *ShiftRepository) FindByID(ctx context.Context, tenantID, id string) (*schedule.Shift, error) {
	return r.find(ctx, tenantID, id, "")
}

// FindByIDForUpdate は行ロック付きでシフトを取得します。トランザクション内で呼び出してください。
func (r *ShiftRepository) FindByIDForUpdate(ctx context.Context, tenantID, id string) (*schedule.Shift, error) {
	return r.find(ctx, tenantID, id, " FOR UPDATE")
}

func (r *ShiftRepository) find(ctx context.Context, tenantID, id, lockClause string) (*schedule.Shift, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+shiftColumns+`
          FROM shifts
         WHERE id = $1 AND tenant_id = $2`+lockClause, id, tenantID)

	found, err := scanShift(row)
	if err != nil {
		return nil, translateShiftPgError(err, nil)
	}
	return found, nil
}

// ListOverlapping は [from, to) と重なる社員のシフトを開始時刻順で返します。
func (r *ShiftRepository) ListOverlapping(ctx context.Context, tenantID, employeeID string, from, to time.Time) ([]*schedule.Shift, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+shiftColumns+`
          FROM shifts
         WHERE tenant_id = $1
           AND employee_id = $2
           AND starts_at < $4
           AND ends_at > $3
         ORDER BY starts_at, id
    `, tenantID, employeeID, from, to)
	if err != nil {
		return nil, translateShiftPgError(err, nil)
	}
	defer rows.Close()

	var shifts []*schedule.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, translateShiftPgError(err, nil)
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, translateShiftPgError(err, nil)
	}
	return shifts, nil
}

// List はシフトの一覧を取得します。
func (r *ShiftRepository) List(ctx context.Context, filter schedule.ShiftFilter) ([]*schedule.Shift, string, error) {
	if strings.TrimSpace(filter.TenantID) == "" {
		return nil, "", schedule.ErrInvalidID
	}
	if filter.Limit <= 0 {
		return nil, "", schedule.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", schedule.ErrInvalidPageToken
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
		conditions = append(conditions, "ends_at > $"+strconv.Itoa(len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, "starts_at < $"+strconv.Itoa(len(args)))
	}

	args = append(args, limitWithBuffer)
	limitPlaceholder := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT ` + shiftColumns + `
          FROM shifts
         WHERE ` + strings.Join(conditions, " AND ") + `
         ORDER BY starts_at, id
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateShiftPgError(err, nil)
	}
	defer rows.Close()

	shifts := make([]*schedule.Shift, 0, filter.Limit)
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, "", translateShiftPgError(err, nil)
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, "", translateShiftPgError(err, nil)
	}

	var nextToken string
	if len(shifts) == limitWithBuffer {
		shifts = shifts[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return shifts, nextToken, nil
}

// Reassign はシフトの担当者をまとめて変更します。
// 交換の途中で一時的に重なるため重複制約を遅延させ、全件の更新後にその場で検査します。
func (r *ShiftRepository) Reassign(ctx context.Context, tenantID string, moves []schedule.Reassignment, updatedAt time.Time) error {
	if len(moves) == 0 {
		return nil
	}
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, deferShiftOverlapClause); err != nil {
		return translateShiftPgError(err, nil)
	}
	for _, move := range moves {
		tag, err := exec.Exec(ctx, `
            UPDATE shifts
               SET employee_id = $1,
                   updated_at = $2
             WHERE id = $3 AND tenant_id = $4
        `, move.EmployeeID, updatedAt, move.ShiftID, tenantID)
		if err != nil {
			return translateShiftPgError(err, nil)
		}
		if tag.RowsAffected() == 0 {
			return schedule.ErrShiftNotFound
		}
	}
	if _, err := exec.Exec(ctx, checkShiftOverlapClause); err != nil {
		return translateShiftPgError(err, nil)
	}
	return nil
}

func scanShift(row pgx.Row) (*schedule.Shift, error) {
	var (
		id         string
		tenantID   string
		employeeID string
		startsAt   time.Time
		endsAt     time.Time
		note       sql.NullString
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := row.Scan(&id, &tenantID, &employeeID, &startsAt, &endsAt, &note, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrShiftNotFound
		}
		return nil, err
	}

	return &schedule.Shift{
		ID:         id,
		TenantID:   tenantID,
		EmployeeID: employeeID,
		StartsAt:   startsAt.UTC(),
		EndsAt:     endsAt.UTC(),
		Note:       stringPtr(note),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

// translateShiftPgError は制約違反をドメインエラーに変換します。
// 排他制約違反はアドバイザリロックをすり抜けた同時書き込みであり、重複として扱います。
func translateShiftPgError(err error, s *schedule.Shift) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.ErrShiftNotFound
	}

	if pgErr, ok := pgErrorCode(err); ok {
		switch pgErr.Code {
		case exclusionViolationCode:
			owner := ""
			if s != nil {
				owner = s.EmployeeID
			}
			return conflict.Overlap("shift", owner, "")
		case checkViolationCode:
			if pgErr.ConstraintName == shiftRangeConstraint {
				return schedule.ErrInvalidRange
			}
		case invalidTextCode:
			return schedule.ErrInvalidID
		}
	}

	return err
}
