package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/schedule"
	pgdb "github.com/ogurasousui/workforce-scheduling/internal/platform/db/postgres"
)

const approvalColumns = `id, tenant_id, kind, subject_employee_id, counterparty_employee_id, payload, status, created_by, reviewed_by, reviewed_at, note, created_at, updated_at`

// ApprovalRepository は PostgreSQL を利用した申請の永続化の実装です。
type ApprovalRepository struct {
	pool pgdb.Queryer
}

// NewApprovalRepository は ApprovalRepository を生成します。
func NewApprovalRepository(pool pgdb.Queryer) *ApprovalRepository {
	return &ApprovalRepository{pool: pool}
}

// Create は申請を新規作成します。
func (r *ApprovalRepository) Create(ctx context.Context, req *approval.Request) (*approval.Request, error) {
	payload, err := encodePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	spanStart, spanEnd := payloadSpan(req.Payload)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO approval_requests (
            tenant_id, kind, subject_employee_id, counterparty_employee_id, payload,
            span_start, span_end, status, created_by, note, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING `+approvalColumns,
		req.TenantID,
		string(req.Kind),
		req.SubjectEmployeeID,
		nullableString(req.CounterpartyEmployeeID),
		payload,
		nullableTime(spanStart),
		nullableTime(spanEnd),
		string(req.Status),
		req.CreatedBy,
		nullableString(req.Note),
		req.CreatedAt,
		req.UpdatedAt,
	)

	created, err := scanRequest(row)
	if err != nil {
		return nil, translateApprovalPgError(err)
	}
	return created, nil
}

// FindByID は ID で申請を取得します。
func (r *ApprovalRepository) FindByID(ctx context.Context, tenantID, id string) (*approval.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+approvalColumns+`
          FROM approval_requests
         WHERE id = $1 AND tenant_id = $2
         LIMIT 1
    `, id, tenantID)

	found, err := scanRequest(row)
	if err != nil {
		return nil, translateApprovalPgError(err)
	}
	return found, nil
}

// UpdateStatus は現在の状態が t.From の場合のみ状態を更新します。
func (r *ApprovalRepository) UpdateStatus(ctx context.Context, t approval.Transition) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE approval_requests
           SET status = $1,
               reviewed_by = COALESCE($2, reviewed_by),
               reviewed_at = COALESCE($3, reviewed_at),
               note = COALESCE($4, note),
               updated_at = $5
         WHERE id = $6 AND tenant_id = $7 AND status = $8
    `,
		string(t.To),
		nullableString(t.ReviewedBy),
		nullableTime(t.ReviewedAt),
		nullableString(t.Note),
		t.UpdatedAt,
		t.RequestID,
		t.TenantID,
		string(t.From),
	)
	if err != nil {
		return translateApprovalPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return approval.ErrStaleWrite
	}
	return nil
}

// List は申請の一覧を作成日時の新しい順で取得します。
func (r *ApprovalRepository) List(ctx context.Context, filter approval.ListFilter) ([]*approval.Request, string, error) {
	if strings.TrimSpace(filter.TenantID) == "" {
		return nil, "", approval.ErrInvalidID
	}
	if filter.Limit <= 0 {
		return nil, "", approval.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", approval.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 6)
	conditions := make([]string, 0, 4)

	args = append(args, filter.TenantID)
	conditions = append(conditions, "tenant_id = $1")

	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		conditions = append(conditions, "kind = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		p := "$" + strconv.Itoa(len(args))
		conditions = append(conditions, "(created_by = "+p+" OR subject_employee_id = "+p+" OR counterparty_employee_id = "+p+")")
	}

	args = append(args, limitWithBuffer)
	limitPlaceholder := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT ` + approvalColumns + `
          FROM approval_requests
         WHERE ` + strings.Join(conditions, " AND ") + `
         ORDER BY created_at DESC, id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateApprovalPgError(err)
	}
	defer rows.Close()

	requests := make([]*approval.Request, 0, filter.Limit)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, "", translateApprovalPgError(err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, "", translateApprovalPgError(err)
	}

	var nextToken string
	if len(requests) == limitWithBuffer {
		requests = requests[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return requests, nextToken, nil
}

// ListApprovedLeaves は [from, to) と重なる社員の承認済み休暇を返します。
func (r *ApprovalRepository) ListApprovedLeaves(ctx context.Context, tenantID, employeeID string, from, to time.Time) ([]schedule.LeaveSpan, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, span_start, span_end
          FROM approval_requests
         WHERE tenant_id = $1
           AND subject_employee_id = $2
           AND kind = 'leave'
           AND status = 'APPROVED'
           AND span_start < $4
           AND span_end > $3
         ORDER BY span_start, id
    `, tenantID, employeeID, from, to)
	if err != nil {
		return nil, translateApprovalPgError(err)
	}
	defer rows.Close()

	var spans []schedule.LeaveSpan
	for rows.Next() {
		var (
			id    string
			start time.Time
			end   time.Time
		)
		if err := rows.Scan(&id, &start, &end); err != nil {
			return nil, translateApprovalPgError(err)
		}
		span, err := interval.New(start.UTC(), end.UTC(), employeeID)
		if err != nil {
			return nil, err
		}
		spans = append(spans, schedule.LeaveSpan{RequestID: id, Span: span})
	}
	if err := rows.Err(); err != nil {
		return nil, translateApprovalPgError(err)
	}
	return spans, nil
}

func scanRequest(row pgx.Row) (*approval.Request, error) {
	var (
		id           string
		tenantID     string
		kind         string
		subject      string
		counterparty sql.NullString
		payload      []byte
		status       string
		createdBy    string
		reviewedBy   sql.NullString
		reviewedAt   sql.NullTime
		note         sql.NullString
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(&id, &tenantID, &kind, &subject, &counterparty, &payload, &status, &createdBy, &reviewedBy, &reviewedAt, &note, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, approval.ErrRequestNotFound
		}
		return nil, err
	}

	k := approval.Kind(kind)
	decoded, err := decodePayload(k, payload)
	if err != nil {
		return nil, err
	}

	return &approval.Request{
		ID:                     id,
		TenantID:               tenantID,
		Kind:                   k,
		SubjectEmployeeID:      subject,
		CounterpartyEmployeeID: stringPtr(counterparty),
		Payload:                decoded,
		Status:                 approval.Status(status),
		CreatedBy:              createdBy,
		ReviewedBy:             stringPtr(reviewedBy),
		ReviewedAt:             timePtr(reviewedAt),
		Note:                   stringPtr(note),
		CreatedAt:              createdAt,
		UpdatedAt:              updatedAt,
	}, nil
}

func translateApprovalPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return approval.ErrRequestNotFound
	}

	if pgErr, ok := pgErrorCode(err); ok {
		switch pgErr.Code {
		case invalidTextCode:
			return approval.ErrInvalidID
		case checkViolationCode:
			switch pgErr.ConstraintName {
			case "approval_requests_kind_check":
				return approval.ErrInvalidKind
			case "approval_requests_status_check":
				return approval.ErrInvalidStatus
			}
		}
	}

	return err
}
