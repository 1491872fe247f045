package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
	"github.com/ogurasousui/workforce-scheduling/internal/core/schedule"
	pgdb "github.com/ogurasousui/workforce-scheduling/internal/platform/db/postgres"
)

const windowColumns = `tenant_id, period_from, period_to, published_until, created_at, updated_at`

// WindowRepository は PostgreSQL を利用したスケジュール期間の永続化の実装です。
type WindowRepository struct {
	pool pgdb.Queryer
}

// NewWindowRepository は WindowRepository を生成します。
func NewWindowRepository(pool pgdb.Queryer) *WindowRepository {
	return &WindowRepository{pool: pool}
}

// Find はテナントの Window を取得します。
func (r *WindowRepository) Find(ctx context.Context, tenantID string) (*publishlock.Window, error) {
	return r.find(ctx, tenantID, "")
}

// FindForShare は FOR SHARE で Window を取得します。
func (r *WindowRepository) FindForShare(ctx context.Context, tenantID string) (*publishlock.Window, error) {
	return r.find(ctx, tenantID, " FOR SHARE")
}

// FindForUpdate は FOR UPDATE で Window を取得します。
func (r *WindowRepository) FindForUpdate(ctx context.Context, tenantID string) (*publishlock.Window, error) {
	return r.find(ctx, tenantID, " FOR UPDATE")
}

func (r *WindowRepository) find(ctx context.Context, tenantID, lockClause string) (*publishlock.Window, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+windowColumns+`
          FROM schedule_windows
         WHERE tenant_id = $1`+lockClause, tenantID)

	window, err := scanWindow(row)
	if err != nil {
		return nil, translateWindowPgError(err)
	}
	return window, nil
}

// Save は Window を作成または更新します。
func (r *WindowRepository) Save(ctx context.Context, w publishlock.Window) (*publishlock.Window, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO schedule_windows (tenant_id, period_from, period_to, published_until, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (tenant_id) DO UPDATE
           SET period_from = EXCLUDED.period_from,
               period_to = EXCLUDED.period_to,
               published_until = EXCLUDED.published_until,
               updated_at = EXCLUDED.updated_at
        RETURNING `+windowColumns,
		w.TenantID,
		w.From,
		w.To,
		nullableDate(w.PublishedUntil),
		w.CreatedAt,
		w.UpdatedAt,
	)

	saved, err := scanWindow(row)
	if err != nil {
		return nil, translateWindowPgError(err)
	}
	return saved, nil
}

func scanWindow(row pgx.Row) (*publishlock.Window, error) {
	var (
		tenantID       string
		from           time.Time
		to             time.Time
		publishedUntil sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
	)

	if err := row.Scan(&tenantID, &from, &to, &publishedUntil, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrWindowNotFound
		}
		return nil, err
	}

	var until *time.Time
	if publishedUntil.Valid {
		d := toDate(publishedUntil.Time)
		until = &d
	}

	return &publishlock.Window{
		TenantID:       tenantID,
		From:           toDate(from),
		To:             toDate(to),
		PublishedUntil: until,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func translateWindowPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.ErrWindowNotFound
	}
	if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == checkViolationCode {
		return publishlock.ErrInvalidWindow
	}
	return err
}

func toDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toDate(*value)
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
