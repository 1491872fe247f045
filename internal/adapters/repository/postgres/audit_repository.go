package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ogurasousui/workforce-scheduling/internal/core/audit"
	pgdb "github.com/ogurasousui/workforce-scheduling/internal/platform/db/postgres"
)

// AuditRepository は監査イベントを audit_events へ追記します。
// 業務トランザクションのロールバックに巻き込まれないよう、コンテキストのトランザクションは使わずプールへ直接書き込みます。
type AuditRepository struct {
	pool pgdb.Queryer
}

// NewAuditRepository は AuditRepository を生成します。
func NewAuditRepository(pool pgdb.Queryer) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Record は監査イベントを 1 件追記します。
func (r *AuditRepository) Record(ctx context.Context, event audit.Event) error {
	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("postgres: encode audit details: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
        INSERT INTO audit_events (tenant_id, actor_id, action, resource_type, resource_id, details, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `,
		event.TenantID,
		nullableString(event.ActorID),
		event.Action,
		event.ResourceType,
		nullableString(event.ResourceID),
		encoded,
		event.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("postgres: insert audit event: %w", err)
	}
	return nil
}
