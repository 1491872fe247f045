package attendance

import (
	"context"

	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/conflict"
	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
)

// CorrectionEffect は打刻修正申請を検証し、承認時に記録を書き換えます。
// 打刻は実績のため公開ロックの対象外です。
type CorrectionEffect struct {
	repo   Repository
	locker Locker
}

// NewCorrectionEffect は CorrectionEffect を生成します。
func NewCorrectionEffect(repo Repository, locker Locker) *CorrectionEffect {
	if locker == nil {
		locker = noopLocker{}
	}
	return &CorrectionEffect{repo: repo, locker: locker}
}

func (e *CorrectionEffect) load(ctx context.Context, req *approval.Request) (*TimeEntry, interval.Interval, error) {
	payload, ok := req.Payload.(approval.CorrectionPayload)
	if !ok {
		return nil, interval.Interval{}, approval.ErrInvalidKind
	}
	span, err := payload.Span(req.SubjectEmployeeID)
	if err != nil {
		return nil, interval.Interval{}, ErrInvalidRange
	}
	entry, err := e.repo.FindByID(ctx, req.TenantID, payload.TimeEntryID)
	if err != nil {
		return nil, interval.Interval{}, err
	}
	if entry.EmployeeID != req.SubjectEmployeeID {
		return nil, interval.Interval{}, ErrEntryNotOwned
	}
	return entry, span, nil
}

// Verify は対象の記録が申請者のものであり、修正後の区間がほかの記録と重ならないかを確認します。
func (e *CorrectionEffect) Verify(ctx context.Context, req *approval.Request, _ approval.Reviewer) error {
	if err := e.locker.Lock(ctx, lockKey(req.TenantID, req.SubjectEmployeeID)); err != nil {
		return err
	}
	entry, span, err := e.load(ctx, req)
	if err != nil {
		return err
	}

	return checkEntryOverlap(ctx, e.repo, req.TenantID, span, entry.ID)
}

// checkEntryOverlap は span と重なる同じ社員の退勤済みの記録があれば conflict.Overlap を返します。excludeID は比較から除外します。
func checkEntryOverlap(ctx context.Context, repo Repository, tenantID string, span interval.Interval, excludeID string) error {
	existing, err := repo.ListOverlapping(ctx, tenantID, span.OwnerID, span.Start, span.End)
	if err != nil {
		return err
	}
	others := make([]*TimeEntry, 0, len(existing))
	spans := make([]interval.Interval, 0, len(existing))
	for _, other := range existing {
		otherSpan, closed := other.Span()
		if !closed || other.ID == excludeID {
			continue
		}
		others = append(others, other)
		spans = append(spans, otherSpan)
	}
	if idx, found := interval.FirstOverlap(span, spans); found {
		return conflict.Overlap(resourceTimeEntry, span.OwnerID, others[idx].ID)
	}
	return nil
}

// Apply は記録の出勤・退勤時刻を修正後の値に置き換えます。
func (e *CorrectionEffect) Apply(ctx context.Context, req *approval.Request) error {
	entry, span, err := e.load(ctx, req)
	if err != nil {
		return err
	}
	next := *entry
	clockOut := span.End
	next.ClockIn = span.Start
	next.ClockOut = &clockOut
	next.Source = SourceCorrection
	next.UpdatedAt = req.UpdatedAt
	_, err = e.repo.Update(ctx, &next)
	return err
}
