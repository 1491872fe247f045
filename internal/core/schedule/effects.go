package schedule

import (
	"context"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/conflict"
	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
)

// LeaveEffect は休暇申請の重複とロックを検証します。承認時の反映はありません。
type LeaveEffect struct {
	shifts  ShiftRepository
	windows WindowRepository
	leaves  LeaveFinder
	locker  Locker
	gate    *Gate
}

// NewLeaveEffect は LeaveEffect を生成します。
func NewLeaveEffect(shifts ShiftRepository, windows WindowRepository, leaves LeaveFinder, locker Locker, gate *Gate) *LeaveEffect {
	if locker == nil {
		locker = noopLocker{}
	}
	if gate == nil {
		gate = NewGate("", nil, nil)
	}
	return &LeaveEffect{shifts: shifts, windows: windows, leaves: leaves, locker: locker, gate: gate}
}

// Verify は同じ社員の承認済み休暇との重複、および公開済みの日付にかかるシフトが無いかを確認します。
func (e *LeaveEffect) Verify(ctx context.Context, req *approval.Request, reviewer approval.Reviewer) error {
	payload, ok := req.Payload.(approval.LeavePayload)
	if !ok {
		return approval.ErrInvalidKind
	}
	span, err := payload.Span(req.SubjectEmployeeID)
	if err != nil {
		return err
	}

	if err := e.locker.Lock(ctx, LockKeys(req.TenantID, span.OwnerID, span, e.gate.Location())...); err != nil {
		return err
	}

	approved, err := e.leaves.ListApprovedLeaves(ctx, req.TenantID, span.OwnerID, span.Start, span.End)
	if err != nil {
		return err
	}
	others := make([]LeaveSpan, 0, len(approved))
	spans := make([]interval.Interval, 0, len(approved))
	for _, leave := range approved {
		if leave.RequestID == req.ID {
			continue
		}
		others = append(others, leave)
		spans = append(spans, leave.Span)
	}
	if idx, found := interval.FirstOverlap(span, spans); found {
		return conflict.Overlap(req.Kind.ResourceType(), span.OwnerID, others[idx].RequestID)
	}

	bypass, err := reviewer.Can(ctx, access.CapBypassLock)
	if err != nil {
		return err
	}
	if bypass {
		return nil
	}
	window, err := loadWindow(ctx, e.windows, req.TenantID)
	if err != nil || window == nil {
		return err
	}
	shifts, err := e.shifts.ListOverlapping(ctx, req.TenantID, span.OwnerID, span.Start, span.End)
	if err != nil {
		return err
	}
	for _, shift := range shifts {
		if err := e.gate.Check(window, resourceShift, shift.ID, shift.StartsAt); err != nil {
			return err
		}
	}
	return nil
}

// Apply は何もしません。承認済み休暇は申請の状態そのもので表現されます。
func (e *LeaveEffect) Apply(context.Context, *approval.Request) error {
	return nil
}

// SwapEffect はシフト交換申請を検証し、承認時に担当者を入れ替えます。
type SwapEffect struct {
	shifts  ShiftRepository
	windows WindowRepository
	locker  Locker
	gate    *Gate
}

// NewSwapEffect は SwapEffect を生成します。
func NewSwapEffect(shifts ShiftRepository, windows WindowRepository, locker Locker, gate *Gate) *SwapEffect {
	if locker == nil {
		locker = noopLocker{}
	}
	if gate == nil {
		gate = NewGate("", nil, nil)
	}
	return &SwapEffect{shifts: shifts, windows: windows, locker: locker, gate: gate}
}

type swapPlan struct {
	shift        *Shift
	counterShift *Shift
	counterparty string
}

// lockPlan はシフトを行ロック付きで読み、交換に関わる社員・週のロックを取得した時点の状態を返します。
func (e *SwapEffect) lockPlan(ctx context.Context, req *approval.Request) (swapPlan, error) {
	payload, ok := req.Payload.(approval.SwapPayload)
	if !ok {
		return swapPlan{}, approval.ErrInvalidKind
	}
	if req.CounterpartyEmployeeID == nil {
		return swapPlan{}, ErrInvalidEmployeeID
	}
	counterparty := *req.CounterpartyEmployeeID

	ids := []string{payload.ShiftID}
	if payload.CounterpartyShiftID != nil {
		ids = append(ids, *payload.CounterpartyShiftID)
	}

	loc := e.gate.Location()
	found, err := lockShifts(ctx, e.shifts, e.locker, req.TenantID, ids, func(shifts []*Shift) ([]string, error) {
		if shifts[0].EmployeeID != req.SubjectEmployeeID {
			return nil, ErrShiftNotOwned
		}
		moved := shifts[0].Span()
		moved.OwnerID = counterparty
		keySets := [][]string{
			LockKeys(req.TenantID, req.SubjectEmployeeID, shifts[0].Span(), loc),
			LockKeys(req.TenantID, counterparty, moved, loc),
		}
		if len(shifts) > 1 {
			if shifts[1].EmployeeID != counterparty {
				return nil, ErrShiftNotOwned
			}
			movedBack := shifts[1].Span()
			movedBack.OwnerID = req.SubjectEmployeeID
			keySets = append(keySets,
				LockKeys(req.TenantID, counterparty, shifts[1].Span(), loc),
				LockKeys(req.TenantID, req.SubjectEmployeeID, movedBack, loc),
			)
		}
		return MergeKeys(keySets...), nil
	})
	if err != nil {
		return swapPlan{}, err
	}

	plan := swapPlan{shift: found[0], counterparty: counterparty}
	if len(found) > 1 {
		plan.counterShift = found[1]
	}
	return plan, nil
}

// Verify はシフトの所有者、公開ロック、受け取る側の社員の重複を確認します。
func (e *SwapEffect) Verify(ctx context.Context, req *approval.Request, reviewer approval.Reviewer) error {
	plan, err := e.lockPlan(ctx, req)
	if err != nil {
		return err
	}

	moved := plan.shift.Span()
	moved.OwnerID = plan.counterparty
	var movedBack interval.Interval
	if plan.counterShift != nil {
		movedBack = plan.counterShift.Span()
		movedBack.OwnerID = req.SubjectEmployeeID
	}

	bypass, err := reviewer.Can(ctx, access.CapBypassLock)
	if err != nil {
		return err
	}
	if !bypass {
		window, err := loadWindow(ctx, e.windows, req.TenantID)
		if err != nil {
			return err
		}
		if err := e.gate.Check(window, resourceShift, plan.shift.ID, plan.shift.StartsAt); err != nil {
			return err
		}
		if plan.counterShift != nil {
			if err := e.gate.Check(window, resourceShift, plan.counterShift.ID, plan.counterShift.StartsAt); err != nil {
				return err
			}
		}
	}

	excluded := []string{plan.shift.ID}
	if plan.counterShift != nil {
		excluded = append(excluded, plan.counterShift.ID)
	}
	if err := checkShiftOverlap(ctx, e.shifts, req.TenantID, moved, excluded...); err != nil {
		return err
	}
	if plan.counterShift != nil {
		if err := checkShiftOverlap(ctx, e.shifts, req.TenantID, movedBack, excluded...); err != nil {
			return err
		}
	}
	return nil
}

// Apply はシフトの担当者を入れ替えます。
func (e *SwapEffect) Apply(ctx context.Context, req *approval.Request) error {
	plan, err := e.lockPlan(ctx, req)
	if err != nil {
		return err
	}
	moves := []Reassignment{{ShiftID: plan.shift.ID, EmployeeID: plan.counterparty}}
	if plan.counterShift != nil {
		moves = append(moves, Reassignment{ShiftID: plan.counterShift.ID, EmployeeID: req.SubjectEmployeeID})
	}
	return e.shifts.Reassign(ctx, req.TenantID, moves, req.UpdatedAt)
}
