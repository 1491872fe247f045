package handler

import (
	"context"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
	"github.com/ogurasousui/workforce-scheduling/internal/core/schedule"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// SchedulingServiceName は SchedulingService の完全修飾名です。
const SchedulingServiceName = "workforce.scheduling.v1.SchedulingService"

// SchedulingServer は SchedulingService のサーバー側インターフェースです。
type SchedulingServer interface {
	OpenWindow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Publish(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	OverridePublishedUntil(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetWindow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CreateShift(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateShift(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteShift(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetShift(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListShifts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// SchedulingServiceDesc は SchedulingService のサービス定義です。
var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: SchedulingServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary[SchedulingServer](SchedulingServiceName, "OpenWindow", SchedulingServer.OpenWindow),
		unary[SchedulingServer](SchedulingServiceName, "Publish", SchedulingServer.Publish),
		unary[SchedulingServer](SchedulingServiceName, "OverridePublishedUntil", SchedulingServer.OverridePublishedUntil),
		unary[SchedulingServer](SchedulingServiceName, "GetWindow", SchedulingServer.GetWindow),
		unary[SchedulingServer](SchedulingServiceName, "CreateShift", SchedulingServer.CreateShift),
		unary[SchedulingServer](SchedulingServiceName, "UpdateShift", SchedulingServer.UpdateShift),
		unary[SchedulingServer](SchedulingServiceName, "DeleteShift", SchedulingServer.DeleteShift),
		unary[SchedulingServer](SchedulingServiceName, "GetShift", SchedulingServer.GetShift),
		unary[SchedulingServer](SchedulingServiceName, "ListShifts", SchedulingServer.ListShifts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workforce/scheduling/v1/scheduling.proto",
}

// RegisterSchedulingServer は SchedulingService を登録します。
func RegisterSchedulingServer(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

// SchedulingHandler は SchedulingService の gRPC 実装です。
type SchedulingHandler struct {
	svc schedule.UseCase
}

// NewSchedulingHandler は SchedulingHandler を生成します。
func NewSchedulingHandler(svc schedule.UseCase) *SchedulingHandler {
	return &SchedulingHandler{svc: svc}
}

// OpenWindow はスケジュール期間を作成または延長します。
func (h *SchedulingHandler) OpenWindow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	f := fieldsOf(in)
	from, err := f.date("from")
	if err != nil {
		return nil, err
	}
	to, err := f.date("to")
	if err != nil {
		return nil, err
	}

	window, err := h.svc.OpenWindow(ctx, actor, schedule.OpenWindowInput{From: from, To: to})
	if err != nil {
		return nil, toStatusError(err)
	}
	return windowResponse(window)
}

// Publish は公開済み範囲を前進させます。
func (h *SchedulingHandler) Publish(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	until, err := fieldsOf(in).date("until")
	if err != nil {
		return nil, err
	}

	window, err := h.svc.Publish(ctx, actor, schedule.PublishInput{Until: until})
	if err != nil {
		return nil, toStatusError(err)
	}
	return windowResponse(window)
}

// OverridePublishedUntil は公開済み範囲を任意の日付に設定します。until が無ければ解除します。
func (h *SchedulingHandler) OverridePublishedUntil(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	until, err := fieldsOf(in).optionalDate("until")
	if err != nil {
		return nil, err
	}

	window, err := h.svc.OverridePublishedUntil(ctx, actor, schedule.OverrideInput{Until: until})
	if err != nil {
		return nil, toStatusError(err)
	}
	return windowResponse(window)
}

// GetWindow はスケジュール期間を取得します。
func (h *SchedulingHandler) GetWindow(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	window, err := h.svc.GetWindow(ctx, actor)
	if err != nil {
		return nil, toStatusError(err)
	}
	return windowResponse(window)
}

// CreateShift はシフトを作成します。
func (h *SchedulingHandler) CreateShift(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	f := fieldsOf(in)
	employeeID, err := f.str("employee_id")
	if err != nil {
		return nil, err
	}
	startsAt, err := f.timestamp("starts_at")
	if err != nil {
		return nil, err
	}
	endsAt, err := f.timestamp("ends_at")
	if err != nil {
		return nil, err
	}
	note, err := f.optionalStr("note")
	if err != nil {
		return nil, err
	}

	created, err := h.svc.CreateShift(ctx, actor, schedule.CreateShiftInput{
		EmployeeID: employeeID,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		Note:       note,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return shiftResponse(created)
}

// UpdateShift はシフトを更新します。指定されたフィールドのみ変更します。
func (h *SchedulingHandler) UpdateShift(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	f := fieldsOf(in)
	id, err := f.str("id")
	if err != nil {
		return nil, err
	}
	employeeID, err := f.optionalStr("employee_id")
	if err != nil {
		return nil, err
	}
	startsAt, err := f.optionalTimestamp("starts_at")
	if err != nil {
		return nil, err
	}
	endsAt, err := f.optionalTimestamp("ends_at")
	if err != nil {
		return nil, err
	}
	note, err := f.optionalStr("note")
	if err != nil {
		return nil, err
	}

	updated, err := h.svc.UpdateShift(ctx, actor, schedule.UpdateShiftInput{
		ID:         id,
		EmployeeID: employeeID,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		Note:       note,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return shiftResponse(updated)
}

// DeleteShift はシフトを削除します。
func (h *SchedulingHandler) DeleteShift(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	id, err := fieldsOf(in).str("id")
	if err != nil {
		return nil, err
	}

	if err := h.svc.DeleteShift(ctx, actor, schedule.DeleteShiftInput{ID: id}); err != nil {
		return nil, toStatusError(err)
	}
	return &structpb.Struct{}, nil
}

// GetShift はシフトを取得します。
func (h *SchedulingHandler) GetShift(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	id, err := fieldsOf(in).str("id")
	if err != nil {
		return nil, err
	}

	found, err := h.svc.GetShift(ctx, actor, schedule.GetShiftInput{ID: id})
	if err != nil {
		return nil, toStatusError(err)
	}
	return shiftResponse(found)
}

// ListShifts はシフトの一覧を取得します。
func (h *SchedulingHandler) ListShifts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	f := fieldsOf(in)
	employeeID, err := f.str("employee_id")
	if err != nil {
		return nil, err
	}
	from, err := f.optionalTimestamp("from")
	if err != nil {
		return nil, err
	}
	to, err := f.optionalTimestamp("to")
	if err != nil {
		return nil, err
	}
	pageSize, err := f.integer("page_size")
	if err != nil {
		return nil, err
	}
	pageToken, err := f.str("page_token")
	if err != nil {
		return nil, err
	}

	result, err := h.svc.ListShifts(ctx, actor, schedule.ListShiftsInput{
		EmployeeID: employeeID,
		From:       from,
		To:         to,
		PageSize:   pageSize,
		PageToken:  pageToken,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	shifts := make([]any, 0, len(result.Shifts))
	for _, s := range result.Shifts {
		shifts = append(shifts, shiftValues(s))
	}
	return newStruct(map[string]any{
		"shifts":          shifts,
		"next_page_token": result.NextPageToken,
	})
}

func windowResponse(w *publishlock.Window) (*structpb.Struct, error) {
	if w == nil {
		return &structpb.Struct{}, nil
	}
	return newStruct(map[string]any{
		"tenant_id":       w.TenantID,
		"from":            w.From.Format(time.DateOnly),
		"to":              w.To.Format(time.DateOnly),
		"published_until": formatOptionalDate(w.PublishedUntil),
		"created_at":      formatTime(w.CreatedAt),
		"updated_at":      formatTime(w.UpdatedAt),
	})
}

func shiftResponse(s *schedule.Shift) (*structpb.Struct, error) {
	if s == nil {
		return &structpb.Struct{}, nil
	}
	return newStruct(shiftValues(s))
}

func shiftValues(s *schedule.Shift) map[string]any {
	return map[string]any{
		"id":          s.ID,
		"tenant_id":   s.TenantID,
		"employee_id": s.EmployeeID,
		"starts_at":   formatTime(s.StartsAt),
		"ends_at":     formatTime(s.EndsAt),
		"note":        optionalString(s.Note),
		"created_at":  formatTime(s.CreatedAt),
		"updated_at":  formatTime(s.UpdatedAt),
	}
}
