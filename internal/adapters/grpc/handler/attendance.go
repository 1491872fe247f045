package handler

import (
	"context"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/attendance"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AttendanceServiceName は AttendanceService の完全修飾名です。
const AttendanceServiceName = "workforce.attendance.v1.AttendanceService"

// AttendanceServer は AttendanceService のサーバー側インターフェースです。
type AttendanceServer interface {
	ClockIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ClockOut(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListTimeEntries(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// AttendanceServiceDesc は AttendanceService のサービス定義です。
var AttendanceServiceDesc = grpc.ServiceDesc{
	ServiceName: AttendanceServiceName,
	HandlerType: (*AttendanceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary[AttendanceServer](AttendanceServiceName, "ClockIn", AttendanceServer.ClockIn),
		unary[AttendanceServer](AttendanceServiceName, "ClockOut", AttendanceServer.ClockOut),
		unary[AttendanceServer](AttendanceServiceName, "ListTimeEntries", AttendanceServer.ListTimeEntries),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workforce/attendance/v1/attendance.proto",
}

// RegisterAttendanceServer は AttendanceService を登録します。
func RegisterAttendanceServer(s grpc.ServiceRegistrar, srv AttendanceServer) {
	s.RegisterService(&AttendanceServiceDesc, srv)
}

// AttendanceHandler は AttendanceService の gRPC 実装です。
type AttendanceHandler struct {
	svc attendance.UseCase
}

// NewAttendanceHandler は AttendanceHandler を生成します。
func NewAttendanceHandler(svc attendance.UseCase) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

// ClockIn は出勤を打刻します。at が無ければサーバー時刻を使います。
func (h *AttendanceHandler) ClockIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.clock(ctx, in, h.svc.ClockIn)
}

// ClockOut は退勤を打刻します。
func (h *AttendanceHandler) ClockOut(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.clock(ctx, in, h.svc.ClockOut)
}

func (h *AttendanceHandler) clock(ctx context.Context, in *structpb.Struct, punch func(context.Context, access.Actor, attendance.ClockInput) (*attendance.TimeEntry, error)) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	at, err := fieldsOf(in).optionalTimestamp("at")
	if err != nil {
		return nil, err
	}

	entry, err := punch(ctx, actor, attendance.ClockInput{At: at})
	if err != nil {
		return nil, toStatusError(err)
	}
	return newStruct(timeEntryValues(entry))
}

// ListTimeEntries は打刻記録の一覧を取得します。
func (h *AttendanceHandler) ListTimeEntries(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	f := fieldsOf(in)

	var listIn attendance.ListEntriesInput
	if listIn.EmployeeID, err = f.str("employee_id"); err != nil {
		return nil, err
	}
	if listIn.From, err = f.optionalTimestamp("from"); err != nil {
		return nil, err
	}
	if listIn.To, err = f.optionalTimestamp("to"); err != nil {
		return nil, err
	}
	if listIn.PageSize, err = f.integer("page_size"); err != nil {
		return nil, err
	}
	if listIn.PageToken, err = f.str("page_token"); err != nil {
		return nil, err
	}

	result, err := h.svc.ListEntries(ctx, actor, listIn)
	if err != nil {
		return nil, toStatusError(err)
	}

	entries := make([]any, 0, len(result.Entries))
	for _, e := range result.Entries {
		entries = append(entries, timeEntryValues(e))
	}
	return newStruct(map[string]any{
		"entries":         entries,
		"next_page_token": result.NextPageToken,
	})
}

func timeEntryValues(e *attendance.TimeEntry) map[string]any {
	if e == nil {
		return map[string]any{}
	}
	return map[string]any{
		"id":          e.ID,
		"tenant_id":   e.TenantID,
		"employee_id": e.EmployeeID,
		"clock_in":    formatTime(e.ClockIn),
		"clock_out":   formatOptionalTime(e.ClockOut),
		"source":      string(e.Source),
		"created_at":  formatTime(e.CreatedAt),
		"updated_at":  formatTime(e.UpdatedAt),
	}
}
