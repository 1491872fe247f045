package handler

import (
	"context"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ApprovalServiceName は ApprovalService の完全修飾名です。
const ApprovalServiceName = "workforce.approval.v1.ApprovalService"

// ApprovalServer は ApprovalService のサーバー側インターフェースです。
type ApprovalServer interface {
	SubmitRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ApproveRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RejectRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CancelRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListRequests(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ApprovalServiceDesc は ApprovalService のサービス定義です。
var ApprovalServiceDesc = grpc.ServiceDesc{
	ServiceName: ApprovalServiceName,
	HandlerType: (*ApprovalServer)(nil),
	Methods: []grpc.MethodDesc{
		unary[ApprovalServer](ApprovalServiceName, "SubmitRequest", ApprovalServer.SubmitRequest),
		unary[ApprovalServer](ApprovalServiceName, "ApproveRequest", ApprovalServer.ApproveRequest),
		unary[ApprovalServer](ApprovalServiceName, "RejectRequest", ApprovalServer.RejectRequest),
		unary[ApprovalServer](ApprovalServiceName, "CancelRequest", ApprovalServer.CancelRequest),
		unary[ApprovalServer](ApprovalServiceName, "GetRequest", ApprovalServer.GetRequest),
		unary[ApprovalServer](ApprovalServiceName, "ListRequests", ApprovalServer.ListRequests),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workforce/approval/v1/approval.proto",
}

// RegisterApprovalServer は ApprovalService を登録します。
func RegisterApprovalServer(s grpc.ServiceRegistrar, srv ApprovalServer) {
	s.RegisterService(&ApprovalServiceDesc, srv)
}

// ApprovalHandler は ApprovalService の gRPC 実装です。
type ApprovalHandler struct {
	svc approval.UseCase
}

// NewApprovalHandler は ApprovalHandler を生成します。
func NewApprovalHandler(svc approval.UseCase) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// SubmitRequest は休暇・シフト交換・打刻修正の申請を作成します。
func (h *ApprovalHandler) SubmitRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	f := fieldsOf(in)
	rawKind, err := f.str("kind")
	if err != nil {
		return nil, err
	}
	kind, err := approval.ParseKind(rawKind)
	if err != nil {
		return nil, toStatusError(err)
	}
	subject, err := f.str("subject_employee_id")
	if err != nil {
		return nil, err
	}
	counterparty, err := f.str("counterparty_employee_id")
	if err != nil {
		return nil, err
	}
	body, err := f.object("payload")
	if err != nil {
		return nil, err
	}
	payload, err := decodePayload(kind, body)
	if err != nil {
		return nil, err
	}

	created, err := h.svc.Submit(ctx, actor, approval.SubmitInput{
		SubjectEmployeeID:      subject,
		CounterpartyEmployeeID: counterparty,
		Payload:                payload,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return requestResponse(created)
}

// ApproveRequest は申請を承認します。
func (h *ApprovalHandler) ApproveRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.review(ctx, in, h.svc.Approve)
}

// RejectRequest は申請を却下します。
func (h *ApprovalHandler) RejectRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.review(ctx, in, h.svc.Reject)
}

func (h *ApprovalHandler) review(ctx context.Context, in *structpb.Struct, decide func(context.Context, access.Actor, approval.ReviewInput) (*approval.Request, error)) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	f := fieldsOf(in)
	id, err := f.str("id")
	if err != nil {
		return nil, err
	}
	note, err := f.optionalStr("note")
	if err != nil {
		return nil, err
	}

	updated, err := decide(ctx, actor, approval.ReviewInput{ID: id, Note: note})
	if err != nil {
		return nil, toStatusError(err)
	}
	return requestResponse(updated)
}

// CancelRequest は申請者本人が申請を取り消します。
func (h *ApprovalHandler) CancelRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	id, err := fieldsOf(in).str("id")
	if err != nil {
		return nil, err
	}

	updated, err := h.svc.Cancel(ctx, actor, approval.CancelInput{ID: id})
	if err != nil {
		return nil, toStatusError(err)
	}
	return requestResponse(updated)
}

// GetRequest は申請を取得します。
func (h *ApprovalHandler) GetRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	id, err := fieldsOf(in).str("id")
	if err != nil {
		return nil, err
	}

	found, err := h.svc.Get(ctx, actor, approval.GetInput{ID: id})
	if err != nil {
		return nil, toStatusError(err)
	}
	return requestResponse(found)
}

// ListRequests は申請の一覧を取得します。
func (h *ApprovalHandler) ListRequests(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	f := fieldsOf(in)

	var listIn approval.ListInput
	rawKind, err := f.str("kind")
	if err != nil {
		return nil, err
	}
	if rawKind != "" {
		kind, err := approval.ParseKind(rawKind)
		if err != nil {
			return nil, toStatusError(err)
		}
		listIn.Kind = &kind
	}
	rawStatus, err := f.str("status")
	if err != nil {
		return nil, err
	}
	if rawStatus != "" {
		st, err := approval.ParseStatus(rawStatus)
		if err != nil {
			return nil, toStatusError(err)
		}
		listIn.Status = &st
	}
	if listIn.EmployeeID, err = f.str("employee_id"); err != nil {
		return nil, err
	}
	if listIn.PageSize, err = f.integer("page_size"); err != nil {
		return nil, err
	}
	if listIn.PageToken, err = f.str("page_token"); err != nil {
		return nil, err
	}

	result, err := h.svc.List(ctx, actor, listIn)
	if err != nil {
		return nil, toStatusError(err)
	}

	requests := make([]any, 0, len(result.Requests))
	for _, r := range result.Requests {
		requests = append(requests, requestValues(r))
	}
	return newStruct(map[string]any{
		"requests":        requests,
		"next_page_token": result.NextPageToken,
	})
}

func decodePayload(kind approval.Kind, f fields) (approval.Payload, error) {
	switch kind {
	case approval.KindLeave:
		leaveType, err := f.str("type")
		if err != nil {
			return nil, err
		}
		start, err := f.timestamp("start")
		if err != nil {
			return nil, err
		}
		end, err := f.timestamp("end")
		if err != nil {
			return nil, err
		}
		note, err := f.str("note")
		if err != nil {
			return nil, err
		}
		return approval.LeavePayload{Type: approval.LeaveType(leaveType), Start: start, End: end, Note: note}, nil
	case approval.KindSwap:
		shiftID, err := f.str("shift_id")
		if err != nil {
			return nil, err
		}
		counterpartyShiftID, err := f.optionalStr("counterparty_shift_id")
		if err != nil {
			return nil, err
		}
		note, err := f.str("note")
		if err != nil {
			return nil, err
		}
		return approval.SwapPayload{ShiftID: shiftID, CounterpartyShiftID: counterpartyShiftID, Note: note}, nil
	case approval.KindCorrection:
		entryID, err := f.str("time_entry_id")
		if err != nil {
			return nil, err
		}
		clockIn, err := f.timestamp("clock_in")
		if err != nil {
			return nil, err
		}
		clockOut, err := f.timestamp("clock_out")
		if err != nil {
			return nil, err
		}
		reason, err := f.str("reason")
		if err != nil {
			return nil, err
		}
		return approval.CorrectionPayload{TimeEntryID: entryID, ClockIn: clockIn, ClockOut: clockOut, Reason: reason}, nil
	default:
		return nil, status.Error(codes.InvalidArgument, approval.ErrInvalidKind.Error())
	}
}

func requestResponse(r *approval.Request) (*structpb.Struct, error) {
	if r == nil {
		return &structpb.Struct{}, nil
	}
	return newStruct(requestValues(r))
}

func requestValues(r *approval.Request) map[string]any {
	return map[string]any{
		"id":                       r.ID,
		"tenant_id":                r.TenantID,
		"kind":                     string(r.Kind),
		"subject_employee_id":      r.SubjectEmployeeID,
		"counterparty_employee_id": optionalString(r.CounterpartyEmployeeID),
		"payload":                  payloadValues(r.Payload),
		"status":                   string(r.Status),
		"created_by":               r.CreatedBy,
		"reviewed_by":              optionalString(r.ReviewedBy),
		"reviewed_at":              formatOptionalTime(r.ReviewedAt),
		"note":                     optionalString(r.Note),
		"created_at":               formatTime(r.CreatedAt),
		"updated_at":               formatTime(r.UpdatedAt),
	}
}

func payloadValues(p approval.Payload) map[string]any {
	switch v := p.(type) {
	case approval.LeavePayload:
		return map[string]any{
			"type":  string(v.Type),
			"start": formatTime(v.Start),
			"end":   formatTime(v.End),
			"note":  v.Note,
		}
	case approval.SwapPayload:
		return map[string]any{
			"shift_id":              v.ShiftID,
			"counterparty_shift_id": optionalString(v.CounterpartyShiftID),
			"note":                  v.Note,
		}
	case approval.CorrectionPayload:
		return map[string]any{
			"time_entry_id": v.TimeEntryID,
			"clock_in":      formatTime(v.ClockIn),
			"clock_out":     formatTime(v.ClockOut),
			"reason":        v.Reason,
		}
	default:
		return map[string]any{}
	}
}
