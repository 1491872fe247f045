package approval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/audit"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

// Reviewer は Effect に渡すアクターと権限情報です。
type Reviewer struct {
	Actor      access.Actor
	Authorizer access.Authorizer
}

// Can は Reviewer が capability を持つかを返します。
func (r Reviewer) Can(ctx context.Context, capability access.Capability) (bool, error) {
	if r.Authorizer == nil {
		return false, nil
	}
	return r.Authorizer.Can(ctx, r.Actor, capability)
}

// Service は申請ワークフローのユースケースをまとめます。
type Service struct {
	repo    Repository
	authz   access.Authorizer
	audit   *audit.BestEffort
	clock   Clock
	tx      TransactionManager
	effects map[Kind]Effect
}

// UseCase は申請ワークフローの公開インターフェースです。
type UseCase interface {
	Submit(ctx context.Context, actor access.Actor, in SubmitInput) (*Request, error)
	Approve(ctx context.Context, actor access.Actor, in ReviewInput) (*Request, error)
	Reject(ctx context.Context, actor access.Actor, in ReviewInput) (*Request, error)
	Cancel(ctx context.Context, actor access.Actor, in CancelInput) (*Request, error)
	Get(ctx context.Context, actor access.Actor, in GetInput) (*Request, error)
	List(ctx context.Context, actor access.Actor, in ListInput) (*ListResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, authz access.Authorizer, recorder *audit.BestEffort, clock Clock, tx TransactionManager) *Service {
	if authz == nil {
		authz = access.DefaultRoles()
	}
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, authz: authz, audit: recorder, clock: clock, tx: tx, effects: make(map[Kind]Effect)}
}

// RegisterEffect は kind の申請に対する Effect を登録します。
func (s *Service) RegisterEffect(kind Kind, effect Effect) {
	s.effects[kind] = effect
}

// SubmitInput は申請時の入力です。SubjectEmployeeID が空の場合は申請者本人が対象です。
type SubmitInput struct {
	SubjectEmployeeID      string
	CounterpartyEmployeeID string
	Payload                Payload
}

// ReviewInput は承認・却下時の入力です。
type ReviewInput struct {
	ID   string
	Note *string
}

// CancelInput は取り消し時の入力です。
type CancelInput struct {
	ID string
}

// GetInput は取得時の入力です。
type GetInput struct {
	ID string
}

// ListInput は一覧取得時の入力です。
type ListInput struct {
	Kind       *Kind
	Status     *Status
	EmployeeID string
	PageSize   int
	PageToken  string
}

// ListResult は一覧取得結果です。
type ListResult struct {
	Requests      []*Request
	NextPageToken string
}

// Submit は新しい申請を PENDING で作成します。
func (s *Service) Submit(ctx context.Context, actor access.Actor, in SubmitInput) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if in.Payload == nil {
		return nil, ErrInvalidKind
	}
	if err := ValidatePayload(in.Payload); err != nil {
		return nil, err
	}
	payload := normalizePayload(in.Payload)

	kind := payload.Kind()
	subject := strings.TrimSpace(in.SubjectEmployeeID)
	if subject == "" {
		subject = actor.ID
	}
	if subject != actor.ID {
		canManage, err := s.authz.Can(ctx, actor, access.CapManageRequests)
		if err != nil {
			return nil, err
		}
		if !canManage {
			return nil, ErrForbidden
		}
	}

	var counterparty *string
	switch kind {
	case KindSwap:
		cp := strings.TrimSpace(in.CounterpartyEmployeeID)
		if cp == "" {
			return nil, &ValidationError{FieldErrors: map[string]string{"counterparty_employee_id": "is required"}}
		}
		if cp == subject {
			return nil, &ValidationError{FieldErrors: map[string]string{"counterparty_employee_id": "must differ from subject"}}
		}
		counterparty = &cp
	default:
		if strings.TrimSpace(in.CounterpartyEmployeeID) != "" {
			return nil, &ValidationError{FieldErrors: map[string]string{"counterparty_employee_id": "only allowed for swap requests"}}
		}
	}

	now := s.clock.Now()
	req := &Request{
		TenantID:               actor.TenantID,
		Kind:                   kind,
		SubjectEmployeeID:      subject,
		CounterpartyEmployeeID: counterparty,
		Payload:                payload,
		Status:                 StatusPending,
		CreatedBy:              actor.ID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	var created *Request
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if effect, ok := s.effects[kind]; ok {
			if err := effect.Verify(txCtx, req, Reviewer{Actor: actor, Authorizer: s.authz}); err != nil {
				return err
			}
		}
		result, err := s.repo.Create(txCtx, req)
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.record(ctx, actor, created, "submit", map[string]any{
		"status":              string(created.Status),
		"subject_employee_id": created.SubjectEmployeeID,
	})
	return created, nil
}

// Approve は申請を承認します。承認前に Effect.Verify で重複とロックを再検証します。
func (s *Service) Approve(ctx context.Context, actor access.Actor, in ReviewInput) (*Request, error) {
	return s.transition(ctx, actor, in.ID, StatusApproved, normalizeNote(in.Note))
}

// Reject は申請を却下します。
func (s *Service) Reject(ctx context.Context, actor access.Actor, in ReviewInput) (*Request, error) {
	return s.transition(ctx, actor, in.ID, StatusRejected, normalizeNote(in.Note))
}

// Cancel は作成者本人が PENDING の申請を取り消します。
func (s *Service) Cancel(ctx context.Context, actor access.Actor, in CancelInput) (*Request, error) {
	return s.transition(ctx, actor, in.ID, StatusCancelled, nil)
}

func (s *Service) transition(ctx context.Context, actor access.Actor, rawID string, to Status, note *string) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	id, err := normalizeID(rawID)
	if err != nil {
		return nil, err
	}

	canManage := false
	if to == StatusApproved || to == StatusRejected {
		canManage, err = s.authz.Can(ctx, actor, access.CapManageRequests)
		if err != nil {
			return nil, err
		}
	}

	var (
		before  *Request
		updated *Request
	)
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByID(txCtx, actor.TenantID, id)
		if err != nil {
			return err
		}

		t, err := Plan(current, Decision{To: to, ActorID: actor.ID, CanManage: canManage, Note: note, At: s.clock.Now()})
		if err != nil {
			return err
		}

		effect, hasEffect := s.effects[current.Kind]
		if to == StatusApproved && hasEffect {
			if err := effect.Verify(txCtx, current, Reviewer{Actor: actor, Authorizer: s.authz}); err != nil {
				return err
			}
		}

		if err := s.repo.UpdateStatus(txCtx, t); err != nil {
			return err
		}

		next := t.ApplyTo(current)
		if to == StatusApproved && hasEffect {
			if err := effect.Apply(txCtx, next); err != nil {
				return fmt.Errorf("approval: apply %s: %w", current.Kind, err)
			}
		}

		before = current
		updated = next
		return nil
	}); err != nil {
		return nil, err
	}

	details := map[string]any{
		"from": string(before.Status),
		"to":   string(updated.Status),
	}
	if updated.Note != nil && to != StatusCancelled {
		details["note"] = *updated.Note
	}
	s.record(ctx, actor, updated, verbFor(to), details)
	return updated, nil
}

// Get は申請を取得します。管理権限の無いアクターは自分が関係する申請のみ参照できます。
func (s *Service) Get(ctx context.Context, actor access.Actor, in GetInput) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	canManage, err := s.authz.Can(ctx, actor, access.CapManageRequests)
	if err != nil {
		return nil, err
	}

	var result *Request
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, actor.TenantID, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	if !canManage && !result.Involves(actor.ID) {
		return nil, ErrRequestNotFound
	}
	return result, nil
}

// List は申請の一覧を取得します。管理権限の無いアクターは自分の申請に限定されます。
func (s *Service) List(ctx context.Context, actor access.Actor, in ListInput) (*ListResult, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}
	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	canManage, err := s.authz.Can(ctx, actor, access.CapManageRequests)
	if err != nil {
		return nil, err
	}

	employeeID := strings.TrimSpace(in.EmployeeID)
	if !canManage {
		if employeeID != "" && employeeID != actor.ID {
			return nil, ErrForbidden
		}
		employeeID = actor.ID
	}

	var (
		requests  []*Request
		nextToken string
	)
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, token, err := s.repo.List(txCtx, ListFilter{
			TenantID:   actor.TenantID,
			Kind:       in.Kind,
			Status:     in.Status,
			EmployeeID: employeeID,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return err
		}
		requests = found
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListResult{Requests: requests, NextPageToken: nextToken}, nil
}

func (s *Service) record(ctx context.Context, actor access.Actor, req *Request, verb string, details map[string]any) {
	actorID := actor.ID
	s.audit.Record(ctx, audit.Event{
		TenantID:     req.TenantID,
		ActorID:      &actorID,
		Action:       string(req.Kind) + "." + verb,
		ResourceType: req.Kind.ResourceType(),
		ResourceID:   audit.StringPtr(req.ID),
		Details:      details,
	})
}

func verbFor(to Status) string {
	switch to {
	case StatusApproved:
		return "approve"
	case StatusRejected:
		return "reject"
	case StatusCancelled:
		return "cancel"
	default:
		return strings.ToLower(string(to))
	}
}

func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
