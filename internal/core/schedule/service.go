package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/audit"
	"github.com/ogurasousui/workforce-scheduling/internal/core/conflict"
	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
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

	MaxShiftDuration = 24 * time.Hour
	MaxNoteLength    = 1000

	resourceShift    = "shift"
	resourceSchedule = "schedule"
)

var validate = validator.New()

// Service はスケジュール期間とシフトのユースケースをまとめます。
type Service struct {
	shifts  ShiftRepository
	windows WindowRepository
	locker  Locker
	authz   access.Authorizer
	audit   *audit.BestEffort
	gate    *Gate
	clock   Clock
	tx      TransactionManager
}

// UseCase はスケジュールユースケースの公開インターフェースです。
type UseCase interface {
	OpenWindow(ctx context.Context, actor access.Actor, in OpenWindowInput) (*publishlock.Window, error)
	Publish(ctx context.Context, actor access.Actor, in PublishInput) (*publishlock.Window, error)
	OverridePublishedUntil(ctx context.Context, actor access.Actor, in OverrideInput) (*publishlock.Window, error)
	GetWindow(ctx context.Context, actor access.Actor) (*publishlock.Window, error)
	CreateShift(ctx context.Context, actor access.Actor, in CreateShiftInput) (*Shift, error)
	UpdateShift(ctx context.Context, actor access.Actor, in UpdateShiftInput) (*Shift, error)
	DeleteShift(ctx context.Context, actor access.Actor, in DeleteShiftInput) error
	GetShift(ctx context.Context, actor access.Actor, in GetShiftInput) (*Shift, error)
	ListShifts(ctx context.Context, actor access.Actor, in ListShiftsInput) (*ListShiftsResult, error)
}

// Dependencies は Service の依存をまとめます。nil のものは既定値で補います。
type Dependencies struct {
	Shifts     ShiftRepository
	Windows    WindowRepository
	Locker     Locker
	Authorizer access.Authorizer
	Audit      *audit.BestEffort
	Gate       *Gate
	Clock      Clock
	Tx         TransactionManager
}

// NewService は Service を生成します。
func NewService(deps Dependencies) *Service {
	s := &Service{
		shifts:  deps.Shifts,
		windows: deps.Windows,
		locker:  deps.Locker,
		authz:   deps.Authorizer,
		audit:   deps.Audit,
		gate:    deps.Gate,
		clock:   deps.Clock,
		tx:      deps.Tx,
	}
	if s.locker == nil {
		s.locker = noopLocker{}
	}
	if s.authz == nil {
		s.authz = access.DefaultRoles()
	}
	if s.gate == nil {
		s.gate = NewGate(publishlock.ModeEnforce, time.UTC, nil)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.tx == nil {
		s.tx = noopTransactionManager{}
	}
	return s
}

// OpenWindowInput はスケジュール期間の作成・延長の入力です。
type OpenWindowInput struct {
	From time.Time
	To   time.Time
}

// PublishInput は公開時の入力です。
type PublishInput struct {
	Until time.Time
}

// OverrideInput は管理者によるウォーターマーク上書きの入力です。nil は未公開に戻します。
type OverrideInput struct {
	Until *time.Time
}

// CreateShiftInput はシフト作成時の入力です。
type CreateShiftInput struct {
	EmployeeID string
	StartsAt   time.Time
	EndsAt     time.Time
	Note       *string
}

// UpdateShiftInput はシフト更新時の入力です。nil のフィールドは変更しません。
type UpdateShiftInput struct {
	ID         string
	EmployeeID *string
	StartsAt   *time.Time
	EndsAt     *time.Time
	Note       *string
}

// DeleteShiftInput はシフト削除時の入力です。
type DeleteShiftInput struct {
	ID string
}

// GetShiftInput はシフト取得時の入力です。
type GetShiftInput struct {
	ID string
}

// ListShiftsInput は一覧取得時の入力です。
type ListShiftsInput struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
	PageSize   int
	PageToken  string
}

// ListShiftsResult は一覧取得結果です。
type ListShiftsResult struct {
	Shifts        []*Shift
	NextPageToken string
}

// OpenWindow はテナントのスケジュール期間を作成し、既にあれば終端を延長します。
func (s *Service) OpenWindow(ctx context.Context, actor access.Actor, in OpenWindowInput) (*publishlock.Window, error) {
	if err := s.require(ctx, actor, access.CapManageSchedule); err != nil {
		return nil, err
	}

	var saved *publishlock.Window
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.windows.FindForUpdate(txCtx, actor.TenantID)
		var next publishlock.Window
		switch {
		case errors.Is(err, ErrWindowNotFound):
			next, err = publishlock.NewWindow(actor.TenantID, in.From, in.To)
			if err != nil {
				return err
			}
			next.CreatedAt = s.clock.Now()
		case err != nil:
			return err
		default:
			next, err = current.Extend(in.To)
			if err != nil {
				return err
			}
		}
		next.UpdatedAt = s.clock.Now()

		result, err := s.windows.Save(txCtx, next)
		if err != nil {
			return err
		}
		saved = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.recordWindow(ctx, actor, "open", saved, map[string]any{
		"from": saved.From.Format(time.DateOnly),
		"to":   saved.To.Format(time.DateOnly),
	})
	return saved, nil
}

// Publish はウォーターマークを前進させます。
func (s *Service) Publish(ctx context.Context, actor access.Actor, in PublishInput) (*publishlock.Window, error) {
	if err := s.require(ctx, actor, access.CapManageSchedule); err != nil {
		return nil, err
	}
	return s.moveWatermark(ctx, actor, "publish", func(w publishlock.Window) (publishlock.Window, error) {
		return w.Publish(in.Until)
	})
}

// OverridePublishedUntil はウォーターマークを任意の日付へ設定します。後退や解除も可能です。
func (s *Service) OverridePublishedUntil(ctx context.Context, actor access.Actor, in OverrideInput) (*publishlock.Window, error) {
	if err := s.require(ctx, actor, access.CapOverrideLock); err != nil {
		return nil, err
	}
	return s.moveWatermark(ctx, actor, "override", func(w publishlock.Window) (publishlock.Window, error) {
		return w.Override(in.Until), nil
	})
}

func (s *Service) moveWatermark(ctx context.Context, actor access.Actor, verb string, move func(publishlock.Window) (publishlock.Window, error)) (*publishlock.Window, error) {
	var (
		previous *time.Time
		saved    *publishlock.Window
	)
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.windows.FindForUpdate(txCtx, actor.TenantID)
		if err != nil {
			return err
		}
		next, err := move(*current)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.clock.Now()

		result, err := s.windows.Save(txCtx, next)
		if err != nil {
			return err
		}
		previous = current.PublishedUntil
		saved = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.recordWindow(ctx, actor, verb, saved, map[string]any{
		"from_published_until": formatDate(previous),
		"published_until":      formatDate(saved.PublishedUntil),
	})
	return saved, nil
}

// GetWindow はアクターのテナントのスケジュール期間を返します。
func (s *Service) GetWindow(ctx context.Context, actor access.Actor) (*publishlock.Window, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var window *publishlock.Window
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.windows.Find(txCtx, actor.TenantID)
		if err != nil {
			return err
		}
		window = found
		return nil
	}); err != nil {
		return nil, err
	}
	return window, nil
}

// CreateShift はロックと重複を検証したうえでシフトを作成します。
func (s *Service) CreateShift(ctx context.Context, actor access.Actor, in CreateShiftInput) (*Shift, error) {
	if err := s.require(ctx, actor, access.CapManageSchedule); err != nil {
		return nil, err
	}
	employeeID, err := normalizeEmployeeID(in.EmployeeID)
	if err != nil {
		return nil, err
	}
	span, err := newShiftSpan(in.StartsAt, in.EndsAt, employeeID)
	if err != nil {
		return nil, err
	}
	note, err := normalizeNote(in.Note)
	if err != nil {
		return nil, err
	}
	bypass, err := canBypass(ctx, s.authz, actor)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	shift := &Shift{
		TenantID:   actor.TenantID,
		EmployeeID: employeeID,
		StartsAt:   span.Start,
		EndsAt:     span.End,
		Note:       note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var created *Shift
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.locker.Lock(txCtx, LockKeys(actor.TenantID, employeeID, span, s.gate.Location())...); err != nil {
			return err
		}
		if !bypass {
			window, err := loadWindow(txCtx, s.windows, actor.TenantID)
			if err != nil {
				return err
			}
			if err := s.gate.Check(window, resourceShift, "", span.Start); err != nil {
				return err
			}
		}
		if err := checkShiftOverlap(txCtx, s.shifts, actor.TenantID, span); err != nil {
			return err
		}

		result, err := s.shifts.Create(txCtx, shift)
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.recordShift(ctx, actor, "create", created, shiftDetails(created))
	return created, nil
}

// UpdateShift はシフトを更新します。変更前と変更後の両方の日付でロックを確認します。
func (s *Service) UpdateShift(ctx context.Context, actor access.Actor, in UpdateShiftInput) (*Shift, error) {
	if err := s.require(ctx, actor, access.CapManageSchedule); err != nil {
		return nil, err
	}
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}
	if in.EmployeeID == nil && in.StartsAt == nil && in.EndsAt == nil && in.Note == nil {
		return nil, ErrNoUpdateFields
	}
	bypass, err := canBypass(ctx, s.authz, actor)
	if err != nil {
		return nil, err
	}

	loc := s.gate.Location()
	var updated *Shift
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		var (
			next Shift
			span interval.Interval
		)
		locked, err := lockShifts(txCtx, s.shifts, s.locker, actor.TenantID, []string{id}, func(found []*Shift) ([]string, error) {
			n, sp, err := applyShiftUpdate(*found[0], in)
			if err != nil {
				return nil, err
			}
			next, span = n, sp
			return MergeKeys(
				LockKeys(actor.TenantID, found[0].EmployeeID, found[0].Span(), loc),
				LockKeys(actor.TenantID, n.EmployeeID, sp, loc),
			), nil
		})
		if err != nil {
			return err
		}
		current := locked[0]
		next.UpdatedAt = s.clock.Now()

		if !bypass {
			window, err := loadWindow(txCtx, s.windows, actor.TenantID)
			if err != nil {
				return err
			}
			if err := s.gate.Check(window, resourceShift, current.ID, current.StartsAt); err != nil {
				return err
			}
			if err := s.gate.Check(window, resourceShift, current.ID, next.StartsAt); err != nil {
				return err
			}
		}
		if err := checkShiftOverlap(txCtx, s.shifts, actor.TenantID, span, current.ID); err != nil {
			return err
		}

		result, err := s.shifts.Update(txCtx, &next)
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.recordShift(ctx, actor, "update", updated, shiftDetails(updated))
	return updated, nil
}

// DeleteShift はロックされていないシフトを削除します。
func (s *Service) DeleteShift(ctx context.Context, actor access.Actor, in DeleteShiftInput) error {
	if err := s.require(ctx, actor, access.CapManageSchedule); err != nil {
		return err
	}
	id, err := normalizeID(in.ID)
	if err != nil {
		return err
	}
	bypass, err := canBypass(ctx, s.authz, actor)
	if err != nil {
		return err
	}

	var deleted *Shift
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		locked, err := lockShifts(txCtx, s.shifts, s.locker, actor.TenantID, []string{id}, func(found []*Shift) ([]string, error) {
			return LockKeys(actor.TenantID, found[0].EmployeeID, found[0].Span(), s.gate.Location()), nil
		})
		if err != nil {
			return err
		}
		current := locked[0]
		if !bypass {
			window, err := loadWindow(txCtx, s.windows, actor.TenantID)
			if err != nil {
				return err
			}
			if err := s.gate.Check(window, resourceShift, current.ID, current.StartsAt); err != nil {
				return err
			}
		}
		if err := s.shifts.Delete(txCtx, actor.TenantID, id); err != nil {
			return err
		}
		deleted = current
		return nil
	}); err != nil {
		return err
	}

	s.recordShift(ctx, actor, "delete", deleted, shiftDetails(deleted))
	return nil
}

// GetShift はシフトを取得します。管理権限の無いアクターは自分のシフトのみ参照できます。
func (s *Service) GetShift(ctx context.Context, actor access.Actor, in GetShiftInput) (*Shift, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}
	canManage, err := s.authz.Can(ctx, actor, access.CapManageSchedule)
	if err != nil {
		return nil, err
	}

	var shift *Shift
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.shifts.FindByID(txCtx, actor.TenantID, id)
		if err != nil {
			return err
		}
		shift = found
		return nil
	}); err != nil {
		return nil, err
	}

	if !canManage && shift.EmployeeID != actor.ID {
		return nil, ErrShiftNotFound
	}
	return shift, nil
}

// ListShifts はシフトの一覧を開始時刻順で返します。
func (s *Service) ListShifts(ctx context.Context, actor access.Actor, in ListShiftsInput) (*ListShiftsResult, error) {
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
	if in.From != nil && in.To != nil && !in.From.Before(*in.To) {
		return nil, ErrInvalidRange
	}

	canManage, err := s.authz.Can(ctx, actor, access.CapManageSchedule)
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
		shifts    []*Shift
		nextToken string
	)
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, token, err := s.shifts.List(txCtx, ShiftFilter{
			TenantID:   actor.TenantID,
			EmployeeID: employeeID,
			From:       in.From,
			To:         in.To,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return err
		}
		shifts = found
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListShiftsResult{Shifts: shifts, NextPageToken: nextToken}, nil
}

func (s *Service) require(ctx context.Context, actor access.Actor, capability access.Capability) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	ok, err := s.authz.Can(ctx, actor, capability)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// applyShiftUpdate は current に in の変更を適用した値とその区間を返します。
func applyShiftUpdate(current Shift, in UpdateShiftInput) (Shift, interval.Interval, error) {
	next := current
	if in.EmployeeID != nil {
		employeeID, err := normalizeEmployeeID(*in.EmployeeID)
		if err != nil {
			return Shift{}, interval.Interval{}, err
		}
		next.EmployeeID = employeeID
	}
	if in.StartsAt != nil {
		next.StartsAt = *in.StartsAt
	}
	if in.EndsAt != nil {
		next.EndsAt = *in.EndsAt
	}
	if in.Note != nil {
		note, err := normalizeNote(in.Note)
		if err != nil {
			return Shift{}, interval.Interval{}, err
		}
		next.Note = note
	}
	span, err := newShiftSpan(next.StartsAt, next.EndsAt, next.EmployeeID)
	if err != nil {
		return Shift{}, interval.Interval{}, err
	}
	return next, span, nil
}

const maxShiftLockRounds = 3

// lockShifts は ids のシフトを行ロック付きで読み、keysFor が返すキーのロックを取得してから読み直します。
// 読み直した所有者や期間に未取得のキーが必要になった場合は追加で取得し、キーが揃った時点の値を返します。
func lockShifts(ctx context.Context, shifts ShiftRepository, locker Locker, tenantID string, ids []string, keysFor func([]*Shift) ([]string, error)) ([]*Shift, error) {
	held := make(map[string]struct{})
	for round := 0; round <= maxShiftLockRounds; round++ {
		found := make([]*Shift, 0, len(ids))
		for _, id := range ids {
			shift, err := shifts.FindByIDForUpdate(ctx, tenantID, id)
			if err != nil {
				return nil, err
			}
			found = append(found, shift)
		}
		keys, err := keysFor(found)
		if err != nil {
			return nil, err
		}
		missing := make([]string, 0, len(keys))
		for _, key := range keys {
			if _, ok := held[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) == 0 {
			return found, nil
		}
		if round == maxShiftLockRounds {
			break
		}
		if err := locker.Lock(ctx, missing...); err != nil {
			return nil, err
		}
		for _, key := range missing {
			held[key] = struct{}{}
		}
	}
	return nil, ErrConcurrentUpdate
}

// checkShiftOverlap は span と重なる同じ社員のシフトがあれば conflict.Overlap を返します。excludeIDs は比較から除外します。
func checkShiftOverlap(ctx context.Context, shifts ShiftRepository, tenantID string, span interval.Interval, excludeIDs ...string) error {
	existing, err := shifts.ListOverlapping(ctx, tenantID, span.OwnerID, span.Start, span.End)
	if err != nil {
		return err
	}
	candidates := make([]*Shift, 0, len(existing))
	spans := make([]interval.Interval, 0, len(existing))
	for _, shift := range existing {
		if containsID(excludeIDs, shift.ID) {
			continue
		}
		candidates = append(candidates, shift)
		spans = append(spans, shift.Span())
	}
	if idx, found := interval.FirstOverlap(span, spans); found {
		return conflict.Overlap(resourceShift, span.OwnerID, candidates[idx].ID)
	}
	return nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate != "" && candidate == id {
			return true
		}
	}
	return false
}

func (s *Service) recordShift(ctx context.Context, actor access.Actor, verb string, shift *Shift, details map[string]any) {
	actorID := actor.ID
	s.audit.Record(ctx, audit.Event{
		TenantID:     actor.TenantID,
		ActorID:      &actorID,
		Action:       resourceShift + "." + verb,
		ResourceType: resourceShift,
		ResourceID:   audit.StringPtr(shift.ID),
		Details:      details,
	})
}

func (s *Service) recordWindow(ctx context.Context, actor access.Actor, verb string, window *publishlock.Window, details map[string]any) {
	actorID := actor.ID
	s.audit.Record(ctx, audit.Event{
		TenantID:     actor.TenantID,
		ActorID:      &actorID,
		Action:       resourceSchedule + "." + verb,
		ResourceType: "schedule_window",
		ResourceID:   audit.StringPtr(window.TenantID),
		Details:      details,
	})
}

func shiftDetails(shift *Shift) map[string]any {
	return map[string]any{
		"employee_id": shift.EmployeeID,
		"starts_at":   shift.StartsAt.UTC().Format(time.RFC3339),
		"ends_at":     shift.EndsAt.UTC().Format(time.RFC3339),
	}
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

func newShiftSpan(start, end time.Time, employeeID string) (interval.Interval, error) {
	span, err := interval.New(start, end, employeeID)
	if err != nil {
		if errors.Is(err, interval.ErrInvalidRange) {
			return interval.Interval{}, ErrInvalidRange
		}
		return interval.Interval{}, ErrInvalidEmployeeID
	}
	if span.Duration() > MaxShiftDuration {
		return interval.Interval{}, ErrShiftTooLong
	}
	return span, nil
}

func normalizeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if _, err := uuid.Parse(trimmed); err != nil {
		return "", ErrInvalidID
	}
	return trimmed, nil
}

func normalizeEmployeeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmployeeID
	}
	return trimmed, nil
}

func normalizeNote(note *string) (*string, error) {
	if note == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil, nil
	}
	if err := validate.Var(trimmed, fmt.Sprintf("max=%d", MaxNoteLength)); err != nil {
		return nil, ErrNoteTooLong
	}
	return &trimmed, nil
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
