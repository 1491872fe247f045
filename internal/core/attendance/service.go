package attendance

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/audit"
	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
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

	resourceTimeEntry = "time_entry"
)

// Service は打刻のユースケースをまとめます。
type Service struct {
	repo   Repository
	locker Locker
	authz  access.Authorizer
	audit  *audit.BestEffort
	clock  Clock
	tx     TransactionManager
}

// UseCase は打刻ユースケースの公開インターフェースです。
type UseCase interface {
	ClockIn(ctx context.Context, actor access.Actor, in ClockInput) (*TimeEntry, error)
	ClockOut(ctx context.Context, actor access.Actor, in ClockInput) (*TimeEntry, error)
	ListEntries(ctx context.Context, actor access.Actor, in ListEntriesInput) (*ListEntriesResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, locker Locker, authz access.Authorizer, recorder *audit.BestEffort, clock Clock, tx TransactionManager) *Service {
	if locker == nil {
		locker = noopLocker{}
	}
	if authz == nil {
		authz = access.DefaultRoles()
	}
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, locker: locker, authz: authz, audit: recorder, clock: clock, tx: tx}
}

// ClockInput は出勤・退勤の入力です。At が nil の場合は現在時刻です。
type ClockInput struct {
	At *time.Time
}

// ListEntriesInput は一覧取得時の入力です。
type ListEntriesInput struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
	PageSize   int
	PageToken  string
}

// ListEntriesResult は一覧取得結果です。
type ListEntriesResult struct {
	Entries       []*TimeEntry
	NextPageToken string
}

// ClockIn はアクター本人の出勤を記録します。勤務中の記録がある場合は ErrAlreadyClockedIn です。
func (s *Service) ClockIn(ctx context.Context, actor access.Actor, in ClockInput) (*TimeEntry, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	clockIn := now
	if in.At != nil {
		clockIn = in.At.UTC()
	}

	var created *TimeEntry
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.locker.Lock(txCtx, lockKey(actor.TenantID, actor.ID)); err != nil {
			return err
		}
		_, err := s.repo.FindOpen(txCtx, actor.TenantID, actor.ID)
		if err == nil {
			return ErrAlreadyClockedIn
		}
		if !errors.Is(err, ErrEntryNotFound) {
			return err
		}
		// 出勤時刻が退勤済みの記録の中に入る打刻は受け付けない
		instant, err := interval.New(clockIn, clockIn.Add(time.Nanosecond), actor.ID)
		if err != nil {
			return err
		}
		if err := checkEntryOverlap(txCtx, s.repo, actor.TenantID, instant, ""); err != nil {
			return err
		}

		result, err := s.repo.Create(txCtx, &TimeEntry{
			TenantID:   actor.TenantID,
			EmployeeID: actor.ID,
			ClockIn:    clockIn,
			Source:     SourceClock,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.record(ctx, actor, "clock_in", created)
	return created, nil
}

// ClockOut はアクター本人の勤務中の記録を退勤済みにします。
func (s *Service) ClockOut(ctx context.Context, actor access.Actor, in ClockInput) (*TimeEntry, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	clockOut := now
	if in.At != nil {
		clockOut = in.At.UTC()
	}

	var updated *TimeEntry
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.locker.Lock(txCtx, lockKey(actor.TenantID, actor.ID)); err != nil {
			return err
		}
		open, err := s.repo.FindOpen(txCtx, actor.TenantID, actor.ID)
		if errors.Is(err, ErrEntryNotFound) {
			return ErrNotClockedIn
		}
		if err != nil {
			return err
		}
		span, err := interval.New(open.ClockIn, clockOut, actor.ID)
		if err != nil {
			return ErrInvalidRange
		}
		if err := checkEntryOverlap(txCtx, s.repo, actor.TenantID, span, open.ID); err != nil {
			return err
		}

		next := *open
		next.ClockOut = &clockOut
		next.UpdatedAt = now
		result, err := s.repo.Update(txCtx, &next)
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.record(ctx, actor, "clock_out", updated)
	return updated, nil
}

// ListEntries は打刻記録を出勤時刻順で返します。管理権限の無いアクターは自分の記録のみです。
func (s *Service) ListEntries(ctx context.Context, actor access.Actor, in ListEntriesInput) (*ListEntriesResult, error) {
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
		entries   []*TimeEntry
		nextToken string
	)
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, token, err := s.repo.List(txCtx, ListFilter{
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
		entries = found
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListEntriesResult{Entries: entries, NextPageToken: nextToken}, nil
}

func (s *Service) record(ctx context.Context, actor access.Actor, verb string, entry *TimeEntry) {
	actorID := actor.ID
	details := map[string]any{
		"clock_in": entry.ClockIn.UTC().Format(time.RFC3339),
	}
	if entry.ClockOut != nil {
		details["clock_out"] = entry.ClockOut.UTC().Format(time.RFC3339)
	}
	s.audit.Record(ctx, audit.Event{
		TenantID:     actor.TenantID,
		ActorID:      &actorID,
		Action:       resourceTimeEntry + "." + verb,
		ResourceType: resourceTimeEntry,
		ResourceID:   audit.StringPtr(entry.ID),
		Details:      details,
	})
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
