package schedule

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"github.com/ogurasousui/workforce-scheduling/internal/core/audit"
	"github.com/ogurasousui/workforce-scheduling/internal/core/publishlock"
)

type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time {
	return f.now
}

type fakeShiftRepo struct {
	mu       sync.Mutex
	store    map[string]*Shift
	reassign [][]Reassignment
}

func newFakeShiftRepo() *fakeShiftRepo {
	return &fakeShiftRepo{store: make(map[string]*Shift)}
}

func (r *fakeShiftRepo) seed(tenantID, employeeID string, start, end time.Time) *Shift {
	r.mu.Lock()
	defer r.mu.Unlock()
	shift := &Shift{ID: uuid.NewString(), TenantID: tenantID, EmployeeID: employeeID, StartsAt: start, EndsAt: end}
	r.store[shift.ID] = shift
	out := *shift
	return &out
}

func (r *fakeShiftRepo) get(id string) *Shift {
	r.mu.Lock()
	defer r.mu.Unlock()
	shift, ok := r.store[id]
	if !ok {
		return nil
	}
	out := *shift
	return &out
}

func (r *fakeShiftRepo) mutate(id string, fn func(*Shift)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if shift, ok := r.store[id]; ok {
		fn(shift)
	}
}

func (r *fakeShiftRepo) Create(_ context.Context, shift *Shift) (*Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *shift
	stored.ID = uuid.NewString()
	r.store[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *fakeShiftRepo) Update(_ context.Context, shift *Shift) (*Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.store[shift.ID]
	if !ok || current.TenantID != shift.TenantID {
		return nil, ErrShiftNotFound
	}
	stored := *shift
	r.store[shift.ID] = &stored
	out := stored
	return &out, nil
}

func (r *fakeShiftRepo) Delete(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.store[id]
	if !ok || current.TenantID != tenantID {
		return ErrShiftNotFound
	}
	delete(r.store, id)
	return nil
}

func (r *fakeShiftRepo) FindByID(_ context.Context, tenantID, id string) (*Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shift, ok := r.store[id]
	if !ok || shift.TenantID != tenantID {
		return nil, ErrShiftNotFound
	}
	out := *shift
	return &out, nil
}

func (r *fakeShiftRepo) FindByIDForUpdate(ctx context.Context, tenantID, id string) (*Shift, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *fakeShiftRepo) ListOverlapping(_ context.Context, tenantID, employeeID string, from, to time.Time) ([]*Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*Shift
	for _, shift := range r.store {
		if shift.TenantID != tenantID || shift.EmployeeID != employeeID {
			continue
		}
		if shift.StartsAt.Before(to) && from.Before(shift.EndsAt) {
			out := *shift
			result = append(result, &out)
		}
	}
	sortShifts(result)
	return result, nil
}

func (r *fakeShiftRepo) List(_ context.Context, filter ShiftFilter) ([]*Shift, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*Shift
	for _, shift := range r.store {
		if shift.TenantID != filter.TenantID {
			continue
		}
		if filter.EmployeeID != "" && shift.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.From != nil && !shift.EndsAt.After(*filter.From) {
			continue
		}
		if filter.To != nil && !shift.StartsAt.Before(*filter.To) {
			continue
		}
		out := *shift
		matched = append(matched, &out)
	}
	sortShifts(matched)
	if filter.Offset >= len(matched) {
		return nil, "", nil
	}
	end := filter.Offset + filter.Limit
	next := ""
	if end < len(matched) {
		next = strconv.Itoa(end)
	} else {
		end = len(matched)
	}
	return matched[filter.Offset:end], next, nil
}

func (r *fakeShiftRepo) Reassign(_ context.Context, tenantID string, moves []Reassignment, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, move := range moves {
		shift, ok := r.store[move.ShiftID]
		if !ok || shift.TenantID != tenantID {
			return ErrShiftNotFound
		}
		shift.EmployeeID = move.EmployeeID
		shift.UpdatedAt = updatedAt
	}
	r.reassign = append(r.reassign, moves)
	return nil
}

func sortShifts(shifts []*Shift) {
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].StartsAt.Equal(shifts[j].StartsAt) {
			return shifts[i].ID < shifts[j].ID
		}
		return shifts[i].StartsAt.Before(shifts[j].StartsAt)
	})
}

type fakeWindowRepo struct {
	mu      sync.Mutex
	windows map[string]publishlock.Window
}

func newFakeWindowRepo() *fakeWindowRepo {
	return &fakeWindowRepo{windows: make(map[string]publishlock.Window)}
}

func (r *fakeWindowRepo) Find(_ context.Context, tenantID string) (*publishlock.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	window, ok := r.windows[tenantID]
	if !ok {
		return nil, ErrWindowNotFound
	}
	return &window, nil
}

func (r *fakeWindowRepo) FindForShare(ctx context.Context, tenantID string) (*publishlock.Window, error) {
	return r.Find(ctx, tenantID)
}

func (r *fakeWindowRepo) FindForUpdate(ctx context.Context, tenantID string) (*publishlock.Window, error) {
	return r.Find(ctx, tenantID)
}

func (r *fakeWindowRepo) Save(_ context.Context, window publishlock.Window) (*publishlock.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows[window.TenantID] = window
	return &window, nil
}

func (r *fakeWindowRepo) publish(tenantID string, from, to, until time.Time) {
	window, err := publishlock.NewWindow(tenantID, from, to)
	if err != nil {
		panic(err)
	}
	window, err = window.Publish(until)
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows[tenantID] = window
}

type recordingLocker struct {
	mu    sync.Mutex
	calls [][]string
}

func (l *recordingLocker) Lock(_ context.Context, keys ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, append([]string(nil), keys...))
	return nil
}

// interleavingLocker は Lock の呼び出しごとに commits の先頭を一つ実行し、
// ロック待ちの間に別のトランザクションが確定した状況を再現します。
type interleavingLocker struct {
	recordingLocker
	commits []func()
}

func (l *interleavingLocker) Lock(_ context.Context, keys ...string) error {
	l.mu.Lock()
	l.calls = append(l.calls, append([]string(nil), keys...))
	var commit func()
	if len(l.commits) > 0 {
		commit = l.commits[0]
		l.commits = l.commits[1:]
	}
	l.mu.Unlock()

	if commit != nil {
		commit()
	}
	return nil
}

type fakeLeaveFinder struct {
	leaves []LeaveSpan
}

func (f *fakeLeaveFinder) ListApprovedLeaves(_ context.Context, tenantID, employeeID string, from, to time.Time) ([]LeaveSpan, error) {
	var result []LeaveSpan
	for _, leave := range f.leaves {
		if leave.Span.OwnerID == employeeID && leave.Span.Start.Before(to) && from.Before(leave.Span.End) {
			result = append(result, leave)
		}
	}
	return result, nil
}

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureRecorder) Record(_ context.Context, event audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureRecorder) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Action)
	}
	return out
}

const tenantID = "tenant-1"

var (
	testNow  = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	employee = access.Actor{ID: "emp-1", TenantID: tenantID, Roles: []string{"employee"}}
	manager  = access.Actor{ID: "mgr-1", TenantID: tenantID, Roles: []string{"manager"}}
	admin    = access.Actor{ID: "adm-1", TenantID: tenantID, Roles: []string{"admin"}}
)

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}
