package approval

import (
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/interval"
)

// Payload は申請種別ごとの変更内容です。このパッケージ内の型のみが実装します。
type Payload interface {
	Kind() Kind
	isPayload()
}

// LeaveType は休暇の種類です。
type LeaveType string

const (
	LeaveAnnual   LeaveType = "annual"
	LeaveSick     LeaveType = "sick"
	LeaveOnDemand LeaveType = "on_demand"
	LeaveUnpaid   LeaveType = "unpaid"
	LeaveOther    LeaveType = "other"
)

// LeavePayload は休暇申請の内容です。
type LeavePayload struct {
	Type  LeaveType
	Start time.Time
	End   time.Time
	Note  string
}

func (LeavePayload) Kind() Kind { return KindLeave }
func (LeavePayload) isPayload() {}

// Span は休暇期間を ownerID の区間として返します。
func (p LeavePayload) Span(ownerID string) (interval.Interval, error) {
	return interval.New(p.Start, p.End, ownerID)
}

// SwapPayload はシフト交換申請の内容です。
// CounterpartyShiftID が nil の場合は相手方へのシフト譲渡、設定されている場合は相互交換です。
type SwapPayload struct {
	ShiftID             string
	CounterpartyShiftID *string
	Note                string
}

func (SwapPayload) Kind() Kind { return KindSwap }
func (SwapPayload) isPayload() {}

// CorrectionPayload は打刻 (RCP) 修正申請の内容です。
type CorrectionPayload struct {
	TimeEntryID string
	ClockIn     time.Time
	ClockOut    time.Time
	Reason      string
}

func (CorrectionPayload) Kind() Kind { return KindCorrection }
func (CorrectionPayload) isPayload() {}

// Span は修正後の勤務区間を返します。
func (p CorrectionPayload) Span(ownerID string) (interval.Interval, error) {
	return interval.New(p.ClockIn, p.ClockOut, ownerID)
}
