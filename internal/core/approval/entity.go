package approval

import (
	"strings"
	"time"
)

// Status は申請の状態です。PENDING 以外はすべて終端状態です。
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal は終端状態かを返します。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

func isValidStatus(s Status) bool {
	return s == StatusPending || s.IsTerminal()
}

// ParseStatus は文字列から Status を解釈します。
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !isValidStatus(s) {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Kind は申請の種類です。
type Kind string

const (
	KindLeave      Kind = "leave"
	KindSwap       Kind = "swap"
	KindCorrection Kind = "correction"
)

// ParseKind は文字列から Kind を解釈します。
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	switch k {
	case KindLeave, KindSwap, KindCorrection:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

// ResourceType は監査ログに記録するリソース種別です。
func (k Kind) ResourceType() string {
	return string(k) + "_request"
}

// Request は休暇・シフト交換・打刻修正の申請を共通に表現します。
type Request struct {
	ID                     string
	TenantID               string
	Kind                   Kind
	SubjectEmployeeID      string
	CounterpartyEmployeeID *string
	Payload                Payload
	Status                 Status
	CreatedBy              string
	ReviewedBy             *string
	ReviewedAt             *time.Time
	Note                   *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Involves は employeeID が申請の作成者・対象者・相手方のいずれかであるかを返します。
func (r *Request) Involves(employeeID string) bool {
	if r.CreatedBy == employeeID || r.SubjectEmployeeID == employeeID {
		return true
	}
	return r.CounterpartyEmployeeID != nil && *r.CounterpartyEmployeeID == employeeID
}

// Transition は永続化層へ渡す状態遷移です。From を条件とした CAS で適用されます。
type Transition struct {
	RequestID  string
	TenantID   string
	From       Status
	To         Status
	ReviewedBy *string
	ReviewedAt *time.Time
	Note       *string
	UpdatedAt  time.Time
}

// ApplyTo は遷移後の申請のコピーを返します。
func (t Transition) ApplyTo(req *Request) *Request {
	next := *req
	next.Status = t.To
	next.UpdatedAt = t.UpdatedAt
	if t.ReviewedBy != nil {
		next.ReviewedBy = t.ReviewedBy
	}
	if t.ReviewedAt != nil {
		next.ReviewedAt = t.ReviewedAt
	}
	if t.Note != nil {
		next.Note = t.Note
	}
	return &next
}
