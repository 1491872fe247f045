package approval

import "context"

// Repository は申請の永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, req *Request) (*Request, error)
	FindByID(ctx context.Context, tenantID, id string) (*Request, error)
	// UpdateStatus は現在の状態が t.From の場合のみ更新し、対象が 0 行なら ErrStaleWrite を返します。
	UpdateStatus(ctx context.Context, t Transition) error
	List(ctx context.Context, filter ListFilter) ([]*Request, string, error)
}

// ListFilter は一覧取得用フィルタです。
type ListFilter struct {
	TenantID   string
	Kind       *Kind
	Status     *Status
	EmployeeID string
	Limit      int
	Offset     int
}

// Effect は申請種別ごとの承認時の検証と反映です。
// Verify は申請時と承認時の両方で呼ばれ、競合があれば conflict.Error を返します。
type Effect interface {
	Verify(ctx context.Context, req *Request, actor Reviewer) error
	Apply(ctx context.Context, req *Request) error
}
