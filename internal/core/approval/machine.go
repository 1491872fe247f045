package approval

import "time"

// Decision は状態遷移を要求するアクター側の情報です。
type Decision struct {
	To        Status
	ActorID   string
	CanManage bool
	Note      *string
	At        time.Time
}

// Plan は req に対する遷移を検証し、永続化すべき Transition を返します。
// 終端状態からの遷移、および PENDING への遷移は常に ErrInvalidTransition です。
func Plan(req *Request, d Decision) (Transition, error) {
	if !isValidStatus(d.To) {
		return Transition{}, ErrInvalidStatus
	}
	if req.Status != StatusPending || d.To == StatusPending {
		return Transition{}, &TransitionError{From: req.Status, To: d.To}
	}

	t := Transition{
		RequestID: req.ID,
		TenantID:  req.TenantID,
		From:      req.Status,
		To:        d.To,
		UpdatedAt: d.At,
	}

	switch d.To {
	case StatusApproved, StatusRejected:
		if !d.CanManage {
			return Transition{}, ErrForbidden
		}
		if err := validateReviewNote(d.Note); err != nil {
			return Transition{}, err
		}
		reviewer := d.ActorID
		at := d.At
		t.ReviewedBy = &reviewer
		t.ReviewedAt = &at
		t.Note = cloneString(d.Note)
	case StatusCancelled:
		if d.ActorID != req.CreatedBy {
			return Transition{}, ErrNotCreator
		}
	}

	return t, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
