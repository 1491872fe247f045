package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/core/approval"
)

type leavePayloadJSON struct {
	Type  string    `json:"type"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Note  string    `json:"note,omitempty"`
}

type swapPayloadJSON struct {
	ShiftID             string  `json:"shift_id"`
	CounterpartyShiftID *string `json:"counterparty_shift_id,omitempty"`
	Note                string  `json:"note,omitempty"`
}

type correctionPayloadJSON struct {
	TimeEntryID string    `json:"time_entry_id"`
	ClockIn     time.Time `json:"clock_in"`
	ClockOut    time.Time `json:"clock_out"`
	Reason      string    `json:"reason"`
}

func encodePayload(p approval.Payload) ([]byte, error) {
	switch v := p.(type) {
	case approval.LeavePayload:
		return json.Marshal(leavePayloadJSON{Type: string(v.Type), Start: v.Start.UTC(), End: v.End.UTC(), Note: v.Note})
	case approval.SwapPayload:
		return json.Marshal(swapPayloadJSON{ShiftID: v.ShiftID, CounterpartyShiftID: v.CounterpartyShiftID, Note: v.Note})
	case approval.CorrectionPayload:
		return json.Marshal(correctionPayloadJSON{TimeEntryID: v.TimeEntryID, ClockIn: v.ClockIn.UTC(), ClockOut: v.ClockOut.UTC(), Reason: v.Reason})
	default:
		return nil, fmt.Errorf("postgres: unsupported payload %T", p)
	}
}

func decodePayload(kind approval.Kind, raw []byte) (approval.Payload, error) {
	switch kind {
	case approval.KindLeave:
		var v leavePayloadJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("postgres: decode leave payload: %w", err)
		}
		return approval.LeavePayload{Type: approval.LeaveType(v.Type), Start: v.Start.UTC(), End: v.End.UTC(), Note: v.Note}, nil
	case approval.KindSwap:
		var v swapPayloadJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("postgres: decode swap payload: %w", err)
		}
		return approval.SwapPayload{ShiftID: v.ShiftID, CounterpartyShiftID: v.CounterpartyShiftID, Note: v.Note}, nil
	case approval.KindCorrection:
		var v correctionPayloadJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("postgres: decode correction payload: %w", err)
		}
		return approval.CorrectionPayload{TimeEntryID: v.TimeEntryID, ClockIn: v.ClockIn.UTC(), ClockOut: v.ClockOut.UTC(), Reason: v.Reason}, nil
	default:
		return nil, approval.ErrInvalidKind
	}
}

// payloadSpan は検索用に休暇・打刻修正の区間を取り出します。シフト交換は区間を持ちません。
func payloadSpan(p approval.Payload) (*time.Time, *time.Time) {
	switch v := p.(type) {
	case approval.LeavePayload:
		start, end := v.Start.UTC(), v.End.UTC()
		return &start, &end
	case approval.CorrectionPayload:
		start, end := v.ClockIn.UTC(), v.ClockOut.UTC()
		return &start, &end
	default:
		return nil, nil
	}
}
