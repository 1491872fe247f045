package handler

import (
	"math"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// fields は Struct メッセージのフィールドを型付きで読み出します。
type fields struct {
	values map[string]*structpb.Value
}

func fieldsOf(in *structpb.Struct) fields {
	if in == nil {
		return fields{}
	}
	return fields{values: in.GetFields()}
}

func (f fields) lookup(name string) (*structpb.Value, bool) {
	v, ok := f.values[name]
	if !ok || v == nil {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func (f fields) has(name string) bool {
	_, ok := f.lookup(name)
	return ok
}

func (f fields) str(name string) (string, error) {
	v, ok := f.lookup(name)
	if !ok {
		return "", nil
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", invalidField(name, "must be a string")
	}
	return s.StringValue, nil
}

func (f fields) optionalStr(name string) (*string, error) {
	if !f.has(name) {
		return nil, nil
	}
	s, err := f.str(name)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (f fields) integer(name string) (int, error) {
	v, ok := f.lookup(name)
	if !ok {
		return 0, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, invalidField(name, "must be an integer")
	}
	// int32 の範囲外は変換結果が環境依存になるので受け付けない
	if n.NumberValue < math.MinInt32 || n.NumberValue > math.MaxInt32 {
		return 0, invalidField(name, "is out of range")
	}
	return int(n.NumberValue), nil
}

func (f fields) timestamp(name string) (time.Time, error) {
	t, err := f.optionalTimestamp(name)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, invalidField(name, "is required")
	}
	return *t, nil
}

func (f fields) optionalTimestamp(name string) (*time.Time, error) {
	raw, err := f.str(name)
	if err != nil || strings.TrimSpace(raw) == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return nil, invalidField(name, "must be an RFC 3339 timestamp")
	}
	utc := t.UTC()
	return &utc, nil
}

func (f fields) date(name string) (time.Time, error) {
	d, err := f.optionalDate(name)
	if err != nil {
		return time.Time{}, err
	}
	if d == nil {
		return time.Time{}, invalidField(name, "is required")
	}
	return *d, nil
}

func (f fields) optionalDate(name string) (*time.Time, error) {
	raw, err := f.str(name)
	if err != nil || strings.TrimSpace(raw) == "" {
		return nil, err
	}
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return nil, invalidField(name, "must be a YYYY-MM-DD date")
	}
	return &d, nil
}

func (f fields) object(name string) (fields, error) {
	v, ok := f.lookup(name)
	if !ok {
		return fields{}, nil
	}
	s, isStruct := v.GetKind().(*structpb.Value_StructValue)
	if !isStruct {
		return fields{}, invalidField(name, "must be an object")
	}
	return fieldsOf(s.StructValue), nil
}

func invalidField(name, reason string) error {
	return status.Errorf(codes.InvalidArgument, "%s %s", name, reason)
}

func newStruct(values map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(values)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func formatOptionalDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
