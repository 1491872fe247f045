package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Event は状態遷移ごとに 1 件追記される監査イベントです。追記専用で更新・削除はしません。
type Event struct {
	TenantID     string
	ActorID      *string
	Action       string
	ResourceType string
	ResourceID   *string
	Details      map[string]any
	Timestamp    time.Time
}

// Recorder は監査イベントの永続化先です。
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// BestEffort は記録の失敗を呼び出し元へ伝播させない Recorder のラッパーです。
// 失敗はログに残して破棄します。
type BestEffort struct {
	rec    Recorder
	clock  Clock
	logger logrus.FieldLogger
}

// NewBestEffort は BestEffort を生成します。rec が nil の場合は何も記録しません。
func NewBestEffort(rec Recorder, clock Clock, logger logrus.FieldLogger) *BestEffort {
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BestEffort{rec: rec, clock: clock, logger: logger}
}

// Record はイベントを記録します。エラーは返しません。
func (b *BestEffort) Record(ctx context.Context, event Event) {
	if b == nil || b.rec == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = b.clock.Now()
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(eventFields(event)).WithField("panic", r).Error("audit.record.panic")
		}
	}()

	if err := b.rec.Record(ctx, event); err != nil {
		b.logger.WithFields(eventFields(event)).WithError(err).Warn("audit.record.failed")
	}
}

func eventFields(event Event) logrus.Fields {
	fields := logrus.Fields{
		"tenant_id":     event.TenantID,
		"action":        event.Action,
		"resource_type": event.ResourceType,
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.ResourceID != nil {
		fields["resource_id"] = *event.ResourceID
	}
	return fields
}

// StringPtr は空文字を nil として扱うポインタ変換です。
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
