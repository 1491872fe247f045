package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ogurasousui/workforce-scheduling/internal/platform/config"
	"github.com/sirupsen/logrus"
)

type loggerContextKey struct{}

// New は設定に従って logrus.Logger を構築します。出力先は標準エラーです。
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter は出力先を指定して logrus.Logger を構築します。
func NewWithWriter(cfg config.LogConfig, w io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: parse level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// ContextWithLogger は ctx にロガーを格納します。
func ContextWithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, entry)
}

// FromContext は ctx に格納されたロガーを返します。無い場合は標準ロガーです。
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(loggerContextKey{}).(*logrus.Entry); ok && entry != nil {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// WithFields は ctx のロガーにフィールドを追加した新しい ctx を返します。
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx).WithFields(fields))
}
