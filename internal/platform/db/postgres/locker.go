package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNoTransaction はトランザクションが必要な操作をトランザクション外で呼んだ場合のエラーです。
var ErrNoTransaction = errors.New("postgres: transaction required")

const advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

// AdvisoryLocker はトランザクションスコープのアドバイザリロックを取得します。
// ロックはトランザクションの終了時に解放されます。
type AdvisoryLocker struct{}

// NewAdvisoryLocker は AdvisoryLocker を生成します。
func NewAdvisoryLocker() *AdvisoryLocker {
	return &AdvisoryLocker{}
}

// Lock は keys を重複を除いた昇順で取得します。取得順を固定してデッドロックを避けます。
func (l *AdvisoryLocker) Lock(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, ok := txFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	for _, key := range uniqueSorted(keys) {
		if _, err := tx.Exec(ctx, advisoryLockSQL, key); err != nil {
			return fmt.Errorf("postgres: advisory lock %s: %w", key, err)
		}
	}
	return nil
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
