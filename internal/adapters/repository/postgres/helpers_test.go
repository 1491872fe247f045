package postgres

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

type stubRow struct {
	scanFn func(dest ...any) error
}

func (s stubRow) Scan(dest ...any) error {
	return s.scanFn(dest...)
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}
