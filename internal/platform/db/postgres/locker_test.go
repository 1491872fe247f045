package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestAdvisoryLocker_SortedUniqueKeys(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	tm := NewTransactionManager(mock)
	locker := NewAdvisoryLocker()

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WithArgs("t:a:2024-W03").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WithArgs("t:b:2024-W03").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	err = tm.WithinReadWrite(context.Background(), func(ctx context.Context) error {
		return locker.Lock(ctx, "t:b:2024-W03", "t:a:2024-W03", "t:b:2024-W03")
	})
	if err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdvisoryLocker_RequiresTransaction(t *testing.T) {
	t.Parallel()

	if err := NewAdvisoryLocker().Lock(context.Background(), "key"); !errors.Is(err, ErrNoTransaction) {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
	if err := NewAdvisoryLocker().Lock(context.Background()); err != nil {
		t.Fatalf("empty key set must be a no-op, got %v", err)
	}
}
