package port

import (
	"context"
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type LendingRepository interface {
	// CreateLending persists a new record and returns it with its assigned ID
	CreateLending(ctx context.Context, lending domain.Lending) (domain.Lending, error)

	// GetLending returns domain.ErrLendingNotFound for unknown ids
	GetLending(ctx context.Context, id int64) (domain.Lending, error)

	// ListByUser returns the user's records, newest borrow first
	ListByUser(ctx context.Context, userID int64) ([]domain.Lending, error)

	// UpdateLending applies a partial update guarded by upd.ExpectedStatus,
	// returns domain.ErrLendingModified if the guard did not match
	UpdateLending(ctx context.Context, id int64, upd domain.LendingUpdate) (domain.Lending, error)

	// MarkOverdue flips borrowed records due before asOf to overdue
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type LendingQueryRepository interface {
	ListByUserWithBooks(ctx context.Context, userID int64) ([]domain.LendingWithBook, error)
}
