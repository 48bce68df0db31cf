package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

// QueryService serves read-only views over lendings and inventory.
type QueryService struct {
	lendings  port.LendingQueryRepository
	inventory port.InventoryRepository
	logger    *zap.Logger
}

func NewQueryService(logger *zap.Logger, lendings port.LendingQueryRepository, inventory port.InventoryRepository) *QueryService {
	return &QueryService{
		lendings:  lendings,
		inventory: inventory,
		logger:    logger,
	}
}

// ListByUser returns the user's lendings joined with their books, newest
// first. No records yields an empty slice.
func (q *QueryService) ListByUser(ctx context.Context, p *domain.Principal, userID int64) ([]domain.LendingWithBook, error) {
	if err := Authenticated(p); err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, domain.InvalidInput("user_id must be a valid number")
	}

	rows, err := q.lendings.ListByUserWithBooks(ctx, userID)
	if err != nil {
		q.logger.Error("list lendings failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, domain.Internal("list lendings failed")
	}
	if rows == nil {
		rows = []domain.LendingWithBook{}
	}
	return rows, nil
}

func (q *QueryService) Availability(ctx context.Context, p *domain.Principal, bookID int64) (domain.Availability, error) {
	if err := Authenticated(p); err != nil {
		return domain.Availability{}, err
	}
	if bookID <= 0 {
		return domain.Availability{}, domain.InvalidInput("book_id must be a number greater than 0")
	}

	avail, err := q.inventory.GetAvailability(ctx, bookID)
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		return domain.Availability{}, domain.ErrBookNotFound
	case err != nil:
		q.logger.Error("read availability failed", zap.Int64("book_id", bookID), zap.Error(err))
		return domain.Availability{}, domain.Internal("read availability failed")
	}
	return avail, nil
}
