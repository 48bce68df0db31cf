package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

const (
	DefaultLoanDays = 14

	borrowKeyPrefix = "lending:borrow:"
)

type LendingService struct {
	inventory   port.InventoryRepository
	lendings    port.LendingRepository
	idempotency port.IdempotencyRepository
	validate    *validator.Validate
	logger      *zap.Logger
	loanDays    int
	now         func() time.Time
}

type Option func(*LendingService)

// WithIdempotency enables duplicate detection for borrow commands carrying a RequestID.
func WithIdempotency(repo port.IdempotencyRepository) Option {
	return func(s *LendingService) {
		s.idempotency = repo
	}
}

func WithLoanDays(days int) Option {
	return func(s *LendingService) {
		if days > 0 {
			s.loanDays = days
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *LendingService) {
		s.now = now
	}
}

func NewLendingService(
	logger *zap.Logger,
	inventory port.InventoryRepository,
	lendings port.LendingRepository,
	opts ...Option,
) *LendingService {
	s := &LendingService{
		inventory: inventory,
		lendings:  lendings,
		validate:  validator.New(),
		logger:    logger,
		loanDays:  DefaultLoanDays,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Borrow lends one copy of a book. Stock is reserved with a conditional
// decrement before the lending record is written; if the write fails the
// reservation is given back.
func (s *LendingService) Borrow(ctx context.Context, p *domain.Principal, cmd domain.BorrowCommand) (lending domain.Lending, err error) {
	if err = Authorize(p, domain.LevelLendingManage); err != nil {
		return domain.Lending{}, err
	}
	if err = s.validate.Struct(cmd); err != nil {
		return domain.Lending{}, validationError(err)
	}

	now := s.now()
	borrowDay := domain.Truncate(now)
	dueDate := borrowDay.AddDate(0, 0, s.loanDays)
	if cmd.DueDate != nil {
		dueDate = domain.Truncate(*cmd.DueDate)
		if dueDate.Before(borrowDay) {
			return domain.Lending{}, domain.InvalidInput("due_date must not be before the borrow date")
		}
	}

	if cmd.RequestID != "" && s.idempotency != nil {
		key := borrowKeyPrefix + cmd.RequestID
		token, ok, acquireErr := s.idempotency.Acquire(ctx, key)
		if acquireErr != nil {
			s.logger.Error("idempotency check failed", zap.String("request_id", cmd.RequestID), zap.Error(acquireErr))
			return domain.Lending{}, domain.Internal("idempotency check failed")
		}
		if !ok {
			return domain.Lending{}, domain.ErrDuplicateRequest
		}
		defer func() {
			if err == nil {
				return
			}
			if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), key, token); releaseErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(releaseErr))
			}
		}()
	}

	avail, err := s.inventory.GetAvailability(ctx, cmd.BookID)
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		return domain.Lending{}, domain.ErrBookNotFound
	case err != nil:
		s.logger.Error("read availability failed", zap.Int64("book_id", cmd.BookID), zap.Error(err))
		return domain.Lending{}, domain.Internal("read availability failed")
	case !avail.Lendable():
		return domain.Lending{}, domain.ErrBookUnavailable
	}

	stock, err := s.inventory.DecrementStock(ctx, cmd.BookID)
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		s.logger.Info("stock taken by a concurrent borrow",
			zap.Int64("book_id", cmd.BookID),
			zap.Int64("user_id", cmd.UserID))
		return domain.Lending{}, domain.ErrBookUnavailable
	case errors.Is(err, domain.ErrBookNotFound):
		return domain.Lending{}, domain.ErrBookNotFound
	case err != nil:
		s.logger.Error("reserve stock failed", zap.Int64("book_id", cmd.BookID), zap.Error(err))
		return domain.Lending{}, domain.Internal("reserve stock failed")
	}

	lending, err = s.lendings.CreateLending(ctx, domain.Lending{
		UserID:       cmd.UserID,
		BookID:       cmd.BookID,
		BorrowedDate: now,
		DueDate:      dueDate,
		Status:       domain.LendingStatusBorrowed,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		s.logger.Error("create lending failed",
			zap.Int64("book_id", cmd.BookID),
			zap.Int64("user_id", cmd.UserID),
			zap.Error(err))
		s.restoreStock(ctx, cmd.BookID, cmd.UserID)
		return domain.Lending{}, domain.Internal("create lending failed")
	}

	s.logger.Info("book lent",
		zap.Int64("lending_id", lending.ID),
		zap.Int64("book_id", lending.BookID),
		zap.Int64("user_id", lending.UserID),
		zap.Int("stock", stock))
	return lending, nil
}

func (s *LendingService) restoreStock(ctx context.Context, bookID, userID int64) {
	if _, err := s.inventory.IncrementStock(context.WithoutCancel(ctx), bookID); err != nil {
		s.logger.Error("CRITICAL: stock compensation failed, inventory drift",
			zap.Int64("book_id", bookID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return
	}
	s.logger.Warn("rolled back stock reservation", zap.Int64("book_id", bookID), zap.Int64("user_id", userID))
}

// UpdateLending applies a status and/or returned date change. The first
// transition into returned puts the copy back on the shelf.
func (s *LendingService) UpdateLending(ctx context.Context, p *domain.Principal, cmd domain.UpdateLendingCommand) error {
	if err := Authorize(p, domain.LevelLendingManage); err != nil {
		return err
	}
	if err := s.validate.Struct(cmd); err != nil {
		return validationError(err)
	}

	current, err := s.lendings.GetLending(ctx, cmd.LendingID)
	switch {
	case errors.Is(err, domain.ErrLendingNotFound):
		return domain.ErrLendingNotFound
	case err != nil:
		s.logger.Error("load lending failed", zap.Int64("lending_id", cmd.LendingID), zap.Error(err))
		return domain.Internal("load lending failed")
	}

	if cmd.Status == nil && cmd.ReturnedDate == nil {
		return domain.InvalidInput("no fields provided for update")
	}

	upd, err := s.planUpdate(current, cmd)
	if err != nil {
		return err
	}

	updated, err := s.lendings.UpdateLending(ctx, current.ID, upd)
	switch {
	case errors.Is(err, domain.ErrLendingModified):
		return domain.ErrLendingModified
	case errors.Is(err, domain.ErrLendingNotFound):
		return domain.ErrLendingNotFound
	case err != nil:
		s.logger.Error("update lending failed", zap.Int64("lending_id", current.ID), zap.Error(err))
		return domain.Internal("failed to update lending record")
	}

	if updated.Status == domain.LendingStatusReturned && current.Status != domain.LendingStatusReturned {
		stock, incErr := s.inventory.IncrementStock(ctx, current.BookID)
		if incErr != nil {
			s.logger.Error("failed to restore stock after return, inventory drift",
				zap.Int64("lending_id", current.ID),
				zap.Int64("book_id", current.BookID),
				zap.Error(incErr))
			return nil
		}
		s.logger.Info("book returned",
			zap.Int64("lending_id", current.ID),
			zap.Int64("book_id", current.BookID),
			zap.Int("stock", stock))
	}
	return nil
}

func (s *LendingService) planUpdate(current domain.Lending, cmd domain.UpdateLendingCommand) (domain.LendingUpdate, error) {
	next := current.Status
	if cmd.Status != nil {
		next = *cmd.Status
	}
	if !current.Status.CanTransitionTo(next) {
		return domain.LendingUpdate{}, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current.Status, next)
	}

	upd := domain.LendingUpdate{
		ExpectedStatus: current.Status,
		UpdatedAt:      s.now(),
	}
	if cmd.Status != nil {
		status := next
		upd.Status = &status
	}

	if next != domain.LendingStatusReturned {
		if cmd.ReturnedDate != nil {
			return domain.LendingUpdate{}, domain.InvalidInput("returned_date is only allowed with status returned")
		}
		return upd, nil
	}

	switch {
	case cmd.ReturnedDate != nil:
		returned := domain.Truncate(*cmd.ReturnedDate)
		if returned.Before(domain.Truncate(current.BorrowedDate)) {
			return domain.LendingUpdate{}, domain.InvalidInput("returned_date must not be before the borrow date")
		}
		upd.ReturnedDate = &returned
	case current.ReturnedDate == nil:
		returned := domain.Truncate(upd.UpdatedAt)
		upd.ReturnedDate = &returned
	}
	return upd, nil
}

// Restock adds copies of a book to the shelf. Reserved for the top rank.
func (s *LendingService) Restock(ctx context.Context, p *domain.Principal, bookID int64, quantity int) (domain.Availability, error) {
	if err := Authorize(p, domain.LevelTop); err != nil {
		return domain.Availability{}, err
	}
	if bookID <= 0 {
		return domain.Availability{}, domain.InvalidInput("book_id must be a number greater than 0")
	}
	if quantity <= 0 {
		return domain.Availability{}, domain.InvalidInput("quantity must be a number greater than 0")
	}

	stock, err := s.inventory.AddStock(ctx, bookID, quantity)
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		return domain.Availability{}, domain.ErrBookNotFound
	case err != nil:
		s.logger.Error("restock failed", zap.Int64("book_id", bookID), zap.Error(err))
		return domain.Availability{}, domain.Internal("restock failed")
	}

	s.logger.Info("book restocked", zap.Int64("book_id", bookID), zap.Int("quantity", quantity), zap.Int("stock", stock))
	return domain.Availability{BookID: bookID, Stock: stock, IsAvailable: stock > 0}, nil
}

// MarkOverdue flags every borrowed record due before asOf's day.
func (s *LendingService) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := s.lendings.MarkOverdue(ctx, domain.Truncate(asOf))
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return n, nil
}
