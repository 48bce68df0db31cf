package port

import (
	"context"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type InventoryRepository interface {
	// GetAvailability returns domain.ErrBookNotFound for unknown books.
	GetAvailability(ctx context.Context, bookID int64) (domain.Availability, error)

	// DecrementStock atomically takes one copy off the shelf and returns the new stock.
	// It fails with domain.ErrOutOfStock when stock is already zero.
	DecrementStock(ctx context.Context, bookID int64) (int, error)

	// IncrementStock puts one copy back and marks the book available.
	IncrementStock(ctx context.Context, bookID int64) (int, error)

	// AddStock restocks quantity copies.
	AddStock(ctx context.Context, bookID int64, quantity int) (int, error)
}
