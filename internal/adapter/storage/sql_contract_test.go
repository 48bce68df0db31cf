package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

type sqlStore interface {
	port.InventoryRepository
	port.LendingRepository
	port.LendingQueryRepository
	Migrate(ctx context.Context) error
	CreateBook(ctx context.Context, b domain.Book) (domain.Book, error)
	GetBook(ctx context.Context, id int64) (domain.Book, error)
}

// testSQLStore runs the behaviour every SQL-backed store must share. Each run
// works on fresh rows, so the tables may hold data from earlier runs.
func testSQLStore(t *testing.T, store sqlStore) {
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	// second run must be a no-op
	require.NoError(t, store.Migrate(ctx))

	t.Run("decrement to zero", func(t *testing.T) {
		b, err := store.CreateBook(ctx, domain.Book{Title: "Dune", Author: "Frank Herbert", Stock: 1})
		require.NoError(t, err)

		stock, err := store.DecrementStock(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stock)

		avail, err := store.GetAvailability(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, avail.Stock)
		assert.False(t, avail.IsAvailable)

		_, err = store.DecrementStock(ctx, b.ID)
		assert.ErrorIs(t, err, domain.ErrOutOfStock)

		stock, err = store.IncrementStock(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stock)

		got, err := store.GetBook(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, got.IsAvailable)
	})

	t.Run("missing book", func(t *testing.T) {
		_, err := store.GetAvailability(ctx, -1)
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
		_, err = store.DecrementStock(ctx, -1)
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
		_, err = store.AddStock(ctx, -1, 3)
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	t.Run("concurrent decrement", func(t *testing.T) {
		b, err := store.CreateBook(ctx, domain.Book{Title: "Contested", Stock: 5})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var successCount atomic.Int32
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.DecrementStock(ctx, b.ID); err == nil {
					successCount.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(5), successCount.Load())
		avail, err := store.GetAvailability(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, avail.Stock)
		assert.False(t, avail.IsAvailable)
	})

	t.Run("lending lifecycle", func(t *testing.T) {
		b, err := store.CreateBook(ctx, domain.Book{Title: "Emma", Author: "Jane Austen", ISBN: "9780141439587", Stock: 2})
		require.NoError(t, err)

		userID := time.Now().UnixNano()
		borrowed := time.Now().UTC().Truncate(time.Second)
		due := domain.Truncate(borrowed).AddDate(0, 0, 14)

		created, err := store.CreateLending(ctx, domain.Lending{
			UserID:       userID,
			BookID:       b.ID,
			BorrowedDate: borrowed,
			DueDate:      due,
			Status:       domain.LendingStatusBorrowed,
			CreatedAt:    borrowed,
			UpdatedAt:    borrowed,
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)

		got, err := store.GetLending(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LendingStatusBorrowed, got.Status)
		assert.Equal(t, due.Format(domain.DateLayout), got.DueDate.Format(domain.DateLayout))
		assert.Nil(t, got.ReturnedDate)

		returned := domain.LendingStatusReturned
		day := domain.Truncate(borrowed).AddDate(0, 0, 3)
		updated, err := store.UpdateLending(ctx, created.ID, domain.LendingUpdate{
			Status:         &returned,
			ReturnedDate:   &day,
			ExpectedStatus: domain.LendingStatusBorrowed,
			UpdatedAt:      time.Now().UTC(),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LendingStatusReturned, updated.Status)
		require.NotNil(t, updated.ReturnedDate)
		assert.Equal(t, day.Format(domain.DateLayout), updated.ReturnedDate.Format(domain.DateLayout))

		_, err = store.UpdateLending(ctx, created.ID, domain.LendingUpdate{
			Status:         &returned,
			ExpectedStatus: domain.LendingStatusBorrowed,
			UpdatedAt:      time.Now().UTC(),
		})
		assert.ErrorIs(t, err, domain.ErrLendingModified)

		_, err = store.UpdateLending(ctx, -1, domain.LendingUpdate{ExpectedStatus: domain.LendingStatusBorrowed, UpdatedAt: time.Now().UTC()})
		assert.ErrorIs(t, err, domain.ErrLendingNotFound)

		list, err := store.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 1)

		joined, err := store.ListByUserWithBooks(ctx, userID)
		require.NoError(t, err)
		require.Len(t, joined, 1)
		assert.Equal(t, "Emma", joined[0].BookTitle)
		assert.Equal(t, "Jane Austen", joined[0].BookAuthor)
		require.NotNil(t, joined[0].ReturnedDate)
		assert.Equal(t, day.Format(domain.DateLayout), *joined[0].ReturnedDate)
	})

	t.Run("mark overdue", func(t *testing.T) {
		b, err := store.CreateBook(ctx, domain.Book{Title: "Late", Stock: 1})
		require.NoError(t, err)

		now := time.Now().UTC()
		userID := now.UnixNano()
		l, err := store.CreateLending(ctx, domain.Lending{
			UserID:       userID,
			BookID:       b.ID,
			BorrowedDate: now.AddDate(0, 0, -20),
			DueDate:      domain.Truncate(now).AddDate(0, 0, -6),
			Status:       domain.LendingStatusBorrowed,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		require.NoError(t, err)

		n, err := store.MarkOverdue(ctx, domain.Truncate(now))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		got, err := store.GetLending(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LendingStatusOverdue, got.Status)
	})

	t.Run("empty list", func(t *testing.T) {
		list, err := store.ListByUserWithBooks(ctx, -42)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
