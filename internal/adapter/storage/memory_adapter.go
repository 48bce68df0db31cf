package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

var (
	_ port.InventoryRepository    = (*MemoryAdapter)(nil)
	_ port.LendingRepository      = (*MemoryAdapter)(nil)
	_ port.LendingQueryRepository = (*MemoryAdapter)(nil)
)

// MemoryAdapter keeps books and lendings in process. Every method holds the
// mutex for its whole body, which gives the same single-statement atomicity
// the SQL adapters get from the database.
type MemoryAdapter struct {
	mu            sync.Mutex
	books         map[int64]*domain.Book
	lendings      map[int64]*domain.Lending
	nextBookID    int64
	nextLendingID int64
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		books:    make(map[int64]*domain.Book),
		lendings: make(map[int64]*domain.Lending),
	}
}

// SeedBook stores b, assigning an ID when b.ID is zero.
func (m *MemoryAdapter) SeedBook(b domain.Book) domain.Book {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == 0 {
		m.nextBookID++
		b.ID = m.nextBookID
	} else if b.ID > m.nextBookID {
		m.nextBookID = b.ID
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	m.books[b.ID] = &b
	return b
}

// SeedLending stores l as is, assigning an ID when l.ID is zero.
func (m *MemoryAdapter) SeedLending(l domain.Lending) domain.Lending {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.ID == 0 {
		m.nextLendingID++
		l.ID = m.nextLendingID
	} else if l.ID > m.nextLendingID {
		m.nextLendingID = l.ID
	}
	m.lendings[l.ID] = &l
	return l
}

func (m *MemoryAdapter) Book(id int64) (domain.Book, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, false
	}
	return *b, true
}

func (m *MemoryAdapter) Lendings() []domain.Lending {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := lo.MapToSlice(m.lendings, func(_ int64, l *domain.Lending) domain.Lending { return *l })
	slices.SortFunc(out, func(a, b domain.Lending) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (m *MemoryAdapter) GetAvailability(ctx context.Context, bookID int64) (domain.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[bookID]
	if !ok {
		return domain.Availability{}, domain.ErrBookNotFound
	}
	return domain.Availability{BookID: b.ID, Stock: b.Stock, IsAvailable: b.IsAvailable}, nil
}

func (m *MemoryAdapter) DecrementStock(ctx context.Context, bookID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[bookID]
	if !ok {
		return 0, domain.ErrBookNotFound
	}
	if b.Stock <= 0 {
		return b.Stock, domain.ErrOutOfStock
	}
	b.Stock--
	b.IsAvailable = b.Stock > 0
	b.UpdatedAt = time.Now().UTC()
	return b.Stock, nil
}

func (m *MemoryAdapter) IncrementStock(ctx context.Context, bookID int64) (int, error) {
	return m.AddStock(ctx, bookID, 1)
}

func (m *MemoryAdapter) AddStock(ctx context.Context, bookID int64, quantity int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[bookID]
	if !ok {
		return 0, domain.ErrBookNotFound
	}
	b.Stock += quantity
	b.IsAvailable = b.Stock > 0
	b.UpdatedAt = time.Now().UTC()
	return b.Stock, nil
}

func (m *MemoryAdapter) CreateLending(ctx context.Context, lending domain.Lending) (domain.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLendingID++
	lending.ID = m.nextLendingID
	lending.ReturnedDate = nil
	m.lendings[lending.ID] = &lending
	return lending, nil
}

func (m *MemoryAdapter) GetLending(ctx context.Context, id int64) (domain.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lendings[id]
	if !ok {
		return domain.Lending{}, domain.ErrLendingNotFound
	}
	return *l, nil
}

func (m *MemoryAdapter) ListByUser(ctx context.Context, userID int64) ([]domain.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listByUserLocked(userID), nil
}

func (m *MemoryAdapter) listByUserLocked(userID int64) []domain.Lending {
	out := make([]domain.Lending, 0)
	for _, l := range m.lendings {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	slices.SortFunc(out, func(a, b domain.Lending) int {
		if c := b.BorrowedDate.Compare(a.BorrowedDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (m *MemoryAdapter) UpdateLending(ctx context.Context, id int64, upd domain.LendingUpdate) (domain.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lendings[id]
	if !ok {
		return domain.Lending{}, domain.ErrLendingNotFound
	}
	if l.Status != upd.ExpectedStatus {
		return domain.Lending{}, domain.ErrLendingModified
	}

	if upd.Status != nil {
		l.Status = *upd.Status
	}
	if upd.ReturnedDate != nil {
		d := *upd.ReturnedDate
		l.ReturnedDate = &d
	}
	l.UpdatedAt = upd.UpdatedAt
	return *l, nil
}

func (m *MemoryAdapter) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := time.Now().UTC()
	for _, l := range m.lendings {
		if l.Status == domain.LendingStatusBorrowed && l.DueDate.Before(asOf) {
			l.Status = domain.LendingStatusOverdue
			l.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryAdapter) ListByUserWithBooks(ctx context.Context, userID int64) ([]domain.LendingWithBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	joined := lo.FilterMap(m.listByUserLocked(userID), func(l domain.Lending, _ int) (domain.LendingWithBook, bool) {
		b, ok := m.books[l.BookID]
		if !ok {
			return domain.LendingWithBook{}, false
		}
		return domain.JoinLending(l, *b), true
	})
	return joined, nil
}
