package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
)

var errStoreDown = errors.New("store down")

// mockStore implements the inventory, lending and query ports. The *Err
// fields inject failures into the matching call.
type mockStore struct {
	mu       sync.Mutex
	books    map[int64]*domain.Book
	lendings map[int64]*domain.Lending
	nextID   int64

	availabilityErr error
	decrementErr    error
	incrementErr    error
	createErr       error
	updateErr       error
	listErr         error

	decrementCalls int
	incrementCalls int
}

func newMockStore(books ...domain.Book) *mockStore {
	m := &mockStore{
		books:    make(map[int64]*domain.Book),
		lendings: make(map[int64]*domain.Lending),
	}
	for _, b := range books {
		b.IsAvailable = b.Stock > 0
		m.books[b.ID] = &b
	}
	return m
}

func (m *mockStore) book(id int64) domain.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.books[id]
}

func (m *mockStore) lending(id int64) domain.Lending {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.lendings[id]
}

func (m *mockStore) lendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lendings)
}

func (m *mockStore) put(l domain.Lending) domain.Lending {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	m.lendings[l.ID] = &l
	return l
}

func (m *mockStore) GetAvailability(ctx context.Context, bookID int64) (domain.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.availabilityErr != nil {
		return domain.Availability{}, m.availabilityErr
	}
	b, ok := m.books[bookID]
	if !ok {
		return domain.Availability{}, domain.ErrBookNotFound
	}
	return domain.Availability{BookID: b.ID, Stock: b.Stock, IsAvailable: b.IsAvailable}, nil
}

func (m *mockStore) DecrementStock(ctx context.Context, bookID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decrementCalls++
	if m.decrementErr != nil {
		return 0, m.decrementErr
	}
	b, ok := m.books[bookID]
	if !ok {
		return 0, domain.ErrBookNotFound
	}
	if b.Stock <= 0 {
		return 0, domain.ErrOutOfStock
	}
	b.Stock--
	b.IsAvailable = b.Stock > 0
	return b.Stock, nil
}

func (m *mockStore) IncrementStock(ctx context.Context, bookID int64) (int, error) {
	m.mu.Lock()
	m.incrementCalls++
	err := m.incrementErr
	m.mu.Unlock()

	if err != nil {
		return 0, err
	}
	return m.AddStock(ctx, bookID, 1)
}

func (m *mockStore) AddStock(ctx context.Context, bookID int64, quantity int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[bookID]
	if !ok {
		return 0, domain.ErrBookNotFound
	}
	b.Stock += quantity
	b.IsAvailable = b.Stock > 0
	return b.Stock, nil
}

func (m *mockStore) CreateLending(ctx context.Context, l domain.Lending) (domain.Lending, error) {
	m.mu.Lock()
	err := m.createErr
	m.mu.Unlock()

	if err != nil {
		return domain.Lending{}, err
	}
	return m.put(l), nil
}

func (m *mockStore) GetLending(ctx context.Context, id int64) (domain.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lendings[id]
	if !ok {
		return domain.Lending{}, domain.ErrLendingNotFound
	}
	return *l, nil
}

func (m *mockStore) ListByUser(ctx context.Context, userID int64) ([]domain.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Lending
	for _, l := range m.lendings {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	slices.SortFunc(out, func(a, b domain.Lending) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (m *mockStore) UpdateLending(ctx context.Context, id int64, upd domain.LendingUpdate) (domain.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return domain.Lending{}, m.updateErr
	}
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

func (m *mockStore) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, l := range m.lendings {
		if l.Status == domain.LendingStatusBorrowed && l.DueDate.Before(asOf) {
			l.Status = domain.LendingStatusOverdue
			n++
		}
	}
	return n, nil
}

func (m *mockStore) ListByUserWithBooks(ctx context.Context, userID int64) ([]domain.LendingWithBook, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	lendings, _ := m.ListByUser(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.LendingWithBook
	for _, l := range lendings {
		if b, ok := m.books[l.BookID]; ok {
			out = append(out, domain.JoinLending(l, *b))
		}
	}
	return out, nil
}

// mockIdempotency is a set of held keys.
type mockIdempotency struct {
	mu         sync.Mutex
	held       map[string]string
	acquireErr error
	released   []string
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{held: make(map[string]string)}
}

func (m *mockIdempotency) Acquire(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.acquireErr != nil {
		return "", false, m.acquireErr
	}
	if _, ok := m.held[key]; ok {
		return "", false, nil
	}
	token := "token-" + key
	m.held[key] = token
	return token, true, nil
}

func (m *mockIdempotency) Release(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[key] == token {
		delete(m.held, key)
		m.released = append(m.released, key)
	}
	return nil
}
