package domain

import "time"

// DateLayout is the wire format for due and returned dates.
const DateLayout = "2006-01-02"

type LendingStatus string

const (
	LendingStatusBorrowed LendingStatus = "borrowed"
	LendingStatusReturned LendingStatus = "returned"
	LendingStatusOverdue  LendingStatus = "overdue"
	LendingStatusLost     LendingStatus = "lost"
)

var lendingTransitions = map[LendingStatus][]LendingStatus{
	LendingStatusBorrowed: {LendingStatusReturned, LendingStatusOverdue, LendingStatusLost},
	LendingStatusOverdue:  {LendingStatusReturned, LendingStatusLost, LendingStatusBorrowed},
	LendingStatusLost:     {LendingStatusReturned},
}

func (s LendingStatus) Valid() bool {
	switch s {
	case LendingStatusBorrowed, LendingStatusReturned, LendingStatusOverdue, LendingStatusLost:
		return true
	}
	return false
}

// CanTransitionTo reports whether a record in status s may move to next.
// Staying in the same status is always allowed.
func (s LendingStatus) CanTransitionTo(next LendingStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range lendingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Lending struct {
	ID           int64
	UserID       int64
	BookID       int64
	BorrowedDate time.Time
	DueDate      time.Time
	ReturnedDate *time.Time // set iff Status == returned
	Status       LendingStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LendingUpdate is a partial update of a lending record. Nil fields are left
// unchanged. The update only applies while the stored status still equals
// ExpectedStatus.
type LendingUpdate struct {
	Status         *LendingStatus
	ReturnedDate   *time.Time
	ExpectedStatus LendingStatus
	UpdatedAt      time.Time
}

// LendingWithBook is a lending record joined with display fields of its book.
type LendingWithBook struct {
	LendingID           int64         `json:"lending_id"`
	UserID              int64         `json:"user_id"`
	BookID              int64         `json:"book_id"`
	BorrowedDate        time.Time     `json:"borrowed_date"`
	DueDate             string        `json:"due_date"`
	ReturnedDate        *string       `json:"returned_date"`
	Status              LendingStatus `json:"status"`
	LendingCreatedAt    time.Time     `json:"lending_created_at"`
	LendingUpdatedAt    time.Time     `json:"lending_updated_at"`
	BookTitle           string        `json:"book_title"`
	BookAuthor          string        `json:"book_author"`
	BookISBN            string        `json:"book_isbn"`
	BookPublicationYear int           `json:"book_publication_year"`
	BookGenre           string        `json:"book_genre"`
	BookStock           int           `json:"book_stock"`
	BookIsAvailable     bool          `json:"book_is_available"`
}

// JoinLending builds the joined view of l and b.
func JoinLending(l Lending, b Book) LendingWithBook {
	out := LendingWithBook{
		LendingID:           l.ID,
		UserID:              l.UserID,
		BookID:              l.BookID,
		BorrowedDate:        l.BorrowedDate,
		DueDate:             l.DueDate.Format(DateLayout),
		Status:              l.Status,
		LendingCreatedAt:    l.CreatedAt,
		LendingUpdatedAt:    l.UpdatedAt,
		BookTitle:           b.Title,
		BookAuthor:          b.Author,
		BookISBN:            b.ISBN,
		BookPublicationYear: b.PublicationYear,
		BookGenre:           b.Genre,
		BookStock:           b.Stock,
		BookIsAvailable:     b.IsAvailable,
	}
	if l.ReturnedDate != nil {
		d := l.ReturnedDate.Format(DateLayout)
		out.ReturnedDate = &d
	}
	return out
}

type BorrowCommand struct {
	UserID    int64      `validate:"gt=0"`
	BookID    int64      `validate:"gt=0"`
	DueDate   *time.Time `validate:"omitempty"`
	RequestID string     `validate:"omitempty,max=128"`
}

type UpdateLendingCommand struct {
	LendingID    int64          `validate:"gt=0"`
	Status       *LendingStatus `validate:"omitempty,oneof=borrowed returned overdue lost"`
	ReturnedDate *time.Time     `validate:"omitempty"`
}

// Truncate drops the clock part of t, keeping its location.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
