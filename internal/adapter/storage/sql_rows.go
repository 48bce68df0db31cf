package storage

import (
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/rl1809/library-lending/internal/core/domain"
)

const (
	tableBooks    = "books"
	tableLendings = "lendings"

	colID           = "id"
	colStatus       = "status"
	colReturnedDate = "returned_date"
	colUpdatedAt    = "updated_at"
)

// Row types are shared by the MySQL (sqlx) and Postgres (pgx) adapters; both
// map columns with the db tag.

type bookRow struct {
	ID              int64     `db:"id"`
	Title           string    `db:"title"`
	Author          string    `db:"author"`
	Description     string    `db:"description"`
	ISBN            string    `db:"isbn"`
	PublicationYear int       `db:"publication_year"`
	Genre           string    `db:"genre"`
	Stock           int       `db:"stock"`
	IsAvailable     bool      `db:"is_available"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r bookRow) toDomain() domain.Book {
	return domain.Book{
		ID:              r.ID,
		Title:           r.Title,
		Author:          r.Author,
		Description:     r.Description,
		ISBN:            r.ISBN,
		PublicationYear: r.PublicationYear,
		Genre:           r.Genre,
		Stock:           r.Stock,
		IsAvailable:     r.IsAvailable,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type lendingRow struct {
	ID           int64      `db:"id"`
	UserID       int64      `db:"user_id"`
	BookID       int64      `db:"book_id"`
	BorrowedDate time.Time  `db:"borrowed_date"`
	DueDate      time.Time  `db:"due_date"`
	ReturnedDate *time.Time `db:"returned_date"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r lendingRow) toDomain() domain.Lending {
	return domain.Lending{
		ID:           r.ID,
		UserID:       r.UserID,
		BookID:       r.BookID,
		BorrowedDate: r.BorrowedDate,
		DueDate:      r.DueDate,
		ReturnedDate: r.ReturnedDate,
		Status:       domain.LendingStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type lendingBookRow struct {
	LendingID           int64      `db:"lending_id"`
	UserID              int64      `db:"user_id"`
	BookID              int64      `db:"book_id"`
	BorrowedDate        time.Time  `db:"borrowed_date"`
	DueDate             time.Time  `db:"due_date"`
	ReturnedDate        *time.Time `db:"returned_date"`
	Status              string     `db:"status"`
	LendingCreatedAt    time.Time  `db:"lending_created_at"`
	LendingUpdatedAt    time.Time  `db:"lending_updated_at"`
	BookTitle           string     `db:"book_title"`
	BookAuthor          string     `db:"book_author"`
	BookISBN            string     `db:"book_isbn"`
	BookPublicationYear int        `db:"book_publication_year"`
	BookGenre           string     `db:"book_genre"`
	BookStock           int        `db:"book_stock"`
	BookIsAvailable     bool       `db:"book_is_available"`
}

func (r lendingBookRow) toDomain() domain.LendingWithBook {
	return domain.JoinLending(
		domain.Lending{
			ID:           r.LendingID,
			UserID:       r.UserID,
			BookID:       r.BookID,
			BorrowedDate: r.BorrowedDate,
			DueDate:      r.DueDate,
			ReturnedDate: r.ReturnedDate,
			Status:       domain.LendingStatus(r.Status),
			CreatedAt:    r.LendingCreatedAt,
			UpdatedAt:    r.LendingUpdatedAt,
		},
		domain.Book{
			ID:              r.BookID,
			Title:           r.BookTitle,
			Author:          r.BookAuthor,
			ISBN:            r.BookISBN,
			PublicationYear: r.BookPublicationYear,
			Genre:           r.BookGenre,
			Stock:           r.BookStock,
			IsAvailable:     r.BookIsAvailable,
		},
	)
}

// lendingBookColumns is the select list of the joined lending view. Both
// dialects accept it unchanged.
const lendingBookColumns = `
	l.id AS lending_id, l.user_id, l.book_id, l.borrowed_date, l.due_date,
	l.returned_date, l.status, l.created_at AS lending_created_at,
	l.updated_at AS lending_updated_at, b.title AS book_title,
	b.author AS book_author, b.isbn AS book_isbn,
	b.publication_year AS book_publication_year, b.genre AS book_genre,
	b.stock AS book_stock, b.is_available AS book_is_available`

// lendingUpdateRecord is the SET clause of a partial lending update.
func lendingUpdateRecord(upd domain.LendingUpdate) goqu.Record {
	record := goqu.Record{colUpdatedAt: upd.UpdatedAt}
	if upd.Status != nil {
		record[colStatus] = string(*upd.Status)
	}
	if upd.ReturnedDate != nil {
		record[colReturnedDate] = *upd.ReturnedDate
	}
	return record
}
