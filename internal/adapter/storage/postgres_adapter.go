package storage

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

var (
	_ port.InventoryRepository    = (*PostgresAdapter)(nil)
	_ port.LendingRepository      = (*PostgresAdapter)(nil)
	_ port.LendingQueryRepository = (*PostgresAdapter)(nil)
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		isbn TEXT NOT NULL DEFAULT '',
		publication_year INT NOT NULL DEFAULT 0,
		genre TEXT NOT NULL DEFAULT '',
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_available BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS lendings (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		book_id BIGINT NOT NULL REFERENCES books (id),
		borrowed_date TIMESTAMPTZ NOT NULL,
		due_date DATE NOT NULL,
		returned_date DATE NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lendings_user ON lendings (user_id, borrowed_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_lendings_status_due ON lendings (status, due_date)`,
}

const lendingColumns = `id, user_id, book_id, borrowed_date, due_date, returned_date, status, created_at, updated_at`

type PostgresAdapter struct {
	pool    *pgxpool.Pool
	dialect goqu.DialectWrapper
}

func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool, dialect: goqu.Dialect("postgres")}
}

// OpenPostgres creates a pool for url and verifies the connection.
func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return pool, nil
}

func (p *PostgresAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate postgres schema")
		}
	}
	return nil
}

// CreateBook inserts a catalogue entry for seeding.
func (p *PostgresAdapter) CreateBook(ctx context.Context, b domain.Book) (domain.Book, error) {
	now := time.Now().UTC()
	b.IsAvailable = b.Stock > 0
	b.CreatedAt, b.UpdatedAt = now, now

	err := p.pool.QueryRow(ctx, `
		INSERT INTO books (title, author, description, isbn, publication_year, genre, stock, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		b.Title, b.Author, b.Description, b.ISBN, b.PublicationYear, b.Genre,
		b.Stock, b.IsAvailable, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		return domain.Book{}, errors.Wrap(err, "insert book")
	}
	return b, nil
}

func (p *PostgresAdapter) GetBook(ctx context.Context, id int64) (domain.Book, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, title, author, description, isbn, publication_year, genre, stock, is_available, created_at, updated_at
		FROM books WHERE id = $1`, id)
	if err != nil {
		return domain.Book{}, errors.Wrap(err, "query book")
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[bookRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Book{}, domain.ErrBookNotFound
	}
	if err != nil {
		return domain.Book{}, errors.Wrap(err, "scan book")
	}
	return row.toDomain(), nil
}

func (p *PostgresAdapter) GetAvailability(ctx context.Context, bookID int64) (domain.Availability, error) {
	avail := domain.Availability{BookID: bookID}
	err := p.pool.QueryRow(ctx,
		`SELECT stock, is_available FROM books WHERE id = $1`, bookID,
	).Scan(&avail.Stock, &avail.IsAvailable)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Availability{}, domain.ErrBookNotFound
	}
	if err != nil {
		return domain.Availability{}, errors.Wrap(err, "query availability")
	}
	return avail, nil
}

func (p *PostgresAdapter) DecrementStock(ctx context.Context, bookID int64) (int, error) {
	var stock int
	err := p.pool.QueryRow(ctx, `
		UPDATE books
		SET stock = stock - 1, is_available = (stock - 1) > 0, updated_at = now()
		WHERE id = $1 AND stock > 0
		RETURNING stock`, bookID,
	).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		exists, err := p.bookExists(ctx, bookID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, domain.ErrBookNotFound
		}
		return 0, domain.ErrOutOfStock
	}
	if err != nil {
		return 0, errors.Wrap(err, "decrement stock")
	}
	return stock, nil
}

func (p *PostgresAdapter) IncrementStock(ctx context.Context, bookID int64) (int, error) {
	return p.AddStock(ctx, bookID, 1)
}

func (p *PostgresAdapter) AddStock(ctx context.Context, bookID int64, quantity int) (int, error) {
	var stock int
	err := p.pool.QueryRow(ctx, `
		UPDATE books
		SET stock = stock + $1, is_available = (stock + $1) > 0, updated_at = now()
		WHERE id = $2
		RETURNING stock`, quantity, bookID,
	).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrBookNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "add stock")
	}
	return stock, nil
}

func (p *PostgresAdapter) bookExists(ctx context.Context, bookID int64) (bool, error) {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check book")
	}
	return exists, nil
}

func (p *PostgresAdapter) CreateLending(ctx context.Context, lending domain.Lending) (domain.Lending, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO lendings (user_id, book_id, borrowed_date, due_date, returned_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $6, $7)
		RETURNING id`,
		lending.UserID, lending.BookID, lending.BorrowedDate, lending.DueDate,
		string(lending.Status), lending.CreatedAt, lending.UpdatedAt,
	).Scan(&lending.ID)
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "insert lending")
	}
	lending.ReturnedDate = nil
	return lending, nil
}

func (p *PostgresAdapter) GetLending(ctx context.Context, id int64) (domain.Lending, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+lendingColumns+` FROM lendings WHERE id = $1`, id)
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "query lending")
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[lendingRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lending{}, domain.ErrLendingNotFound
	}
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "scan lending")
	}
	return row.toDomain(), nil
}

func (p *PostgresAdapter) ListByUser(ctx context.Context, userID int64) ([]domain.Lending, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+lendingColumns+` FROM lendings
		WHERE user_id = $1
		ORDER BY borrowed_date DESC, id DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query lendings")
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[lendingRow])
	if err != nil {
		return nil, errors.Wrap(err, "scan lendings")
	}
	out := make([]domain.Lending, 0, len(collected))
	for _, row := range collected {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (p *PostgresAdapter) UpdateLending(ctx context.Context, id int64, upd domain.LendingUpdate) (domain.Lending, error) {
	query, args, err := p.dialect.Update(tableLendings).
		Prepared(true).
		Set(lendingUpdateRecord(upd)).
		Where(goqu.Ex{colID: id, colStatus: string(upd.ExpectedStatus)}).
		Returning(goqu.L(lendingColumns)).
		ToSQL()
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "build lending update")
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "update lending")
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[lendingRow])
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := p.GetLending(ctx, id); getErr != nil {
			return domain.Lending{}, getErr
		}
		return domain.Lending{}, domain.ErrLendingModified
	}
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "scan updated lending")
	}
	return row.toDomain(), nil
}

func (p *PostgresAdapter) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE lendings SET status = $1, updated_at = now()
		WHERE status = $2 AND due_date < $3`,
		string(domain.LendingStatusOverdue), string(domain.LendingStatusBorrowed), asOf,
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark overdue")
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresAdapter) ListByUserWithBooks(ctx context.Context, userID int64) ([]domain.LendingWithBook, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT`+lendingBookColumns+`
		FROM lendings l
		JOIN books b ON b.id = l.book_id
		WHERE l.user_id = $1
		ORDER BY l.borrowed_date DESC, l.id DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query lendings with books")
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[lendingBookRow])
	if err != nil {
		return nil, errors.Wrap(err, "scan lendings with books")
	}
	out := make([]domain.LendingWithBook, 0, len(collected))
	for _, row := range collected {
		out = append(out, row.toDomain())
	}
	return out, nil
}
