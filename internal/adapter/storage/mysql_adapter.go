package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

var (
	_ port.InventoryRepository    = (*MySQLAdapter)(nil)
	_ port.LendingRepository      = (*MySQLAdapter)(nil)
	_ port.LendingQueryRepository = (*MySQLAdapter)(nil)
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		author VARCHAR(255) NOT NULL DEFAULT '',
		description VARCHAR(2000) NOT NULL DEFAULT '',
		isbn VARCHAR(32) NOT NULL DEFAULT '',
		publication_year INT NOT NULL DEFAULT 0,
		genre VARCHAR(64) NOT NULL DEFAULT '',
		stock INT NOT NULL DEFAULT 0,
		is_available BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		CONSTRAINT chk_books_stock CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS lendings (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		book_id BIGINT NOT NULL,
		borrowed_date DATETIME(6) NOT NULL,
		due_date DATE NOT NULL,
		returned_date DATE NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_lendings_user (user_id, borrowed_date),
		KEY idx_lendings_status_due (status, due_date),
		CONSTRAINT fk_lendings_book FOREIGN KEY (book_id) REFERENCES books (id)
	)`,
}

// Stock changes run as one conditional UPDATE. LAST_INSERT_ID(expr) hands the
// new value back through the OK packet, so no second read is needed.
const (
	decrementStockQuery = `
		UPDATE books
		SET stock = LAST_INSERT_ID(stock - 1), is_available = stock > 0, updated_at = NOW(6)
		WHERE id = ? AND stock > 0`

	addStockQuery = `
		UPDATE books
		SET stock = LAST_INSERT_ID(stock + ?), is_available = stock > 0, updated_at = NOW(6)
		WHERE id = ?`
)

type MySQLAdapter struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, dialect: goqu.Dialect("mysql")}
}

// OpenMySQL connects with a normalised DSN and verifies the connection.
func OpenMySQL(ctx context.Context, dsn string) (*sqlx.DB, error) {
	normalised, err := NormalizeMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open("mysql", normalised)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	return db, nil
}

// NormalizeMySQLDSN forces the options the adapter relies on: parsed time
// columns in UTC and affected-row counts that include matched but unchanged
// rows.
func NormalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate mysql schema")
		}
	}
	return nil
}

// CreateBook inserts a catalogue entry. The catalogue is owned elsewhere; this
// exists for seeding.
func (m *MySQLAdapter) CreateBook(ctx context.Context, b domain.Book) (domain.Book, error) {
	now := time.Now().UTC()
	b.IsAvailable = b.Stock > 0
	b.CreatedAt, b.UpdatedAt = now, now

	res, err := m.db.ExecContext(ctx, `
		INSERT INTO books (title, author, description, isbn, publication_year, genre, stock, is_available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.Author, b.Description, b.ISBN, b.PublicationYear, b.Genre,
		b.Stock, b.IsAvailable, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return domain.Book{}, errors.Wrap(err, "insert book")
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return domain.Book{}, errors.Wrap(err, "insert book id")
	}
	return b, nil
}

func (m *MySQLAdapter) GetBook(ctx context.Context, id int64) (domain.Book, error) {
	var row bookRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, title, author, description, isbn, publication_year, genre, stock, is_available, created_at, updated_at
		FROM books WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, domain.ErrBookNotFound
	}
	if err != nil {
		return domain.Book{}, errors.Wrap(err, "query book")
	}
	return row.toDomain(), nil
}

func (m *MySQLAdapter) GetAvailability(ctx context.Context, bookID int64) (domain.Availability, error) {
	avail := domain.Availability{BookID: bookID}
	err := m.db.QueryRowxContext(ctx,
		`SELECT stock, is_available FROM books WHERE id = ?`, bookID,
	).Scan(&avail.Stock, &avail.IsAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Availability{}, domain.ErrBookNotFound
	}
	if err != nil {
		return domain.Availability{}, errors.Wrap(err, "query availability")
	}
	return avail, nil
}

func (m *MySQLAdapter) DecrementStock(ctx context.Context, bookID int64) (int, error) {
	res, err := m.db.ExecContext(ctx, decrementStockQuery, bookID)
	if err != nil {
		return 0, errors.Wrap(err, "decrement stock")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "decrement stock rows")
	}
	if rows == 0 {
		exists, err := m.bookExists(ctx, bookID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, domain.ErrBookNotFound
		}
		return 0, domain.ErrOutOfStock
	}
	stock, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "decrement stock value")
	}
	return int(stock), nil
}

func (m *MySQLAdapter) IncrementStock(ctx context.Context, bookID int64) (int, error) {
	return m.AddStock(ctx, bookID, 1)
}

func (m *MySQLAdapter) AddStock(ctx context.Context, bookID int64, quantity int) (int, error) {
	res, err := m.db.ExecContext(ctx, addStockQuery, quantity, bookID)
	if err != nil {
		return 0, errors.Wrap(err, "add stock")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "add stock rows")
	}
	if rows == 0 {
		return 0, domain.ErrBookNotFound
	}
	stock, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "add stock value")
	}
	return int(stock), nil
}

func (m *MySQLAdapter) bookExists(ctx context.Context, bookID int64) (bool, error) {
	var exists bool
	if err := m.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM books WHERE id = ?)`, bookID); err != nil {
		return false, errors.Wrap(err, "check book")
	}
	return exists, nil
}

func (m *MySQLAdapter) CreateLending(ctx context.Context, lending domain.Lending) (domain.Lending, error) {
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO lendings (user_id, book_id, borrowed_date, due_date, returned_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?, ?)`,
		lending.UserID, lending.BookID, lending.BorrowedDate,
		lending.DueDate.Format(domain.DateLayout), string(lending.Status),
		lending.CreatedAt, lending.UpdatedAt,
	)
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "insert lending")
	}
	if lending.ID, err = res.LastInsertId(); err != nil {
		return domain.Lending{}, errors.Wrap(err, "insert lending id")
	}
	lending.ReturnedDate = nil
	return lending, nil
}

func (m *MySQLAdapter) GetLending(ctx context.Context, id int64) (domain.Lending, error) {
	var row lendingRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, user_id, book_id, borrowed_date, due_date, returned_date, status, created_at, updated_at
		FROM lendings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lending{}, domain.ErrLendingNotFound
	}
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "query lending")
	}
	return row.toDomain(), nil
}

func (m *MySQLAdapter) ListByUser(ctx context.Context, userID int64) ([]domain.Lending, error) {
	var rows []lendingRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, book_id, borrowed_date, due_date, returned_date, status, created_at, updated_at
		FROM lendings WHERE user_id = ?
		ORDER BY borrowed_date DESC, id DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query lendings")
	}
	out := make([]domain.Lending, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (m *MySQLAdapter) UpdateLending(ctx context.Context, id int64, upd domain.LendingUpdate) (domain.Lending, error) {
	query, args, err := m.dialect.Update(tableLendings).
		Prepared(true).
		Set(lendingUpdateRecord(upd)).
		Where(goqu.Ex{colID: id, colStatus: string(upd.ExpectedStatus)}).
		ToSQL()
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "build lending update")
	}

	res, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "update lending")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.Lending{}, errors.Wrap(err, "update lending rows")
	}

	current, err := m.GetLending(ctx, id)
	if err != nil {
		return domain.Lending{}, err
	}
	if rows == 0 {
		return domain.Lending{}, domain.ErrLendingModified
	}
	return current, nil
}

func (m *MySQLAdapter) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE lendings SET status = ?, updated_at = ?
		WHERE status = ? AND due_date < ?`,
		string(domain.LendingStatusOverdue), time.Now().UTC(),
		string(domain.LendingStatusBorrowed), asOf.Format(domain.DateLayout),
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark overdue")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "mark overdue rows")
	}
	return n, nil
}

func (m *MySQLAdapter) ListByUserWithBooks(ctx context.Context, userID int64) ([]domain.LendingWithBook, error) {
	var rows []lendingBookRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT`+lendingBookColumns+`
		FROM lendings l
		JOIN books b ON b.id = l.book_id
		WHERE l.user_id = ?
		ORDER BY l.borrowed_date DESC, l.id DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query lendings with books")
	}
	out := make([]domain.LendingWithBook, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
