package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"librarydesk/internal/models"
	"librarydesk/internal/repositories"
)

// ─── Defaults ─────────────────────────────────────────────────────────────────

const (
	// RecentBooksLimit is how many newly added books the dashboard shows.
	RecentBooksLimit = 3

	// DefaultPurgeAgeDays is the age past which closed transactions are purged
	// when no explicit age is given.
	DefaultPurgeAgeDays = 30
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrBookNotFound is returned when the requested book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrCustomerNotFound is returned when the referenced customer does not exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrTransactionNotFound is returned when the referenced transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidInput is wrapped with a description of the offending field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrWrongMode is returned when an action does not match the book's offering
	// mode, e.g. selling a book that is only lent out.
	ErrWrongMode = errors.New("book is not offered for this action")

	// ErrNoCopiesLeft is returned when every copy of a book is already issued or sold.
	ErrNoCopiesLeft = errors.New("no copies left")

	// ErrAlreadyClosed is returned when a loan was already returned or a reading
	// session already ended.
	ErrAlreadyClosed = errors.New("transaction already closed")

	// ErrNotABorrow is returned when a return is attempted on a non-borrow transaction.
	ErrNotABorrow = errors.New("transaction is not a borrow")

	// ErrNotAReading is returned when ending a session on a non-read transaction.
	ErrNotAReading = errors.New("transaction is not a reading session")

	// ErrBookInUse is returned when deleting a book that still has copies out.
	ErrBookInUse = errors.New("book has open loans or reading sessions")

	// ErrCustomerHasLoans is returned when deleting a customer with active loans.
	ErrCustomerHasLoans = errors.New("customer has active loans")
)

// ─── Service Interface ────────────────────────────────────────────────────────

// LibraryService defines the application-level operations of the front desk.
type LibraryService interface {
	CreateBook(ctx context.Context, in BookInput) (*models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*models.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	ListBooks(ctx context.Context, filter repositories.BookFilter) ([]models.Book, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListAvailable(ctx context.Context, mode models.BookStatus) ([]models.Book, error)
	RecentBooks(ctx context.Context, limit int) ([]models.Book, error)

	CreateCustomer(ctx context.Context, in CustomerInput) (*models.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, patch CustomerPatch) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	ListCustomers(ctx context.Context, filter repositories.CustomerFilter) ([]models.Customer, error)
	CustomerHistory(ctx context.Context, id uuid.UUID) ([]models.Transaction, error)

	BorrowBook(ctx context.Context, bookID uuid.UUID, customer CustomerRef, periodDays int) (*models.Transaction, error)
	ReturnBook(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	SellBook(ctx context.Context, bookID uuid.UUID, customer CustomerRef, soldPrice *float64) (*models.Transaction, error)
	ReadBook(ctx context.Context, bookID uuid.UUID, customer CustomerRef) (*models.Transaction, error)
	EndReading(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)

	ListTransactions(ctx context.Context, filter repositories.TransactionFilter) ([]models.Transaction, error)
	TransactionsByBook(ctx context.Context, bookID uuid.UUID) ([]models.Transaction, error)
	ActiveLoans(ctx context.Context) ([]models.Transaction, error)
	OverdueLoans(ctx context.Context) ([]models.Transaction, error)
	ActiveReadingSessions(ctx context.Context) ([]models.Transaction, error)
	TransactionStats(ctx context.Context) (*TransactionStats, error)
	PurgeTransactions(ctx context.Context, olderThanDays int) (int64, error)

	Stats(ctx context.Context) (*Stats, error)

	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, patch SettingsPatch) (*models.Settings, error)
}

// ─── Implementation ───────────────────────────────────────────────────────────

type libraryService struct {
	db           *gorm.DB
	bookRepo     repositories.BookRepository
	customerRepo repositories.CustomerRepository
	txRepo       repositories.TransactionRepository
	settingsRepo repositories.SettingsRepository
	now          func() time.Time
}

// Option configures a LibraryService.
type Option func(*libraryService)

// WithClock replaces the wall clock used for transaction timestamps and due dates.
func WithClock(now func() time.Time) Option {
	return func(s *libraryService) {
		s.now = now
	}
}

// NewLibraryService wires up all dependencies and returns a LibraryService.
func NewLibraryService(
	db *gorm.DB,
	bookRepo repositories.BookRepository,
	customerRepo repositories.CustomerRepository,
	txRepo repositories.TransactionRepository,
	settingsRepo repositories.SettingsRepository,
	opts ...Option,
) LibraryService {
	s := &libraryService{
		db:           db,
		bookRepo:     bookRepo,
		customerRepo: customerRepo,
		txRepo:       txRepo,
		settingsRepo: settingsRepo,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock returns the current time in UTC so stored timestamps compare as text in sqlite.
func (s *libraryService) clock() time.Time {
	return s.now().UTC()
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
