package repositories

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"librarydesk/internal/models"
)

type BookFilter struct {
	Search   string
	Category string
	Status   models.BookStatus
}

type CustomerFilter struct {
	Search          string
	ActiveLoansOnly bool
}

type TransactionFilter struct {
	Action models.TransactionAction
	Search string
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	List(db *gorm.DB, filter BookFilter) ([]models.Book, error)
	ListAvailable(db *gorm.DB, mode models.BookStatus) ([]models.Book, error)
	Categories(db *gorm.DB) ([]string, error)
	Recent(db *gorm.DB, limit int) ([]models.Book, error)
	Save(db *gorm.DB, book *models.Book) error
	AdjustCopies(db *gorm.DB, id uuid.UUID, delta int) (bool, error)
	UpdateStatus(db *gorm.DB, id uuid.UUID, status models.BookStatus) error
	Delete(db *gorm.DB, id uuid.UUID) (bool, error)
	Totals(db *gorm.DB) (books int64, copies int64, err error)
}

type CustomerRepository interface {
	Create(db *gorm.DB, customer *models.Customer) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Customer, error)
	GetByName(db *gorm.DB, name string) (*models.Customer, error)
	MemberCodeExists(db *gorm.DB, code string) (bool, error)
	List(db *gorm.DB, filter CustomerFilter) ([]models.Customer, error)
	Save(db *gorm.DB, customer *models.Customer) error
	Delete(db *gorm.DB, id uuid.UUID) (bool, error)
	AdjustCounter(db *gorm.DB, id uuid.UUID, column string, delta int) error
}

type TransactionRepository interface {
	Create(db *gorm.DB, tx *models.Transaction) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Transaction, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Transaction, error)
	MarkReturned(db *gorm.DB, id uuid.UUID, returnedAt time.Time) (bool, error)
	List(db *gorm.DB, filter TransactionFilter) ([]models.Transaction, error)
	ListByCustomer(db *gorm.DB, customerID uuid.UUID) ([]models.Transaction, error)
	ListByBook(db *gorm.DB, bookID uuid.UUID) ([]models.Transaction, error)
	ListOpen(db *gorm.DB, action models.TransactionAction) ([]models.Transaction, error)
	ListOverdue(db *gorm.DB, now time.Time) ([]models.Transaction, error)
	CountOpenByBook(db *gorm.DB, bookID uuid.UUID) (int64, error)
	All(db *gorm.DB) ([]models.Transaction, error)
	PurgeClosedBefore(db *gorm.DB, cutoff time.Time) (int64, error)
}

type SettingsRepository interface {
	Get(db *gorm.DB) (*models.Settings, error)
	Save(db *gorm.DB, settings *models.Settings) error
}

// counter columns AdjustCounter may touch
var customerCounters = map[string]bool{
	"active_loans":    true,
	"total_readings":  true,
	"total_purchases": true,
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// concrete implementations

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Create(book).Error
}

func (r *bookRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&book, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(db *gorm.DB, filter BookFilter) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Book{})
	if strings.TrimSpace(filter.Search) != "" {
		p := likePattern(filter.Search)
		q = q.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(category) LIKE ?", p, p, p)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var books []models.Book
	if err := q.Order("added_at DESC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) ListAvailable(db *gorm.DB, mode models.BookStatus) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	var books []models.Book
	err := db.Where("status = ? AND copies > 0", mode).
		Order("title ASC").
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) Categories(db *gorm.DB) ([]string, error) {
	if db == nil {
		db = r.db
	}
	var categories []string
	err := db.Model(&models.Book{}).
		Where("category <> ''").
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *bookRepository) Recent(db *gorm.DB, limit int) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	var books []models.Book
	if err := db.Order("added_at DESC").Limit(limit).Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) Save(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Save(book).Error
}

// AdjustCopies moves the copy count by delta. A decrement only applies while
// enough copies remain; the bool reports whether a row was changed.
func (r *bookRepository) AdjustCopies(db *gorm.DB, id uuid.UUID, delta int) (bool, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Book{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("copies >= ?", -delta)
	}
	res := q.UpdateColumn("copies", gorm.Expr("copies + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *bookRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, status models.BookStatus) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Book{}).
		Where("id = ?", id).
		UpdateColumn("status", status).
		Error
}

func (r *bookRepository) Delete(db *gorm.DB, id uuid.UUID) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Delete(&models.Book{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *bookRepository) Totals(db *gorm.DB) (int64, int64, error) {
	if db == nil {
		db = r.db
	}
	var out struct {
		Books  int64
		Copies int64
	}
	err := db.Model(&models.Book{}).
		Select("COUNT(*) AS books, COALESCE(SUM(copies), 0) AS copies").
		Scan(&out).Error
	if err != nil {
		return 0, 0, err
	}
	return out.Books, out.Copies, nil
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(db *gorm.DB, customer *models.Customer) error {
	if db == nil {
		db = r.db
	}
	return db.Create(customer).Error
}

func (r *customerRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	if db == nil {
		db = r.db
	}
	var customer models.Customer
	if err := db.First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) GetByName(db *gorm.DB, name string) (*models.Customer, error) {
	if db == nil {
		db = r.db
	}
	var customer models.Customer
	err := db.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Order("join_date ASC").
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) MemberCodeExists(db *gorm.DB, code string) (bool, error) {
	if db == nil {
		db = r.db
	}
	var n int64
	if err := db.Model(&models.Customer{}).Where("member_code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *customerRepository) List(db *gorm.DB, filter CustomerFilter) ([]models.Customer, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Customer{})
	if strings.TrimSpace(filter.Search) != "" {
		p := likePattern(filter.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(member_code) LIKE ? OR phone LIKE ?", p, p, p, p)
	}
	if filter.ActiveLoansOnly {
		q = q.Where("active_loans > 0")
	}
	var customers []models.Customer
	if err := q.Order("name ASC").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *customerRepository) Save(db *gorm.DB, customer *models.Customer) error {
	if db == nil {
		db = r.db
	}
	return db.Save(customer).Error
}

func (r *customerRepository) Delete(db *gorm.DB, id uuid.UUID) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Delete(&models.Customer{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AdjustCounter moves one of the denormalized customer counters, never below zero.
func (r *customerRepository) AdjustCounter(db *gorm.DB, id uuid.UUID, column string, delta int) error {
	if db == nil {
		db = r.db
	}
	if !customerCounters[column] {
		return gorm.ErrInvalidField
	}
	expr := gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
	return db.Model(&models.Customer{}).
		Where("id = ?", id).
		UpdateColumn(column, expr).
		Error
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(db *gorm.DB, tx *models.Transaction) error {
	if db == nil {
		db = r.db
	}
	return db.Create(tx).Error
}

func (r *transactionRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Transaction, error) {
	if db == nil {
		db = r.db
	}
	var tx models.Transaction
	if err := db.First(&tx, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Transaction, error) {
	if db == nil {
		db = r.db
	}
	var tx models.Transaction
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tx, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) MarkReturned(db *gorm.DB, id uuid.UUID, returnedAt time.Time) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Transaction{}).
		Where("id = ? AND returned = ?", id, false).
		Updates(map[string]interface{}{
			"returned":    true,
			"returned_at": returnedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *transactionRepository) List(db *gorm.DB, filter TransactionFilter) ([]models.Transaction, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Transaction{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if strings.TrimSpace(filter.Search) != "" {
		p := likePattern(filter.Search)
		q = q.Where("LOWER(customer_name) LIKE ? OR LOWER(book_title) LIKE ?", p, p)
	}
	var txs []models.Transaction
	if err := q.Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *transactionRepository) ListByCustomer(db *gorm.DB, customerID uuid.UUID) ([]models.Transaction, error) {
	if db == nil {
		db = r.db
	}
	var txs []models.Transaction
	if err := db.Where("customer_id = ?", customerID).Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *transactionRepository) ListByBook(db *gorm.DB, bookID uuid.UUID) ([]models.Transaction, error) {
	if db == nil {
		db = r.db
	}
	var txs []models.Transaction
	if err := db.Where("book_id = ?", bookID).Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *transactionRepository) ListOpen(db *gorm.DB, action models.TransactionAction) ([]models.Transaction, error) {
	if db == nil {
		db = r.db
	}
	var txs []models.Transaction
	err := db.Where("action = ? AND returned = ?", action, false).
		Order("created_at ASC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *transactionRepository) ListOverdue(db *gorm.DB, now time.Time) ([]models.Transaction, error) {
	if db == nil {
		db = r.db
	}
	var txs []models.Transaction
	err := db.Where("action = ? AND returned = ? AND return_date IS NOT NULL AND return_date < ?",
		models.TransactionActionBorrow, false, now).
		Order("return_date ASC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *transactionRepository) CountOpenByBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var n int64
	err := db.Model(&models.Transaction{}).
		Where("book_id = ? AND returned = ? AND action IN ?", bookID, false,
			[]models.TransactionAction{models.TransactionActionBorrow, models.TransactionActionRead}).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *transactionRepository) All(db *gorm.DB) ([]models.Transaction, error) {
	if db == nil {
		db = r.db
	}
	var txs []models.Transaction
	if err := db.Order("created_at ASC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// PurgeClosedBefore deletes sales and finished loans/readings created before cutoff.
func (r *transactionRepository) PurgeClosedBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		db = r.db
	}
	res := db.Where("created_at < ? AND (action = ? OR returned = ?)", cutoff, models.TransactionActionBuy, true).
		Delete(&models.Transaction{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(db *gorm.DB) (*models.Settings, error) {
	if db == nil {
		db = r.db
	}
	var s models.Settings
	if err := db.First(&s, "id = ?", models.SettingsRowID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) Save(db *gorm.DB, settings *models.Settings) error {
	if db == nil {
		db = r.db
	}
	settings.ID = models.SettingsRowID
	return db.Save(settings).Error
}
