package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookStatus string

const (
	BookStatusReading    BookStatus = "reading"
	BookStatusReadingOut BookStatus = "reading_out"
	BookStatusBorrow     BookStatus = "borrow"
	BookStatusBorrowOut  BookStatus = "borrow_out"
	BookStatusSale       BookStatus = "sale"
	BookStatusSoldOut    BookStatus = "sold_out"
)

type TransactionAction string

const (
	TransactionActionBorrow TransactionAction = "Borrow"
	TransactionActionBuy    TransactionAction = "Buy"
	TransactionActionRead   TransactionAction = "Read"
)

type Book struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Author        string     `gorm:"size:255;not null" json:"author"`
	Category      string     `gorm:"size:120;index" json:"category"`
	Description   string     `gorm:"type:text" json:"description"`
	PublishedDate string     `gorm:"size:32" json:"published_date"`
	Status        BookStatus `gorm:"size:20;not null;index" json:"status"`
	Price         float64    `gorm:"not null;default:0" json:"price"`
	Copies        int        `gorm:"not null;default:0" json:"copies"`
	AddedAt       time.Time  `gorm:"not null;index" json:"added_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Mode is the offering mode the book's status belongs to.
func (b *Book) Mode() BookStatus { return ModeOf(b.Status) }

// Available reports whether a copy can be issued in the given mode.
func (b *Book) Available(mode BookStatus) bool {
	return b.Mode() == mode && b.Copies > 0
}

type Customer struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MemberCode     string    `gorm:"size:16;uniqueIndex;not null" json:"member_code"`
	Name           string    `gorm:"size:255;not null;index" json:"name"`
	Email          string    `gorm:"size:255" json:"email"`
	Phone          string    `gorm:"size:64" json:"phone"`
	Address        string    `gorm:"size:255" json:"address"`
	JoinDate       time.Time `gorm:"not null" json:"join_date"`
	ActiveLoans    int       `gorm:"not null;default:0" json:"active_loans"`
	TotalReadings  int       `gorm:"not null;default:0" json:"total_readings"`
	TotalPurchases int       `gorm:"not null;default:0" json:"total_purchases"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Transaction struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"customer_id"`
	CustomerName string            `gorm:"size:255;not null" json:"customer_name"`
	BookID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"book_id"`
	BookTitle    string            `gorm:"size:255;not null" json:"book_title"`
	Action       TransactionAction `gorm:"size:16;not null;index" json:"action"`
	Price        float64           `gorm:"not null;default:0" json:"price"`
	BorrowPeriod int               `gorm:"not null;default:0" json:"borrow_period,omitempty"`
	BorrowDate   *time.Time        `json:"borrow_date,omitempty"`
	ReturnDate   *time.Time        `gorm:"index" json:"return_date,omitempty"`
	Returned     bool              `gorm:"not null;default:false;index" json:"returned"`
	ReturnedAt   *time.Time        `json:"returned_at,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"timestamp"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Open reports whether a borrow or reading session still holds a copy.
func (t *Transaction) Open() bool {
	return !t.Returned && (t.Action == TransactionActionBorrow || t.Action == TransactionActionRead)
}

// Overdue reports whether an open borrow is past its return date at now.
func (t *Transaction) Overdue(now time.Time) bool {
	return t.Action == TransactionActionBorrow && !t.Returned && t.ReturnDate != nil && now.After(*t.ReturnDate)
}

// Settings is stored as a single row with ID 1.
type Settings struct {
	ID           uint               `gorm:"primaryKey" json:"-"`
	BorrowPrices map[string]float64 `gorm:"serializer:json;type:text" json:"borrow_prices"`
	Currency     string             `gorm:"size:8;not null" json:"currency"`
	Language     string             `gorm:"size:8;not null" json:"language"`
}

const (
	SettingsRowID     = 1
	DefaultBorrowRate = 0.10
	DefaultCurrency   = "USD"
	DefaultLanguage   = "ar"
)

func DefaultSettings() Settings {
	return Settings{
		ID: SettingsRowID,
		BorrowPrices: map[string]float64{
			"2":  0.10,
			"7":  0.20,
			"15": 0.25,
		},
		Currency: DefaultCurrency,
		Language: DefaultLanguage,
	}
}

// All returns every model the schema is built from.
func All() []any {
	return []any{&Book{}, &Customer{}, &Transaction{}, &Settings{}}
}
