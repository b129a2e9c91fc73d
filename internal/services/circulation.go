package services

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"librarydesk/internal/models"
)

const (
	counterActiveLoans    = "active_loans"
	counterTotalReadings  = "total_readings"
	counterTotalPurchases = "total_purchases"
)

// ─── Issue ────────────────────────────────────────────────────────────────────

// BorrowBook lends one copy of a borrow-mode book for periodDays.
//
// Steps (all in one transaction):
//  1. Lock the book row and check it is offered for borrowing with a copy left.
//  2. Resolve (or register) the customer.
//  3. Take the copy; the status flips to borrow_out on the last one.
//  4. Record the Borrow transaction priced from the settings rate table.
//  5. Bump the customer's active loans.
func (s *libraryService) BorrowBook(ctx context.Context, bookID uuid.UUID, ref CustomerRef, periodDays int) (*models.Transaction, error) {
	if periodDays <= 0 {
		return nil, fmt.Errorf("%w: borrow period must be a positive number of days", ErrInvalidInput)
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.lockIssuableBook(tx, bookID, models.BookStatusBorrow)
		if err != nil {
			return err
		}
		customer, err := s.resolveCustomer(tx, ref)
		if err != nil {
			return err
		}
		if err := s.takeCopy(tx, book); err != nil {
			return err
		}

		now := s.clock()
		due := now.AddDate(0, 0, periodDays)
		t := &models.Transaction{
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			BookID:       book.ID,
			BookTitle:    book.Title,
			Action:       models.TransactionActionBorrow,
			Price:        BorrowPrice(settings, book.Price, periodDays),
			BorrowPeriod: periodDays,
			BorrowDate:   &now,
			ReturnDate:   &due,
			CreatedAt:    now,
		}
		if err := s.txRepo.Create(tx, t); err != nil {
			log.Printf("[ERROR] BorrowBook: failed to create transaction: %v", err)
			return err
		}
		if err := s.customerRepo.AdjustCounter(tx, customer.ID, counterActiveLoans, 1); err != nil {
			log.Printf("[ERROR] BorrowBook: failed to bump active loans for customer %s: %v", customer.ID, err)
			return err
		}
		result = t
		log.Printf("[INFO] BorrowBook: book %s lent to %q (tx=%s) for %d days, due %s, %d copies left",
			book.ID, customer.Name, t.ID, periodDays, due.Format("2006-01-02"), book.Copies)
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] BorrowBook: transaction failed for book %s: %v", bookID, err)
		return nil, err
	}
	return result, nil
}

// SellBook sells one copy of a sale-mode book. A nil soldPrice charges the
// catalog price.
func (s *libraryService) SellBook(ctx context.Context, bookID uuid.UUID, ref CustomerRef, soldPrice *float64) (*models.Transaction, error) {
	if soldPrice != nil && *soldPrice < 0 {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}

	var result *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.lockIssuableBook(tx, bookID, models.BookStatusSale)
		if err != nil {
			return err
		}
		customer, err := s.resolveCustomer(tx, ref)
		if err != nil {
			return err
		}
		if err := s.takeCopy(tx, book); err != nil {
			return err
		}

		price := book.Price
		if soldPrice != nil {
			price = *soldPrice
		}
		t := &models.Transaction{
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			BookID:       book.ID,
			BookTitle:    book.Title,
			Action:       models.TransactionActionBuy,
			Price:        round2(price),
			CreatedAt:    s.clock(),
		}
		if err := s.txRepo.Create(tx, t); err != nil {
			log.Printf("[ERROR] SellBook: failed to create transaction: %v", err)
			return err
		}
		if err := s.customerRepo.AdjustCounter(tx, customer.ID, counterTotalPurchases, 1); err != nil {
			return err
		}
		result = t
		log.Printf("[INFO] SellBook: book %s sold to %q for %.2f (tx=%s), %d copies left",
			book.ID, customer.Name, t.Price, t.ID, book.Copies)
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] SellBook: transaction failed for book %s: %v", bookID, err)
		return nil, err
	}
	return result, nil
}

// ReadBook seats a customer in the reading room with one copy of a
// reading-mode book until EndReading.
func (s *libraryService) ReadBook(ctx context.Context, bookID uuid.UUID, ref CustomerRef) (*models.Transaction, error) {
	var result *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.lockIssuableBook(tx, bookID, models.BookStatusReading)
		if err != nil {
			return err
		}
		customer, err := s.resolveCustomer(tx, ref)
		if err != nil {
			return err
		}
		if err := s.takeCopy(tx, book); err != nil {
			return err
		}

		t := &models.Transaction{
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			BookID:       book.ID,
			BookTitle:    book.Title,
			Action:       models.TransactionActionRead,
			CreatedAt:    s.clock(),
		}
		if err := s.txRepo.Create(tx, t); err != nil {
			log.Printf("[ERROR] ReadBook: failed to create transaction: %v", err)
			return err
		}
		if err := s.customerRepo.AdjustCounter(tx, customer.ID, counterTotalReadings, 1); err != nil {
			return err
		}
		result = t
		log.Printf("[INFO] ReadBook: %q reading book %s (tx=%s), %d copies left", customer.Name, book.ID, t.ID, book.Copies)
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] ReadBook: transaction failed for book %s: %v", bookID, err)
		return nil, err
	}
	return result, nil
}

// ─── Close ────────────────────────────────────────────────────────────────────

// ReturnBook closes an open loan, puts the copy back on the shelf and drops the
// customer's active loan count.
func (s *libraryService) ReturnBook(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	return s.closeTransaction(ctx, "ReturnBook", transactionID, models.TransactionActionBorrow, ErrNotABorrow)
}

// EndReading closes an open reading session and puts the copy back.
func (s *libraryService) EndReading(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	return s.closeTransaction(ctx, "EndReading", transactionID, models.TransactionActionRead, ErrNotAReading)
}

func (s *libraryService) closeTransaction(
	ctx context.Context,
	op string,
	transactionID uuid.UUID,
	action models.TransactionAction,
	wrongAction error,
) (*models.Transaction, error) {
	var updated *models.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the transaction row to prevent concurrent double-returns.
		t, err := s.txRepo.GetByIDForUpdate(tx, transactionID)
		if err != nil {
			return notFound(err, ErrTransactionNotFound)
		}
		if t.Action != action {
			return wrongAction
		}
		if t.Returned {
			log.Printf("[WARN] %s: transaction %s already closed at %v", op, transactionID, t.ReturnedAt)
			return ErrAlreadyClosed
		}

		now := s.clock()
		ok, err := s.txRepo.MarkReturned(tx, t.ID, now)
		if err != nil {
			log.Printf("[ERROR] %s: failed to mark transaction %s closed: %v", op, transactionID, err)
			return err
		}
		if !ok {
			return ErrAlreadyClosed
		}

		if err := s.restoreCopy(tx, t.BookID); err != nil {
			log.Printf("[ERROR] %s: failed to restore copy of book %s: %v", op, t.BookID, err)
			return err
		}
		if action == models.TransactionActionBorrow {
			if err := s.customerRepo.AdjustCounter(tx, t.CustomerID, counterActiveLoans, -1); err != nil {
				return err
			}
		}

		reloaded, err := s.txRepo.GetByID(tx, t.ID)
		if err != nil {
			return err
		}
		updated = reloaded
		log.Printf("[INFO] %s: transaction %s closed for %q, book %s back on shelf", op, t.ID, t.CustomerName, t.BookID)
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] %s: transaction failed for %s: %v", op, transactionID, err)
		return nil, err
	}
	return updated, nil
}

// ─── Internal Helpers ─────────────────────────────────────────────────────────

// lockIssuableBook locks the book row (SELECT … FOR UPDATE) and checks it can
// hand out a copy in the given mode.
func (s *libraryService) lockIssuableBook(tx *gorm.DB, bookID uuid.UUID, mode models.BookStatus) (*models.Book, error) {
	book, err := s.bookRepo.GetByIDForUpdate(tx, bookID)
	if err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	if book.Mode() != mode {
		log.Printf("[WARN] book %s is offered as %s, not %s", bookID, book.Status, mode)
		return nil, ErrWrongMode
	}
	if book.Copies <= 0 {
		log.Printf("[WARN] book %s has no copies left (status=%s)", bookID, book.Status)
		return nil, ErrNoCopiesLeft
	}
	return book, nil
}

// takeCopy decrements the copy count and flips the status to its _out form
// when the last copy goes.
func (s *libraryService) takeCopy(tx *gorm.DB, book *models.Book) error {
	ok, err := s.bookRepo.AdjustCopies(tx, book.ID, -1)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCopiesLeft
	}
	book.Copies--
	return s.syncStatus(tx, book)
}

// restoreCopy puts one copy back and restores the base status.
func (s *libraryService) restoreCopy(tx *gorm.DB, bookID uuid.UUID) error {
	book, err := s.bookRepo.GetByIDForUpdate(tx, bookID)
	if err != nil {
		return notFound(err, ErrBookNotFound)
	}
	if _, err := s.bookRepo.AdjustCopies(tx, book.ID, 1); err != nil {
		return err
	}
	book.Copies++
	return s.syncStatus(tx, book)
}

func (s *libraryService) syncStatus(tx *gorm.DB, book *models.Book) error {
	status := models.NormalizeStatus(book.Status, book.Copies)
	if status == book.Status {
		return nil
	}
	if err := s.bookRepo.UpdateStatus(tx, book.ID, status); err != nil {
		return err
	}
	log.Printf("[INFO] book %s status %s -> %s", book.ID, book.Status, status)
	book.Status = status
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
