package services

import (
	"context"
	"log"

	"github.com/google/uuid"

	"librarydesk/internal/models"
	"librarydesk/internal/repositories"
)

// Stats is the dashboard summary, recomputed from the catalog and a full scan
// of the transaction log on every call.
type Stats struct {
	TotalBooks       int64         `json:"total_books"`
	TotalCopies      int64         `json:"total_copies"`
	BorrowedBooks    int           `json:"borrowed_books"`
	SoldBooks        int           `json:"sold_books"`
	ReadInLibrary    int           `json:"read_in_library"`
	ActiveReadings   int           `json:"active_readings"`
	OverdueLoans     int           `json:"overdue_loans"`
	CustomersServed  int           `json:"customers_served"`
	IncomeFromSales  float64       `json:"income_from_sales"`
	IncomeFromBorrow float64       `json:"income_from_borrow"`
	TotalIncome      float64       `json:"total_income"`
	MonthlyIncome    float64       `json:"monthly_income"`
	RecentBooks      []models.Book `json:"recent_books"`
}

// TransactionStats counts the log by action and state.
type TransactionStats struct {
	Total    int `json:"total"`
	Read     int `json:"read"`
	Buy      int `json:"buy"`
	Borrow   int `json:"borrow"`
	Returned int `json:"returned"`
	Active   int `json:"active"`
}

func (s *libraryService) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)

	books, copies, err := s.bookRepo.Totals(db)
	if err != nil {
		return nil, err
	}
	txs, err := s.txRepo.All(db)
	if err != nil {
		return nil, err
	}
	recent, err := s.bookRepo.Recent(db, RecentBooksLimit)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	st := &Stats{
		TotalBooks:  books,
		TotalCopies: copies,
		RecentBooks: recent,
	}
	customers := make(map[uuid.UUID]struct{})
	for i := range txs {
		t := &txs[i]
		customers[t.CustomerID] = struct{}{}

		switch t.Action {
		case models.TransactionActionBuy:
			st.SoldBooks++
			st.IncomeFromSales += t.Price
		case models.TransactionActionBorrow:
			st.IncomeFromBorrow += t.Price
			if !t.Returned {
				st.BorrowedBooks++
			}
			if t.Overdue(now) {
				st.OverdueLoans++
			}
		case models.TransactionActionRead:
			st.ReadInLibrary++
			if !t.Returned {
				st.ActiveReadings++
			}
		}

		if t.CreatedAt.Year() == now.Year() && t.CreatedAt.Month() == now.Month() {
			st.MonthlyIncome += t.Price
		}
	}
	st.CustomersServed = len(customers)
	st.IncomeFromSales = round2(st.IncomeFromSales)
	st.IncomeFromBorrow = round2(st.IncomeFromBorrow)
	st.TotalIncome = round2(st.IncomeFromSales + st.IncomeFromBorrow)
	st.MonthlyIncome = round2(st.MonthlyIncome)
	return st, nil
}

func (s *libraryService) TransactionStats(ctx context.Context) (*TransactionStats, error) {
	txs, err := s.txRepo.All(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	st := &TransactionStats{Total: len(txs)}
	for i := range txs {
		switch txs[i].Action {
		case models.TransactionActionRead:
			st.Read++
		case models.TransactionActionBuy:
			st.Buy++
		case models.TransactionActionBorrow:
			st.Borrow++
			if !txs[i].Returned {
				st.Active++
			}
		}
		if txs[i].Returned {
			st.Returned++
		}
	}
	return st, nil
}

// ─── Log queries ──────────────────────────────────────────────────────────────

func (s *libraryService) ListTransactions(ctx context.Context, filter repositories.TransactionFilter) ([]models.Transaction, error) {
	return s.txRepo.List(s.db.WithContext(ctx), filter)
}

func (s *libraryService) TransactionsByBook(ctx context.Context, bookID uuid.UUID) ([]models.Transaction, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.bookRepo.GetByID(db, bookID); err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	return s.txRepo.ListByBook(db, bookID)
}

func (s *libraryService) ActiveLoans(ctx context.Context) ([]models.Transaction, error) {
	return s.txRepo.ListOpen(s.db.WithContext(ctx), models.TransactionActionBorrow)
}

// OverdueLoans returns open loans whose return date has passed.
func (s *libraryService) OverdueLoans(ctx context.Context) ([]models.Transaction, error) {
	return s.txRepo.ListOverdue(s.db.WithContext(ctx), s.clock())
}

func (s *libraryService) ActiveReadingSessions(ctx context.Context) ([]models.Transaction, error) {
	return s.txRepo.ListOpen(s.db.WithContext(ctx), models.TransactionActionRead)
}

// PurgeTransactions deletes closed transactions older than olderThanDays
// (DefaultPurgeAgeDays when <= 0). Open loans and reading sessions are kept so
// the copy counts stay consistent.
func (s *libraryService) PurgeTransactions(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = DefaultPurgeAgeDays
	}
	cutoff := s.clock().AddDate(0, 0, -olderThanDays)
	n, err := s.txRepo.PurgeClosedBefore(s.db.WithContext(ctx), cutoff)
	if err != nil {
		log.Printf("[ERROR] PurgeTransactions: failed to purge before %s: %v", cutoff.Format("2006-01-02"), err)
		return 0, err
	}
	log.Printf("[INFO] PurgeTransactions: removed %d closed transactions older than %d days", n, olderThanDays)
	return n, nil
}
