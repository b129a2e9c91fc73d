package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/models"
	"librarydesk/internal/repositories"
)

func Test_Stats(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	loanBook := addBook(t, svc, "Loan", models.BookStatusBorrow, 20, 2)
	shopBook := addBook(t, svc, "Shop", models.BookStatusSale, 25, 3)
	roomBook := addBook(t, svc, "Room", models.BookStatusReading, 0, 1)

	// February activity
	clock.now = time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	_, err := svc.SellBook(ctx, shopBook.ID, CustomerRef{Name: "Old Buyer"}, nil)
	require.NoError(t, err)
	early, err := svc.BorrowBook(ctx, loanBook.ID, CustomerRef{Name: "Late Larry"}, 2)
	require.NoError(t, err)

	// March activity
	clock.now = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	_, err = svc.SellBook(ctx, shopBook.ID, CustomerRef{Name: "Mia"}, nil)
	require.NoError(t, err)
	loan, err := svc.BorrowBook(ctx, loanBook.ID, CustomerRef{Name: "Mia"}, 7)
	require.NoError(t, err)
	session, err := svc.ReadBook(ctx, roomBook.ID, CustomerRef{Name: "Noor"})
	require.NoError(t, err)
	_, err = svc.ReturnBook(ctx, loan.ID)
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.TotalBooks)
	assert.EqualValues(t, 2, st.TotalCopies, "1 loan copy + 1 shop copy + 0 room copies")
	assert.Equal(t, 1, st.BorrowedBooks)
	assert.Equal(t, 2, st.SoldBooks)
	assert.Equal(t, 1, st.ReadInLibrary)
	assert.Equal(t, 1, st.ActiveReadings)
	assert.Equal(t, 1, st.OverdueLoans)
	assert.Equal(t, 4, st.CustomersServed)
	assert.Equal(t, 50.0, st.IncomeFromSales)
	assert.Equal(t, 6.0, st.IncomeFromBorrow, "2 day loan at 0.10 plus 7 day loan at 0.20")
	assert.Equal(t, 56.0, st.TotalIncome)
	assert.Equal(t, 29.0, st.MonthlyIncome, "only March transactions")
	assert.Len(t, st.RecentBooks, 3)

	_, err = svc.ReturnBook(ctx, early.ID)
	require.NoError(t, err)
	_, err = svc.EndReading(ctx, session.ID)
	require.NoError(t, err)

	st, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.BorrowedBooks)
	assert.Zero(t, st.ActiveReadings)
	assert.Zero(t, st.OverdueLoans)
	assert.EqualValues(t, 4, st.TotalCopies)
}

func Test_Stats_EmptyLibrary(t *testing.T) {
	svc, _ := newTestService(t)

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalBooks)
	assert.Zero(t, st.TotalCopies)
	assert.Zero(t, st.TotalIncome)
	assert.Empty(t, st.RecentBooks)
}

func Test_TransactionStatsAndFilters(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)
	loanBook := addBook(t, svc, "Loan", models.BookStatusBorrow, 10, 2)
	shopBook := addBook(t, svc, "Shop", models.BookStatusSale, 10, 2)
	roomBook := addBook(t, svc, "Room", models.BookStatusReading, 0, 2)

	loan, err := svc.BorrowBook(ctx, loanBook.ID, CustomerRef{Name: "Sam"}, 7)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.BorrowBook(ctx, loanBook.ID, CustomerRef{Name: "Tia"}, 7)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.SellBook(ctx, shopBook.ID, CustomerRef{Name: "Sam"}, nil)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	session, err := svc.ReadBook(ctx, roomBook.ID, CustomerRef{Name: "Uma"})
	require.NoError(t, err)
	_, err = svc.ReturnBook(ctx, loan.ID)
	require.NoError(t, err)
	_, err = svc.EndReading(ctx, session.ID)
	require.NoError(t, err)

	ts, err := svc.TransactionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, TransactionStats{Total: 4, Read: 1, Buy: 1, Borrow: 2, Returned: 2, Active: 1}, *ts)

	borrows, err := svc.ListTransactions(ctx, repositories.TransactionFilter{Action: models.TransactionActionBorrow})
	require.NoError(t, err)
	require.Len(t, borrows, 2)
	assert.Equal(t, "Tia", borrows[0].CustomerName, "newest first")

	bySam, err := svc.ListTransactions(ctx, repositories.TransactionFilter{Search: "sam"})
	require.NoError(t, err)
	assert.Len(t, bySam, 2)

	byBook, err := svc.TransactionsByBook(ctx, shopBook.ID)
	require.NoError(t, err)
	require.Len(t, byBook, 1)
	assert.Equal(t, models.TransactionActionBuy, byBook[0].Action)
}

func Test_PurgeTransactions_KeepsOpenTransactions(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)
	loanBook := addBook(t, svc, "Loan", models.BookStatusBorrow, 10, 2)
	shopBook := addBook(t, svc, "Shop", models.BookStatusSale, 10, 2)

	_, err := svc.SellBook(ctx, shopBook.ID, CustomerRef{Name: "Vic"}, nil)
	require.NoError(t, err)
	closed, err := svc.BorrowBook(ctx, loanBook.ID, CustomerRef{Name: "Vic"}, 2)
	require.NoError(t, err)
	_, err = svc.ReturnBook(ctx, closed.ID)
	require.NoError(t, err)
	open, err := svc.BorrowBook(ctx, loanBook.ID, CustomerRef{Name: "Wes"}, 15)
	require.NoError(t, err)

	clock.Advance(10 * 24 * time.Hour)
	_, err = svc.SellBook(ctx, shopBook.ID, CustomerRef{Name: "Xia"}, nil)
	require.NoError(t, err)

	n, err := svc.PurgeTransactions(ctx, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "old sale and returned loan")

	left, err := svc.ListTransactions(ctx, repositories.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, left, 2)
	ids := []uuid.UUID{left[0].ID, left[1].ID}
	assert.Contains(t, ids, open.ID)

	// default age keeps everything younger than 30 days
	n, err = svc.PurgeTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	b := reload(t, svc, loanBook)
	assert.Equal(t, 1, b.Copies, "the open loan still holds its copy")
}
