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

func Test_CreateBook_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cases := map[string]BookInput{
		"missing title":  {Author: "A", Status: models.BookStatusSale, Copies: 1},
		"missing author": {Title: "T", Status: models.BookStatusSale, Copies: 1},
		"unknown status": {Title: "T", Author: "A", Status: "lost", Copies: 1},
		"negative price": {Title: "T", Author: "A", Status: models.BookStatusSale, Price: -1, Copies: 1},
		"negative stock": {Title: "T", Author: "A", Status: models.BookStatusSale, Copies: -2},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateBook(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func Test_CreateBook_ZeroCopiesStoresOutStatus(t *testing.T) {
	svc, clock := newTestService(t)

	b := addBook(t, svc, "Empty Shelf", models.BookStatusBorrow, 9, 0)
	assert.Equal(t, models.BookStatusBorrowOut, b.Status)
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.True(t, b.AddedAt.Equal(clock.now))

	stored := reload(t, svc, b)
	assert.Equal(t, models.BookStatusBorrowOut, stored.Status)
	assert.Equal(t, "Author of Empty Shelf", stored.Author)
}

func Test_UpdateBook(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	book := addBook(t, svc, "Draft", models.BookStatusReading, 0, 1)

	title := "  Final Title "
	status := models.BookStatusSale
	price := 12.5
	updated, err := svc.UpdateBook(ctx, book.ID, BookPatch{Title: &title, Status: &status, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Final Title", updated.Title)
	assert.Equal(t, models.BookStatusSale, updated.Status)
	assert.Equal(t, 12.5, updated.Price)

	zero := 0
	updated, err = svc.UpdateBook(ctx, book.ID, BookPatch{Copies: &zero})
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusSoldOut, updated.Status)

	blank := " "
	_, err = svc.UpdateBook(ctx, book.ID, BookPatch{Author: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateBook(ctx, uuid.New(), BookPatch{Title: &title})
	assert.ErrorIs(t, err, ErrBookNotFound)

	stored := reload(t, svc, book)
	assert.Equal(t, "Author of Draft", stored.Author, "a rejected patch leaves the row untouched")
}

func Test_DeleteBook_BlockedWhileCopiesAreOut(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	book := addBook(t, svc, "Popular", models.BookStatusBorrow, 10, 2)

	loan, err := svc.BorrowBook(ctx, book.ID, CustomerRef{Name: "Jon"}, 7)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteBook(ctx, book.ID), ErrBookInUse)

	_, err = svc.ReturnBook(ctx, loan.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))
	_, err = svc.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)

	assert.ErrorIs(t, svc.DeleteBook(ctx, book.ID), ErrBookNotFound)

	// the log keeps the denormalized title after the book is gone
	txs, err := svc.ListTransactions(ctx, repositories.TransactionFilter{Search: "popular"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Popular", txs[0].BookTitle)
}

func Test_ListBooks_Filters(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	addBook(t, svc, "Go in Practice", models.BookStatusBorrow, 30, 2)
	clock.Advance(time.Minute)
	sold := addBook(t, svc, "Rust Basics", models.BookStatusSale, 20, 1)
	clock.Advance(time.Minute)
	_, err := svc.CreateBook(ctx, BookInput{
		Title: "Poems", Author: "Hafez", Category: "poetry", Status: models.BookStatusReading, Copies: 1,
	})
	require.NoError(t, err)

	all, err := svc.ListBooks(ctx, repositories.BookFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Poems", all[0].Title, "newest first")

	found, err := svc.ListBooks(ctx, repositories.BookFilter{Search: "HAFEZ"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Poems", found[0].Title)

	found, err = svc.ListBooks(ctx, repositories.BookFilter{Category: "section 1"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = svc.SellBook(ctx, sold.ID, CustomerRef{Name: "Kim"}, nil)
	require.NoError(t, err)
	found, err = svc.ListBooks(ctx, repositories.BookFilter{Status: models.BookStatusSoldOut})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, sold.ID, found[0].ID)

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"poetry", "section 1"}, categories)
}

func Test_ListAvailable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	addBook(t, svc, "B Loan", models.BookStatusBorrow, 10, 1)
	addBook(t, svc, "A Loan", models.BookStatusBorrow, 10, 3)
	addBook(t, svc, "Gone", models.BookStatusBorrow, 10, 0)
	addBook(t, svc, "Shop", models.BookStatusSale, 10, 1)

	books, err := svc.ListAvailable(ctx, models.BookStatusBorrow)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "A Loan", books[0].Title)
	assert.Equal(t, "B Loan", books[1].Title)

	// an _out spelling resolves to its mode
	books, err = svc.ListAvailable(ctx, models.BookStatusSoldOut)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Shop", books[0].Title)

	_, err = svc.ListAvailable(ctx, "lost")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func Test_RecentBooks(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	for _, title := range []string{"One", "Two", "Three", "Four"} {
		addBook(t, svc, title, models.BookStatusReading, 0, 1)
		clock.Advance(time.Hour)
	}

	recent, err := svc.RecentBooks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, RecentBooksLimit)
	assert.Equal(t, "Four", recent[0].Title)
	assert.Equal(t, "Two", recent[2].Title)

	recent, err = svc.RecentBooks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Four", recent[0].Title)
}
