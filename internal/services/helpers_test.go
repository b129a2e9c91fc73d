package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"librarydesk/internal/config"
	"librarydesk/internal/database"
	"librarydesk/internal/models"
	"librarydesk/internal/repositories"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func tempDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.Config{
		DBDriver:        config.DriverSQLite,
		DatabaseURL:     filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		DBLogLevel:      "silent",
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestService(t *testing.T) (LibraryService, *testClock) {
	t.Helper()
	db := tempDB(t)
	clock := &testClock{now: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)}
	svc := NewLibraryService(
		db,
		repositories.NewBookRepository(db),
		repositories.NewCustomerRepository(db),
		repositories.NewTransactionRepository(db),
		repositories.NewSettingsRepository(db),
		WithClock(clock.Now),
	)
	return svc, clock
}

func addBook(t *testing.T, svc LibraryService, title string, status models.BookStatus, price float64, copies int) *models.Book {
	t.Helper()
	b, err := svc.CreateBook(context.Background(), BookInput{
		Title:    title,
		Author:   "Author of " + title,
		Category: "section 1",
		Status:   status,
		Price:    price,
		Copies:   copies,
	})
	require.NoError(t, err)
	return b
}

func reload(t *testing.T, svc LibraryService, book *models.Book) *models.Book {
	t.Helper()
	b, err := svc.GetBook(context.Background(), book.ID)
	require.NoError(t, err)
	return b
}
