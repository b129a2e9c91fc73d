package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"librarydesk/internal/models"
	"librarydesk/internal/repositories"
)

// BookInput carries the fields of the add-book form.
type BookInput struct {
	Title         string
	Author        string
	Category      string
	Description   string
	PublishedDate string
	Status        models.BookStatus
	Price         float64
	Copies        int
}

// BookPatch is a partial edit; nil fields are left unchanged.
type BookPatch struct {
	Title         *string
	Author        *string
	Category      *string
	Description   *string
	PublishedDate *string
	Status        *models.BookStatus
	Price         *float64
	Copies        *int
}

func validateBookFields(title, author string, status models.BookStatus, price float64, copies int) error {
	switch {
	case strings.TrimSpace(title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case strings.TrimSpace(author) == "":
		return fmt.Errorf("%w: author is required", ErrInvalidInput)
	case models.ModeOf(status) == "":
		return fmt.Errorf("%w: status must be one of reading, borrow, sale", ErrInvalidInput)
	case price < 0:
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	case copies < 0:
		return fmt.Errorf("%w: copies must be >= 0", ErrInvalidInput)
	}
	return nil
}

// CreateBook stores a new catalog entry with its status derived from the copy count.
func (s *libraryService) CreateBook(ctx context.Context, in BookInput) (*models.Book, error) {
	if err := validateBookFields(in.Title, in.Author, in.Status, in.Price, in.Copies); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:         strings.TrimSpace(in.Title),
		Author:        strings.TrimSpace(in.Author),
		Category:      strings.TrimSpace(in.Category),
		Description:   in.Description,
		PublishedDate: strings.TrimSpace(in.PublishedDate),
		Status:        models.NormalizeStatus(in.Status, in.Copies),
		Price:         in.Price,
		Copies:        in.Copies,
		AddedAt:       s.clock(),
	}
	if err := s.bookRepo.Create(s.db.WithContext(ctx), book); err != nil {
		log.Printf("[ERROR] CreateBook: failed to create book record: %v", err)
		return nil, err
	}
	log.Printf("[INFO] CreateBook: created book %q (id=%s) status=%s copies=%d", book.Title, book.ID, book.Status, book.Copies)
	return book, nil
}

func (s *libraryService) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	return book, nil
}

// UpdateBook applies a partial edit. Changing copies or status re-derives the
// stored status, so a sold_out book restocked with copies becomes sale again.
func (s *libraryService) UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*models.Book, error) {
	var updated *models.Book

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByIDForUpdate(tx, id)
		if err != nil {
			return notFound(err, ErrBookNotFound)
		}

		if patch.Title != nil {
			book.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Author != nil {
			book.Author = strings.TrimSpace(*patch.Author)
		}
		if patch.Category != nil {
			book.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.Description != nil {
			book.Description = *patch.Description
		}
		if patch.PublishedDate != nil {
			book.PublishedDate = strings.TrimSpace(*patch.PublishedDate)
		}
		if patch.Price != nil {
			book.Price = *patch.Price
		}
		if patch.Copies != nil {
			book.Copies = *patch.Copies
		}
		status := book.Status
		if patch.Status != nil {
			status = *patch.Status
		}
		if err := validateBookFields(book.Title, book.Author, status, book.Price, book.Copies); err != nil {
			return err
		}
		book.Status = models.NormalizeStatus(status, book.Copies)

		if err := s.bookRepo.Save(tx, book); err != nil {
			log.Printf("[ERROR] UpdateBook: failed to save book %s: %v", id, err)
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] UpdateBook: book %s now status=%s copies=%d", updated.ID, updated.Status, updated.Copies)
	return updated, nil
}

// DeleteBook removes a catalog entry unless copies are still out on loan or in
// the reading room.
func (s *libraryService) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.bookRepo.GetByIDForUpdate(tx, id); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		open, err := s.txRepo.CountOpenByBook(tx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			log.Printf("[WARN] DeleteBook: book %s has %d open transactions", id, open)
			return ErrBookInUse
		}
		if _, err := s.bookRepo.Delete(tx, id); err != nil {
			log.Printf("[ERROR] DeleteBook: failed to delete book %s: %v", id, err)
			return err
		}
		log.Printf("[INFO] DeleteBook: deleted book %s", id)
		return nil
	})
}

// ListBooks returns the catalog filtered by search text, category and status.
func (s *libraryService) ListBooks(ctx context.Context, filter repositories.BookFilter) ([]models.Book, error) {
	return s.bookRepo.List(s.db.WithContext(ctx), filter)
}

func (s *libraryService) ListCategories(ctx context.Context) ([]string, error) {
	return s.bookRepo.Categories(s.db.WithContext(ctx))
}

// ListAvailable returns the books of a mode that still have copies to issue.
func (s *libraryService) ListAvailable(ctx context.Context, mode models.BookStatus) ([]models.Book, error) {
	base := models.ModeOf(mode)
	if base == "" {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}
	return s.bookRepo.ListAvailable(s.db.WithContext(ctx), base)
}

func (s *libraryService) RecentBooks(ctx context.Context, limit int) ([]models.Book, error) {
	if limit <= 0 {
		limit = RecentBooksLimit
	}
	return s.bookRepo.Recent(s.db.WithContext(ctx), limit)
}
