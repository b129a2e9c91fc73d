package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"librarydesk/internal/models"
	"librarydesk/internal/repositories"
)

const memberCodeAttempts = 5

// CustomerInput carries the fields of the new-customer form.
type CustomerInput struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	JoinDate time.Time
}

// CustomerPatch is a partial edit; nil fields are left unchanged.
type CustomerPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// CustomerRef names the customer of a desk action: either an existing ID or a
// walk-in name that is matched or registered on the fly.
type CustomerRef struct {
	ID   uuid.UUID
	Name string
}

func (s *libraryService) CreateCustomer(ctx context.Context, in CustomerInput) (*models.Customer, error) {
	var created *models.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.createCustomer(tx, in)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *libraryService) createCustomer(tx *gorm.DB, in CustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	joined := in.JoinDate
	if joined.IsZero() {
		joined = s.clock()
	}

	code, err := s.newMemberCode(tx)
	if err != nil {
		return nil, err
	}
	customer := &models.Customer{
		MemberCode: code,
		Name:       name,
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:      strings.TrimSpace(in.Phone),
		Address:    strings.TrimSpace(in.Address),
		JoinDate:   joined.UTC(),
	}
	if err := s.customerRepo.Create(tx, customer); err != nil {
		log.Printf("[ERROR] CreateCustomer: failed to create customer %q: %v", name, err)
		return nil, err
	}
	log.Printf("[INFO] CreateCustomer: registered %q as %s (id=%s)", customer.Name, customer.MemberCode, customer.ID)
	return customer, nil
}

// newMemberCode draws CUST-###### codes until an unused one is found.
func (s *libraryService) newMemberCode(tx *gorm.DB) (string, error) {
	for i := 0; i < memberCodeAttempts; i++ {
		code := fmt.Sprintf("CUST-%06d", 100000+rand.Intn(900000))
		exists, err := s.customerRepo.MemberCodeExists(tx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		log.Printf("[WARN] newMemberCode: member code %s taken, retrying", code)
	}
	return "", errors.New("could not allocate a free member code")
}

// resolveCustomer looks up the customer of a desk action, registering walk-in
// names that are not on file yet.
func (s *libraryService) resolveCustomer(tx *gorm.DB, ref CustomerRef) (*models.Customer, error) {
	if ref.ID != uuid.Nil {
		c, err := s.customerRepo.GetByID(tx, ref.ID)
		if err != nil {
			return nil, notFound(err, ErrCustomerNotFound)
		}
		return c, nil
	}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: customer_id or customer_name is required", ErrInvalidInput)
	}
	c, err := s.customerRepo.GetByName(tx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return s.createCustomer(tx, CustomerInput{Name: name})
}

func (s *libraryService) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	c, err := s.customerRepo.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, notFound(err, ErrCustomerNotFound)
	}
	return c, nil
}

func (s *libraryService) UpdateCustomer(ctx context.Context, id uuid.UUID, patch CustomerPatch) (*models.Customer, error) {
	db := s.db.WithContext(ctx)
	c, err := s.customerRepo.GetByID(db, id)
	if err != nil {
		return nil, notFound(err, ErrCustomerNotFound)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
		}
		c.Name = name
	}
	if patch.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
	}
	if patch.Phone != nil {
		c.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Address != nil {
		c.Address = strings.TrimSpace(*patch.Address)
	}
	if err := s.customerRepo.Save(db, c); err != nil {
		log.Printf("[ERROR] UpdateCustomer: failed to save customer %s: %v", id, err)
		return nil, err
	}
	return c, nil
}

// DeleteCustomer removes a customer who has no books out on loan. Their past
// transactions keep the denormalized name.
func (s *libraryService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	db := s.db.WithContext(ctx)
	c, err := s.customerRepo.GetByID(db, id)
	if err != nil {
		return notFound(err, ErrCustomerNotFound)
	}
	if c.ActiveLoans > 0 {
		log.Printf("[WARN] DeleteCustomer: customer %s still has %d active loans", id, c.ActiveLoans)
		return ErrCustomerHasLoans
	}
	if _, err := s.customerRepo.Delete(db, id); err != nil {
		log.Printf("[ERROR] DeleteCustomer: failed to delete customer %s: %v", id, err)
		return err
	}
	log.Printf("[INFO] DeleteCustomer: deleted customer %s", id)
	return nil
}

func (s *libraryService) ListCustomers(ctx context.Context, filter repositories.CustomerFilter) ([]models.Customer, error) {
	return s.customerRepo.List(s.db.WithContext(ctx), filter)
}

// CustomerHistory returns every transaction of a customer, newest first.
func (s *libraryService) CustomerHistory(ctx context.Context, id uuid.UUID) ([]models.Transaction, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.customerRepo.GetByID(db, id); err != nil {
		return nil, notFound(err, ErrCustomerNotFound)
	}
	return s.txRepo.ListByCustomer(db, id)
}
