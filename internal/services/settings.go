package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"librarydesk/internal/models"
)

// SettingsPatch replaces the borrow price table when BorrowPrices is non-nil
// and overwrites the other fields when set.
type SettingsPatch struct {
	BorrowPrices map[string]float64
	Currency     *string
	Language     *string
}

// GetSettings returns the stored settings, or the defaults when none were saved.
func (s *libraryService) GetSettings(ctx context.Context) (*models.Settings, error) {
	st, err := s.settingsRepo.Get(s.db.WithContext(ctx))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			def := models.DefaultSettings()
			return &def, nil
		}
		return nil, err
	}
	if st.BorrowPrices == nil {
		st.BorrowPrices = map[string]float64{}
	}
	return st, nil
}

func (s *libraryService) UpdateSettings(ctx context.Context, patch SettingsPatch) (*models.Settings, error) {
	st, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if patch.BorrowPrices != nil {
		prices := make(map[string]float64, len(patch.BorrowPrices))
		for period, rate := range patch.BorrowPrices {
			days, err := strconv.Atoi(strings.TrimSpace(period))
			if err != nil || days <= 0 {
				return nil, fmt.Errorf("%w: borrow period %q must be a positive number of days", ErrInvalidInput, period)
			}
			if rate < 0 || rate > 1 {
				return nil, fmt.Errorf("%w: borrow rate for %d days must be between 0 and 1", ErrInvalidInput, days)
			}
			prices[strconv.Itoa(days)] = rate
		}
		st.BorrowPrices = prices
	}
	if patch.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*patch.Currency))
		if c == "" {
			return nil, fmt.Errorf("%w: currency is required", ErrInvalidInput)
		}
		st.Currency = c
	}
	if patch.Language != nil {
		l := strings.ToLower(strings.TrimSpace(*patch.Language))
		if l == "" {
			return nil, fmt.Errorf("%w: language is required", ErrInvalidInput)
		}
		st.Language = l
	}

	if err := s.settingsRepo.Save(s.db.WithContext(ctx), st); err != nil {
		log.Printf("[ERROR] UpdateSettings: failed to save settings: %v", err)
		return nil, err
	}
	log.Printf("[INFO] UpdateSettings: %d borrow periods, currency=%s language=%s", len(st.BorrowPrices), st.Currency, st.Language)
	return st, nil
}

// BorrowPrice is the fee for lending a book of bookPrice for periodDays: the
// book price times the period's rate, falling back to DefaultBorrowRate for
// periods missing from the table. Rounded to cents.
func BorrowPrice(settings *models.Settings, bookPrice float64, periodDays int) float64 {
	rate := models.DefaultBorrowRate
	if settings != nil {
		if r, ok := settings.BorrowPrices[strconv.Itoa(periodDays)]; ok {
			rate = r
		}
	}
	return round2(bookPrice * rate)
}
