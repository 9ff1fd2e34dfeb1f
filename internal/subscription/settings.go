package subscription

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

// SettingsStore persists the platform billing configuration as a single
// row. Reads fall back to defaults until an admin saves one.
type SettingsStore struct {
	db database.DB
}

func NewSettingsStore(db database.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Load(ctx context.Context) (models.BillingSettings, error) {
	var bs models.BillingSettings
	err := s.db.QueryRow(ctx,
		`SELECT interval_days, trial_days, grace_days, currency, updated_at
		 FROM billing_settings WHERE id = 1`,
	).Scan(&bs.IntervalDays, &bs.TrialDays, &bs.GraceDays, &bs.Currency, &bs.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return models.DefaultBillingSettings(), nil
		}
		return models.BillingSettings{}, fmt.Errorf("load billing settings: %w", err)
	}
	return bs, nil
}

func (s *SettingsStore) Save(ctx context.Context, bs models.BillingSettings) (models.BillingSettings, error) {
	bs.Currency = strings.ToUpper(strings.TrimSpace(bs.Currency))
	if bs.IntervalDays <= 0 || bs.TrialDays < 0 || bs.GraceDays < 0 || len(bs.Currency) != 3 {
		return models.BillingSettings{}, ErrInvalidSettings
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO billing_settings (id, interval_days, trial_days, grace_days, currency, updated_at)
		 VALUES (1, $1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET interval_days = EXCLUDED.interval_days, trial_days = EXCLUDED.trial_days,
		     grace_days = EXCLUDED.grace_days, currency = EXCLUDED.currency, updated_at = NOW()
		 RETURNING updated_at`,
		bs.IntervalDays, bs.TrialDays, bs.GraceDays, bs.Currency,
	).Scan(&bs.UpdatedAt)
	if err != nil {
		return models.BillingSettings{}, fmt.Errorf("save billing settings: %w", err)
	}
	return bs, nil
}
