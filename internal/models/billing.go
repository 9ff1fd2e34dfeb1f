package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionTrialing  SubscriptionStatus = "trialing"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

type Subscription struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	MerchantID         uuid.UUID          `json:"merchant_id" db:"merchant_id"`
	PlanID             uuid.UUID          `json:"plan_id" db:"plan_id"`
	Status             SubscriptionStatus `json:"status" db:"status"`
	TrialStart         *time.Time         `json:"trial_start,omitempty" db:"trial_start"`
	TrialEnd           *time.Time         `json:"trial_end,omitempty" db:"trial_end"`
	CurrentPeriodStart *time.Time         `json:"current_period_start,omitempty" db:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty" db:"current_period_end"`
	Amount             decimal.Decimal    `json:"amount" db:"amount"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

type Plan struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	Code      string           `json:"code" db:"code"`
	Name      string           `json:"name" db:"name"`
	Price     decimal.Decimal  `json:"price" db:"price"`
	Currency  string           `json:"currency" db:"currency"`
	TrialDays int              `json:"trial_days" db:"trial_days"`
	Limits    map[string]int64 `json:"limits" db:"limits"`
	Active    bool             `json:"active" db:"active"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// BillingSettings is the persisted platform billing configuration.
type BillingSettings struct {
	IntervalDays int       `json:"interval_days" db:"interval_days"`
	TrialDays    int       `json:"trial_days" db:"trial_days"`
	GraceDays    int       `json:"grace_days" db:"grace_days"`
	Currency     string    `json:"currency" db:"currency"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func DefaultBillingSettings() BillingSettings {
	return BillingSettings{IntervalDays: 30, TrialDays: 14, GraceDays: 3, Currency: "USD"}
}
