package models

import (
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantCancelled TenantStatus = "cancelled"
)

func (s TenantStatus) Valid() bool {
	switch s {
	case TenantActive, TenantSuspended, TenantCancelled:
		return true
	}
	return false
}

// Tenant is a row of the central tenant directory. DatabaseURL is the
// connection descriptor of the tenant's own store; empty means the tenant
// lives in the shared schema of the directory database.
type Tenant struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	MerchantID     uuid.UUID    `json:"merchant_id" db:"merchant_id"`
	Subdomain      string       `json:"subdomain" db:"subdomain"`
	Name           string       `json:"name" db:"name"`
	Status         TenantStatus `json:"status" db:"status"`
	DatabaseURL    string       `json:"-" db:"database_url"`
	SubscriptionID *uuid.UUID   `json:"subscription_id,omitempty" db:"subscription_id"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// TenantInfo is the public projection of a Tenant.
type TenantInfo struct {
	ID        uuid.UUID    `json:"id"`
	Subdomain string       `json:"subdomain"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
}

func (t *Tenant) Info() TenantInfo {
	return TenantInfo{ID: t.ID, Subdomain: t.Subdomain, Name: t.Name, Status: t.Status}
}

type Merchant struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	BusinessType string    `json:"business_type,omitempty" db:"business_type"`
	Address      string    `json:"address,omitempty" db:"address"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
