package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleMerchant    Role = "MERCHANT"
	RoleOutletAdmin Role = "OUTLET_ADMIN"
	RoleOutletStaff Role = "OUTLET_STAFF"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMerchant, RoleOutletAdmin, RoleOutletStaff:
		return true
	}
	return false
}

// OutletScoped reports whether the role is confined to a single outlet.
func (r Role) OutletScoped() bool {
	return r == RoleOutletAdmin || r == RoleOutletStaff
}

// User is either a platform admin (MerchantID nil) or a member of one merchant.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	MerchantID   *uuid.UUID `json:"merchant_id,omitempty" db:"merchant_id"`
	OutletID     *uuid.UUID `json:"outlet_id,omitempty" db:"outlet_id"`
	Email        string     `json:"email" db:"email"`
	FullName     string     `json:"full_name,omitempty" db:"full_name"`
	Role         Role       `json:"role" db:"role"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Active       bool       `json:"active" db:"active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
