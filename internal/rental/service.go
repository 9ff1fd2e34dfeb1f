// Package rental implements the per-tenant rental catalogue and order book.
// Every statement is filtered by merchant so tenants sharing a schema stay
// isolated.
package rental

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
)

var (
	ErrOutletNotFound     = errors.New("outlet not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("order status transition not allowed")
	ErrInvalidPeriod      = errors.New("end_date must be after start_date")
	ErrProductUnavailable = errors.New("product is not available at this outlet")
	ErrOutletForbidden    = errors.New("outlet is outside your assignment")

	errInvalidAmount = errors.New("invalid amount")
)

func init() {
	apperr.Register(ErrOutletNotFound, http.StatusNotFound, "OUTLET_NOT_FOUND")
	apperr.Register(ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND")
	apperr.Register(ErrCustomerNotFound, http.StatusNotFound, "CUSTOMER_NOT_FOUND")
	apperr.Register(ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND")
	apperr.Register(ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION")
	apperr.Register(ErrInvalidPeriod, http.StatusBadRequest, apperr.CodeValidation)
	apperr.Register(ErrProductUnavailable, http.StatusBadRequest, "PRODUCT_UNAVAILABLE")
	apperr.Register(ErrOutletForbidden, http.StatusForbidden, apperr.CodeForbidden)
	apperr.Register(errInvalidAmount, http.StatusBadRequest, apperr.CodeValidation)
}

// Access is the data scope of one call: the tenant's merchant and, for
// outlet-bound staff, their outlet.
type Access struct {
	MerchantID uuid.UUID
	OutletID   *uuid.UUID
}

// outlet returns the outlet the caller must use. Outlet-bound callers get
// their own outlet; a conflicting request is rejected.
func (a Access) outlet(requested uuid.UUID) (uuid.UUID, error) {
	if a.OutletID == nil {
		return requested, nil
	}
	if requested != uuid.Nil && requested != *a.OutletID {
		return uuid.Nil, ErrOutletForbidden
	}
	return *a.OutletID, nil
}

type Service struct {
	enforcer *plan.Enforcer
}

func NewService(enforcer *plan.Enforcer) *Service {
	return &Service{enforcer: enforcer}
}
