package handlers

import (
	"net/http"
	"time"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/rental"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

// tenantCall gathers what a tenant-scoped handler needs from the request
// context. Tenancy middleware guarantees both values on those routes.
func tenantCall(r *http.Request) (*models.Tenant, database.DB, error) {
	tn := tenant.FromContext(r.Context())
	db := tenant.DBFromContext(r.Context())
	if tn == nil || db == nil {
		return nil, nil, apperr.BadRequest("TENANT_REQUIRED", "request does not identify a tenant")
	}
	return tn, db, nil
}

// access narrows data reads and writes to the tenant's merchant and, for
// outlet-bound roles, the caller's outlet.
func access(r *http.Request, tn *models.Tenant) rental.Access {
	a := rental.Access{MerchantID: tn.MerchantID}
	if scope, ok := tenant.ScopeFromContext(r.Context()); ok {
		a.OutletID = scope.OutletFilter()
	}
	return a
}

func actor(r *http.Request) *models.User {
	return tenant.UserFromContext(r.Context())
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperr.Validation(key + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}
