package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/subscription"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

var (
	errTenantRequired  = apperr.BadRequest("TENANT_REQUIRED", "request does not identify a tenant")
	errTenantMismatch  = apperr.Forbidden("TENANT_MISMATCH", "user does not belong to this tenant")
	errTenantSuspended = apperr.Forbidden("TENANT_SUSPENDED", "tenant is suspended")
)

type TenantResolver interface {
	Resolve(ctx context.Context, subdomain string) (*models.Tenant, error)
}

type MerchantTenants interface {
	GetByMerchant(ctx context.Context, merchantID uuid.UUID) (*models.Tenant, error)
}

// TenantConnector leases tenant data stores. release must be called once
// the request is done with the store.
type TenantConnector interface {
	Acquire(ctx context.Context, t *models.Tenant) (db database.DB, release func(), err error)
}

// Tenancy binds requests to a tenant and its data store.
type Tenancy struct {
	resolver  TenantResolver
	merchants MerchantTenants
	connector TenantConnector
}

func NewTenancy(resolver TenantResolver, merchants MerchantTenants, connector TenantConnector) *Tenancy {
	return &Tenancy{resolver: resolver, merchants: merchants, connector: connector}
}

// Public resolves the tenant named by the host for unauthenticated routes.
func (t *Tenancy) Public(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := tenant.SubdomainFromContext(r.Context())
		if sub == "" {
			httpapi.Error(w, r, errTenantRequired)
			return
		}
		tn, err := t.resolver.Resolve(r.Context(), sub)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), tn)))
	})
}

// Scoped resolves the tenant of an authenticated request, checks the caller
// belongs to it and attaches its data store. It must run after
// auth.Authenticate.
func (t *Tenancy) Scoped(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		scope, ok := tenant.ScopeFromContext(ctx)
		if !ok {
			httpapi.Error(w, r, apperr.Unauthorized("", "authentication required"))
			return
		}

		tn, err := t.tenantFor(ctx, scope)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		if tn.Status == models.TenantSuspended && !scope.IsAdmin() {
			httpapi.Error(w, r, errTenantSuspended)
			return
		}

		db, release, err := t.connector.Acquire(ctx, tn)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		defer release()

		ctx = tenant.WithTenant(ctx, tn)
		ctx = tenant.WithDB(ctx, db)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (t *Tenancy) tenantFor(ctx context.Context, scope tenant.Scope) (*models.Tenant, error) {
	if sub := tenant.SubdomainFromContext(ctx); sub != "" {
		tn, err := t.resolver.Resolve(ctx, sub)
		if err != nil {
			return nil, err
		}
		if !scope.IsAdmin() && tn.MerchantID != scope.MerchantID {
			return nil, errTenantMismatch
		}
		return tn, nil
	}

	if scope.IsAdmin() {
		return nil, errTenantRequired
	}
	tn, err := t.merchants.GetByMerchant(ctx, scope.MerchantID)
	if err != nil {
		return nil, err
	}
	if tn.Status == models.TenantCancelled {
		return nil, tenant.ErrNotFound
	}
	return tn, nil
}

type StandingChecker interface {
	Standing(ctx context.Context, merchantID uuid.UUID) (subscription.Standing, *models.Subscription, error)
}

// RequireSubscription rejects writes to a tenant whose subscription is not in
// good standing. Reads stay available so merchants can export their data.
// Platform admins are exempt.
func RequireSubscription(checker StandingChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			scope, _ := tenant.ScopeFromContext(r.Context())
			tn := tenant.FromContext(r.Context())
			if scope.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			if tn == nil {
				httpapi.Error(w, r, errTenantRequired)
				return
			}

			standing, _, err := checker.Standing(r.Context(), tn.MerchantID)
			if err != nil {
				httpapi.Error(w, r, err)
				return
			}
			if !standing.Entitled() {
				httpapi.Error(w, r, apperr.Wrap(subscription.ErrInactive, http.StatusForbidden,
					subscription.CodeInactive, "subscription is "+string(standing)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

