package auth

import (
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

type Capability string

const (
	CapOutletsRead        Capability = "outlets:read"
	CapOutletsWrite       Capability = "outlets:write"
	CapProductsRead       Capability = "products:read"
	CapProductsWrite      Capability = "products:write"
	CapCustomersRead      Capability = "customers:read"
	CapCustomersWrite     Capability = "customers:write"
	CapOrdersRead         Capability = "orders:read"
	CapOrdersWrite        Capability = "orders:write"
	CapUsersManage        Capability = "users:manage"
	CapSubscriptionRead   Capability = "subscription:read"
	CapSubscriptionManage Capability = "subscription:manage"
	CapPlansManage        Capability = "plans:manage"
	CapTenantsManage      Capability = "tenants:manage"
	CapBillingManage      Capability = "billing:manage"
	CapAuditRead          Capability = "audit:read"
	CapWildcard           Capability = "*"
)

// capabilities is the single source of truth for what each role may do.
var capabilities = map[models.Role][]Capability{
	models.RoleAdmin: {CapWildcard},
	models.RoleMerchant: {
		CapOutletsRead, CapOutletsWrite,
		CapProductsRead, CapProductsWrite,
		CapCustomersRead, CapCustomersWrite,
		CapOrdersRead, CapOrdersWrite,
		CapUsersManage,
		CapSubscriptionRead, CapSubscriptionManage,
	},
	models.RoleOutletAdmin: {
		CapOutletsRead,
		CapProductsRead, CapProductsWrite,
		CapCustomersRead, CapCustomersWrite,
		CapOrdersRead, CapOrdersWrite,
		CapSubscriptionRead,
	},
	models.RoleOutletStaff: {
		CapOutletsRead,
		CapProductsRead,
		CapCustomersRead, CapCustomersWrite,
		CapOrdersRead, CapOrdersWrite,
	},
}

// Can reports whether role holds capability c.
func Can(role models.Role, c Capability) bool {
	for _, have := range capabilities[role] {
		if have == CapWildcard || have == c {
			return true
		}
	}
	return false
}

// Capabilities lists the grants of role.
func Capabilities(role models.Role) []Capability {
	return append([]Capability(nil), capabilities[role]...)
}

// Require rejects callers whose role lacks capability c. It must run after
// Authenticate.
func Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, ok := tenant.ScopeFromContext(r.Context())
			if !ok {
				httpapi.Error(w, r, apperr.Unauthorized("", "authentication required"))
				return
			}
			if !Can(scope.Role, c) {
				httpapi.Error(w, r, apperr.Forbidden("", "insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
