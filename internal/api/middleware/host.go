package middleware

import (
	"net/http"
	"strings"

	"github.com/nikhilbhutani/rentalshop/internal/subdomain"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

// TenantHeader carries a tenant identifier already parsed by an edge proxy.
const TenantHeader = "X-Tenant-Subdomain"

// TenantFromHost records the tenant identifier of the request host on the
// context. An explicit TenantHeader is used when the host names no tenant.
// It never touches a data store.
func TenantFromHost(rootDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := subdomain.Extract(r.Host, rootDomain)
			if !ok {
				if h := strings.ToLower(strings.TrimSpace(r.Header.Get(TenantHeader))); h != "" && subdomain.Validate(h) == nil {
					sub, ok = h, true
				}
			}
			if ok {
				r = r.WithContext(tenant.WithSubdomain(r.Context(), sub))
			}
			next.ServeHTTP(w, r)
		})
	}
}
