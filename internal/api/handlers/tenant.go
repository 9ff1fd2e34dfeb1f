package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

type TenantHandler struct{}

func NewTenantHandler() *TenantHandler {
	return &TenantHandler{}
}

// Info returns the public fields of the tenant named by the request host.
// The connection descriptor is never included.
func (h *TenantHandler) Info(w http.ResponseWriter, r *http.Request) {
	tn := tenant.FromContext(r.Context())
	if tn == nil {
		httpapi.Error(w, r, tenant.ErrNotFound)
		return
	}
	httpapi.OK(w, http.StatusOK, tn.Info())
}
