package tenant

import (
	"errors"
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
)

var (
	ErrNotFound      = errors.New("tenant not found")
	ErrConnection    = errors.New("tenant data store unavailable")
	ErrInvalidStatus = errors.New("invalid tenant status")
)

func init() {
	apperr.Register(ErrNotFound, http.StatusNotFound, "TENANT_NOT_FOUND")
	apperr.Register(ErrConnection, http.StatusServiceUnavailable, "TENANT_DB_UNAVAILABLE")
	apperr.Register(ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS")
}
