package merchant

import (
	"errors"
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/subdomain"
)

var (
	ErrSubdomainTaken   = errors.New("subdomain is already taken")
	ErrEmailTaken       = errors.New("email is already registered")
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrInvalidRole      = errors.New("role cannot be assigned")
	ErrOutletRequired   = errors.New("outlet roles require an outlet_id")
	ErrSelfDeactivation = errors.New("you cannot deactivate your own account")
	ErrPlanUnavailable  = errors.New("plan is not available")
)

func init() {
	apperr.Register(ErrSubdomainTaken, http.StatusConflict, "SUBDOMAIN_TAKEN")
	apperr.Register(ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN")
	apperr.Register(ErrAccountDisabled, http.StatusForbidden, "ACCOUNT_DISABLED")
	apperr.Register(ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE")
	apperr.Register(ErrOutletRequired, http.StatusBadRequest, apperr.CodeValidation)
	apperr.Register(ErrSelfDeactivation, http.StatusBadRequest, "SELF_DEACTIVATION")
	apperr.Register(ErrPlanUnavailable, http.StatusBadRequest, "PLAN_UNAVAILABLE")
	apperr.Register(subdomain.ErrInvalid, http.StatusBadRequest, "INVALID_SUBDOMAIN")
	apperr.Register(subdomain.ErrReserved, http.StatusBadRequest, "SUBDOMAIN_RESERVED")
}
