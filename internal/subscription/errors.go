package subscription

import (
	"errors"
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
)

const CodeInactive = "SUBSCRIPTION_INACTIVE"

var (
	ErrNotFound         = errors.New("subscription not found")
	ErrInactive         = errors.New("subscription is not active")
	ErrAlreadyCancelled = errors.New("subscription is cancelled")
	ErrInvalidExtension = errors.New("extension must be a positive number of days")
	ErrInvalidSettings  = errors.New("invalid billing settings")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownEventType = errors.New("unknown payment event type")
)

func init() {
	apperr.Register(ErrNotFound, http.StatusNotFound, "SUBSCRIPTION_NOT_FOUND")
	apperr.Register(ErrInactive, http.StatusForbidden, CodeInactive)
	apperr.Register(ErrAlreadyCancelled, http.StatusConflict, "SUBSCRIPTION_CANCELLED")
	apperr.Register(ErrInvalidExtension, http.StatusBadRequest, apperr.CodeValidation)
	apperr.Register(ErrInvalidSettings, http.StatusBadRequest, apperr.CodeValidation)
	apperr.Register(ErrInvalidSignature, http.StatusUnauthorized, "INVALID_SIGNATURE")
	apperr.Register(ErrUnknownEventType, http.StatusBadRequest, "UNKNOWN_EVENT")
}
