package plan

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
)

const CodeLimitExceeded = "PLAN_LIMIT_EXCEEDED"

var (
	ErrNotFound        = errors.New("plan not found")
	ErrCodeTaken       = errors.New("plan code already exists")
	ErrUnknownCategory = errors.New("unknown limit category")
)

func init() {
	apperr.Register(ErrNotFound, http.StatusNotFound, "PLAN_NOT_FOUND")
	apperr.Register(ErrCodeTaken, http.StatusConflict, "PLAN_CODE_TAKEN")
	apperr.Register(ErrUnknownCategory, http.StatusBadRequest, "INVALID_LIMITS")
}

// LimitError is returned when a creation would exceed the plan ceiling.
type LimitError struct {
	Decision Decision
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("plan limit exceeded for %s: %d of %d used",
		e.Decision.Category, e.Decision.Current, e.Decision.Ceiling)
}

func denied(d Decision) error {
	le := &LimitError{Decision: d}
	return apperr.Wrap(le, http.StatusConflict, CodeLimitExceeded, le.Error())
}
