package handlers

import (
	"errors"
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/merchant"
	"github.com/nikhilbhutani/rentalshop/internal/rental"
)

type UserHandler struct {
	merchants *merchant.Service
	rental    *rental.Service
	auditSvc  *audit.Service
}

func NewUserHandler(merchants *merchant.Service, rentalSvc *rental.Service, auditSvc *audit.Service) *UserHandler {
	return &UserHandler{merchants: merchants, rental: rentalSvc, auditSvc: auditSvc}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	tn, _, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	users, err := h.merchants.ListUsers(r.Context(), tn.MerchantID)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, users)
}

// Create adds a user to the tenant's merchant. An outlet assignment must
// name an outlet of that merchant in the tenant's store.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in merchant.CreateUserInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	if in.OutletID != nil {
		_, err := h.rental.GetOutlet(r.Context(), db, rental.Access{MerchantID: tn.MerchantID}, *in.OutletID)
		if errors.Is(err, rental.ErrOutletNotFound) {
			httpapi.Error(w, r, apperr.Validation("invalid user",
				apperr.FieldError{Field: "outlet_id", Message: "outlet does not exist"}))
			return
		}
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
	}

	u, err := h.merchants.CreateUser(r.Context(), tn.MerchantID, in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusCreated, u)
}

type userActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	tn, _, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var req userActiveRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	me := actor(r)
	if me == nil {
		httpapi.Error(w, r, apperr.Unauthorized("", "authentication required"))
		return
	}

	u, err := h.merchants.SetUserActive(r.Context(), tn.MerchantID, me.ID, id, *req.Active)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		Action:       audit.ActionUserActiveChanged,
		ResourceType: "user",
		ResourceID:   &u.ID,
		Details:      map[string]interface{}{"active": u.Active},
		IPAddress:    r.RemoteAddr,
	})
	httpapi.OK(w, http.StatusOK, u)
}
