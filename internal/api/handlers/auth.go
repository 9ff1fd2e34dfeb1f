package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/auth"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/merchant"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

type AuthHandler struct {
	merchants *merchant.Service
}

func NewAuthHandler(merchants *merchant.Service) *AuthHandler {
	return &AuthHandler{merchants: merchants}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in merchant.RegisterInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	reg, err := h.merchants.Register(r.Context(), in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	httpapi.OKMessage(w, http.StatusCreated, reg, "merchant registered")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in merchant.LoginInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	sess, err := h.merchants.Login(r.Context(), in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	httpapi.OK(w, http.StatusOK, sess)
}

type meResponse struct {
	User         *models.User       `json:"user"`
	Tenant       *models.TenantInfo `json:"tenant,omitempty"`
	Capabilities []auth.Capability  `json:"capabilities"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	if u == nil {
		httpapi.Error(w, r, apperr.Unauthorized("", "authentication required"))
		return
	}

	resp := meResponse{User: u, Capabilities: auth.Capabilities(u.Role)}
	if u.MerchantID != nil {
		t, err := h.merchants.Tenants.GetByMerchant(r.Context(), *u.MerchantID)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		info := t.Info()
		resp.Tenant = &info
	}

	httpapi.OK(w, http.StatusOK, resp)
}
