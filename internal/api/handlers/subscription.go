package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
	"github.com/nikhilbhutani/rentalshop/internal/subscription"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

type SubscriptionHandler struct {
	subs     *subscription.Service
	enforcer *plan.Enforcer
	auditSvc *audit.Service
}

func NewSubscriptionHandler(subs *subscription.Service, enforcer *plan.Enforcer, auditSvc *audit.Service) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, enforcer: enforcer, auditSvc: auditSvc}
}

type subscriptionResponse struct {
	Subscription *models.Subscription  `json:"subscription"`
	Standing     subscription.Standing `json:"standing"`
}

func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	tn := tenant.FromContext(r.Context())
	if tn == nil {
		httpapi.Error(w, r, tenant.ErrNotFound)
		return
	}

	standing, sub, err := h.subs.Standing(r.Context(), tn.MerchantID)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if sub == nil {
		httpapi.Error(w, r, subscription.ErrNotFound)
		return
	}
	httpapi.OK(w, http.StatusOK, subscriptionResponse{Subscription: sub, Standing: standing})
}

// Usage reports live counts against the plan ceilings.
func (h *SubscriptionHandler) Usage(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	usage, err := h.enforcer.Usage(r.Context(), db, tn.MerchantID)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, usage)
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tn := tenant.FromContext(r.Context())
	if tn == nil {
		httpapi.Error(w, r, tenant.ErrNotFound)
		return
	}

	sub, err := h.subs.Cancel(r.Context(), tn.MerchantID)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		Action:       audit.ActionSubscriptionCancelled,
		ResourceType: "subscription",
		ResourceID:   &sub.ID,
		IPAddress:    r.RemoteAddr,
	})
	httpapi.OKMessage(w, http.StatusOK, sub, "subscription cancelled")
}

type extendRequest struct {
	Days int `json:"days" validate:"required,gte=1,lte=3650"`
}

// Extend lengthens a trial or paid period on behalf of a merchant.
func (h *SubscriptionHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var req extendRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	sub, err := h.subs.Extend(r.Context(), id, req.Days)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		Action:       audit.ActionSubscriptionExtended,
		ResourceType: "subscription",
		ResourceID:   &sub.ID,
		Details:      map[string]interface{}{"days": req.Days, "merchant_id": sub.MerchantID},
		IPAddress:    r.RemoteAddr,
	})
	httpapi.OK(w, http.StatusOK, sub)
}
