package handlers

import (
	"io"
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/subscription"
)

const maxWebhookBytes = 64 << 10

type BillingHandler struct {
	subs     *subscription.Service
	settings *subscription.SettingsStore
	auditSvc *audit.Service
	secret   string
}

func NewBillingHandler(subs *subscription.Service, settings *subscription.SettingsStore, auditSvc *audit.Service, webhookSecret string) *BillingHandler {
	return &BillingHandler{subs: subs, settings: settings, auditSvc: auditSvc, secret: webhookSecret}
}

// Webhook applies a signed payment notification from the billing provider.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		httpapi.Error(w, r, apperr.Validation("unreadable request body"))
		return
	}

	ev, err := subscription.ParseEvent(body, h.secret, r.Header.Get(subscription.SignatureHeader))
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	sub, applied, err := h.subs.ApplyPayment(r.Context(), ev)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if !applied {
		httpapi.OKMessage(w, http.StatusOK, sub, "event already processed")
		return
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		Action:       audit.ActionPaymentApplied,
		ResourceType: "subscription",
		ResourceID:   &sub.ID,
		Details: map[string]interface{}{
			"event_id":    ev.ID,
			"type":        ev.Type,
			"amount":      ev.Amount.String(),
			"merchant_id": sub.MerchantID,
		},
		IPAddress: r.RemoteAddr,
	})
	httpapi.OK(w, http.StatusOK, sub)
}

func (h *BillingHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	bs, err := h.settings.Load(r.Context())
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, bs)
}

type settingsRequest struct {
	IntervalDays int    `json:"interval_days" validate:"required,gte=1,lte=366"`
	TrialDays    int    `json:"trial_days" validate:"gte=0,lte=365"`
	GraceDays    int    `json:"grace_days" validate:"gte=0,lte=90"`
	Currency     string `json:"currency" validate:"required,len=3"`
}

func (h *BillingHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	bs, err := h.settings.Save(r.Context(), models.BillingSettings{
		IntervalDays: req.IntervalDays,
		TrialDays:    req.TrialDays,
		GraceDays:    req.GraceDays,
		Currency:     req.Currency,
	})
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		Action:       audit.ActionSettingsChanged,
		ResourceType: "billing_settings",
		Details: map[string]interface{}{
			"interval_days": bs.IntervalDays,
			"trial_days":    bs.TrialDays,
			"grace_days":    bs.GraceDays,
			"currency":      bs.Currency,
		},
		IPAddress: r.RemoteAddr,
	})
	httpapi.OK(w, http.StatusOK, bs)
}
