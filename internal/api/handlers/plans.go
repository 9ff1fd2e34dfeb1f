package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
)

type PlanHandler struct {
	plans    *plan.Service
	auditSvc *audit.Service
}

func NewPlanHandler(plans *plan.Service, auditSvc *audit.Service) *PlanHandler {
	return &PlanHandler{plans: plans, auditSvc: auditSvc}
}

// List shows the active catalogue.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), true)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, plans)
}

// ListAll includes retired plans.
func (h *PlanHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), false)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, plans)
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	p, err := h.plans.Get(r.Context(), id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if !p.Active {
		httpapi.Error(w, r, plan.ErrNotFound)
		return
	}
	httpapi.OK(w, http.StatusOK, p)
}

func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in plan.Input
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	p, err := h.plans.Create(r.Context(), in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		Action:       audit.ActionPlanSaved,
		ResourceType: "plan",
		ResourceID:   &p.ID,
		Details:      map[string]interface{}{"code": p.Code, "created": true},
		IPAddress:    r.RemoteAddr,
	})
	httpapi.OK(w, http.StatusCreated, p)
}

func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in plan.Input
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	p, err := h.plans.Update(r.Context(), id, in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		Action:       audit.ActionPlanSaved,
		ResourceType: "plan",
		ResourceID:   &p.ID,
		Details:      map[string]interface{}{"code": p.Code},
		IPAddress:    r.RemoteAddr,
	})
	httpapi.OK(w, http.StatusOK, p)
}
