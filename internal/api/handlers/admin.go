package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

// TenantCache drops cached state held for a subdomain.
type TenantCache interface {
	Invalidate(ctx context.Context, subdomain string)
}

// PoolForgetter closes the data-store pool held for a subdomain.
type PoolForgetter interface {
	Forget(subdomain string)
}

// AdminJobs queues operator-triggered background work.
type AdminJobs interface {
	EnqueueTenantReprovision(ctx context.Context, tenantID uuid.UUID) error
	EnqueueExpireTrials(ctx context.Context) error
}

type AdminHandler struct {
	tenants  *tenant.Directory
	cache    TenantCache
	pools    PoolForgetter
	jobs     AdminJobs
	auditSvc *audit.Service
}

func NewAdminHandler(tenants *tenant.Directory, cache TenantCache, pools PoolForgetter, jobs AdminJobs, auditSvc *audit.Service) *AdminHandler {
	return &AdminHandler{tenants: tenants, cache: cache, pools: pools, jobs: jobs, auditSvc: auditSvc}
}

func (h *AdminHandler) Tenants(w http.ResponseWriter, r *http.Request) {
	status := models.TenantStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httpapi.Error(w, r, tenant.ErrInvalidStatus)
		return
	}
	limit, offset := httpapi.Page(r)

	list, err := h.tenants.List(r.Context(), status, limit, offset)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	infos := make([]models.TenantInfo, 0, len(list))
	for i := range list {
		infos = append(infos, list[i].Info())
	}
	httpapi.OK(w, http.StatusOK, infos)
}

type tenantStatusRequest struct {
	Status models.TenantStatus `json:"status" validate:"required,oneof=active suspended cancelled"`
}

// SetTenantStatus suspends, reactivates or cancels a tenant. Cached
// resolution and any open pool are dropped so the change applies at once.
func (h *AdminHandler) SetTenantStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var req tenantStatusRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	t, err := h.tenants.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	if h.cache != nil {
		h.cache.Invalidate(r.Context(), t.Subdomain)
	}
	if h.pools != nil && t.Status != models.TenantActive {
		h.pools.Forget(t.Subdomain)
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		TenantID:     &t.ID,
		Action:       audit.ActionTenantStatusChanged,
		ResourceType: "tenant",
		ResourceID:   &t.ID,
		Details:      map[string]interface{}{"status": t.Status},
		IPAddress:    r.RemoteAddr,
	})
	httpapi.OK(w, http.StatusOK, t.Info())
}

// Provision queues creation of a tenant's own database again, for tenants
// whose registration-time task never ran to completion.
func (h *AdminHandler) Provision(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	t, err := h.tenants.GetByID(r.Context(), id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if t.DatabaseURL == "" {
		httpapi.Error(w, r, apperr.Conflict("SHARED_STORE", "tenant uses the shared store and has nothing to provision"))
		return
	}
	if h.jobs == nil {
		httpapi.Error(w, r, apperr.Unavailable("QUEUE_UNAVAILABLE", "job queue is not configured", nil))
		return
	}
	if err := h.jobs.EnqueueTenantReprovision(r.Context(), t.ID); err != nil {
		httpapi.Error(w, r, apperr.Unavailable("QUEUE_UNAVAILABLE", "could not queue provisioning", err))
		return
	}

	h.auditSvc.Record(r.Context(), audit.LogEntry{
		TenantID:     &t.ID,
		Action:       audit.ActionTenantProvisionQueued,
		ResourceType: "tenant",
		ResourceID:   &t.ID,
		IPAddress:    r.RemoteAddr,
	})
	httpapi.OKMessage(w, http.StatusAccepted, t.Info(), "provisioning queued")
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{Action: r.URL.Query().Get("action")}
	q.Limit, q.Offset = httpapi.Page(r)

	var err error
	if q.StartDate, err = queryTime(r, "start_date"); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if q.EndDate, err = queryTime(r, "end_date"); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if s := r.URL.Query().Get("tenant_id"); s != "" {
		id, err := httpapi.ParseID(s, "tenant_id")
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		q.TenantID = &id
	}

	logs, err := h.auditSvc.List(r.Context(), q)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, logs)
}

// ExpireTrials queues the trial sweep now instead of waiting for the schedule.
func (h *AdminHandler) ExpireTrials(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		httpapi.Error(w, r, apperr.Unavailable("QUEUE_UNAVAILABLE", "job queue is not configured", nil))
		return
	}
	if err := h.jobs.EnqueueExpireTrials(r.Context()); err != nil {
		httpapi.Error(w, r, apperr.Unavailable("QUEUE_UNAVAILABLE", "could not queue trial sweep", err))
		return
	}
	httpapi.OKMessage(w, http.StatusAccepted, nil, "trial sweep queued")
}

func (h *AdminHandler) PlanVariants(w http.ResponseWriter, r *http.Request) {
	httpapi.Error(w, r, apperr.NotImplemented("plan variants"))
}
