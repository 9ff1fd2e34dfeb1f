package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/rental"
)

// RentalHandler serves the tenant's shop data: outlets, products,
// customers and orders.
type RentalHandler struct {
	svc *rental.Service
}

func NewRentalHandler(svc *rental.Service) *RentalHandler {
	return &RentalHandler{svc: svc}
}

func (h *RentalHandler) ListOutlets(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	outlets, err := h.svc.ListOutlets(r.Context(), db, access(r, tn))
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, outlets)
}

func (h *RentalHandler) GetOutlet(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	o, err := h.svc.GetOutlet(r.Context(), db, access(r, tn), id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, o)
}

func (h *RentalHandler) CreateOutlet(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in rental.OutletInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	o, err := h.svc.CreateOutlet(r.Context(), db, access(r, tn), in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusCreated, o)
}

func (h *RentalHandler) UpdateOutlet(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in rental.OutletInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	o, err := h.svc.UpdateOutlet(r.Context(), db, access(r, tn), id, in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, o)
}

func (h *RentalHandler) DeleteOutlet(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	if err := h.svc.DeleteOutlet(r.Context(), db, access(r, tn), id); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OKMessage(w, http.StatusOK, map[string]string{"id": id.String()}, "outlet deleted")
}

// target combines tenantCall with the {id} URL parameter.
func (h *RentalHandler) target(r *http.Request) (tn *models.Tenant, db database.DB, id uuid.UUID, err error) {
	tn, db, err = tenantCall(r)
	if err != nil {
		return nil, nil, uuid.Nil, err
	}
	id, err = httpapi.IDParam(r, "id")
	return tn, db, id, err
}

func optionalID(r *http.Request, key string) (*uuid.UUID, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	id, err := httpapi.ParseID(s, key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
