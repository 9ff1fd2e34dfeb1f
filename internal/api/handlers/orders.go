package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/rental"
)

func (h *RentalHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	f := rental.OrderFilter{Status: models.OrderStatus(r.URL.Query().Get("status"))}
	f.Limit, f.Offset = httpapi.Page(r)
	if f.OutletID, err = optionalID(r, "outlet_id"); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), db, access(r, tn), f)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, orders)
}

func (h *RentalHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	o, err := h.svc.GetOrder(r.Context(), db, access(r, tn), id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, o)
}

func (h *RentalHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in rental.OrderInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	o, err := h.svc.CreateOrder(r.Context(), db, access(r, tn), in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusCreated, o)
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,oneof=pending confirmed active returned cancelled"`
}

func (h *RentalHandler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var req orderStatusRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	o, err := h.svc.TransitionOrder(r.Context(), db, access(r, tn), id, req.Status)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, o)
}
