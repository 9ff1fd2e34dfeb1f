package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/rental"
)

func (h *RentalHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	limit, offset := httpapi.Page(r)
	customers, err := h.svc.ListCustomers(r.Context(), db, access(r, tn), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, customers)
}

func (h *RentalHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	c, err := h.svc.GetCustomer(r.Context(), db, access(r, tn), id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, c)
}

func (h *RentalHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in rental.CustomerInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	c, err := h.svc.CreateCustomer(r.Context(), db, access(r, tn), in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusCreated, c)
}

func (h *RentalHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in rental.CustomerInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	c, err := h.svc.UpdateCustomer(r.Context(), db, access(r, tn), id, in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, c)
}
