package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/rental"
)

func (h *RentalHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	f := rental.ProductFilter{Search: r.URL.Query().Get("search")}
	if f.OutletID, err = optionalID(r, "outlet_id"); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	products, err := h.svc.ListProducts(r.Context(), db, access(r, tn), f)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, products)
}

func (h *RentalHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	p, err := h.svc.GetProduct(r.Context(), db, access(r, tn), id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, p)
}

func (h *RentalHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	tn, db, err := tenantCall(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in rental.ProductInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	p, err := h.svc.CreateProduct(r.Context(), db, access(r, tn), in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusCreated, p)
}

func (h *RentalHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var in rental.ProductInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	p, err := h.svc.UpdateProduct(r.Context(), db, access(r, tn), id, in)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, http.StatusOK, p)
}

func (h *RentalHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	tn, db, id, err := h.target(r)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	if err := h.svc.DeleteProduct(r.Context(), db, access(r, tn), id); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OKMessage(w, http.StatusOK, map[string]string{"id": id.String()}, "product deleted")
}
