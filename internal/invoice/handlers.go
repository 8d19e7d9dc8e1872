package invoice

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/invoice-manager/internal/common"
)

// Handler exposes invoice endpoints.
type Handler struct {
	Service *Service
}

func (h *Handler) configured(w http.ResponseWriter) bool {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "invoice service not configured", nil)
		return false
	}
	return true
}

// List handles GET /api/v1/invoices?status=&customer_id=&page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	q := r.URL.Query()
	var customerID *int64
	if raw := q.Get("customer_id"); raw != "" {
		id, err := common.PathInt64(raw, "customer_id")
		if err != nil {
			common.WriteError(w, err)
			return
		}
		customerID = &id
	}
	page, perPage := common.ParsePagination(r, 50)
	items, total, err := h.Service.List(r.Context(), ListParams{
		Status:     q.Get("status"),
		CustomerID: customerID,
		Limit:      perPage,
		Offset:     common.Offset(page, perPage),
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, common.ListBody{
		Data:       items,
		Pagination: common.NewPagination(page, perPage, total),
	})
}

// Create handles POST /api/v1/invoices.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Service.Create(r.Context(), in, SourceAPI)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/invoices/"+strconv.FormatInt(view.ID, 10))
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Get handles GET /api/v1/invoices/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	id, err := common.PathInt64(chi.URLParam(r, "id"), "invoice id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// PDF handles GET /api/v1/invoices/{id}/pdf.
func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	id, err := common.PathInt64(chi.URLParam(r, "id"), "invoice id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	doc, view, err := h.Service.PDF(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "invoice-"+view.InvoiceNumber+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// Update handles PUT /api/v1/invoices/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	id, err := common.PathInt64(chi.URLParam(r, "id"), "invoice id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in UpdateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Delete handles DELETE /api/v1/invoices/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	id, err := common.PathInt64(chi.URLParam(r, "id"), "invoice id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddPayment handles POST /api/v1/invoices/{id}/payments.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	id, err := common.PathInt64(chi.URLParam(r, "id"), "invoice id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in PaymentInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	view, payment, err := h.Service.AddPayment(r.Context(), id, in, SourceAPI)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view, "payment": payment})
}

// DeletePayment handles DELETE /api/v1/invoices/{id}/payments/{paymentID}.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	id, err := common.PathInt64(chi.URLParam(r, "id"), "invoice id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	paymentID, err := common.PathInt64(chi.URLParam(r, "paymentID"), "payment id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Service.DeletePayment(r.Context(), id, paymentID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}
