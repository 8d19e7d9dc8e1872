package importer

import (
	"context"
	"io"
	"mime"
	"net/http"

	"github.com/noah-isme/invoice-manager/internal/common"
)

// Handler exposes the CSV import endpoints. The body is either the raw CSV
// or a multipart form with a "file" part.
type Handler struct {
	Importer *Importer
}

// Customers handles POST /api/v1/import/customers.
func (h *Handler) Customers(w http.ResponseWriter, r *http.Request) {
	if h.Importer == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "importer not configured", nil)
		return
	}
	h.run(w, r, h.Importer.ImportCustomers)
}

// Invoices handles POST /api/v1/import/invoices.
func (h *Handler) Invoices(w http.ResponseWriter, r *http.Request) {
	if h.Importer == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "importer not configured", nil)
		return
	}
	h.run(w, r, h.Importer.ImportInvoices)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, fn func(context.Context, io.Reader) (Result, error)) {
	src, closeFn, err := csvBody(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	defer closeFn()
	res, err := fn(r.Context(), src)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

func csvBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, common.Validation("multipart upload must include a file part")
	}
	return file, func() { _ = file.Close() }, nil
}
