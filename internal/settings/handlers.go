package settings

import (
	"net/http"

	"github.com/noah-isme/invoice-manager/internal/common"
)

// Handler exposes settings administration.
type Handler struct {
	Service *Service
}

// Get handles GET /api/v1/admin/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings service not configured", nil)
		return
	}
	s, err := h.Service.GetSettings(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ToView(s)})
}

// Update handles PUT /api/v1/admin/settings. Omitted fields keep their value.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings service not configured", nil)
		return
	}
	var p Patch
	if err := common.DecodeJSON(r, &p); err != nil {
		common.WriteError(w, err)
		return
	}
	s, err := h.Service.Update(r.Context(), p)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ToView(s)})
}
