package apikey

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/invoice-manager/internal/common"
)

// Handler exposes API key administration.
type Handler struct {
	Service *Service
}

type createRequest struct {
	Name     string `json:"name" validate:"required,max=128"`
	CanRead  *bool  `json:"can_read"`
	CanWrite *bool  `json:"can_write"`
}

type toggleRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// List handles GET /api/v1/admin/api-keys.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "api key service not configured", nil)
		return
	}
	keys, err := h.Service.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": keys})
}

// Create handles POST /api/v1/admin/api-keys. The raw key appears only in
// this response.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "api key service not configured", nil)
		return
	}
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	canRead, canWrite := true, false
	if req.CanRead != nil {
		canRead = *req.CanRead
	}
	if req.CanWrite != nil {
		canWrite = *req.CanWrite
	}
	created, err := h.Service.Create(r.Context(), req.Name, canRead, canWrite)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Toggle handles PATCH /api/v1/admin/api-keys/{id} with {"active": bool}.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "api key service not configured", nil)
		return
	}
	id, err := common.PathInt64(chi.URLParam(r, "id"), "api key id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req toggleRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	key, err := h.Service.Toggle(r.Context(), id, *req.Active)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": key})
}
