package audit

import (
	"net/http"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/admin/audit-logs, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	rows, err := h.Store.ListAuditLogs(r.Context(), store.ListAuditLogsParams{
		Limit:  int32(perPage),
		Offset: int32(common.Offset(page, perPage)),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}
