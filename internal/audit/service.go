// Package audit records who changed what through the admin and API surfaces.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/obs"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Actor kinds stored on audit rows.
const (
	ActorKindAPIKey    = "api_key"
	ActorKindUser      = "user"
	ActorKindSystem    = "system"
	ActorKindAnonymous = "anonymous"
)

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, arg store.InsertAuditLogParams) error
	ListAuditLogs(ctx context.Context, arg store.ListAuditLogsParams) ([]store.AuditLog, error)
}

// Service persists audit logs for mutating requests.
type Service struct {
	Store   Store
	Enabled bool
}

// Entry describes one audited request.
type Entry struct {
	Actor        common.Actor
	Action       string
	ResourceType string
	ResourceID   string
	Status       int
	Metadata     []byte
}

// Record persists an audit log entry when auditing is enabled.
func (s Service) Record(ctx context.Context, req *http.Request, e Entry) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	status := e.Status
	if status == 0 {
		status = http.StatusOK
	}

	return s.Store.InsertAuditLog(ctx, store.InsertAuditLogParams{
		ActorKind:    actorKind(e.Actor),
		ActorID:      optional(e.Actor.ID),
		Action:       buildAction(e.Action, req.Method, route),
		ResourceType: buildResource(e.ResourceType, route),
		ResourceID:   optional(e.ResourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        optional(route),
		Status:       int32(status),
		IP:           optional(common.ClientIP(req)),
		UserAgent:    optional(req.Header.Get("User-Agent")),
		RequestID:    optional(requestID(req)),
		Metadata:     metadata(e.Metadata, req.URL.RawQuery),
	})
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource derives invoices.payments from /api/v1/invoices/{id}/payments.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	var parts []string
	for _, seg := range strings.Split(strings.Trim(route, "/ "), "/") {
		if seg == "" || strings.HasPrefix(seg, "{") || strings.Contains(seg, "*") {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "v1" {
		parts = parts[2:]
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ".")
}

func actorKind(a common.Actor) string {
	switch a.Kind {
	case ActorKindAPIKey, ActorKindUser, ActorKindSystem:
		if a.ID != "" || a.Kind == ActorKindSystem {
			return a.Kind
		}
	}
	return ActorKindAnonymous
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func metadata(payload []byte, query string) []byte {
	if len(payload) > 0 {
		return payload
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}

func requestID(req *http.Request) string {
	if id := middleware.GetReqID(req.Context()); id != "" {
		return id
	}
	return req.Header.Get("X-Request-ID")
}
