package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/obs"
)

// HTTPRecorder writes one audit row per mutating request once the handler
// has answered.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig overrides the derived action and resource for a route group.
// Blank fields are derived from the matched route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(r *http.Request, status int) map[string]any
}

func (h HTTPRecorder) enabled() bool { return h.Service != nil && h.Service.Enabled }

func (h HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.enabled() || !audited(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			r = r.WithContext(common.WithActorSlot(r.Context()))
			rec := obs.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)

			// chi has matched the route by now; earlier middleware could not
			// know the pattern.
			if rc := chi.RouteContext(r.Context()); rc != nil && obs.RoutePatternFromContext(r.Context()) == "" {
				if pattern := rc.RoutePattern(); pattern != "" {
					r = r.WithContext(obs.WithRoutePattern(r.Context(), pattern))
				}
			}
			h.record(r, cfg, rec.Status())
		})
	}
}

func (h HTTPRecorder) record(r *http.Request, cfg HTTPConfig, status int) {
	actor, _ := common.ActorFrom(r.Context())
	e := Entry{
		Actor:        actor,
		Action:       cfg.Action,
		ResourceType: cfg.ResourceType,
		Status:       status,
	}
	if cfg.ResourceIDParam != "" {
		e.ResourceID = chi.URLParam(r, cfg.ResourceIDParam)
	}
	if cfg.MetadataFunc != nil {
		if extra := cfg.MetadataFunc(r, status); len(extra) > 0 {
			e.Metadata, _ = json.Marshal(extra)
		}
	}
	if err := h.Service.Record(r.Context(), r, e); err != nil && h.OnError != nil {
		h.OnError(err)
	}
}

func audited(method string) bool {
	return method == http.MethodPost || method == http.MethodPut ||
		method == http.MethodPatch || method == http.MethodDelete
}
