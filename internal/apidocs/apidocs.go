// Package apidocs serves the OpenAPI document and a Swagger UI over it.
package apidocs

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// SpecPath is where the raw document is served.
const SpecPath = "/api-docs/openapi.json"

//go:embed openapi.json
var spec []byte

// Spec writes the embedded OpenAPI document.
func Spec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(spec)
}

// UI returns the Swagger UI handler. Mount it on /api-docs/*.
func UI() http.HandlerFunc {
	return httpSwagger.Handler(
		httpSwagger.URL(SpecPath),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	)
}
