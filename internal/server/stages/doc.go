// Package stages holds the cross-cutting pipeline stages of the HTTP
// server: access logging, Prometheus metrics and OpenTelemetry tracing.
package stages

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routeLabel returns the matched chi pattern ("/api/users/{id}") so labels
// stay bounded. Unrouted requests fall back to a fixed value.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusOf treats "nothing written" as the implicit 200 net/http sends.
func statusOf(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}
