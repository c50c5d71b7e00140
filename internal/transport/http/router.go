// Package httptransport assembles the public HTTP surface: middleware
// chain, protocol endpoints, and the operational endpoints.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stagepass/internal/auth"
	protocolhandler "stagepass/internal/protocol/handler"
	"stagepass/internal/ratelimit"
	"stagepass/pkg/platform/httputil"
	"stagepass/pkg/platform/middleware/metadata"
	"stagepass/pkg/platform/middleware/requestid"
	"stagepass/pkg/platform/middleware/requesttime"
)

// NewRouter wires the middleware chain and mounts the protocol endpoints.
// The directory endpoints are public; everything else sits behind bearer
// authentication and the rate limiter.
func NewRouter(protocol *protocolhandler.Handler, tokens *auth.TokenService, limits *ratelimit.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		protocol.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(tokens))
		r.Use(limits.Handler)
		protocol.Register(r)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
