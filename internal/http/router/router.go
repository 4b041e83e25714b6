// Package router assembles the chi mux: middleware chain, OAuth2 and OIDC
// endpoints, probes and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthctrl "github.com/keystash/keystash/internal/http/controllers/health"
	oauthctrl "github.com/keystash/keystash/internal/http/controllers/oauth"
	oidcctrl "github.com/keystash/keystash/internal/http/controllers/oidc"
	"github.com/keystash/keystash/internal/http/middlewares"
)

type Deps struct {
	Authorize *oauthctrl.AuthorizeController
	Token     *oauthctrl.TokenController
	Discovery *oidcctrl.DiscoveryController
	JWKS      *oidcctrl.JWKSController
	Health    *healthctrl.Controller
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Recover)

	r.Get("/oauth/authorize", d.Authorize.Authorize)
	r.Post("/oauth/token", d.Token.Token)

	r.Get("/.well-known/openid-configuration", d.Discovery.Discovery)
	r.Get("/.well-known/jwks.json", d.JWKS.JWKS)

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
