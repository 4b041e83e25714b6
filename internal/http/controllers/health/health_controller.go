// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"net/http"

	"github.com/keystash/keystash/internal/http/helpers"
	"github.com/keystash/keystash/internal/observability/logger"
)

// Pinger is implemented by storage backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Controller struct {
	store Pinger // nil for the memory driver
}

func NewController(store Pinger) *Controller {
	return &Controller{store: store}
}

func (c *Controller) Healthz(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	if c.store != nil {
		if err := c.store.Ping(r.Context()); err != nil {
			logger.From(r.Context()).Warn("readiness probe failed", logger.Err(err))
			helpers.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "storage unavailable"})
			return
		}
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
