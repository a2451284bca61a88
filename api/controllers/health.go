package controllers

import (
	"context"
	"net/http"

	"github.com/pixsoft/tienda-backend/api/responses"
	"github.com/pixsoft/tienda-backend/pkg/config"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
	"github.com/pixsoft/tienda-backend/pkg/logger"
)

// Pinger checks reachability of a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive reports process liveness.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tienda-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]any{
			"status":  "ok",
			"service": "tienda-backend",
		})
	}
}

// HealthReady reports readiness by pinging the database and cache.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tienda-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				checks["database"] = "down"
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				checks["cache"] = "down"
				healthy = false
			} else {
				checks["cache"] = "ok"
			}
		}

		if !healthy {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable")
			err = err.WithDetails(checks)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
