package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/taskiq-ai/taskiq-backend/api/responses"
	"github.com/taskiq-ai/taskiq-backend/pkg/config"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const readyCheckTimeout = 3 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TaskIQ-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the hard dependencies answer. A nil
// pinger means the deployment runs without that dependency and is skipped.
func HealthReady(cfg *config.Config, db, rdb pinger, logg *logger.Logger) http.HandlerFunc {
	checks := []struct {
		name string
		p    pinger
	}{
		{"postgres", db},
		{"redis", rdb},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TaskIQ-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		for _, check := range checks {
			if check.p == nil {
				continue
			}
			if err := check.p.Ping(ctx); err != nil {
				wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" unavailable")
				responses.WriteError(r.Context(), logg, w, wrapped)
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
