package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sudsyhq/sudsy-backend/api/responses"
	"github.com/sudsyhq/sudsy-backend/pkg/config"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

const envHeader = "X-Sudsy-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the datastores the request path depends on.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		check := func(name string, p pinger) {
			if p == nil {
				checks[name] = "skipped"
				return
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(ctx, name+" health check failed", err)
				}
				return
			}
			checks[name] = "ok"
		}

		check("database", dbP)
		check("redis", redisP)

		if !healthy {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready"))
			return
		}
		responses.WriteSuccess(w, checks)
	}
}
