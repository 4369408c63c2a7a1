// api/controllers/health.go
package controllers

import (
	"net/http"

	"github.com/sportsfesthq/sportsfest-backend/api/responses"
	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SportsFest-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the database and cache answer. A nil
// cache is skipped so the API can run without redis in tests.
func HealthReady(cfg *config.Config, store *db.Client, cache *redis.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SportsFest-Env", cfg.App.Env)
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
