package handlers

import (
	"net/http"

	"github.com/upb/taskboard/app"
	"github.com/upb/taskboard/utils"
	"go.uber.org/zap"
)

// HealthCheck reports process liveness
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, map[string]string{"status": "ok"})
	}
}

// ReadinessCheck reports whether the service can reach its database
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.DB == nil {
			_ = utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		if err := deps.DB.HealthCheck(r.Context()); err != nil {
			deps.Logger.Warn("readiness check failed", zap.Error(err))
			_ = utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		_ = utils.WriteOK(w, map[string]string{"status": "ready"})
	}
}
