package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/responses"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/config"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
)

const readyProbeTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PixelMart-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness of the service's hard dependencies. Any
// failing probe flips the response to 503 so the platform stops routing here.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, redisClient pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PixelMart-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for name, probe := range map[string]pinger{"database": db, "redis": redisClient} {
			if probe == nil {
				checks[name] = "not configured"
				continue
			}
			if err := probe.Ping(ctx); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "readiness probe failed: "+name, err)
				}
				continue
			}
			checks[name] = "up"
		}

		status := http.StatusOK
		checks["status"] = "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			checks["status"] = "degraded"
		}
		responses.WriteSuccessStatus(w, status, checks)
	}
}
