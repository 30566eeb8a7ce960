package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/taskpad/internal/app"
	"github.com/charlesng35/taskpad/internal/handlers"
	"github.com/charlesng35/taskpad/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, store handlers.Pinger, readiness *monitoring.Readiness) {
	health := handlers.Health(store)
	r.GET("/health", health)
	r.GET("/api/health", health)
	r.GET("/api/health/ready", handlers.Readiness(readiness))

	if !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
