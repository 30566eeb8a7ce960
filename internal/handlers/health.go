package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/taskpad/internal/monitoring"
	"github.com/charlesng35/taskpad/pkg/logger"
)

// Pinger is anything whose availability the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness and whether the store answers a ping.
func Health(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()

			if err := store.Ping(ctx); err != nil {
				logger.WithModule("health").Warn("store ping failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"success": false,
					"data":    gin.H{"status": "unavailable"},
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"status": "ok"},
		})
	}
}

// Readiness reports every dependency probe. Only a down dependency fails it.
func Readiness(readiness *monitoring.Readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := readiness.Evaluate(requestContext(c))

		status := http.StatusOK
		if !report.Ready() {
			status = http.StatusServiceUnavailable
			logger.WithModule("health").Warn("readiness check failed", zap.String("status", string(report.Status)))
		}
		c.JSON(status, gin.H{
			"success": report.Ready(),
			"data":    report,
		})
	}
}
