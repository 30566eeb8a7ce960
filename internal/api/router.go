package api

import (
	"errors"
	"io/fs"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskpad/internal/app"
	"github.com/charlesng35/taskpad/internal/handlers"
	"github.com/charlesng35/taskpad/internal/middleware"
	"github.com/charlesng35/taskpad/internal/monitoring"
	"github.com/charlesng35/taskpad/internal/monitoring/checks"
	"github.com/charlesng35/taskpad/internal/services"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Config   *app.Config
	Store    handlers.Pinger
	Accounts *services.AccountService
	Tasks    *services.TaskService
	// RateStore backs the auth rate limiter; nil keeps counters in process memory.
	RateStore middleware.RateStore
	// Static is the SPA served for non-API paths; nil disables it.
	Static fs.FS
	// Readiness backs /api/health/ready; nil probes Store only.
	Readiness *monitoring.Readiness
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.Accounts == nil {
		return nil, errors.New("account service must be provided")
	}
	if deps.Tasks == nil {
		return nil, errors.New("task service must be provided")
	}

	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	readiness := deps.Readiness
	if readiness == nil {
		readiness = monitoring.NewReadiness(0, checks.Store(deps.Store))
	}
	registerHealthRoutes(r, cfg, deps.Store, readiness)

	api := r.Group("/api")
	protected := api.Group("")
	protected.Use(middleware.Auth(deps.Accounts))

	registerAuthRoutes(api, protected, authRouteDeps{
		Handler:   handlers.NewAuthHandler(deps.Accounts),
		RateLimit: middleware.RateLimitWithStore(deps.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window),
	})
	registerTaskRoutes(protected, handlers.NewTaskHandler(deps.Tasks))

	r.NoRoute(handlers.SPA(deps.Static, middleware.NotFoundHandler))

	return r, nil
}
