package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/taskpad/internal/api"
	"github.com/charlesng35/taskpad/internal/app"
	"github.com/charlesng35/taskpad/internal/app/maintenance"
	iauth "github.com/charlesng35/taskpad/internal/auth"
	"github.com/charlesng35/taskpad/internal/cache"
	"github.com/charlesng35/taskpad/internal/middleware"
	"github.com/charlesng35/taskpad/internal/monitoring"
	"github.com/charlesng35/taskpad/internal/monitoring/checks"
	"github.com/charlesng35/taskpad/internal/services"
	"github.com/charlesng35/taskpad/pkg/mail"
	"github.com/charlesng35/taskpad/web"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	Backend    *app.Backend
	Redis      *cache.RedisStore
	Mailer     *mail.SMTPMailer
	Dispatcher *services.Dispatcher
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine
}

// bootstrapRuntime initialises the store, caches, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Backend, err = app.OpenBackend(ctx, cfg.Database, true)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	var (
		sharedCache cache.Store
		purger      maintenance.CachePurger
	)
	if stack.Backend.SQL != nil {
		dbStore := cache.NewDatabaseStore(stack.Backend.SQL)
		sharedCache = dbStore
		purger = dbStore
	}
	if stack.Redis != nil {
		sharedCache = stack.Redis
	}

	stack.Mailer, err = mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled", zap.Bool("allow_disabled", cfg.Email.AllowDisabled))
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	hasher := cfg.Auth.PasswordHasher()
	notifier := services.NewMailNotifier(stack.Mailer,
		services.WithAppName(cfg.Email.AppName),
		services.WithAllowDisabledDelivery(cfg.Email.AllowDisabled),
	)
	stack.Dispatcher = services.NewDispatcher(cfg.Email.SMTP.Timeout * 3)

	accounts, err := services.NewAccountService(
		stack.Backend.Accounts(),
		stack.Backend.Tasks(),
		hasher,
		iauth.NewOTPEngine(hasher, nil),
		jwtSvc,
		notifier,
		services.WithDispatcher(stack.Dispatcher),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise account service: %w", err)
	}

	tasks, err := services.NewTaskService(stack.Backend.Tasks(), nil)
	if err != nil {
		return nil, fmt.Errorf("initialise task service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewFromConfig(cfg, stack.Backend.Accounts(), purger)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	var rateStore middleware.RateStore
	if sharedCache != nil {
		rateStore = middleware.NewCacheRateStore(sharedCache)
	}

	readiness := monitoring.NewReadiness(0, checks.Store(stack.Backend))
	if stack.Redis != nil {
		readiness.Register(checks.Redis(stack.Redis, true))
	} else {
		readiness.Register(checks.Redis(nil, cfg.Cache.Redis.Enabled))
	}
	if stack.Cleaner != nil {
		readiness.Register(checks.Maintenance(stack.Cleaner, 0))
	}

	static, err := web.FS()
	if err != nil {
		return nil, fmt.Errorf("load frontend: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:    cfg,
		Store:     stack.Backend,
		Accounts:  accounts,
		Tasks:     tasks,
		RateStore: rateStore,
		Static:    static,
		Readiness: readiness,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown drains background email, stops maintenance and releases connections.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Dispatcher != nil {
		if err := s.Dispatcher.Wait(ctx); err != nil {
			log.Warn("background jobs still running at shutdown", zap.Error(err))
		}
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if s.Mailer != nil {
		s.Mailer.Close()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.Backend != nil {
		if err := s.Backend.Close(ctx); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}
