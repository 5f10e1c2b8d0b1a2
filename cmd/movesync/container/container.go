package container

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/cmd/movesync/middleware"
	"github.com/shuttleops/movesync/cmd/movesync/service"
	"github.com/shuttleops/movesync/common/bootstrap"
	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/lock"
	"github.com/shuttleops/movesync/common/moveindex"
	"github.com/shuttleops/movesync/common/movelog"
	"github.com/shuttleops/movesync/common/ratelimit"
	rediscommon "github.com/shuttleops/movesync/common/redis"
	"github.com/shuttleops/movesync/common/repository"
)

// Stream entries kept for downstream consumers
const eventStreamMaxLen = 100000

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Clients
	Sheet    *clients.SheetClient
	Carriers *clients.CarrierClient
	MoveLog  *movelog.Log

	// Per-actor limits, nil when disabled or without Redis
	RateLimiter    *ratelimit.RateLimiter
	RefreshPolicy  ratelimit.Policy
	MutationPolicy ratelimit.Policy

	// Repositories
	OpenMoveRepo      *repository.OpenMoveRepository
	CompletedMoveRepo *repository.CompletedMoveRepository
	MoveLogRepo       *repository.MoveLogRepository

	// Services
	Mirror     *service.Mirror
	Engine     *service.Engine
	Board      *service.Board
	Reconciler *service.Reconciler
}

// Limits returns the rate limit middleware for p, or none when limiting is off
func (c *Container) Limits(p ratelimit.Policy) []echo.MiddlewareFunc {
	if c.RateLimiter == nil {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.RateLimit(c.RateLimiter, p, c.Components.Logger)}
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	filter, err := moveindex.CompileFilter(cfg.Engine.CandidateFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid candidate filter: %w", err)
	}

	// Clients
	sheet := clients.NewSheetClient(cfg.Sheet.BaseURL, cfg.Sheet.Token, cfg.Sheet.Timeout, log, components.Metrics)
	moveLog := movelog.New(sheet, cfg.Sheet.SheetID, cfg.Sheet.Columns)
	directory := clients.NewCarrierDirectory(cfg.Carriers.Endpoints, cfg.Carriers.DriverPrefixes)
	carriers := clients.NewCarrierClient(directory, cfg.Carriers.Timeout, log, components.Metrics)

	// Repositories
	openRepo := repository.NewOpenMoveRepository(components.DB)
	completedRepo := repository.NewCompletedMoveRepository(components.DB)
	moveLogRepo := repository.NewMoveLogRepository(components.DB)

	// Lock backend and transition stream
	var locker lock.Locker
	var events service.EventPublisher
	switch cfg.Engine.LockBackend {
	case "redis":
		if components.Redis == nil {
			return nil, fmt.Errorf("redis lock backend selected but redis is not connected")
		}
		locker = lock.NewRedisLocker(components.Redis.GetUnderlying(), "movesync:lock:", cfg.Engine.LockTTL)
	default:
		locker = lock.NewLocalLocker(cfg.Engine.LockTTL)
	}
	if components.Redis != nil && cfg.Engine.EventStream != "" {
		events = rediscommon.NewStreamPublisher(components.Redis, cfg.Engine.EventStream, eventStreamMaxLen)
	}

	var limiter *ratelimit.RateLimiter
	if components.Redis != nil && cfg.RateLimit.Enabled {
		limiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), log)
	}

	// Services (bottom-up: dependencies first)
	mirror := service.NewMirror(moveLog, log, components.Metrics)
	engine := service.NewEngine(service.EngineDeps{
		Mirror:    mirror,
		Log:       moveLog,
		Carriers:  carriers,
		Open:      openRepo,
		Completed: completedRepo,
		Audit:     moveLogRepo,
		Locker:    locker,
		Events:    events,
		Logger:    log,
		Metrics:   components.Metrics,
		Locations: cfg.Yard.Locations,
		Filter:    filter,
	})

	log.Info("service container ready",
		"lock_backend", cfg.Engine.LockBackend,
		"event_stream", events != nil,
		"rate_limit", limiter != nil,
		"carriers", len(cfg.Carriers.Endpoints),
		"locations", len(cfg.Yard.Locations),
		"candidate_filter", filter != nil)

	return &Container{
		Components:        components,
		Sheet:             sheet,
		Carriers:          carriers,
		MoveLog:           moveLog,
		RateLimiter:       limiter,
		RefreshPolicy:     ratelimit.DefaultRefreshPolicy.WithLimit(cfg.RateLimit.RefreshPerMinute),
		MutationPolicy:    ratelimit.DefaultMutationPolicy.WithLimit(cfg.RateLimit.MutationsPerMinute),
		OpenMoveRepo:      openRepo,
		CompletedMoveRepo: completedRepo,
		MoveLogRepo:       moveLogRepo,
		Mirror:            mirror,
		Engine:            engine,
		Board:             service.NewBoard(engine),
		Reconciler:        service.NewReconciler(engine),
	}, nil
}
