package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/propgate/propgate/internal/config"
	"github.com/propgate/propgate/internal/handler"
	"github.com/propgate/propgate/internal/middleware"
	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/pkg/logger"
	"github.com/propgate/propgate/internal/repository"
	"github.com/propgate/propgate/internal/rules"
	"github.com/propgate/propgate/internal/service"
	"github.com/propgate/propgate/internal/ws"
	"github.com/shopspring/decimal"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	// State Persistence (Postgres > Redis > Memory)
	var stateRepo service.StateRepo
	var auditRepo service.AuditRepo
	var redisClient *repository.RedisClient

	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			stateRepo = repository.NewPostgresStateRepo(db)
			auditRepo = repository.NewPostgresAuditRepo(db)
		} else {
			logger.Error("⚠️ Failed to connect to DB, trying Redis", "error", err)
		}
	}
	if stateRepo == nil && cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			stateRepo = repository.NewRedisStateRepo(redisClient, cfg.Redis.StateTTLSeconds)
			auditRepo = repository.NewRedisAuditRepo(redisClient, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if stateRepo == nil {
		stateRepo = service.NewMemoryStateStore()
	}

	// 3. Initialize Core Services
	auditSvc, err := service.NewAuditService("./logs", auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	hub := ws.NewHub()
	loader := rules.NewLoader(rules.NewMemoryCache())
	tracker := service.NewTracker(loader, stateRepo, auditSvc, hub)
	tracker.SetStaleAfter(time.Duration(cfg.Tracker.StaleAfterSeconds) * time.Second)

	// Register configured accounts and groups
	for _, a := range cfg.Accounts {
		account := model.TrackedAccount{
			ID:              a.ID,
			Name:            a.Name,
			Firm:            a.Firm,
			AccountType:     a.AccountType,
			RuleVersion:     a.RuleVersion,
			StartingBalance: decimal.NewFromFloat(a.StartingBalance),
			APIKey:          a.APIKey,
		}
		if err := tracker.Register(account); err != nil {
			log.Fatalf("Failed to register account %s: %v", a.ID, err)
		}
	}
	for _, g := range cfg.Groups {
		tracker.RegisterGroup(model.AccountGroup{ID: g.ID, Name: g.Name, AccountIDs: g.Accounts})
	}

	// Daily reset scheduler
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	scheduler := service.NewResetScheduler(tracker)
	go scheduler.Run(schedulerCtx)

	// Retention cleanup for persisted evaluations and audit events
	cleanup := service.NewCleanupScheduler(
		stateRepo,
		auditRepo,
		time.Duration(cfg.Database.CleanupIntervalMinutes)*time.Minute,
		time.Duration(cfg.Database.StateRetentionDays)*24*time.Hour,
		time.Duration(cfg.Database.AuditRetentionDays)*24*time.Hour,
	)
	go cleanup.Run(schedulerCtx)

	limiters := middleware.NewLimiterRegistry(cfg.Tracker.SnapshotRatePerSec, cfg.Tracker.SnapshotBurst)

	// 4. Initialize Handlers
	accountHandler := handler.NewAccountHandler(tracker)
	groupHandler := handler.NewGroupHandler(tracker)
	auditHandler := handler.NewAuditHandler(auditSvc)
	rulesHandler := handler.NewRulesHandler(loader)

	// 5. Setup Router
	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "propgate", "ws_clients": hub.ClientCount()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", func(c *gin.Context) {
		hub.Handle(c.Writer, c.Request)
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.RateLimitMiddleware(limiters))
	{
		v1.GET("/accounts", accountHandler.List)
		v1.POST("/accounts", accountHandler.Register)
		v1.GET("/accounts/:id", accountHandler.Get)
		v1.GET("/accounts/:id/state", accountHandler.State)
		v1.GET("/accounts/:id/history", accountHandler.History)
		v1.POST("/accounts/:id/snapshot", accountHandler.Snapshot)

		v1.GET("/groups", groupHandler.List)
		v1.POST("/groups", groupHandler.Create)
		v1.GET("/groups/:id/risk", groupHandler.Risk)

		v1.GET("/events", auditHandler.List)

		v1.GET("/firms", rulesHandler.Firms)
		v1.GET("/firms/:firm/:account_type", rulesHandler.Rules)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 PropGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stopScheduler()
	auditSvc.Close()
	if redisClient != nil {
		_ = redisClient.Client.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
