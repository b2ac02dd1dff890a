package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/209works/api-platform/internal/circuitbreaker"
	"github.com/209works/api-platform/internal/config"
	"github.com/209works/api-platform/internal/handler"
	"github.com/209works/api-platform/internal/keys"
	"github.com/209works/api-platform/internal/middleware"
	"github.com/209works/api-platform/internal/proxy"
	"github.com/209works/api-platform/internal/ratelimit"
	"github.com/209works/api-platform/internal/repository"
	"github.com/209works/api-platform/internal/service"
	"github.com/209works/api-platform/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	redis    *storage.RedisClient
	postgres *storage.Postgres
	upstream *proxy.Upstream

	apiKeyService *service.APIKeyService
	usageRecorder *service.UsageRecorder

	apiKeyHandler    *handler.APIKeyHandler
	analyticsHandler *handler.AnalyticsHandler
	webhookHandler   *handler.WebhookHandler
	authHandler      *handler.AuthHandler
	authService      *service.AuthService

	httpServer *http.Server
}

func New(cfg *config.Config, postgres *storage.Postgres, redis *storage.RedisClient) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	apiKeyRepo := repository.NewAPIKeyRepository(postgres)
	tierRepo := repository.NewTierRepository(postgres)
	usageRepo := repository.NewUsageRepository(postgres)
	webhookRepo := repository.NewWebhookRepository(postgres)
	auditRepo := repository.NewAuditRepository(postgres)
	userRepo := repository.NewUserRepository(postgres)

	limiter := ratelimit.NewTierLimiter(ratelimit.NewRedisStore(redis), cfg.RateLimit.FailOpen)

	apiKeyService := service.NewAPIKeyService(
		apiKeyRepo, tierRepo, auditRepo,
		keys.SHA256Hasher{}, cfg.ScopeTable(), limiter, redis,
	)
	usageRecorder := service.NewUsageRecorder(usageRepo, cfg.Usage.BufferSize)
	analyticsService := service.NewAnalyticsService(usageRepo, redis)
	webhookService := service.NewWebhookService(webhookRepo)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)

	var upstream *proxy.Upstream
	if cfg.Upstream.URL != "" {
		var err error
		upstream, err = proxy.New(cfg.Upstream.URL, circuitbreaker.Config{
			MaxFailures: cfg.Upstream.MaxFailures,
			Timeout:     time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("Forwarding validated traffic to %s", cfg.Upstream.URL)
	}

	s := &Server{
		router:           router,
		config:           cfg,
		redis:            redis,
		postgres:         postgres,
		upstream:         upstream,
		apiKeyService:    apiKeyService,
		usageRecorder:    usageRecorder,
		apiKeyHandler:    handler.NewAPIKeyHandler(apiKeyService),
		analyticsHandler: handler.NewAnalyticsHandler(analyticsService),
		webhookHandler:   handler.NewWebhookHandler(webhookService),
		authHandler:      handler.NewAuthHandler(authService),
		authService:      authService,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	s.router.POST("/admin/login", s.authHandler.Login)

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.authService))
	{
		admin.GET("/status", s.adminStatus)
		admin.POST("/users", s.authHandler.Register)

		admin.POST("/keys", s.apiKeyHandler.Create)
		admin.GET("/keys", s.apiKeyHandler.List)
		admin.GET("/keys/:id", s.apiKeyHandler.Get)
		admin.PATCH("/keys/:id", s.apiKeyHandler.Update)
		admin.DELETE("/keys/:id", s.apiKeyHandler.Revoke)

		admin.GET("/analytics", s.analyticsHandler.Query)
		admin.GET("/usage", s.analyticsHandler.Logs)
		admin.POST("/usage/cleanup", s.analyticsHandler.Cleanup)

		admin.POST("/webhooks", s.webhookHandler.Register)
		admin.GET("/webhooks", s.webhookHandler.List)
		admin.DELETE("/webhooks/:id", s.webhookHandler.Delete)

		admin.POST("/upstream/reset", s.resetUpstream)
	}

	// The public API surface: every request is validated, rate limited,
	// and recorded before it reaches the job-board backend.
	api := s.router.Group("/api")
	api.Use(middleware.APIKeyAuth(s.apiKeyService))
	api.Use(middleware.UsageRecorder(s.usageRecorder))
	api.Any("/*path", s.handleAPI)
}

func (s *Server) handleAPI(c *gin.Context) {
	if s.upstream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No upstream configured",
		})
		return
	}

	s.upstream.Handle(c)
}

func (s *Server) resetUpstream(c *gin.Context) {
	if s.upstream == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No upstream configured"})
		return
	}

	s.upstream.ResetBreaker()
	c.JSON(http.StatusOK, gin.H{"message": "Circuit breaker reset"})
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "api-platform",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	ctx := c.Request.Context()
	apiKeys, _ := s.apiKeyService.List(ctx)

	status := gin.H{
		"platform":  "running",
		"api_keys":  len(apiKeys),
		"uptime":    time.Since(startTime).Seconds(),
		"timestamp": time.Now().Unix(),
	}

	if s.upstream != nil {
		metrics := s.upstream.BreakerMetrics()
		status["upstream"] = gin.H{
			"state":             metrics.State.String(),
			"failure_count":     metrics.FailureCount,
			"success_count":     metrics.SuccessCount,
			"last_failure_time": metrics.LastFailureTime,
			"last_state_change": metrics.LastStateChange,
		}
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting API platform on %s", addr)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	// Flush buffered usage records before the process exits.
	s.usageRecorder.Close()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

var startTime = time.Now()
