package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mailit/tracking-gateway/internal/config"
	"github.com/mailit/tracking-gateway/internal/handler"
	"github.com/mailit/tracking-gateway/internal/middleware"
	"github.com/mailit/tracking-gateway/internal/ratelimit"
	"github.com/mailit/tracking-gateway/internal/repository"
	"github.com/mailit/tracking-gateway/internal/service"
	"github.com/mailit/tracking-gateway/internal/storage"
	"github.com/mailit/tracking-gateway/internal/upstream"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	redis      *storage.RedisClient
	postgres   *storage.Postgres
	limiter    *ratelimit.Limiter
	requestLog *middleware.RequestLogger

	authService *service.AuthService

	trackingHandler *handler.TrackingHandler
	adminHandler    *handler.AdminHandler
	systemHandler   *handler.SystemHandler

	adminService *service.AdminService

	httpServer *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	tenantRepo := repository.NewTenantRepository(postgres)
	trackingRepo := repository.NewTrackingRepository(postgres)
	adminRepo := repository.NewAdminRepository(postgres)
	requestLogRepo := repository.NewRequestLogRepository(postgres)

	client := upstream.NewClient(upstream.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		APIKey:            cfg.Upstream.APIKey,
		Timeout:           cfg.Upstream.Timeout(),
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
	})

	limiter := ratelimit.NewLimiter()

	authService := service.NewAuthService(tenantRepo, redis)
	trackingService := service.NewTrackingService(trackingRepo, client)
	tenantService := service.NewTenantService(tenantRepo, authService, limiter)
	adminService := service.NewAdminService(adminRepo, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL())

	s := &Server{
		router:          router,
		config:          cfg,
		redis:           redis,
		postgres:        postgres,
		limiter:         limiter,
		requestLog:      middleware.NewRequestLogger(requestLogRepo),
		authService:     authService,
		adminService:    adminService,
		trackingHandler: handler.NewTrackingHandler(trackingService, limiter),
		adminHandler:    handler.NewAdminHandler(adminService, tenantService, requestLogRepo),
		systemHandler:   handler.NewSystemHandler(postgres, redis, client),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(s.requestLog.Middleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.systemHandler.Health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(s.authService))
	{
		// Batch create checks batch size and quota in the handler, after
		// parsing the body; everything else goes through the quota
		// middleware.
		api.POST("/trackings", s.trackingHandler.CreateBatch)

		quota := api.Group("")
		quota.Use(middleware.QuotaLimit(s.limiter))
		{
			quota.GET("/trackings", s.trackingHandler.List)
			quota.GET("/trackings/:trackingId", s.trackingHandler.Get)
			quota.DELETE("/trackings/:trackingId", s.trackingHandler.Delete)
			quota.POST("/trackings/batch-get", s.trackingHandler.BatchGet)
			quota.POST("/couriers/detect", s.trackingHandler.DetectCourier)
		}
	}

	admin := s.router.Group("/api/admin")
	{
		admin.POST("/register", s.adminHandler.Register)
		admin.POST("/login", s.adminHandler.Login)

		authed := admin.Group("")
		authed.Use(middleware.AdminAuth(s.adminService))
		{
			authed.POST("/tenants", s.adminHandler.CreateTenant)
			authed.GET("/tenants", s.adminHandler.ListTenants)
			authed.GET("/tenants/:tenantId", s.adminHandler.GetTenant)
			authed.POST("/tenants/:tenantId/rotate-key", s.adminHandler.RotateKey)
			authed.POST("/tenants/:tenantId/revoke-key", s.adminHandler.RevokeKey)
			authed.PATCH("/tenants/:tenantId/plan", s.adminHandler.UpdatePlan)
			authed.POST("/tenants/:tenantId/reset-quota", s.adminHandler.ResetQuota)
			authed.GET("/usage", s.adminHandler.Usage)
		}
	}
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)
	s.requestLog.Close()
	return err
}
