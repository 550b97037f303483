package server

import (
	"context"
	"net/http"
	"time"

	addondomain "github.com/mesaops/mesa/internal/addon/domain"
	auditdomain "github.com/mesaops/mesa/internal/audit/domain"
	"github.com/mesaops/mesa/internal/config"
	"github.com/mesaops/mesa/internal/notify"
	"github.com/mesaops/mesa/internal/observability"
	obsmiddleware "github.com/mesaops/mesa/internal/observability/logger"
	obsmetrics "github.com/mesaops/mesa/internal/observability/metrics"
	obstracing "github.com/mesaops/mesa/internal/observability/tracing"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(BranchContext())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	addonSvc addondomain.Service
	auditSvc auditdomain.Service
	notifier *notify.Center
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	AddonSvc addondomain.Service
	AuditSvc auditdomain.Service
	Notifier *notify.Center `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		addonSvc: p.AddonSvc,
		auditSvc: p.AuditSvc,
		notifier: p.Notifier,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api/v1")

	hosts := api.Group("/branch-products/:hostId/addons")
	hosts.GET("", s.GetWorkingView)
	hosts.POST("", s.AssignAddon)
	hosts.DELETE("/:assignmentId", s.UnassignAddon)
	hosts.PATCH("/:addonProductId/draft", s.EditDraftField)
	hosts.POST("/batch", s.BatchSaveAddons)
	hosts.PUT("/reorder", s.ReorderAddons)
	hosts.GET("/grouped", s.GetGroupedAssignments)

	assignments := api.Group("/addon-assignments")
	assignments.GET("/:assignmentId", s.GetAssignment)
	assignments.PUT("/:assignmentId", s.SaveAssignment)

	api.GET("/audit-logs", s.ListAuditLogs)
	api.GET("/notifications", s.GetNotification)
	api.DELETE("/notifications", s.DismissNotification)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
