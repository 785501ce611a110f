package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/config"
	memberservice "github.com/launchkitlabs/launchkit/internal/member/service"
	"github.com/launchkitlabs/launchkit/internal/observability"
	"github.com/launchkitlabs/launchkit/internal/payment/webhook"
	"github.com/launchkitlabs/launchkit/internal/scheduler"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	config config.Config
	log    *zap.Logger
	engine *gin.Engine
	db     *gorm.DB

	subscriptionSvc subscriptiondomain.Service
	memberSvc       *memberservice.Service
	webhookSvc      *webhook.Service
	sched           *scheduler.Scheduler
	registry        *prometheus.Registry
}

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Engine *gin.Engine
	DB     *gorm.DB

	SubscriptionSvc subscriptiondomain.Service
	MemberSvc       *memberservice.Service
	WebhookSvc      *webhook.Service
	Scheduler       *scheduler.Scheduler
	Registry        *prometheus.Registry
}

func NewEngine(cfg config.Config, log *zap.Logger, tel *observability.Telemetry) *gin.Engine {
	if cfg.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(traceRequests(tel))
	engine.Use(requestLogger(log))
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": gin.H{"code": "method_not_allowed"}})
	})
	return engine
}

func NewServer(p Params) *Server {
	return &Server{
		config: p.Cfg,
		log:    p.Log.Named("server"),
		engine: p.Engine,
		db:     p.DB,

		subscriptionSvc: p.SubscriptionSvc,
		memberSvc:       p.MemberSvc,
		webhookSvc:      p.WebhookSvc,
		sched:           p.Scheduler,
		registry:        p.Registry,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.POST("/webhooks/payment", s.IngestPaymentWebhook)

	api := s.engine.Group("/api")
	{
		org := api.Group("/organizations/:org_id")
		org.GET("/subscription", s.GetSubscription)
		org.GET("/subscription/stats", s.GetSubscriptionStats)
		org.GET("/subscription/access", s.EvaluateAccess)
		org.GET("/billing-events", s.ListBillingEvents)
		org.POST("/seats/add", s.AddSeats)
		org.POST("/seats/remove", s.RemoveSeats)
		org.DELETE("/pending-downgrade", s.ClearPendingDowngrade)
		org.POST("/members", s.CreateMember)
		org.GET("/members", s.ListMembers)

		api.POST("/members/:id/deactivate", s.DeactivateMember)
		api.POST("/members/:id/reactivate", s.ReactivateMember)
	}

	internal := s.engine.Group("/internal")
	internal.POST("/jobs/grace-period-sweep", s.TriggerGracePeriodSweep)

	s.engine.GET("/healthz", s.Healthz)
	// The default gatherer carries the runtime and gorm pool collectors.
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		prometheus.Gatherers{s.registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{})))
}

func RunHTTP(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              s.config.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	logger := log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString("request_id")),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// requestID echoes an inbound correlation id or mints one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func traceRequests(tel *observability.Telemetry) gin.HandlerFunc {
	requests, _ := tel.Meter.Int64Counter("http.server.requests")
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tel.Tracer.Start(c.Request.Context(), c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.request.method", c.Request.Method),
			attribute.Int("http.response.status_code", status))
		span.End()
		requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status)))
	}
}
