package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailtoys/internal/handler"
	"mailtoys/pkg/mq"
	"mailtoys/pkg/trace"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Webhook   *handler.WebhookHandler
	Events    *handler.EventsHandler
	Token     *handler.TokenHandler
	Dashboard *handler.DashboardHandler
	Tasks     *handler.TaskHandler
	Graph     *handler.GraphHandler
}

func NewRouter(h Handlers, logger *zap.Logger, db *pgxpool.Pool, publisher *mq.Publisher) *gin.Engine {
	r := gin.Default()

	// Accept an upstream trace id or mint one, so request logs and the
	// webhook pipeline share a trace_id field.
	r.Use(func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	})

	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	})

	// The dashboard runs on its own dev origin.
	r.Use(corsMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if publisher != nil && !publisher.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Graph webhook callback and the delivery log
	r.POST("/webhook", h.Webhook.Handle)
	r.GET("/notifications", h.Webhook.ListNotifications)

	api := r.Group("/api")
	{
		// Dashboard event stream
		api.GET("/events", h.Events.Stream)

		api.POST("/update-token", h.Token.Update)
		api.GET("/token", h.Token.Info)

		api.GET("/stats/:userEmail", h.Dashboard.Stats)
		api.GET("/pending/:userEmail", h.Dashboard.Pending)
		api.GET("/emails/:userEmail", h.Dashboard.RecentEmails)
		api.GET("/email/:emailId", h.Dashboard.EmailDetails)
		api.PATCH("/detection/:detectionId/status", h.Dashboard.UpdateDetectionStatus)
		api.DELETE("/detection/:detectionId", h.Dashboard.DeleteDetection)
		api.POST("/action", h.Dashboard.AddAction)
		api.PATCH("/action/:actionId/result", h.Dashboard.UpdateActionResult)
		api.POST("/clear-db", h.Dashboard.ClearDB)
		api.POST("/test-notification", h.Dashboard.TestNotification)

		api.GET("/tasks", h.Tasks.List)
		api.POST("/tasks", h.Tasks.Create)
		api.GET("/tasks/stats", h.Tasks.Stats)
		api.POST("/tasks/bulk", h.Tasks.Bulk)
		api.PATCH("/tasks/:id", h.Tasks.Update)
		api.DELETE("/tasks/:id", h.Tasks.Delete)
		api.POST("/tasks/:id/complete", h.Tasks.Complete)
		api.POST("/tasks/:id/snooze", h.Tasks.Snooze)
		api.POST("/tasks/:id/restore", h.Tasks.Restore)

		api.POST("/send-email", h.Graph.SendEmail)
		api.GET("/subscriptions", h.Graph.ListSubscriptions)
		api.POST("/subscriptions", h.Graph.CreateSubscription)
		api.DELETE("/subscriptions/:id", h.Graph.DeleteSubscription)
		api.POST("/simulate", h.Graph.Simulate)
	}

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
