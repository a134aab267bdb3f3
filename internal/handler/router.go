package handler

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/armchr/junitmig/internal/config"
	"github.com/armchr/junitmig/internal/controller"
	"github.com/armchr/junitmig/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// responseWriter wraps gin.ResponseWriter to capture the response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func SetupRouter(migrationController *controller.MigrationController, metrics *service.Metrics, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(CustomRecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(cfg.App.DebugHTTP, logger))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/migrate", migrationController.Migrate)
		v1.POST("/migrateRepository", migrationController.MigrateRepository)
		v1.GET("/cleanups", migrationController.ListCleanups)

		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "healthy",
			})
		})
	}

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	return router
}

// maxLoggedBody bounds the request and response bodies logged in debug mode.
const maxLoggedBody = 10000

// RequestIDHeader carries the id the logger middleware assigns to every request.
const RequestIDHeader = "X-Request-ID"

func truncateBody(body string) string {
	if len(body) > maxLoggedBody {
		return body[:maxLoggedBody] + "... (truncated)"
	}
	return body
}

func LoggerMiddleware(debugHTTP bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		}

		var responseBody *bytes.Buffer
		requestFields := append(fields, zap.String("client_ip", c.ClientIP()))
		if debugHTTP {
			if c.Request.Body != nil {
				requestBody, _ := io.ReadAll(c.Request.Body)
				c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
				if len(requestBody) > 0 {
					requestFields = append(requestFields, zap.String("request_body", truncateBody(string(requestBody))))
				}
			}

			responseBody = &bytes.Buffer{}
			c.Writer = &responseWriter{
				ResponseWriter: c.Writer,
				body:           responseBody,
			}
		}
		logger.Info("HTTP Request", requestFields...)

		c.Next()

		responseFields := append(fields,
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
		if responseBody != nil && responseBody.Len() > 0 {
			responseFields = append(responseFields, zap.String("response_body", truncateBody(responseBody.String())))
		}
		logger.Info("HTTP Response", responseFields...)
	}
}

func CustomRecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
