package middleware

import (
	"net/http"
	"time"

	"go-file-share/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
)

// RequestID 沿用客户端传来的请求ID，没有则生成一个
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GinZapLogger() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		fields := []zap.Field{
			zap.Int("status", statusCode),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if id := c.GetString(requestIDKey); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if errorMessage != "" {
			fields = append(fields, zap.String("error", errorMessage))
		}

		// Choose log level based on status code
		switch {
		case statusCode >= http.StatusInternalServerError:
			log.Error("Request", fields...)
		case statusCode >= http.StatusBadRequest:
			log.Warn("Request", fields...)
		default:
			log.Info("Request", fields...)
		}
	}
}

// GetRequestID 返回 RequestID 中间件写入的请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
