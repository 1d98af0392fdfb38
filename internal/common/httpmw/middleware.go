// Package httpmw provides the gin middleware shared by every TaskFlow HTTP surface.
package httpmw

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/common/logger"
	"github.com/taskflow/taskflow/internal/common/tracing"
)

// Context keys set by the middleware in this package.
const (
	RequestIDKey = "request_id"
	UserIDKey    = "user_id"
	TokenKey     = "session_token"
)

// Authenticator resolves a session token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// RequestLogger logs every request once it completes.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		log.Info("Request completed",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestID),
			zap.String("user_id", c.GetString(UserIDKey)),
		)
	}
}

// ErrorHandler renders the last error attached with c.Error as
// {"error": {"code", "message"}}.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			fields := []zap.Field{
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
			}
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				log.Error("Request error", append(fields, zap.Error(appErr.Err))...)
			} else {
				log.Debug("Request rejected", fields...)
			}
			c.JSON(appErr.HTTPStatus, errorBody(appErr.Code, appErr.Message))
			return
		}

		log.Error("Internal server error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody(errors.ErrCodeInternalError, "An internal server error occurred"))
	}
}

func errorBody(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// Recovery turns a panic into a 500 response.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					errorBody(errors.ErrCodeInternalError, "An internal server error occurred"))
			}
		}()

		c.Next()
	}
}

// CORS adds CORS headers for cross-origin requests.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimit is a process-wide token bucket. A non-positive rate disables it.
func RateLimit(requestsPerSecond int) gin.HandlerFunc {
	if requestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mu       sync.Mutex
		capacity = float64(requestsPerSecond)
		tokens   = capacity
		lastTime = time.Now()
	)

	return func(c *gin.Context) {
		mu.Lock()
		now := time.Now()
		tokens += now.Sub(lastTime).Seconds() * capacity
		lastTime = now
		if tokens > capacity {
			tokens = capacity
		}

		if tokens < 1 {
			mu.Unlock()
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errorBody("RATE_LIMIT_EXCEEDED", "Too many requests, please try again later"))
			return
		}
		tokens--
		mu.Unlock()

		c.Next()
	}
}

// Tracing opens a server span per request and continues any incoming trace.
func Tracing(serviceName string) gin.HandlerFunc {
	tracer := tracing.Tracer(serviceName)
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				semconv.HTTPRoute(route),
				semconv.URLPath(c.Request.URL.Path),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// Authenticate requires a valid session. The token is read from the
// Authorization bearer header, falling back to the token query parameter
// for websocket upgrades.
func Authenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		userID, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			status := errors.GetHTTPStatus(err)
			code := errors.ErrCodeUnauthorized
			message := "authentication required"
			if appErr := errors.As(err); appErr != nil {
				code = appErr.Code
				message = appErr.Message
			}
			c.AbortWithStatusJSON(status, errorBody(code, message))
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// BearerToken extracts the session token from the request.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return c.Query("token")
}

// UserID returns the authenticated user id set by Authenticate.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
