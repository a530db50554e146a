package middleware

import (
	"context"
	"strings"

	"codeduel/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader   = "X-Trace-Id"
	RequestIDHeader = "X-Request-Id"

	traceIDContextKey   = "trace_id"
	requestIDContextKey = "request_id"
)

// TraceContextMiddleware ensures trace and request ids are present in the gin context,
// the request context and the response headers. Incoming ids are preserved.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := headerOrNew(c, TraceIDHeader)
		requestID := headerOrNew(c, RequestIDHeader)

		c.Set(traceIDContextKey, traceID)
		c.Set(requestIDContextKey, requestID)

		ctx := context.WithValue(c.Request.Context(), contextkey.TraceID, traceID)
		ctx = context.WithValue(ctx, contextkey.RequestID, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(TraceIDHeader, traceID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()
	}
}

// RoomContextMiddleware copies the room id path/query parameter into the request context
// so log lines emitted below the handler carry room_id.
func RoomContextMiddleware(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := strings.TrimSpace(c.Param(param))
		if roomID == "" {
			roomID = strings.TrimSpace(c.Query(param))
		}
		if roomID != "" {
			ctx := context.WithValue(c.Request.Context(), contextkey.RoomID, roomID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func headerOrNew(c *gin.Context, name string) string {
	value := strings.TrimSpace(c.GetHeader(name))
	if value == "" {
		value = uuid.NewString()
	}
	return value
}
