package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront.dev/internal/audit"
	"storefront.dev/internal/ids"
	"storefront.dev/internal/obs"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	routeIDKey      = "route_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := ids.Sanitize(c.GetHeader(requestIDHeader))
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Request.Header.Set(requestIDHeader, rid)
		c.Request = c.Request.WithContext(audit.WithRequestID(c.Request.Context(), rid))
	}
}

// preLogFilter logs the inbound request before routing.
func preLogFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := obs.Logger().WithContext(c.Request.Context())
		if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			log.WithFields(logrus.Fields{
				"request_id": c.GetString(requestIDKey),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"headers":    redact(c.Request.Header),
			}).Debug("gateway_request")
		}
	}
}

// postLogFilter logs the outcome once the rest of the chain has run.
func postLogFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"request_id":  c.GetString(requestIDKey),
			"route":       c.GetString(routeIDKey),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_ip":   c.ClientIP(),
		}
		log := obs.Logger().WithContext(c.Request.Context())
		if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			fields["response_headers"] = redact(c.Writer.Header())
		}
		entry := log.WithFields(fields)
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("gateway_response")
			return
		}
		entry.Info("gateway_response")
	}
}

func redact(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{"Cookie", "Set-Cookie", "Authorization"} {
		if out.Get(k) != "" {
			out.Set(k, "[redacted]")
		}
	}
	return out
}

func writeJSONError(w http.ResponseWriter, status int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(newErrorBody(status, message, requestID))
}
