package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tenantKey = "tenant_id"

var errNoTenant = errors.New("tenant not identified")

// TenantResolver extracts the storefront tenant from an inbound request.
type TenantResolver interface {
	Resolve(r *http.Request) (string, error)
}

type HeaderTenantResolver struct {
	Header string
}

func (h HeaderTenantResolver) Resolve(r *http.Request) (string, error) {
	name := h.Header
	if name == "" {
		name = "X-Tenant-ID"
	}
	id := strings.TrimSpace(r.Header.Get(name))
	if id == "" {
		return "", errNoTenant
	}
	return id, nil
}

func requireTenant(resolver TenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolver.Resolve(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		c.Set(tenantKey, id)
		c.Next()
	}
}

func tenantFrom(c *gin.Context) string {
	return c.GetString(tenantKey)
}

// LoggerMiddleware logs one line per request. The query string is left out
// because webhook URLs carry the correlation token.
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if tenant := tenantFrom(c); tenant != "" {
			fields = append(fields, zap.String("tenant_id", tenant))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}
