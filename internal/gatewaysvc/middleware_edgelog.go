package gatewaysvc

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// requestIDHeaders are checked in order when a client supplies its own
// correlation id; the first match wins.
var requestIDHeaders = []string{"x-request-id", "x-correlation-id", "request-id", "x-amzn-trace-id"}

const ctxKeyRequestID = "gatewaysvc.requestId"
const ctxKeyParsedPath = "gatewaysvc.parsedPath"

// requestIDFromRequest extracts an inbound correlation id or mints a fresh
// UUID, matching the App Framework's request-identity rule in
// SPEC_FULL.md §4.8.
func requestIDFromRequest(c echo.Context) string {
	for _, name := range requestIDHeaders {
		if v := c.Request().Header.Get(name); v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// edgeHitLogger is step 2 of the pipeline: exactly one EDGE line per
// request, emitted before any guard or audit logic runs, then the resolved
// slug/version/requestId are stashed on the context for later steps.
func (g *Gateway) edgeHitLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := requestIDFromRequest(c)
		c.Response().Header().Set("x-request-id", requestID)
		c.Set(ctxKeyRequestID, requestID)

		parsed, ok := ParsePath(c.Request().URL.Path)
		if ok {
			c.Set(ctxKeyParsedPath, parsed)
		}

		g.logger.Info("EDGE",
			zap.String("slug", parsed.Slug),
			zap.Int("version", parsed.Version),
			zap.String("method", c.Request().Method),
			zap.String("url", c.Request().URL.String()),
			zap.String("requestId", requestID),
		)

		if !ok {
			return echo.NewHTTPError(404, "path does not match /api/<slug>/v<major>/...")
		}
		return next(c)
	}
}
