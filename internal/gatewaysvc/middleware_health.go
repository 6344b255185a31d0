package gatewaysvc

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
)

// healthFirstMiddleware is step 1 of the pipeline: versioned health checks
// are never auth-gated and bypass every later step (DoS guard, audit,
// Mirror-resolve+proxy all run their own, heavier logic that health checks
// must not pay for or be blocked by).
func (g *Gateway) healthFirstMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		parsed, ok := ParsePath(c.Request().URL.Path)
		if !ok || !IsHealthSubpath(parsed.Subpath) {
			return next(c)
		}
		return g.serveHealth(c, parsed)
	}
}

// serveHealth proxies a versioned health check directly to the
// Mirror-resolved target, copying only Content-Type and X-* response
// headers. On a resolver miss it runs ensureFresh (a TTL-gated Mirror
// reload) and resolves once more; it does not ask the facilitator for the
// single missing record. A target that still does not resolve, or a failed
// upstream call, yields a 503 Problem — a broken health check never
// crashes the gateway process.
func (g *Gateway) serveHealth(c echo.Context, parsed ParsedPath) error {
	if _, err := g.resolver.Resolve(parsed.Slug, parsed.Version); err != nil {
		g.ensureFresh(c.Request().Context())
		if _, err := g.resolver.Resolve(parsed.Slug, parsed.Version); err != nil {
			return c.JSON(http.StatusServiceUnavailable, contract.MakeProblem(http.StatusServiceUnavailable,
				"health target unresolvable", err.Error()))
		}
	}

	// target.ComposedBase already ends in "/<slug>/v<version>"; only the
	// health subpath itself is appended. forProxy=false: health bypasses
	// internalOnly/allowProxy per spec.md §4.4's explicit health carve-out.
	resp, err := g.s2sClient.CallRaw(c.Request().Context(), parsed.Slug, parsed.Version, http.MethodGet,
		parsed.Subpath, nil, nil, 5000, false)
	if err != nil {
		g.logger.Warn("gatewaysvc: health fallback call failed", zap.String("slug", parsed.Slug), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, contract.MakeProblem(http.StatusServiceUnavailable,
			"health check failed", err.Error()))
	}

	for _, name := range []string{echo.HeaderContentType} {
		if v := resp.Headers.Get(name); v != "" {
			c.Response().Header().Set(name, v)
		}
	}
	for name, values := range resp.Headers {
		if len(name) > 1 && (name[0] == 'X' || name[0] == 'x') && name[1] == '-' {
			for _, v := range values {
				c.Response().Header().Add(name, v)
			}
		}
	}
	return c.Blob(resp.Status, resp.Headers.Get(echo.HeaderContentType), resp.Body)
}
