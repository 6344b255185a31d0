package gatewaysvc

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
)

// proxyHandler is steps 5 and 6 of the pipeline: resolve the Mirror target
// for the parsed slug@version, then stream the request through to it via
// the S2S client's raw passthrough, streaming the response straight back.
//
// Grounded in discovery-service/internal/handler/proxy.go's proxyTo
// factory: there the target was a single fixed scanner base baked in at
// route-registration time; here it is resolved fresh per request from the
// Mirror, since any enabled slug@version can be proxied through this one
// catch-all route.
func (g *Gateway) proxyHandler(c echo.Context) error {
	parsed, ok := c.Get(ctxKeyParsedPath).(ParsedPath)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	requestID, _ := c.Get(ctxKeyRequestID).(string)

	target, err := g.resolver.Resolve(parsed.Slug, parsed.Version)
	if err != nil {
		return c.JSON(http.StatusNotFound, contract.MakeProblem(http.StatusNotFound,
			"no such service", "slug@version is not present in the mirror"))
	}

	if u, err := url.Parse(target.ComposedBase); err == nil && IsUnroutableHost(u.Hostname()) {
		g.logger.Error("gatewaysvc: refusing unroutable upstream host",
			zap.String("slug", parsed.Slug), zap.String("host", u.Hostname()))
		return c.JSON(http.StatusBadGateway, contract.MakeProblem(http.StatusBadGateway,
			"unroutable upstream", "the resolved target host is not routable"))
	}

	inbound := c.Request().Header.Clone()
	inbound.Set("x-api-version", strconv.Itoa(parsed.Version))
	if requestID != "" {
		inbound.Set("x-request-id", requestID)
	}

	// target.ComposedBase already ends in "/<slug>/v<version>" (see
	// contract.ServiceConfigRecord.ComposedBase), so only the remaining
	// subpath is appended here — re-adding "/api/<slug>/v<version>" would
	// double the prefix against the upstream.
	fullPath := parsed.Subpath
	if fullPath == "/" {
		fullPath = ""
	}
	if rawQuery := c.Request().URL.RawQuery; rawQuery != "" {
		fullPath += "?" + rawQuery
	}

	timeoutMs := int(g.defaultTimeout.Milliseconds())
	resp, err := g.s2sClient.CallRaw(c.Request().Context(), parsed.Slug, parsed.Version, c.Request().Method,
		fullPath, inbound, c.Request().Body, timeoutMs, true)
	if err != nil {
		g.logger.Error("gatewaysvc: proxy call failed", zap.String("requestId", requestID), zap.Error(err))
		// A Preflight rejection (internal_only, service_disabled,
		// proxy_not_allowed) must hide the target's existence at the edge
		// per spec.md §7: 404, not 502 — a 502 would leak that the slug
		// resolved to something.
		if cerr, ok := err.(*contract.Error); ok {
			return c.JSON(http.StatusNotFound, contract.MakeProblem(http.StatusNotFound,
				"no such service", cerr.Detail))
		}
		return c.JSON(http.StatusBadGateway, contract.MakeProblem(http.StatusBadGateway,
			"upstream unreachable", err.Error()))
	}

	for name, values := range resp.Headers {
		if isHopByHopHeader(name) {
			continue
		}
		for _, v := range values {
			c.Response().Header().Add(name, v)
		}
	}
	return c.Blob(resp.Status, resp.Headers.Get(echo.HeaderContentType), resp.Body)
}

// isHopByHopHeader mirrors internal/s2s's stripping rule for the response
// direction; Authorization is included since an upstream echoing it back
// must never reach the client either.
func isHopByHopHeader(name string) bool {
	switch strings.ToLower(name) {
	case "connection", "keep-alive", "proxy-authenticate", "proxy-authorization",
		"te", "trailer", "transfer-encoding", "upgrade", "authorization":
		return true
	}
	return false
}
