package gatewaysvc

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/mirror"
	"github.com/arc-self/svcmesh/internal/s2s"
	"github.com/arc-self/svcmesh/internal/wal"
)

// Gateway owns every dependency the edge pipeline needs: the local Mirror
// Store (kept fresh from the facilitator), the S2S client used to reach
// Mirror-resolved peers, the WAL engine audit entries are appended to, and
// the Redis-backed rate limiter.
type Gateway struct {
	mirror      *mirror.Store
	resolver    *s2s.Resolver
	s2sClient   s2s.Client
	wal         *wal.Engine
	rateLimiter *RateLimiter
	logger      *zap.Logger

	serviceTag      string
	facilitatorSlug string

	defaultTimeout time.Duration
	rateLimitKeyFn func(c echo.Context) string
}

// Option configures a Gateway at construction.
type Option func(*Gateway)

// WithDefaultTimeout overrides the per-request upstream timeout used when a
// route has no more specific budget. Default 10s.
func WithDefaultTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.defaultTimeout = d }
}

// WithRateLimitKeyFunc overrides how the DoS guard derives its bucket key
// per request. Default buckets by client IP.
func WithRateLimitKeyFunc(fn func(c echo.Context) string) Option {
	return func(g *Gateway) { g.rateLimitKeyFn = fn }
}

// New constructs a Gateway. mirrorStore and resolver share the same
// underlying mirror.Store instance: resolver consults it for resolve, the
// Gateway itself consults it for the health-only facilitator fallback.
func New(mirrorStore *mirror.Store, resolver *s2s.Resolver, s2sClient s2s.Client, walEngine *wal.Engine, rateLimiter *RateLimiter, logger *zap.Logger, serviceTag, facilitatorSlug string, opts ...Option) *Gateway {
	g := &Gateway{
		mirror:          mirrorStore,
		resolver:        resolver,
		s2sClient:       s2sClient,
		wal:             walEngine,
		rateLimiter:     rateLimiter,
		logger:          logger,
		serviceTag:      serviceTag,
		facilitatorSlug: facilitatorSlug,
		defaultTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rateLimitKeyFn == nil {
		g.rateLimitKeyFn = func(c echo.Context) string { return c.RealIP() }
	}
	return g
}

// RegisterRoutes mounts the strict-order pipeline and the catch-all proxy
// route. Middleware order here is load-bearing: health-first must bypass
// every later step; edge logging must see every request including ones the
// DoS guard will reject; audit BEGIN must run before Mirror resolution so a
// 404 still produces an audit trail.
func (g *Gateway) RegisterRoutes(e *echo.Echo) {
	group := e.Group("/api", g.healthFirstMiddleware, g.edgeHitLogger, g.dosGuardMiddleware, g.auditBeginMiddleware)
	group.Any("/*", g.proxyHandler)
}

func (g *Gateway) ensureFresh(ctx context.Context) {
	if _, err := g.mirror.GetWithTTL(ctx); err != nil {
		g.logger.Warn("gatewaysvc: mirror refresh failed", zap.Error(err))
	}
}
