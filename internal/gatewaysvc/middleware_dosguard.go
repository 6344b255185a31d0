package gatewaysvc

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
)

// maxRequestBodyBytes bounds inbound request size before it is ever
// streamed upstream.
const maxRequestBodyBytes = 10 << 20 // 10 MiB

// dosGuardMiddleware is step 3 of the pipeline: rate-limit, size-limit, and
// a request-scoped timeout. The timeout itself is enforced by wrapping the
// request context with a deadline; a 504 is only returned here if nothing
// has been written to the response yet, per spec.md §4.5.
func (g *Gateway) dosGuardMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().ContentLength > maxRequestBodyBytes {
			return c.JSON(http.StatusRequestEntityTooLarge, contract.MakeProblem(http.StatusRequestEntityTooLarge,
				"request too large", "body exceeds the gateway's size limit"))
		}

		if g.rateLimiter != nil {
			key := g.rateLimitKeyFn(c)
			allowed, err := g.rateLimiter.Allow(c.Request().Context(), key)
			if err != nil {
				g.logger.Warn("gatewaysvc: rate limiter unavailable, failing open", zap.Error(err))
			} else if !allowed {
				return c.JSON(http.StatusTooManyRequests, contract.MakeProblem(http.StatusTooManyRequests,
					"rate limit exceeded", "too many requests for this client"))
			}
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), g.defaultTimeout)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))

		err := next(c)
		if err != nil && ctx.Err() == context.DeadlineExceeded && !c.Response().Committed {
			return c.JSON(http.StatusGatewayTimeout, contract.MakeProblem(http.StatusGatewayTimeout,
				"upstream timeout", "the request exceeded its time budget"))
		}
		return err
	}
}
