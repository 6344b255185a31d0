// Package httptransport enforces the mesh's per-environment HTTP transport
// policy (SPEC_FULL.md §6 / spec.md §6): loopback HTTP is fine for dev/local,
// staging and production require HTTPS and redirect plain HTTP with a 308.
//
// Grounded in packages/go-core/middleware's single-purpose Echo middleware
// convention (null_to_empty.go) — one file, one concern, a constructor
// returning echo.MiddlewareFunc.
package httptransport

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/arc-self/svcmesh/internal/contract"
)

// EnforceHTTPS returns middleware that is a no-op outside staging/production
// and, within them, redirects any request that did not arrive over TLS (or
// behind a TLS-terminating proxy reporting X-Forwarded-Proto: https) to its
// https:// equivalent with a permanent (308) redirect.
func EnforceHTTPS(env string) echo.MiddlewareFunc {
	enforce := env == contract.EnvStaging || env == contract.EnvProduction

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !enforce || isSecure(c.Request()) {
				return next(c)
			}
			target := "https://" + c.Request().Host + c.Request().RequestURI
			return c.Redirect(http.StatusPermanentRedirect, target)
		}
	}
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get(echo.HeaderXForwardedProto), "https")
}
