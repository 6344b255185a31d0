// Package requestid provides the App Framework's shared request-identity
// middleware (SPEC_FULL.md §4.8 preRouting step). No service in this
// repository mounts it: gatewaysvc inlines the same rule directly in its
// edge logger since it also needs the parsed slug/version at the same point.
package requestid

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const headerRequestID = "x-request-id"

var inboundHeaders = []string{headerRequestID, "x-correlation-id", "request-id", "x-amzn-trace-id"}

// ContextKey is the echo.Context key the resolved request id is stored
// under.
const ContextKey = "requestId"

// Middleware accepts any of the recognized inbound correlation headers,
// minting a UUID when none is present, and always echoes x-request-id on
// the response.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := ""
		for _, name := range inboundHeaders {
			if v := c.Request().Header.Get(name); v != "" {
				id = v
				break
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKey, id)
		c.Response().Header().Set(headerRequestID, id)
		return next(c)
	}
}

// FromContext reads the request id stashed by Middleware.
func FromContext(c echo.Context) string {
	v, _ := c.Get(ContextKey).(string)
	return v
}
