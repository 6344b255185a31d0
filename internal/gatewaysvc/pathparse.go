// Package gatewaysvc implements the Gateway/Broker: the public edge for
// /api/<slug>/v<major>/... traffic. It parses the incoming path, applies a
// strict-order middleware pipeline (health-first, edge log, DoS guard,
// audit BEGIN, Mirror-resolve, proxy, audit END), and streams requests to
// the Mirror-resolved upstream.
//
// Grounded in discovery-service/internal/handler/proxy.go's proxyTo factory
// (generalized here from a fixed scanner target to a Mirror-resolved target
// per request) and public-api-service/cmd/api/main.go's Redis wiring for the
// DoS guard's backing store.
package gatewaysvc

import (
	"regexp"
	"strconv"
)

var apiPathPattern = regexp.MustCompile(`^/api/([a-z][a-z0-9-]*)/v([0-9]+)(?:/(.*))?$`)

var healthSubpathPattern = regexp.MustCompile(`^/health(?:/[A-Za-z0-9_-]+)?$`)

// ParsedPath is the decomposition of one /api/<slug>/v<major>/<rest> path.
type ParsedPath struct {
	Slug    string
	Version int
	Subpath string // "/" when absent
}

// ParsePath matches the gateway URL convention. version must be a finite
// positive integer; a bare v0 is rejected (versions start at 1).
func ParsePath(path string) (ParsedPath, bool) {
	m := apiPathPattern.FindStringSubmatch(path)
	if m == nil {
		return ParsedPath{}, false
	}
	version, err := strconv.Atoi(m[2])
	if err != nil || version < 1 {
		return ParsedPath{}, false
	}
	sub := m[3]
	if sub == "" {
		sub = "/"
	} else if sub[0] != '/' {
		sub = "/" + sub
	}
	return ParsedPath{Slug: m[1], Version: version, Subpath: sub}, true
}

// IsHealthSubpath reports whether subpath is a versioned health check,
// optionally carrying a single opaque token (e.g. /health/readiness).
func IsHealthSubpath(subpath string) bool {
	return healthSubpathPattern.MatchString(subpath)
}

// unroutableHosts are upstream hostnames the gateway refuses to proxy to,
// regardless of what the Mirror reports.
var unroutableHosts = map[string]bool{
	"0.0.0.0": true,
	"::":      true,
}

// IsUnroutableHost reports whether host is a wildcard/unroutable address
// that must never be treated as a proxy target.
func IsUnroutableHost(host string) bool {
	return unroutableHosts[host]
}
