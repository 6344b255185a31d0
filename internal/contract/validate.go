package contract

import (
	"fmt"
	"net/url"
	"strings"
)

// Environment names used by ServiceConfigRecord.Validate's port-presence
// check and by the app framework's HTTP transport policy.
const (
	EnvDev        = "dev"
	EnvLocal      = "local"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Validate enforces the ServiceConfigRecord invariants from SPEC_FULL.md §3:
// slug shape, version >= 1, absolute http(s) baseUrl (with an explicit port
// outside production), and an outboundApiPrefix that begins with "/" and
// never ends with "/".
func (r ServiceConfigRecord) Validate(env string) error {
	if _, err := NormalizeSlug(r.Slug); err != nil {
		return err
	}
	if r.Version < 1 {
		return NewError("svcconfig_invalid", 400, "version must be >= 1")
	}
	u, err := url.Parse(r.BaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return NewError("svcconfig_invalid", 400, fmt.Sprintf("baseUrl %q must be an absolute http(s) URL", r.BaseURL))
	}
	if env != EnvProduction && u.Port() == "" {
		return NewError("svcconfig_invalid", 400, "baseUrl must carry an explicit port outside production")
	}
	if !strings.HasPrefix(r.OutboundAPIPrefix, "/") {
		return NewError("svcconfig_invalid", 400, "outboundApiPrefix must begin with /")
	}
	if len(r.OutboundAPIPrefix) > 1 && strings.HasSuffix(r.OutboundAPIPrefix, "/") {
		return NewError("svcconfig_invalid", 400, "outboundApiPrefix must not end with /")
	}
	if r.ConfigRevision < 1 {
		return NewError("svcconfig_invalid", 400, "configRevision must be >= 1")
	}
	return nil
}

// Validate enforces the RoutePolicy path-normalization invariant.
func (p RoutePolicy) Validate() error {
	if _, err := NormalizeMethod(p.Method); err != nil {
		return err
	}
	normalized, err := NormalizePath(p.Path)
	if err != nil {
		return err
	}
	if normalized != p.Path {
		return NewError("route_policy_invalid", 400, fmt.Sprintf("path %q is not normalized (expected %q)", p.Path, normalized))
	}
	if p.MinAccessLevel < 0 {
		return NewError("route_policy_invalid", 400, "minAccessLevel must be >= 0")
	}
	return nil
}
