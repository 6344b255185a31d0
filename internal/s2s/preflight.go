package s2s

import "github.com/arc-self/svcmesh/internal/contract"

// Preflight enforces the authorization preflight described in
// SPEC_FULL.md/spec.md §4.4: disabled or internalOnly targets reject
// (except health, which callers check before invoking Preflight at all).
// allowProxy=false blocks gateway proxying specifically, not internal S2S
// calls, so the forProxy flag narrows the check accordingly.
func Preflight(rec contract.ServiceConfigRecord, forProxy bool) error {
	if !rec.Enabled {
		return contract.NewError("service_disabled", 403, "target service is disabled")
	}
	if rec.InternalOnly && forProxy {
		return contract.NewError("internal_only", 403, "target service is internal-only and cannot be proxied from the edge")
	}
	if forProxy && !rec.AllowProxy {
		return contract.NewError("proxy_not_allowed", 403, "target service does not allow gateway proxying")
	}
	return nil
}
