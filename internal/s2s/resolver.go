package s2s

import (
	"fmt"
	"time"

	"github.com/ReneKroon/ttlcache/v2"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/mirror"
)

// MirrorLookup is the subset of *mirror.Store the resolver depends on.
type MirrorLookup interface {
	GetBySlugVersion(key string) (contract.ServiceConfigRecord, bool)
}

// Resolver turns a (slug, version) pair into a composed base URL, caching
// results with a TTL. The facilitator itself is special-cased to an
// explicitly configured base (avoiding bootstrap circularity: the
// facilitator is the Mirror's own source, so it cannot resolve itself
// through the Mirror).
type Resolver struct {
	mirror           MirrorLookup
	facilitatorSlug  string
	facilitatorBase  string
	cache            *ttlcache.Cache
}

// NewResolver constructs a Resolver. facilitatorBase is read from
// SVCFACILITATOR_BASE_URL (see SPEC_FULL.md §4.4).
func NewResolver(m MirrorLookup, facilitatorSlug, facilitatorBase string, ttl time.Duration) *Resolver {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &Resolver{mirror: m, facilitatorSlug: facilitatorSlug, facilitatorBase: facilitatorBase, cache: cache}
}

// ResolvedTarget is the outcome of a successful resolve.
type ResolvedTarget struct {
	ComposedBase string
	Record       contract.ServiceConfigRecord
}

// Resolve returns the composed base for slug@version, consulting the cache
// first.
func (r *Resolver) Resolve(slug string, version int) (ResolvedTarget, error) {
	key := fmt.Sprintf("%s@%d", slug, version)

	if slug == r.facilitatorSlug {
		return ResolvedTarget{ComposedBase: r.facilitatorBase}, nil
	}

	if cached, err := r.cache.Get(key); err == nil {
		return cached.(ResolvedTarget), nil
	}

	rec, ok := r.mirror.GetBySlugVersion(key)
	if !ok {
		return ResolvedTarget{}, fmt.Errorf("s2s: %q not present in mirror", key)
	}
	target := ResolvedTarget{ComposedBase: rec.ComposedBase(), Record: rec}
	r.cache.Set(key, target)
	return target, nil
}

// Close releases the resolver's TTL cache goroutine.
func (r *Resolver) Close() {
	r.cache.Close()
}
