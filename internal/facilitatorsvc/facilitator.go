// Package facilitatorsvc implements the Facilitator Service: the sole owner
// of the Mirror's lifecycle. It loads service configs from the system of
// record through internal/mirror (backed by this package's db.Querier),
// accepts trusted pushes that replace the in-memory snapshot, and resolves
// individual slug@version entries together with their route policies.
//
// Grounded in discovery-service/internal/service's pgxpool.Pool-holding,
// db.Querier-consuming service struct, generalized from a per-org CRUD
// domain to the mesh-wide Mirror the Facilitator owns.
package facilitatorsvc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/facilitatorsvc/db"
	"github.com/arc-self/svcmesh/internal/mirror"
)

// MirrorMeta is the "meta" object GET /mirror reports alongside the
// records, per SPEC_FULL.md §4.6.
type MirrorMeta struct {
	Source    mirror.Source `json:"source"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Count     int           `json:"count"`
}

// MirrorResult is the shape behind GET /mirror's envelope body.
type MirrorResult struct {
	Mirror map[string]contract.ServiceConfigRecord `json:"mirror"`
	Meta   MirrorMeta                              `json:"meta"`
}

// PushResult is the shape behind POST /mirror's envelope body. LkgError is
// set, never failing the request, when the in-memory adoption succeeded but
// the filesystem LKG write did not.
type PushResult struct {
	OK        bool      `json:"ok"`
	Accepted  bool      `json:"accepted"`
	Services  int       `json:"services"`
	Source    string    `json:"source"`
	LkgSaved  bool      `json:"lkgSaved"`
	FetchedAt time.Time `json:"fetchedAt"`
	LkgError  string    `json:"lkgError,omitempty"`
}

// ResolvePolicies partitions one slug@version's route policies by type, each
// already filtered to enabled=true.
type ResolvePolicies struct {
	Edge []contract.RoutePolicy `json:"edge"`
	S2S  []contract.RoutePolicy `json:"s2s"`
}

// ResolveResult is the canonical normalized shape GET /resolve returns.
type ResolveResult struct {
	ServiceConfig contract.ServiceConfigRecord `json:"serviceConfig"`
	Policies      ResolvePolicies               `json:"policies"`
}

// InvalidationPublisher is the narrow surface PushMirror notifies through —
// satisfied by a thin adapter over mirrornotify.Server. Kept as a
// same-package interface rather than importing the gRPC proto types
// directly, so facilitatorsvc stays agnostic to the transport a push
// hint travels over.
type InvalidationPublisher interface {
	PublishInvalidation(slug string, version int, reason string)
}

// Service implements the Facilitator's three operations over a Mirror Store
// and the DB Querier backing it.
type Service struct {
	mirror   *mirror.Store
	querier  db.Querier
	env      string
	logger   *zap.Logger
	notifier InvalidationPublisher
}

// New constructs a Service. env gates ServiceConfigRecord.Validate's
// production port-presence rule.
func New(m *mirror.Store, q db.Querier, env string, logger *zap.Logger) *Service {
	return &Service{mirror: m, querier: q, env: env, logger: logger}
}

// SetNotifier wires an optional push-invalidation publisher. Left unset,
// PushMirror is a pure in-memory/LKG operation with no downstream hint —
// the Gateway's TTL-pull resolve is unaffected either way.
func (s *Service) SetNotifier(n InvalidationPublisher) {
	s.notifier = n
}

// GetMirror always forces a TTL-gated refresh (never a peek), per
// SPEC_FULL.md §4.6: the read path is what triggers DB refreshes in this
// system, there being no separate background poller.
func (s *Service) GetMirror(ctx context.Context) (MirrorResult, error) {
	snap, err := s.mirror.GetWithTTL(ctx)
	if err != nil {
		return MirrorResult{}, err
	}
	return MirrorResult{
		Mirror: snap.Records,
		Meta: MirrorMeta{
			Source:    snap.Source,
			FetchedAt: snap.FetchedAt,
			Count:     len(snap.Records),
		},
	}, nil
}

// PushMirror validates every record's shape, then replaces the Mirror's
// in-memory snapshot (and best-effort LKG) wholesale. A record that fails
// Validate aborts the entire push: a trusted push is all-or-nothing, it
// never adopts a partially-valid set.
func (s *Service) PushMirror(ctx context.Context, records []contract.ServiceConfigRecord) (PushResult, error) {
	for i, r := range records {
		if err := r.Validate(s.env); err != nil {
			return PushResult{}, fmt.Errorf("record %d (%s): %w", i, r.Key(), err)
		}
	}

	snap, err := s.mirror.ReplaceWithPush(records)
	if s.notifier != nil {
		for _, r := range records {
			s.notifier.PublishInvalidation(r.Slug, r.Version, "mirror_push")
		}
	}
	if err != nil {
		// In-memory adoption already succeeded (ReplaceWithPush returns the
		// snapshot even on LKG failure) — this is a warning, not a hard
		// failure, per SPEC_FULL.md §4.6.
		s.logger.Warn("facilitatorsvc: lkg write failed after push", zap.Error(err))
		return PushResult{
			OK: true, Accepted: true, Services: len(snap.Records),
			Source: string(snap.Source), LkgSaved: false, FetchedAt: snap.FetchedAt,
			LkgError: err.Error(),
		}, nil
	}
	return PushResult{
		OK: true, Accepted: true, Services: len(snap.Records),
		Source: string(snap.Source), LkgSaved: true, FetchedAt: snap.FetchedAt,
	}, nil
}

// Resolve normalizes one slug@version entry into {serviceConfig, policies}.
// Resolve never falls back to a stale Mirror peek for the target record: a
// miss first calls GetWithTTL (which reloads the Mirror once its TTL has
// expired) and looks the key up again, matching the Gateway's own
// resolve-then-refresh-then-resolve retry shape.
func (s *Service) Resolve(ctx context.Context, slug string, version int) (ResolveResult, error) {
	if _, err := contract.NormalizeSlug(slug); err != nil {
		return ResolveResult{}, err
	}

	key := fmt.Sprintf("%s@%d", slug, version)
	rec, ok := s.mirror.GetBySlugVersion(key)
	if !ok {
		if _, err := s.mirror.GetWithTTL(ctx); err != nil {
			return ResolveResult{}, err
		}
		rec, ok = s.mirror.GetBySlugVersion(key)
	}
	if !ok {
		// The record may exist but be disabled — the Mirror filters
		// disabled records out at adoption, so a DB lookup is required to
		// distinguish "absent" from "disabled" and report the correct code.
		dbRec, err := s.querier.GetServiceConfig(ctx, slug, version)
		if err != nil {
			return ResolveResult{}, contract.NewError("key_not_found", 404,
				fmt.Sprintf("no such service config: %s", key))
		}
		if !dbRec.Enabled {
			return ResolveResult{}, contract.NewError("service_disabled", 403,
				fmt.Sprintf("%s is disabled", key))
		}
		rec = dbRec
	}

	if rec.Key() != key {
		return ResolveResult{}, contract.NewError("key_mismatch", 500,
			fmt.Sprintf("resolved record key %q does not match requested %q", rec.Key(), key))
	}
	if !rec.Enabled {
		return ResolveResult{}, contract.NewError("service_disabled", 403,
			fmt.Sprintf("%s is disabled", key))
	}

	policies, err := s.querier.ListRoutePolicies(ctx, rec.Slug, rec.Version)
	if err != nil {
		return ResolveResult{}, fmt.Errorf("facilitatorsvc: list route policies for %s: %w", key, err)
	}

	out := ResolvePolicies{Edge: []contract.RoutePolicy{}, S2S: []contract.RoutePolicy{}}
	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		switch p.Type {
		case "edge":
			out.Edge = append(out.Edge, p)
		case "s2s":
			out.S2S = append(out.S2S, p)
		}
	}

	return ResolveResult{ServiceConfig: rec, Policies: out}, nil
}
