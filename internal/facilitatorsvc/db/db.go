// Package db is the Facilitator's hand-written pgx Querier. The examples
// retrieved for this repo did not include a generated repository/db package
// (no sqlc output was available to adapt), so this package is authored
// directly against jackc/pgx/v5, following the same db.Querier-as-interface
// and db.New(pool) constructor idiom as
// discovery-service/internal/repository/db: a thin interface the service
// layer depends on, backed by a pgxpool.Pool-holding struct that issues raw
// SQL and scans rows straight into internal/contract's wire types.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arc-self/svcmesh/internal/contract"
)

// ErrNotFound is returned when a single-row lookup matches no record.
var ErrNotFound = errors.New("db: not found")

// Querier is the Facilitator's read surface over the system of record. It
// satisfies internal/mirror.Querier directly (ListActiveServiceConfigs) so
// a *pgQuerier can be handed to mirror.New without an adapter.
type Querier interface {
	// ListActiveServiceConfigs loads every enabled service_configs row,
	// ordered for deterministic LKG snapshots. Filtering to enabled=true
	// happens again in mirror.Store.adopt, but pushing the predicate into
	// SQL keeps the DB round-trip itself proportional to live services.
	ListActiveServiceConfigs(ctx context.Context) ([]contract.ServiceConfigRecord, error)

	// GetServiceConfig loads a single service_configs row regardless of its
	// enabled flag, since /resolve must be able to report service_disabled
	// rather than treat a disabled record as absent.
	GetServiceConfig(ctx context.Context, slug string, version int) (contract.ServiceConfigRecord, error)

	// ListRoutePolicies loads every route_policies row for one
	// slug@version, both edge and s2s, enabled and disabled; callers
	// filter/partition per SPEC_FULL.md §4.6.
	ListRoutePolicies(ctx context.Context, svcConfigID string, version int) ([]contract.RoutePolicy, error)
}

// pgQuerier is the pgxpool-backed Querier implementation.
type pgQuerier struct {
	pool *pgxpool.Pool
}

// New constructs a Querier over an already-connected pool, matching
// discovery-service's db.New(pool) convention.
func New(pool *pgxpool.Pool) Querier {
	return &pgQuerier{pool: pool}
}

const listActiveServiceConfigsSQL = `
SELECT slug, version, base_url, outbound_api_prefix, port, enabled,
       allow_proxy, internal_only, expose_health, config_revision,
       etag, updated_at, updated_by
FROM service_configs
WHERE enabled = true
ORDER BY slug, version`

func (q *pgQuerier) ListActiveServiceConfigs(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
	rows, err := q.pool.Query(ctx, listActiveServiceConfigsSQL)
	if err != nil {
		return nil, fmt.Errorf("db: list active service configs: %w", err)
	}
	defer rows.Close()

	var out []contract.ServiceConfigRecord
	for rows.Next() {
		r, err := scanServiceConfigRow(rows)
		if err != nil {
			return nil, fmt.Errorf("db: scan service_configs row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: list active service configs: %w", err)
	}
	return out, nil
}

const getServiceConfigSQL = `
SELECT slug, version, base_url, outbound_api_prefix, port, enabled,
       allow_proxy, internal_only, expose_health, config_revision,
       etag, updated_at, updated_by
FROM service_configs
WHERE slug = $1 AND version = $2`

func (q *pgQuerier) GetServiceConfig(ctx context.Context, slug string, version int) (contract.ServiceConfigRecord, error) {
	row := q.pool.QueryRow(ctx, getServiceConfigSQL, slug, version)
	r, err := scanServiceConfigRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.ServiceConfigRecord{}, ErrNotFound
	}
	if err != nil {
		return contract.ServiceConfigRecord{}, fmt.Errorf("db: get service config: %w", err)
	}
	return r, nil
}

const listRoutePoliciesSQL = `
SELECT svcconfig_id, version, method, path, min_access_level, enabled, type
FROM route_policies
WHERE svcconfig_id = $1 AND version = $2
ORDER BY method, path`

func (q *pgQuerier) ListRoutePolicies(ctx context.Context, svcConfigID string, version int) ([]contract.RoutePolicy, error) {
	rows, err := q.pool.Query(ctx, listRoutePoliciesSQL, svcConfigID, version)
	if err != nil {
		return nil, fmt.Errorf("db: list route policies: %w", err)
	}
	defer rows.Close()

	var out []contract.RoutePolicy
	for rows.Next() {
		var p contract.RoutePolicy
		if err := rows.Scan(&p.SvcConfigID, &p.Version, &p.Method, &p.Path, &p.MinAccessLevel, &p.Enabled, &p.Type); err != nil {
			return nil, fmt.Errorf("db: scan route_policies row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: list route policies: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by both pgx.Rows and pgx.Row, letting
// scanServiceConfigRow serve both the list and single-row query paths.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanServiceConfigRow(row rowScanner) (contract.ServiceConfigRecord, error) {
	var r contract.ServiceConfigRecord
	err := row.Scan(&r.Slug, &r.Version, &r.BaseURL, &r.OutboundAPIPrefix, &r.Port, &r.Enabled,
		&r.AllowProxy, &r.InternalOnly, &r.ExposeHealth, &r.ConfigRevision,
		&r.ETag, &r.UpdatedAt, &r.UpdatedBy)
	return r, err
}
