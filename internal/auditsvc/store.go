// Package auditsvc implements the Audit Receiver: POST /entries accepts an
// AuditBatch and persists each entry idempotently, keyed by (requestId,
// phase) so a WAL replay after a crash never double-counts a BEGIN or END
// already durably recorded.
//
// Grounded in audit-service/internal/consumer/audit.go's InsertAuditLog
// persistence step, adapted from a NATS-consumed OutboxEvent to an
// HTTP-POSTed AuditEntry: same idempotent-insert posture, same
// pgxpool.Pool-backed store, different ingress transport (this system's
// receiver is reached over the WAL's HTTP writer, not a JetStream pull
// subscription).
package auditsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arc-self/svcmesh/internal/contract"
)

// Store persists audit entries idempotently.
type Store interface {
	// InsertBatch upserts every entry, ON CONFLICT DO NOTHING against the
	// (request_id, phase) unique key. Accepted count is the caller's batch
	// length, not the rows actually newly written — SPEC_FULL.md's wire
	// contract reports "accepted: entries.length" regardless of dedup; the
	// dedup is an at-least-once-delivery safety net, not a counted outcome.
	InsertBatch(ctx context.Context, entries []contract.AuditEntry) error
}

// pgStore is the pgxpool-backed Store implementation.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store over an already-connected pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const insertEntrySQL = `
INSERT INTO audit_entries
	(request_id, phase, service, ts, status, http_code, err, slug, version, route, method, blob)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (request_id, phase) DO NOTHING`

func (s *pgStore) InsertBatch(ctx context.Context, entries []contract.AuditEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		var slug, route, method string
		var version int
		if e.Target != nil {
			slug, route, method, version = e.Target.Slug, e.Target.Route, e.Target.Method, e.Target.Version
		}
		blob, err := json.Marshal(e.Blob)
		if err != nil {
			return fmt.Errorf("auditsvc: marshal blob for request %s: %w", e.Meta.RequestID, err)
		}
		batch.Queue(insertEntrySQL, e.Meta.RequestID, string(e.Phase), e.Meta.Service, e.Meta.TS,
			e.Status, e.HTTPCode, e.Err, slug, version, route, method, blob)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("auditsvc: insert entry: %w", err)
		}
	}
	return nil
}
