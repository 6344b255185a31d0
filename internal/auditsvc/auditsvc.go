package auditsvc

import (
	"context"

	"github.com/arc-self/svcmesh/internal/contract"
)

// Service is the Audit Receiver's domain logic: validate, then persist
// idempotently.
type Service struct {
	store Store
}

// New constructs a Service. store may be nil during a degraded boot window
// (e.g. the DB pool failed to connect) — Accept reports WAL_NOT_READY in
// that case rather than panicking, matching spec.md §4.7's "missing
// dependency ⇒ 503 with a readable code".
func New(store Store) *Service {
	return &Service{store: store}
}

// Accept validates the batch shape and persists it, returning the accepted
// count per SPEC_FULL.md §4.7.
func (s *Service) Accept(ctx context.Context, batch contract.AuditBatch) (int, error) {
	if err := batch.Validate(); err != nil {
		return 0, err
	}
	if s.store == nil {
		return 0, contract.NewError("WAL_NOT_READY", 503, "audit store is not yet initialized")
	}
	if err := s.store.InsertBatch(ctx, batch.Entries); err != nil {
		return 0, err
	}
	return len(batch.Entries), nil
}
