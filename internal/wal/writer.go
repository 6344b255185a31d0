package wal

import (
	"context"

	"github.com/arc-self/svcmesh/internal/contract"
)

// Writer is the injected, writer-agnostic sink the WAL Engine flushes to.
// The production implementation is internal/auditwriter.HTTPWriter, which
// posts to the Audit Receiver through the S2S client's CallRaw; tests
// substitute an in-memory fake.
type Writer interface {
	Write(ctx context.Context, batch []contract.AuditEntry) (accepted int, err error)
}

// WriterFunc adapts a plain function to the Writer interface, mirroring the
// teacher's preference for small functional adapters over heavier mocks
// where a mock isn't otherwise needed.
type WriterFunc func(ctx context.Context, batch []contract.AuditEntry) (int, error)

// Write implements Writer.
func (f WriterFunc) Write(ctx context.Context, batch []contract.AuditEntry) (int, error) {
	return f(ctx, batch)
}
