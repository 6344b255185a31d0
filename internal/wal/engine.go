// Package wal implements the WAL Engine: append-before-ack durability via
// internal/wal/journal, a bounded in-memory queue mirroring journaled items,
// and a single-flight flush against an injected, writer-agnostic Writer.
//
// Grounded in the teacher's audit-service consumer (ack/Nak/Term split for
// retryable vs. non-retryable outcomes) and its ticker/goroutine lifecycle
// idiom for background draining.
package wal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/wal/journal"
)

// Clock abstracts time so tests can control nowMs deterministically.
type Clock func() int64

func defaultClock() int64 { return time.Now().UnixMilli() }

// Engine is the WAL Engine described in SPEC_FULL.md §4.2.
type Engine struct {
	jrn    *journal.Journal
	logger *zap.Logger
	clock  Clock

	mu    sync.Mutex
	queue []contract.AuditEntry

	writer   atomic.Pointer[Writer]
	draining atomic.Bool

	maxQueue int
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock overrides the clock used for appendedAt/ts stamping (tests only).
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMaxQueue bounds the in-memory queue length; 0 means unbounded.
func WithMaxQueue(n int) Option {
	return func(e *Engine) { e.maxQueue = n }
}

// New constructs an Engine over the given journal and initial writer.
func New(jrn *journal.Journal, w Writer, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{jrn: jrn, logger: logger, clock: defaultClock}
	for _, opt := range opts {
		opt(e)
	}
	e.writer.Store(&w)
	return e
}

// SetWriter atomically swaps the active writer. An in-flight flush keeps
// using the writer it captured when it began.
func (e *Engine) SetWriter(next Writer) {
	e.writer.Store(&next)
}

// Append synchronously journals one entry and enqueues it in memory. It
// fails fast on journal error.
func (e *Engine) Append(entry contract.AuditEntry) error {
	now := e.clock()
	if _, err := e.jrn.Append(entry, now); err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	e.mu.Lock()
	e.queue = append(e.queue, entry)
	if e.maxQueue > 0 && len(e.queue) > e.maxQueue {
		// Bounded queue: the oldest unflushed item is dropped from memory
		// only (the journal still has it) to cap worst-case memory growth
		// under sustained writer outage.
		dropped := len(e.queue) - e.maxQueue
		e.logger.Warn("wal: in-memory queue bound exceeded, dropping oldest from memory",
			zap.Int("dropped", dropped))
		e.queue = e.queue[dropped:]
	}
	e.mu.Unlock()
	return nil
}

// AppendBatch appends blobs in order and stops at the first failure,
// reporting the offending index. Prior successfully-journaled entries stay
// in place (they are already durable; only the batch call itself aborts).
func (e *Engine) AppendBatch(entries []contract.AuditEntry) (failedIndex int, err error) {
	for i, entry := range entries {
		if err := e.Append(entry); err != nil {
			return i, err
		}
	}
	return -1, nil
}

// FlushResult is the outcome of a Flush call.
type FlushResult struct {
	Accepted int
}

// Flush drains the queue via the active writer. At most one flush runs at a
// time; a concurrent caller observes {Accepted: 0} immediately rather than
// blocking (single-flight).
func (e *Engine) Flush(ctx context.Context) FlushResult {
	if !e.draining.CompareAndSwap(false, true) {
		return FlushResult{Accepted: 0}
	}
	defer e.draining.Store(false)

	e.mu.Lock()
	batch := make([]contract.AuditEntry, len(e.queue))
	copy(batch, e.queue)
	e.mu.Unlock()

	if len(batch) == 0 {
		return FlushResult{Accepted: 0}
	}

	w := *e.writer.Load()
	accepted, err := w.Write(ctx, batch)
	if err == nil {
		e.removeFront(accepted)
		return FlushResult{Accepted: accepted}
	}

	if IsRetryable(err) {
		e.logger.Warn("wal: flush failed, retryable", zap.Error(err))
		return FlushResult{Accepted: 0}
	}

	// Non-retryable: per-item retry so a single poison item doesn't block
	// the rest of the batch from making progress.
	return FlushResult{Accepted: e.drainPerItem(ctx, w, batch)}
}

// drainPerItem retries each queued item individually. Items that persist
// successfully are removed from the queue (a contiguous prefix, since items
// are retried in enqueue order); items that fail non-retryably are
// quarantined (dropped from memory, the journal remains the durable
// record); the first item that fails retryably halts the loop so order is
// preserved for the next Flush.
func (e *Engine) drainPerItem(ctx context.Context, w Writer, batch []contract.AuditEntry) int {
	accepted := 0
	removed := 0
	for _, item := range batch {
		n, err := w.Write(ctx, []contract.AuditEntry{item})
		if err == nil && n > 0 {
			accepted++
			removed++
			continue
		}
		if err == nil {
			// Writer declined without an error (0 accepted) — treat like a
			// retryable stall, stop here to preserve ordering.
			break
		}
		if IsRetryable(err) {
			e.logger.Warn("wal: per-item retry failed, retryable, stopping drain", zap.Error(err))
			break
		}
		e.logger.Error("wal: quarantining non-retryable item", zap.String("requestId", item.Meta.RequestID), zap.Error(err))
		removed++ // quarantined items are still removed from the in-memory queue
	}
	e.removeFront(removed)
	return accepted
}

func (e *Engine) removeFront(n int) {
	if n <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > len(e.queue) {
		n = len(e.queue)
	}
	e.queue = e.queue[n:]
}

// QueueLen reports the current in-memory queue length (tests/diagnostics).
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Replay scans the journal directory and submits every reconstructed entry
// to the active writer via Flush-equivalent, bounded retry-with-jitter,
// before returning. Callers must complete Replay before accepting live
// traffic.
func (e *Engine) Replay(ctx context.Context) error {
	lines, err := journal.Replay(e.jrn.Dir())
	if err != nil {
		return fmt.Errorf("wal: replay: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}
	e.mu.Lock()
	for _, l := range lines {
		e.queue = append(e.queue, l.Blob)
	}
	e.mu.Unlock()

	return RetryWithJitter(ctx, func() error {
		res := e.Flush(ctx)
		if e.QueueLen() > 0 && res.Accepted == 0 {
			return fmt.Errorf("WAL_PERSIST_FAILED: replay made no progress")
		}
		return nil
	})
}

// Close flushes and releases the journal.
func (e *Engine) Close(ctx context.Context) error {
	e.Flush(ctx)
	return e.jrn.Close()
}
