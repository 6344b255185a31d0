// Package journal implements the WAL Engine's append-only, file-backed
// journal: line-delimited JSON segments, a lazy long-lived file descriptor
// with a single-flight gated open, and a ticker-driven fsync cadence.
//
// Grounded in the teacher's background-goroutine idiom (ticker + select +
// ctx.Done(), see discovery-service/internal/worker/scan_poller.go) and its
// graceful-shutdown sequencing (signal.NotifyContext + ordered Close calls,
// see cdc-worker/cmd/worker/main.go).
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
)

// defaultFsyncInterval is used when fsyncIntervalMs is zero-valued by the
// caller without being explicitly set to "every append" (0 means every
// append per SPEC_FULL.md; this constant is the *default config value*, not
// the zero-meaning).
const defaultFsyncInterval = 250 * time.Millisecond

// Journal is the append-only, file-backed durability layer. The FD is owned
// exclusively by the Journal — no external handle is ever exposed.
type Journal struct {
	dir             string
	fsyncEveryWrite bool
	fsyncInterval   time.Duration
	logger          *zap.Logger

	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	opening     bool
	openDone    chan struct{}
	closed      bool
	dirtyWrites bool // true when writes have happened since the last fsync

	fsyncCancel context.CancelFunc
	fsyncDone   chan struct{}
}

// Option configures a Journal at construction time.
type Option func(*Journal)

// WithFsyncIntervalMs sets the fsync cadence. 0 means fsync on every append.
func WithFsyncIntervalMs(ms int) Option {
	return func(j *Journal) {
		if ms == 0 {
			j.fsyncEveryWrite = true
			return
		}
		j.fsyncInterval = time.Duration(ms) * time.Millisecond
	}
}

// New constructs a Journal rooted at dir (created if absent) and starts its
// background fsync ticker unless fsync-every-write was requested.
func New(dir string, logger *zap.Logger, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: mkdir %s: %w", dir, err)
	}
	j := &Journal{
		dir:           dir,
		fsyncInterval: defaultFsyncInterval,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(j)
	}
	if !j.fsyncEveryWrite {
		ctx, cancel := context.WithCancel(context.Background())
		j.fsyncCancel = cancel
		j.fsyncDone = make(chan struct{})
		go j.runFsyncTicker(ctx)
	}
	return j, nil
}

func (j *Journal) runFsyncTicker(ctx context.Context) {
	defer close(j.fsyncDone)
	ticker := time.NewTicker(j.fsyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.mu.Lock()
			// Append already flushed the bufio.Writer to the OS; only the
			// batched f.Sync() (the expensive disk-durability call) remains.
			if j.dirtyWrites && j.file != nil {
				_ = j.file.Sync()
				j.dirtyWrites = false
			}
			j.mu.Unlock()
		}
	}
}

// segmentPath returns the path for a new segment basenamed wal-<epoch>.ldjson.
func (j *Journal) segmentPath(epochMs int64) string {
	return filepath.Join(j.dir, fmt.Sprintf("wal-%d.ldjson", epochMs))
}

// ensureOpen opens the long-lived FD if absent, using a single-flight gate:
// only one goroutine performs the open; concurrent Append calls during the
// gap use a short-lived FD (see appendShortLived) instead of blocking.
func (j *Journal) ensureOpen(nowMs int64) (*os.File, *bufio.Writer, bool) {
	j.mu.Lock()
	if j.file != nil {
		f, w := j.file, j.writer
		j.mu.Unlock()
		return f, w, true
	}
	if j.opening {
		done := j.openDone
		j.mu.Unlock()
		<-done
		j.mu.Lock()
		f, w := j.file, j.writer
		ok := f != nil
		j.mu.Unlock()
		return f, w, ok
	}
	j.opening = true
	j.openDone = make(chan struct{})
	done := j.openDone
	j.mu.Unlock()

	f, err := os.OpenFile(j.segmentPath(nowMs), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.opening = false
	close(done)
	if err != nil {
		j.logger.Error("journal: open failed", zap.Error(err))
		return nil, nil, false
	}
	j.file = f
	j.writer = bufio.NewWriter(f)
	return j.file, j.writer, true
}

// appendShortLived writes a single line using a short-lived FD that is
// always closed immediately after, used only while the long-lived FD is
// mid-open. FDs never leak because this path never retains the handle.
func (j *Journal) appendShortLived(line []byte, nowMs int64) error {
	f, err := os.OpenFile(j.segmentPath(nowMs), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: short-lived open: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("journal: short-lived write: %w", err)
	}
	return f.Sync()
}

// Append synchronously appends one WalLine as a single JSON line and (per
// the configured cadence) fsyncs before returning, so a matching WAL line
// exists on disk before Append returns.
func (j *Journal) Append(blob contract.AuditEntry, nowMs int64) (n int64, err error) {
	line := contract.WalLine{AppendedAt: nowMs, Blob: blob}
	b, err := json.Marshal(line)
	if err != nil {
		return 0, fmt.Errorf("journal: marshal: %w", err)
	}
	b = append(b, '\n')

	j.mu.Lock()
	opening := j.opening
	closed := j.closed
	j.mu.Unlock()
	if closed {
		return 0, fmt.Errorf("journal: closed")
	}

	if opening {
		if err := j.appendShortLived(b, nowMs); err != nil {
			return 0, err
		}
		return int64(len(b)), nil
	}

	f, w, ok := j.ensureOpen(nowMs)
	if !ok || f == nil {
		// Open failed entirely; fall back to a short-lived FD so the append
		// is never silently lost.
		if err := j.appendShortLived(b, nowMs); err != nil {
			return 0, err
		}
		return int64(len(b)), nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := w.Write(b); err != nil {
		return 0, fmt.Errorf("journal: write: %w", err)
	}
	// Every append flushes the bufio.Writer to the OS before returning, so a
	// matching WAL line is visible to the kernel (survives process death,
	// not disk loss) the instant Append returns, per SPEC_FULL.md §4.2's
	// synchronous-write policy. Only the (slower) f.Sync() call is batched
	// onto the ticker cadence when fsyncEveryWrite is false.
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("journal: flush: %w", err)
	}
	if j.fsyncEveryWrite {
		if err := f.Sync(); err != nil {
			return 0, fmt.Errorf("journal: sync: %w", err)
		}
	} else {
		j.dirtyWrites = true
	}
	return int64(len(b)), nil
}

// Rotate syncs and closes the current segment and schedules a new one to be
// opened lazily on the next Append.
func (j *Journal) Rotate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("journal: rotate flush: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("journal: rotate sync: %w", err)
	}
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("journal: rotate close: %w", err)
	}
	j.file = nil
	j.writer = nil
	j.dirtyWrites = false
	return nil
}

// Close awaits any in-flight open, then syncs and closes the journal. The
// fsync ticker goroutine is stopped and awaited first.
func (j *Journal) Close() error {
	if j.fsyncCancel != nil {
		j.fsyncCancel()
		<-j.fsyncDone
	}

	j.mu.Lock()
	for j.opening {
		done := j.openDone
		j.mu.Unlock()
		<-done
		j.mu.Lock()
	}
	defer j.mu.Unlock()
	j.closed = true
	if j.file == nil {
		return nil
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("journal: close flush: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("journal: close sync: %w", err)
	}
	err := j.file.Close()
	j.file = nil
	j.writer = nil
	return err
}

// Dir returns the journal's backing directory, used by Replay.
func (j *Journal) Dir() string { return j.dir }
