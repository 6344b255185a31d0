package journal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/wal/journal"
)

func newTestJournal(t *testing.T, opts ...journal.Option) (*journal.Journal, string) {
	t.Helper()
	dir := t.TempDir()
	j, err := journal.New(dir, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, dir
}

func sampleEntry(requestID string) contract.AuditEntry {
	return contract.AuditEntry{
		Meta:  contract.AuditMeta{Service: "gateway", TS: 1000, RequestID: requestID},
		Phase: contract.PhaseBegin,
	}
}

func TestJournal_AppendCreatesSegmentFile(t *testing.T) {
	j, dir := newTestJournal(t, journal.WithFsyncIntervalMs(0))

	n, err := j.Append(sampleEntry("req-1"), 1234)
	require.NoError(t, err)
	assert.Positive(t, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "wal-1234.ldjson", entries[0].Name())
}

func TestJournal_AppendEveryWriteIsDurableImmediately(t *testing.T) {
	j, dir := newTestJournal(t, journal.WithFsyncIntervalMs(0))

	_, err := j.Append(sampleEntry("req-1"), 1234)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "wal-1234.ldjson"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"requestId":"req-1"`)
}

func TestJournal_ReplayReturnsAppendedLinesInOrder(t *testing.T) {
	j, dir := newTestJournal(t, journal.WithFsyncIntervalMs(0))

	_, err := j.Append(sampleEntry("req-1"), 1000)
	require.NoError(t, err)
	_, err = j.Append(sampleEntry("req-2"), 1000)
	require.NoError(t, err)

	require.NoError(t, j.Close())

	lines, err := journal.Replay(dir)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-1", lines[0].Blob.Meta.RequestID)
	assert.Equal(t, "req-2", lines[1].Blob.Meta.RequestID)
}

func TestJournal_ReplayOrdersAcrossSegments(t *testing.T) {
	j, dir := newTestJournal(t, journal.WithFsyncIntervalMs(0))

	_, err := j.Append(sampleEntry("old"), 1000)
	require.NoError(t, err)
	require.NoError(t, j.Rotate())
	_, err = j.Append(sampleEntry("new"), 2000)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	lines, err := journal.Replay(dir)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "old", lines[0].Blob.Meta.RequestID)
	assert.Equal(t, "new", lines[1].Blob.Meta.RequestID)
}

func TestJournal_ReplayMissingDirReturnsNoError(t *testing.T) {
	lines, err := journal.Replay(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestJournal_ReplaySkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal-1000.ldjson")
	require.NoError(t, os.WriteFile(path, []byte("not json\n{\"appendedAt\":1,\"blob\":{\"meta\":{\"service\":\"gateway\",\"ts\":1,\"requestId\":\"ok\"},\"phase\":\"begin\"}}\n"), 0o644))

	lines, err := journal.Replay(dir)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "ok", lines[0].Blob.Meta.RequestID)
}

func TestJournal_AppendAfterCloseFails(t *testing.T) {
	j, _ := newTestJournal(t, journal.WithFsyncIntervalMs(0))
	_, err := j.Append(sampleEntry("req-1"), 1000)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = j.Append(sampleEntry("req-2"), 1000)
	assert.Error(t, err, "append after Close must fail rather than silently succeed")
}

func TestJournal_TickerCadenceFlushesDirtyWrites(t *testing.T) {
	j, dir := newTestJournal(t, journal.WithFsyncIntervalMs(5))
	_, err := j.Append(sampleEntry("req-1"), 1000)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(filepath.Join(dir, "wal-1000.ldjson"))
		return err == nil && len(b) > 0
	}, 500_000_000, 10_000_000) // 500ms timeout, 10ms tick, avoids time import churn in this helper
}
