package mirror_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/mirror"
)

// fakeQuerier is a hand-rolled function-field fake, matching the teacher's
// mockQuerier style (see discovery-service's dictionary_service_test.go).
type fakeQuerier struct {
	listFn func(ctx context.Context) ([]contract.ServiceConfigRecord, error)
}

func (q *fakeQuerier) ListActiveServiceConfigs(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
	return q.listFn(ctx)
}

func sampleRecord(slug string, version int) contract.ServiceConfigRecord {
	return contract.ServiceConfigRecord{
		Slug:              slug,
		Version:           version,
		BaseURL:           "http://" + slug + ".internal:8080",
		OutboundAPIPrefix: "/api",
		Enabled:           true,
		ConfigRevision:    1,
	}
}

func TestStore_GetWithTTL_AdoptsFromDB(t *testing.T) {
	q := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return []contract.ServiceConfigRecord{sampleRecord("billing", 1)}, nil
	}}
	s := mirror.New(q, filepath.Join(t.TempDir(), "lkg.json"), time.Minute, zap.NewNop())
	defer s.Close()

	snap, err := s.GetWithTTL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mirror.SourceDB, snap.Source)
	assert.Equal(t, 1, s.Size())
	r, ok := s.GetBySlugVersion("billing@1")
	require.True(t, ok)
	assert.Equal(t, "billing", r.Slug)
}

func TestStore_DisabledRecordsAreFiltered(t *testing.T) {
	q := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		disabled := sampleRecord("off", 1)
		disabled.Enabled = false
		return []contract.ServiceConfigRecord{sampleRecord("on", 1), disabled}, nil
	}}
	s := mirror.New(q, filepath.Join(t.TempDir(), "lkg.json"), time.Minute, zap.NewNop())
	defer s.Close()

	_, err := s.GetWithTTL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Size())
	_, ok := s.GetBySlugVersion("off@1")
	assert.False(t, ok)
}

func TestStore_FallsBackToLKGWhenDBFails(t *testing.T) {
	lkgPath := filepath.Join(t.TempDir(), "lkg.json")
	seed := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return []contract.ServiceConfigRecord{sampleRecord("billing", 1)}, nil
	}}
	seedStore := mirror.New(seed, lkgPath, time.Millisecond, zap.NewNop())
	_, err := seedStore.GetWithTTL(context.Background())
	require.NoError(t, err)
	seedStore.Close()

	failing := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return nil, errors.New("DB_CONN_FAILED")
	}}
	s := mirror.New(failing, lkgPath, time.Millisecond, zap.NewNop())
	defer s.Close()

	time.Sleep(2 * time.Millisecond)
	snap, err := s.GetWithTTL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mirror.SourceLKG, snap.Source)
	assert.Equal(t, 1, s.Size())
}

func TestStore_ColdStartFailsWithNoDbNoLkg(t *testing.T) {
	failing := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return nil, errors.New("DB_CONN_FAILED")
	}}
	s := mirror.New(failing, filepath.Join(t.TempDir(), "missing.json"), time.Millisecond, zap.NewNop())
	defer s.Close()

	_, err := s.GetWithTTL(context.Background())
	assert.ErrorIs(t, err, mirror.ErrColdStartNoDbNoLkg)
}

func TestStore_ReplaceWithPush(t *testing.T) {
	q := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return nil, errors.New("unused")
	}}
	s := mirror.New(q, filepath.Join(t.TempDir(), "lkg.json"), time.Minute, zap.NewNop())
	defer s.Close()

	snap, err := s.ReplaceWithPush([]contract.ServiceConfigRecord{sampleRecord("pushed", 2)})
	require.NoError(t, err)
	assert.Equal(t, mirror.SourceDB, snap.Source)
	assert.Equal(t, []string{"pushed@2"}, s.Keys())
}

func TestStore_FreshSnapshotSkipsRefresh(t *testing.T) {
	calls := 0
	q := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		calls++
		return []contract.ServiceConfigRecord{sampleRecord("billing", 1)}, nil
	}}
	s := mirror.New(q, filepath.Join(t.TempDir(), "lkg.json"), time.Minute, zap.NewNop())
	defer s.Close()

	_, err := s.GetWithTTL(context.Background())
	require.NoError(t, err)
	_, err = s.GetWithTTL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call within TTL must not re-query the DB")
}
