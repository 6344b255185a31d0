package auditsvc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/svcmesh/internal/auditsvc"
	"github.com/arc-self/svcmesh/internal/contract"
)

type fakeStore struct {
	inserted [][]contract.AuditEntry
	failWith error
}

func (s *fakeStore) InsertBatch(ctx context.Context, entries []contract.AuditEntry) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.inserted = append(s.inserted, entries)
	return nil
}

func sampleBatch() contract.AuditBatch {
	return contract.AuditBatch{Entries: []contract.AuditEntry{
		{Meta: contract.AuditMeta{Service: "gateway", TS: 1, RequestID: "req-1"}, Phase: contract.PhaseBegin},
		{Meta: contract.AuditMeta{Service: "gateway", TS: 2, RequestID: "req-1"}, Phase: contract.PhaseEnd, Status: "ok"},
	}}
}

func TestService_Accept_PersistsAndReturnsCount(t *testing.T) {
	store := &fakeStore{}
	svc := auditsvc.New(store)

	accepted, err := svc.Accept(context.Background(), sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	require.Len(t, store.inserted, 1)
	assert.Len(t, store.inserted[0], 2)
}

func TestService_Accept_RejectsEmptyBatch(t *testing.T) {
	svc := auditsvc.New(&fakeStore{})
	_, err := svc.Accept(context.Background(), contract.AuditBatch{})
	require.Error(t, err)
	cerr, ok := err.(*contract.Error)
	require.True(t, ok)
	assert.Equal(t, "AUDIT_BLOB_INVALID", cerr.Code)
}

func TestService_Accept_RejectsUnknownPhase(t *testing.T) {
	svc := auditsvc.New(&fakeStore{})
	batch := contract.AuditBatch{Entries: []contract.AuditEntry{
		{Meta: contract.AuditMeta{Service: "gateway", RequestID: "req-1"}, Phase: "middle"},
	}}
	_, err := svc.Accept(context.Background(), batch)
	require.Error(t, err)
	cerr, ok := err.(*contract.Error)
	require.True(t, ok)
	assert.Equal(t, "BLOB_INVALID_PHASE", cerr.Code)
}

func TestService_Accept_NilStoreReturnsWalNotReady(t *testing.T) {
	svc := auditsvc.New(nil)
	_, err := svc.Accept(context.Background(), sampleBatch())
	require.Error(t, err)
	cerr, ok := err.(*contract.Error)
	require.True(t, ok)
	assert.Equal(t, "WAL_NOT_READY", cerr.Code)
	assert.Equal(t, 503, cerr.Status)
}
