package natsfanout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/natsfanout"
	"github.com/arc-self/svcmesh/internal/wal"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	failWith  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.published = append(p.published, subject)
	return nil
}

func sampleBatch() []contract.AuditEntry {
	return []contract.AuditEntry{
		{Meta: contract.AuditMeta{RequestID: "req-1"}, Phase: contract.PhaseBegin,
			Target: &contract.AuditTarget{Slug: "widgets"}},
	}
}

func TestDecorator_PublishesAfterInnerWriteSucceeds(t *testing.T) {
	innerCalled := false
	inner := wal.WriterFunc(func(ctx context.Context, batch []contract.AuditEntry) (int, error) {
		innerCalled = true
		return len(batch), nil
	})
	pub := &fakePublisher{}
	d := natsfanout.NewDecorator(inner, pub, zap.NewNop())

	accepted, err := d.Write(context.Background(), sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.True(t, innerCalled)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "AUDIT_EVENTS.widgets", pub.published[0])
}

func TestDecorator_InnerFailureSkipsPublish(t *testing.T) {
	inner := wal.WriterFunc(func(ctx context.Context, batch []contract.AuditEntry) (int, error) {
		return 0, errors.New("boom")
	})
	pub := &fakePublisher{}
	d := natsfanout.NewDecorator(inner, pub, zap.NewNop())

	_, err := d.Write(context.Background(), sampleBatch())
	assert.Error(t, err)
	assert.Empty(t, pub.published)
}

func TestDecorator_PublishFailureDoesNotFailWrite(t *testing.T) {
	inner := wal.WriterFunc(func(ctx context.Context, batch []contract.AuditEntry) (int, error) {
		return len(batch), nil
	})
	pub := &fakePublisher{failWith: errors.New("nats unreachable")}
	d := natsfanout.NewDecorator(inner, pub, zap.NewNop())

	accepted, err := d.Write(context.Background(), sampleBatch())
	assert.NoError(t, err)
	assert.Equal(t, 1, accepted)
}
