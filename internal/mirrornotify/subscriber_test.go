package mirrornotify_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/mirrornotify"
)

type fakeInvalidator struct {
	calls atomic.Int32
}

func (f *fakeInvalidator) Invalidate() {
	f.calls.Add(1)
}

func TestSubscriber_RunReturnsOnContextCancel(t *testing.T) {
	inv := &fakeInvalidator{}
	sub := mirrornotify.NewSubscriber("127.0.0.1:0", inv, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	assert.Equal(t, int32(0), inv.calls.Load())
}
