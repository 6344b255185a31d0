package mirrornotify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arc-self/svcmesh/internal/mirrornotify"
	"github.com/arc-self/svcmesh/internal/mirrornotify/proto"
)

type fakeServerStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent []*proto.Invalidation
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }
func (s *fakeServerStream) SendMsg(m interface{}) error {
	s.sent = append(s.sent, m.(*proto.Invalidation))
	return nil
}

func TestServer_PublishFansOutToConnectedSubscriber(t *testing.T) {
	srv := mirrornotify.NewServer(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeServerStream{ctx: ctx}

	done := make(chan error, 1)
	go func() {
		done <- srv.WatchInvalidations(&proto.Empty{}, &wrappedStream{fakeServerStream: stream})
	}()

	// Give WatchInvalidations a moment to register before publishing.
	time.Sleep(20 * time.Millisecond)
	srv.Publish(&proto.Invalidation{Slug: "widgets", Version: 1, Reason: "mirror_push"})
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, stream.sent, 1)
	assert.Equal(t, "widgets", stream.sent[0].GetSlug())
}

func TestServer_PublishWithNoSubscribersIsNoop(t *testing.T) {
	srv := mirrornotify.NewServer(zap.NewNop())
	srv.Publish(&proto.Invalidation{Slug: "widgets", Version: 1})
}

// wrappedStream adapts fakeServerStream to proto.MirrorNotifier_WatchInvalidationsServer,
// since that interface additionally requires Send(*Invalidation) which the
// generated server-stream wrapper normally provides over SendMsg.
type wrappedStream struct {
	*fakeServerStream
}

func (w *wrappedStream) Send(m *proto.Invalidation) error {
	return w.SendMsg(m)
}
