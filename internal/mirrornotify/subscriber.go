package mirrornotify

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/arc-self/svcmesh/internal/mirrornotify/proto"
)

// Invalidator is the narrow surface a subscriber needs to act on a push
// hint — satisfied by *mirror.Store.
type Invalidator interface {
	Invalidate()
}

// Subscriber connects to a Facilitator's MirrorNotifier service and calls
// Invalidate on every received push, reconnecting with jittered backoff on
// any stream error. It never returns an error to its caller: a permanently
// unreachable Facilitator just means the Gateway falls back entirely to its
// TTL-pull resolve path.
type Subscriber struct {
	target      string
	invalidator Invalidator
	logger      *zap.Logger
}

// NewSubscriber builds a subscriber dialing target (host:port of the
// Facilitator's gRPC listener).
func NewSubscriber(target string, invalidator Invalidator, logger *zap.Logger) *Subscriber {
	return &Subscriber{target: target, invalidator: invalidator, logger: logger}
}

// Run blocks, reconnecting and re-subscribing until ctx is cancelled.
// Intended to be launched in its own goroutine from cmd/gateway/main.go.
func (s *Subscriber) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry forever; this is a supplemental hint, never fatal

	_ = backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			// The server closed the stream cleanly; re-subscribe all the same.
			err = io.EOF
		}
		s.logger.Warn("mirrornotify: subscriber stream ended, reconnecting", zap.Error(err))
		return err
	}, backoff.WithContext(b, ctx))
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	conn, err := grpc.NewClient(s.target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	client := proto.NewMirrorNotifierClient(conn)
	stream, err := client.WatchInvalidations(ctx, &proto.Empty{})
	if err != nil {
		return err
	}
	s.logger.Info("mirrornotify: subscribed", zap.String("target", s.target))

	for {
		inv, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		s.logger.Debug("mirrornotify: invalidation received",
			zap.String("slug", inv.GetSlug()), zap.Int32("version", inv.GetVersion()), zap.String("reason", inv.GetReason()))
		s.invalidator.Invalidate()
	}
}
