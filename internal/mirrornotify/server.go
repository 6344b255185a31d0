// Package mirrornotify implements the MirrorNotifier gRPC service: the
// Facilitator's optional push-invalidation hint for the Gateway's resolver
// cache (SPEC_FULL.md §6). It is never a substitute for the mandatory
// TTL-pull getWithTtl() path — a subscriber that never connects, or that
// disconnects mid-stream, only loses freshness, never correctness.
//
// Grounded in iam-service/internal/handler/grpc_handler.go's
// UnimplementedXServer embedding idiom.
package mirrornotify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/mirrornotify/proto"
)

// Server implements proto.MirrorNotifierServer, fanning out Invalidation
// messages to every currently-connected WatchInvalidations subscriber.
type Server struct {
	proto.UnimplementedMirrorNotifierServer

	logger *zap.Logger

	mu     sync.Mutex
	nextID int64
	subs   map[int64]chan *proto.Invalidation
}

// NewServer constructs an empty broadcaster.
func NewServer(logger *zap.Logger) *Server {
	return &Server{logger: logger, subs: make(map[int64]chan *proto.Invalidation)}
}

// WatchInvalidations registers stream as a subscriber until the client
// disconnects or the server shuts the stream down.
func (s *Server) WatchInvalidations(_ *proto.Empty, stream proto.MirrorNotifier_WatchInvalidationsServer) error {
	ch := make(chan *proto.Invalidation, 16)
	id := s.register(ch)
	defer s.unregister(id)

	for {
		select {
		case inv, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(inv); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

// PublishInvalidation builds an Invalidation and fans it out. Satisfies
// facilitatorsvc.InvalidationPublisher so facilitatorsvc.Service can hold a
// Server without importing the gRPC proto package.
func (s *Server) PublishInvalidation(slug string, version int, reason string) {
	s.Publish(&proto.Invalidation{Slug: slug, Version: int32(version), Reason: reason})
}

// Publish fans Invalidation out to every connected subscriber. When a
// subscriber's channel is full the invalidation is dropped for that
// subscriber, which stays connected, rather than blocking the publisher —
// a dropped push is a freshness miss, not a correctness failure.
func (s *Server) Publish(inv *proto.Invalidation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- inv:
		default:
			s.logger.Warn("mirrornotify: subscriber channel full, dropping invalidation", zap.Int64("subscriber", id))
		}
	}
}

func (s *Server) register(ch chan *proto.Invalidation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	return id
}

func (s *Server) unregister(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}
