// Package mirror implements the Mirror Store: a TTL-refreshed in-memory map
// of slug@version -> ServiceConfigRecord, read-through DB -> filesystem LKG
// -> cold-start failure, with atomic LKG writes and trusted push
// replacement.
//
// Grounded in the teacher's discovery-service/internal/service package for
// the pgx-backed Querier-as-interface idiom and in
// apps/cdc-worker/cmd/worker/main.go for the overall boot/shutdown posture
// this store is constructed under.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
)

// ErrColdStartNoDbNoLkg is returned when neither the DB nor a filesystem LKG
// can seed the Mirror. Callers must surface 503.
var ErrColdStartNoDbNoLkg = errors.New("ColdStartNoDbNoLkg")

// Source tags where the current snapshot came from.
type Source string

const (
	SourceDB  Source = "db"
	SourceLKG Source = "lkg"
)

// Querier loads the active (enabled) service config records from the
// system of record. Implemented by internal/facilitatorsvc/db.
type Querier interface {
	ListActiveServiceConfigs(ctx context.Context) ([]contract.ServiceConfigRecord, error)
}

// Snapshot is an immutable view of the Mirror at a point in time.
type Snapshot struct {
	Records   map[string]contract.ServiceConfigRecord
	Source    Source
	FetchedAt time.Time
}

const snapshotCacheKey = "current"

// Store is the Mirror Store. All entries are enabled=true by invariant;
// disabled records are filtered out before being adopted.
type Store struct {
	querier Querier
	lkg     *lkgStore
	ttl     time.Duration
	logger  *zap.Logger

	cache *ttlcache.Cache

	mu   sync.RWMutex
	snap *Snapshot
}

// New constructs a Mirror Store. lkgPath is the filesystem path for the
// last-known-good document; ttl governs how long a snapshot is served
// without attempting a refresh.
func New(querier Querier, lkgPath string, ttl time.Duration, logger *zap.Logger) *Store {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &Store{
		querier: querier,
		lkg:     &lkgStore{path: lkgPath},
		ttl:     ttl,
		logger:  logger,
		cache:   cache,
	}
}

// GetWithTTL returns the current snapshot, refreshing it if the TTL has
// expired. Order per SPEC_FULL.md §4.3: fresh in-memory -> DB -> filesystem
// LKG -> cold-start failure.
func (s *Store) GetWithTTL(ctx context.Context) (*Snapshot, error) {
	if _, err := s.cache.Get(snapshotCacheKey); err == nil {
		s.mu.RLock()
		snap := s.snap
		s.mu.RUnlock()
		if snap != nil {
			return snap, nil
		}
	}

	if snap, err := s.loadFromDB(ctx); err == nil {
		return snap, nil
	} else {
		s.logger.Warn("mirror: DB load failed, falling back to LKG", zap.Error(err))
	}

	if snap, err := s.loadFromLKG(); err == nil {
		return snap, nil
	} else {
		s.logger.Error("mirror: LKG load failed", zap.Error(err))
	}

	s.mu.RLock()
	existing := s.snap
	s.mu.RUnlock()
	if existing != nil {
		// Serve a stale snapshot rather than hard-failing if one exists.
		return existing, nil
	}
	return nil, ErrColdStartNoDbNoLkg
}

func (s *Store) loadFromDB(ctx context.Context) (*Snapshot, error) {
	records, err := s.querier.ListActiveServiceConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("mirror: list active service configs: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("mirror: DB returned zero active service configs")
	}
	snap := s.adopt(records, SourceDB, time.Now())
	if err := s.lkg.write(snap); err != nil {
		s.logger.Warn("mirror: LKG write failed after DB adoption", zap.Error(err))
	}
	return snap, nil
}

func (s *Store) loadFromLKG() (*Snapshot, error) {
	doc, err := s.lkg.read()
	if err != nil {
		return nil, err
	}
	records := make([]contract.ServiceConfigRecord, 0, len(doc.Payload))
	for _, r := range doc.Payload {
		records = append(records, r)
	}
	return s.adopt(records, SourceLKG, doc.UpdatedAt), nil
}

// ReplaceWithPush atomically adopts the supplied records as a trusted push,
// persists the LKG, and returns the resulting snapshot. LKG write failure
// does not fail the push — in-memory adoption has already succeeded.
func (s *Store) ReplaceWithPush(records []contract.ServiceConfigRecord) (*Snapshot, error) {
	snap := s.adopt(records, SourceDB, time.Now())
	if err := s.lkg.write(snap); err != nil {
		return snap, fmt.Errorf("mirror: lkg write: %w", err)
	}
	return snap, nil
}

// adopt filters to enabled records, builds the snapshot, publishes it, and
// resets the TTL window.
func (s *Store) adopt(records []contract.ServiceConfigRecord, source Source, fetchedAt time.Time) *Snapshot {
	m := make(map[string]contract.ServiceConfigRecord, len(records))
	for _, r := range records {
		if !r.Enabled {
			continue
		}
		m[r.Key()] = r
	}
	snap := &Snapshot{Records: m, Source: source, FetchedAt: fetchedAt}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	s.cache.SetWithTTL(snapshotCacheKey, true, s.ttl)
	return snap
}

// GetBySlugVersion looks up a single record by its "<slug>@<version>" key
// in the current snapshot without forcing a refresh.
func (s *Store) GetBySlugVersion(key string) (contract.ServiceConfigRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return contract.ServiceConfigRecord{}, false
	}
	r, ok := s.snap.Records[key]
	return r, ok
}

// Keys returns a sorted list of every key in the current snapshot.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil
	}
	keys := make([]string, 0, len(s.snap.Records))
	for k := range s.snap.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of entries in the current snapshot.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return 0
	}
	return len(s.snap.Records)
}

// ToObject returns the stable wire representation of the current snapshot's
// records, suitable for GET /mirror.
func (s *Store) ToObject() map[string]contract.ServiceConfigRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return map[string]contract.ServiceConfigRecord{}
	}
	out := make(map[string]contract.ServiceConfigRecord, len(s.snap.Records))
	for k, v := range s.snap.Records {
		out[k] = v
	}
	return out
}

// Invalidate expires the current TTL window immediately, forcing the next
// GetWithTTL call to refresh from the DB rather than waiting out the
// remaining TTL. Used by the optional gRPC MirrorNotifier push-invalidation
// subscriber (internal/mirrornotify) as a freshness hint only — a missed or
// delayed invalidation never affects correctness, since GetWithTTL's own
// TTL expiry still refreshes it on schedule.
func (s *Store) Invalidate() {
	s.cache.Remove(snapshotCacheKey)
}

// Close releases the TTL cache's background goroutine.
func (s *Store) Close() {
	s.cache.Close()
}
