package facilitatorsvc_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/facilitatorsvc"
	"github.com/arc-self/svcmesh/internal/mirror"
)

// fakeQuerier is a hand-rolled function-field fake, matching the Mirror
// Store's own test style (and discovery-service's mock convention).
type fakeQuerier struct {
	listFn           func(ctx context.Context) ([]contract.ServiceConfigRecord, error)
	getFn            func(ctx context.Context, slug string, version int) (contract.ServiceConfigRecord, error)
	listPoliciesFn   func(ctx context.Context, svcConfigID string, version int) ([]contract.RoutePolicy, error)
}

func (q *fakeQuerier) ListActiveServiceConfigs(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
	return q.listFn(ctx)
}

func (q *fakeQuerier) GetServiceConfig(ctx context.Context, slug string, version int) (contract.ServiceConfigRecord, error) {
	if q.getFn == nil {
		return contract.ServiceConfigRecord{}, assertNotFound{}
	}
	return q.getFn(ctx, slug, version)
}

func (q *fakeQuerier) ListRoutePolicies(ctx context.Context, svcConfigID string, version int) ([]contract.RoutePolicy, error) {
	if q.listPoliciesFn == nil {
		return nil, nil
	}
	return q.listPoliciesFn(ctx, svcConfigID, version)
}

type assertNotFound struct{}

func (assertNotFound) Error() string { return "not found" }

func sampleRecord(slug string, version int) contract.ServiceConfigRecord {
	return contract.ServiceConfigRecord{
		Slug:              slug,
		Version:           version,
		BaseURL:           "http://" + slug + ".internal:8080",
		OutboundAPIPrefix: "/api",
		Enabled:           true,
		AllowProxy:        true,
		ConfigRevision:    1,
	}
}

func newService(t *testing.T, q *fakeQuerier) *facilitatorsvc.Service {
	t.Helper()
	store := mirror.New(q, filepath.Join(t.TempDir(), "lkg.json"), time.Minute, zap.NewNop())
	t.Cleanup(store.Close)
	return facilitatorsvc.New(store, q, contract.EnvDev, zap.NewNop())
}

func TestService_GetMirror_ForcesRefreshAndReportsMeta(t *testing.T) {
	q := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return []contract.ServiceConfigRecord{sampleRecord("widgets", 1)}, nil
	}}
	svc := newService(t, q)

	result, err := svc.GetMirror(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Meta.Count)
	assert.Equal(t, mirror.SourceDB, result.Meta.Source)
	_, ok := result.Mirror["widgets@1"]
	assert.True(t, ok)
}

func TestService_PushMirror_RejectsInvalidRecord(t *testing.T) {
	q := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return []contract.ServiceConfigRecord{sampleRecord("widgets", 1)}, nil
	}}
	svc := newService(t, q)
	_, err := svc.GetMirror(context.Background())
	require.NoError(t, err)

	bad := sampleRecord("widgets", 1)
	bad.BaseURL = "not-a-url"
	_, err = svc.PushMirror(context.Background(), []contract.ServiceConfigRecord{bad})
	assert.Error(t, err)
}

func TestService_PushMirror_AcceptsValidBatch(t *testing.T) {
	q := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return []contract.ServiceConfigRecord{sampleRecord("widgets", 1)}, nil
	}}
	svc := newService(t, q)
	_, err := svc.GetMirror(context.Background())
	require.NoError(t, err)

	result, err := svc.PushMirror(context.Background(), []contract.ServiceConfigRecord{
		sampleRecord("widgets", 1), sampleRecord("orders", 1),
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.True(t, result.LkgSaved)
	assert.Equal(t, 2, result.Services)
}

type fakeNotifier struct {
	calls []string
}

func (n *fakeNotifier) PublishInvalidation(slug string, version int, reason string) {
	n.calls = append(n.calls, slug)
}

func TestService_PushMirror_NotifiesSubscribers(t *testing.T) {
	q := &fakeQuerier{listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
		return []contract.ServiceConfigRecord{sampleRecord("widgets", 1)}, nil
	}}
	svc := newService(t, q)
	_, err := svc.GetMirror(context.Background())
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	svc.SetNotifier(notifier)

	_, err = svc.PushMirror(context.Background(), []contract.ServiceConfigRecord{
		sampleRecord("widgets", 1), sampleRecord("orders", 1),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"widgets", "orders"}, notifier.calls)
}

func TestService_Resolve_PartitionsPoliciesByType(t *testing.T) {
	q := &fakeQuerier{
		listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
			return []contract.ServiceConfigRecord{sampleRecord("widgets", 1)}, nil
		},
		listPoliciesFn: func(ctx context.Context, svcConfigID string, version int) ([]contract.RoutePolicy, error) {
			return []contract.RoutePolicy{
				{SvcConfigID: "widgets", Version: 1, Method: "GET", Path: "/items", Enabled: true, Type: "edge"},
				{SvcConfigID: "widgets", Version: 1, Method: "POST", Path: "/items", Enabled: true, Type: "s2s"},
				{SvcConfigID: "widgets", Version: 1, Method: "DELETE", Path: "/items", Enabled: false, Type: "edge"},
			}, nil
		},
	}
	svc := newService(t, q)
	_, err := svc.GetMirror(context.Background())
	require.NoError(t, err)

	result, err := svc.Resolve(context.Background(), "widgets", 1)
	require.NoError(t, err)
	assert.Equal(t, "widgets", result.ServiceConfig.Slug)
	require.Len(t, result.Policies.Edge, 1)
	assert.Equal(t, "/items", result.Policies.Edge[0].Path)
	require.Len(t, result.Policies.S2S, 1)
	assert.Equal(t, "POST", result.Policies.S2S[0].Method)
}

func TestService_Resolve_DisabledRecordRejected(t *testing.T) {
	disabled := sampleRecord("widgets", 1)
	disabled.Enabled = false
	q := &fakeQuerier{
		listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
			return []contract.ServiceConfigRecord{sampleRecord("other", 1)}, nil
		},
		getFn: func(ctx context.Context, slug string, version int) (contract.ServiceConfigRecord, error) {
			return disabled, nil
		},
	}
	svc := newService(t, q)
	_, err := svc.GetMirror(context.Background())
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "widgets", 1)
	require.Error(t, err)
	cerr, ok := err.(*contract.Error)
	require.True(t, ok)
	assert.Equal(t, "service_disabled", cerr.Code)
}

func TestService_Resolve_UnknownKeyIs404(t *testing.T) {
	q := &fakeQuerier{
		listFn: func(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
			return []contract.ServiceConfigRecord{sampleRecord("widgets", 1)}, nil
		},
	}
	svc := newService(t, q)
	_, err := svc.GetMirror(context.Background())
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "nosuch", 1)
	require.Error(t, err)
	cerr, ok := err.(*contract.Error)
	require.True(t, ok)
	assert.Equal(t, "key_not_found", cerr.Code)
}
