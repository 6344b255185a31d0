package s2s_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/s2s"
)

type fakeMirror struct {
	records map[string]contract.ServiceConfigRecord
}

func (f *fakeMirror) GetBySlugVersion(key string) (contract.ServiceConfigRecord, bool) {
	r, ok := f.records[key]
	return r, ok
}

func TestResolver_ResolvesFromMirror(t *testing.T) {
	rec := contract.ServiceConfigRecord{Slug: "billing", Version: 1, BaseURL: "http://billing.internal:8080", OutboundAPIPrefix: "/api"}
	m := &fakeMirror{records: map[string]contract.ServiceConfigRecord{"billing@1": rec}}
	r := s2s.NewResolver(m, "facilitator", "http://facilitator.internal:9000", time.Minute)
	defer r.Close()

	target, err := r.Resolve("billing", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://billing.internal:8080/api/billing/v1", target.ComposedBase)
}

func TestResolver_FacilitatorIsSpecialCased(t *testing.T) {
	m := &fakeMirror{records: map[string]contract.ServiceConfigRecord{}}
	r := s2s.NewResolver(m, "facilitator", "http://facilitator.internal:9000", time.Minute)
	defer r.Close()

	target, err := r.Resolve("facilitator", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://facilitator.internal:9000", target.ComposedBase)
}

func TestResolver_MissReturnsError(t *testing.T) {
	m := &fakeMirror{records: map[string]contract.ServiceConfigRecord{}}
	r := s2s.NewResolver(m, "facilitator", "http://facilitator.internal:9000", time.Minute)
	defer r.Close()

	_, err := r.Resolve("missing", 1)
	assert.Error(t, err)
}
