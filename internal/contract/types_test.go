package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/svcmesh/internal/contract"
)

func TestAuditBatch_Validate(t *testing.T) {
	assert.Error(t, contract.AuditBatch{}.Validate(), "empty batch must be rejected")

	httpOK := 200
	valid := contract.AuditBatch{Entries: []contract.AuditEntry{
		{Meta: contract.AuditMeta{RequestID: "req-1"}, Phase: contract.PhaseBegin},
		{Meta: contract.AuditMeta{RequestID: "req-1"}, Phase: contract.PhaseEnd, HTTPCode: &httpOK},
	}}
	assert.NoError(t, valid.Validate())

	missingID := contract.AuditBatch{Entries: []contract.AuditEntry{{Phase: contract.PhaseBegin}}}
	assert.Error(t, missingID.Validate())

	badPhase := contract.AuditBatch{Entries: []contract.AuditEntry{
		{Meta: contract.AuditMeta{RequestID: "req-1"}, Phase: "bogus"},
	}}
	assert.Error(t, badPhase.Validate())

	badCode := 999
	badHTTPCode := contract.AuditBatch{Entries: []contract.AuditEntry{
		{Meta: contract.AuditMeta{RequestID: "req-1"}, Phase: contract.PhaseEnd, HTTPCode: &badCode},
	}}
	assert.Error(t, badHTTPCode.Validate())
}

func TestNewAuditRecord_BillableOnlyOnSuccessfulFinish(t *testing.T) {
	r := contract.NewAuditRecord("req-1", "gateway", "GET", "/v1/widgets", "widgets", 200, 1000, 1500, contract.FinalizeFinish)
	assert.Equal(t, "evt-req-1-1500", r.EventID)
	assert.Equal(t, int64(500), r.DurationMS)
	assert.Equal(t, 1, r.BillableUnits)
}

func TestNewAuditRecord_ErrorStatusNotBillable(t *testing.T) {
	r := contract.NewAuditRecord("req-1", "gateway", "GET", "/v1/widgets", "widgets", 500, 1000, 1500, contract.FinalizeFinish)
	assert.Zero(t, r.BillableUnits)
}

func TestNewAuditRecord_NonFinishReasonNotBillable(t *testing.T) {
	r := contract.NewAuditRecord("req-1", "gateway", "GET", "/v1/widgets", "widgets", 200, 1000, 1500, contract.FinalizeTimeout)
	assert.Zero(t, r.BillableUnits)
}

func TestNewAuditRecord_DurationNeverNegative(t *testing.T) {
	r := contract.NewAuditRecord("req-1", "gateway", "GET", "/v1/widgets", "widgets", 200, 2000, 1500, contract.FinalizeFinish)
	assert.Zero(t, r.DurationMS)
}

func TestMakeOKAndMakeProblem(t *testing.T) {
	env := contract.MakeOK("gateway", 200, map[string]string{"k": "v"})
	assert.True(t, env.OK)
	assert.Equal(t, 200, env.Data.Status)

	p := contract.MakeProblem(404, "not found", "no such route")
	require.Equal(t, "about:blank", p.Type)
	assert.Equal(t, 404, p.Status)
}
