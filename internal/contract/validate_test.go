package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arc-self/svcmesh/internal/contract"
)

func validRecord() contract.ServiceConfigRecord {
	return contract.ServiceConfigRecord{
		Slug:              "billing-svc",
		Version:           1,
		BaseURL:           "http://billing.internal:8080",
		OutboundAPIPrefix: "/api",
		ConfigRevision:    1,
	}
}

func TestServiceConfigRecord_Validate(t *testing.T) {
	assert.NoError(t, validRecord().Validate(contract.EnvDev))

	bad := validRecord()
	bad.Slug = "Billing"
	assert.Error(t, bad.Validate(contract.EnvDev))

	bad = validRecord()
	bad.Version = 0
	assert.Error(t, bad.Validate(contract.EnvDev))

	bad = validRecord()
	bad.BaseURL = "billing.internal"
	assert.Error(t, bad.Validate(contract.EnvDev))

	bad = validRecord()
	bad.BaseURL = "http://billing.internal" // no port
	assert.Error(t, bad.Validate(contract.EnvDev), "non-production baseUrl must carry an explicit port")

	prodOK := validRecord()
	prodOK.BaseURL = "https://billing.internal"
	assert.NoError(t, prodOK.Validate(contract.EnvProduction), "production may omit an explicit port")

	bad = validRecord()
	bad.OutboundAPIPrefix = "api"
	assert.Error(t, bad.Validate(contract.EnvDev))

	bad = validRecord()
	bad.OutboundAPIPrefix = "/api/"
	assert.Error(t, bad.Validate(contract.EnvDev))

	bad = validRecord()
	bad.ConfigRevision = 0
	assert.Error(t, bad.Validate(contract.EnvDev))
}

func TestRoutePolicy_Validate(t *testing.T) {
	ok := contract.RoutePolicy{Method: "get", Path: "/v1/widgets", MinAccessLevel: 0}
	assert.NoError(t, ok.Validate())

	bad := contract.RoutePolicy{Method: "get", Path: "/v1/widgets/", MinAccessLevel: 0}
	assert.Error(t, bad.Validate(), "non-normalized path must be rejected, not silently normalized")

	bad = contract.RoutePolicy{Method: "TRACE", Path: "/v1/widgets", MinAccessLevel: 0}
	assert.Error(t, bad.Validate())

	bad = contract.RoutePolicy{Method: "get", Path: "/v1/widgets", MinAccessLevel: -1}
	assert.Error(t, bad.Validate())
}
