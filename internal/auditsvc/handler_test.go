package auditsvc_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/auditsvc"
	"github.com/arc-self/svcmesh/internal/contract"
)

func newTestServer(svc *auditsvc.Service) *echo.Echo {
	e := echo.New()
	auditsvc.RegisterRoutes(e, svc, zap.NewNop())
	return e
}

func TestHandler_PostEntries_AcceptsValidBatch(t *testing.T) {
	e := newTestServer(auditsvc.New(&fakeStore{}))

	body, _ := json.Marshal(sampleBatch())
	req := httptest.NewRequest(http.MethodPost, "/api/auditreceiver/v1/entries", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(contract.ContractHeader, contract.ContractIDAuditEntriesV1)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		OK   bool `json:"ok"`
		Data struct {
			Body struct {
				Accepted int `json:"accepted"`
			} `json:"body"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.OK)
	assert.Equal(t, 2, env.Data.Body.Accepted)
}

func TestHandler_PostEntries_RejectsContractMismatch(t *testing.T) {
	e := newTestServer(auditsvc.New(&fakeStore{}))

	body, _ := json.Marshal(sampleBatch())
	req := httptest.NewRequest(http.MethodPost, "/api/auditreceiver/v1/entries", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(contract.ContractHeader, "mirror@v2")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_PostEntries_NotReadyReturns503(t *testing.T) {
	e := newTestServer(auditsvc.New(nil))

	body, _ := json.Marshal(sampleBatch())
	req := httptest.NewRequest(http.MethodPost, "/api/auditreceiver/v1/entries", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(contract.ContractHeader, contract.ContractIDAuditEntriesV1)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
