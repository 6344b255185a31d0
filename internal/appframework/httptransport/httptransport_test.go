package httptransport_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/arc-self/svcmesh/internal/appframework/httptransport"
	"github.com/arc-self/svcmesh/internal/contract"
)

func run(env, xfProto string) *httptest.ResponseRecorder {
	e := echo.New()
	h := httptransport.EnforceHTTPS(env)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/widgets/v1/items", nil)
	if xfProto != "" {
		req.Header.Set(echo.HeaderXForwardedProto, xfProto)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h(c)
	return rec
}

func TestEnforceHTTPS_DevAllowsPlainHTTP(t *testing.T) {
	rec := run(contract.EnvDev, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnforceHTTPS_ProductionRedirectsPlainHTTP(t *testing.T) {
	rec := run(contract.EnvProduction, "")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderLocation), "https://")
}

func TestEnforceHTTPS_ProductionAllowsForwardedHTTPS(t *testing.T) {
	rec := run(contract.EnvProduction, "https")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnforceHTTPS_StagingRedirectsPlainHTTP(t *testing.T) {
	rec := run(contract.EnvStaging, "")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
}
