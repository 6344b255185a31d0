package facilitatorsvc

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
)

// RegisterRoutes mounts the Facilitator's three operations onto the Echo
// instance, one function called from cmd/facilitator/main.go, matching
// discovery-service/internal/handler.RegisterRoutes's convention.
func RegisterRoutes(e *echo.Echo, svc *Service, logger *zap.Logger) {
	g := e.Group("/api/facilitator/v1")
	g.GET("/mirror", getMirrorHandler(svc, logger))
	g.POST("/mirror", postMirrorHandler(svc, logger))
	g.GET("/resolve", resolveByQueryHandler(svc, logger))
	g.GET("/resolve/:slug/v:version", resolveByPathHandler(svc, logger))
}

func getMirrorHandler(svc *Service, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		result, err := svc.GetMirror(c.Request().Context())
		if err != nil {
			return problemFromErr(c, err, "mirror unavailable")
		}
		return c.JSON(http.StatusOK, contract.MakeOK("facilitator", http.StatusOK, result))
	}
}

type postMirrorRequest struct {
	Services []contract.ServiceConfigRecord `json:"services"`
}

func postMirrorHandler(svc *Service, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req postMirrorRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, contract.MakeProblem(http.StatusBadRequest,
				"invalid request body", err.Error()))
		}
		if len(req.Services) == 0 {
			return c.JSON(http.StatusBadRequest, contract.MakeProblem(http.StatusBadRequest,
				"invalid push", "services must be non-empty"))
		}

		result, err := svc.PushMirror(c.Request().Context(), req.Services)
		if err != nil {
			logger.Warn("facilitatorsvc: push rejected", zap.Error(err))
			return c.JSON(http.StatusBadRequest, contract.MakeProblem(http.StatusBadRequest,
				"invalid service config", err.Error()))
		}
		return c.JSON(http.StatusOK, contract.MakeOK("facilitator", http.StatusOK, result))
	}
}

func resolveByQueryHandler(svc *Service, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.QueryParam("key")
		slug, version, err := splitKey(key)
		if err != nil {
			return c.JSON(http.StatusBadRequest, contract.MakeProblem(http.StatusBadRequest,
				"invalid key", err.Error()))
		}
		return doResolve(c, svc, logger, slug, version)
	}
}

func resolveByPathHandler(svc *Service, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		slug := c.Param("slug")
		version, err := strconv.Atoi(c.Param("version"))
		if err != nil || version < 1 {
			return c.JSON(http.StatusBadRequest, contract.MakeProblem(http.StatusBadRequest,
				"invalid version", "path version segment must be a positive integer"))
		}
		return doResolve(c, svc, logger, slug, version)
	}
}

func doResolve(c echo.Context, svc *Service, logger *zap.Logger, slug string, version int) error {
	result, err := svc.Resolve(c.Request().Context(), slug, version)
	if err != nil {
		return problemFromErr(c, err, "resolve failed")
	}
	return c.JSON(http.StatusOK, contract.MakeOK("facilitator", http.StatusOK, result))
}

// splitKey parses "slug@version" into its parts.
func splitKey(key string) (string, int, error) {
	parts := strings.SplitN(key, "@", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, contract.NewError("key_invalid", 400, "key must be of the form slug@version")
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil || version < 1 {
		return "", 0, contract.NewError("key_invalid", 400, "key version must be a positive integer")
	}
	return parts[0], version, nil
}

// problemFromErr maps a contract.Error to its carried status/code, and
// anything else (cold-start, unexpected DB errors) to 503/500 per
// SPEC_FULL.md §4.6: cold-start is the only Mirror-GET failure that is ever
// expected, everything else is unexpected.
func problemFromErr(c echo.Context, err error, fallbackTitle string) error {
	if cerr, ok := err.(*contract.Error); ok {
		return c.JSON(cerr.Status, contract.MakeProblem(cerr.Status, cerr.Code, cerr.Detail))
	}
	status := http.StatusInternalServerError
	if strings.Contains(err.Error(), "ColdStartNoDbNoLkg") {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, contract.MakeProblem(status, fallbackTitle, err.Error()))
}
