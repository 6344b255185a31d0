package auditsvc

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
)

// RegisterRoutes mounts the Audit Receiver's single endpoint, matching
// audit-service/internal/handler.RegisterRoutes's one-function convention.
func RegisterRoutes(e *echo.Echo, svc *Service, logger *zap.Logger) {
	g := e.Group("/api/auditreceiver/v1")
	g.POST("/entries", postEntriesHandler(svc, logger))
}

func postEntriesHandler(svc *Service, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := contract.Verify(c.Request().Header.Get(contract.ContractHeader), contract.ContractIDAuditEntriesV1); err != nil {
			cerr := err.(*contract.Error)
			return c.JSON(cerr.Status, contract.MakeProblem(cerr.Status, cerr.Code, cerr.Detail))
		}

		var batch contract.AuditBatch
		if err := c.Bind(&batch); err != nil {
			return c.JSON(http.StatusBadRequest, contract.MakeProblem(http.StatusBadRequest,
				"invalid request body", err.Error()))
		}

		accepted, err := svc.Accept(c.Request().Context(), batch)
		if err != nil {
			if cerr, ok := err.(*contract.Error); ok {
				return c.JSON(cerr.Status, contract.MakeProblem(cerr.Status, cerr.Code, cerr.Detail))
			}
			logger.Error("auditsvc: accept failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, contract.MakeProblem(http.StatusInternalServerError,
				"audit persistence failed", err.Error()))
		}

		return c.JSON(http.StatusOK, contract.MakeOK("auditreceiver", http.StatusOK,
			map[string]int{"accepted": accepted}))
	}
}
