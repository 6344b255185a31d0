package gatewaysvc

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
)

// auditBeginMiddleware is step 4 of the pipeline. It appends a BEGIN entry
// to the WAL before the request is forwarded, using the slug/version/route
// parsed from the original URL (the proxy step downstream may rewrite the
// path it actually sends upstream, so this must run first). A WAL append
// failure hard-stops the request: an unaudited proxy is worse than a
// rejected one.
func (g *Gateway) auditBeginMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		parsed, _ := c.Get(ctxKeyParsedPath).(ParsedPath)
		requestID, _ := c.Get(ctxKeyRequestID).(string)
		beginTS := time.Now().UnixMilli()
		c.Set(ctxKeyBeginTS, beginTS)

		begin := contract.AuditEntry{
			Meta: contract.AuditMeta{
				Service:   g.serviceTag,
				TS:        beginTS,
				RequestID: requestID,
			},
			Phase: contract.PhaseBegin,
			Target: &contract.AuditTarget{
				Slug:    parsed.Slug,
				Version: parsed.Version,
				Route:   parsed.Subpath,
				Method:  c.Request().Method,
			},
		}
		if err := g.wal.Append(begin); err != nil {
			g.logger.Error("gatewaysvc: audit BEGIN append failed, hard-stopping request",
				zap.String("requestId", requestID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, contract.MakeProblem(http.StatusInternalServerError,
				"audit_begin_hard_stop", "the request was not accepted because it could not be durably audited"))
		}

		c.Response().After(func() {
			g.auditEnd(c, parsed, requestID, beginTS)
		})

		return next(c)
	}
}

const ctxKeyBeginTS = "gatewaysvc.beginTs"

// auditEnd is step 7 of the pipeline, wired via Echo's response-finish hook
// (the analogue of a response.on('finish') handler): it appends an END
// entry with the final status and triggers a best-effort flush.
func (g *Gateway) auditEnd(c echo.Context, parsed ParsedPath, requestID string, beginTS int64) {
	status := c.Response().Status
	endTS := time.Now().UnixMilli()

	outcome := "ok"
	if status >= 400 {
		outcome = "error"
	}
	httpCode := status

	end := contract.AuditEntry{
		Meta: contract.AuditMeta{
			Service:   g.serviceTag,
			TS:        endTS,
			RequestID: requestID,
		},
		Phase:    contract.PhaseEnd,
		Status:   outcome,
		HTTPCode: &httpCode,
		Target: &contract.AuditTarget{
			Slug:    parsed.Slug,
			Version: parsed.Version,
			Route:   parsed.Subpath,
			Method:  c.Request().Method,
		},
	}

	if err := g.wal.Append(end); err != nil {
		g.logger.Error("gatewaysvc: audit END append failed",
			zap.String("requestId", requestID), zap.Error(err))
		return
	}

	// The request context may already be cancelled by the time the response
	// has finished writing, so the best-effort flush uses a detached context.
	go g.wal.Flush(context.Background())
}
