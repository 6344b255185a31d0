// Package auditwriter implements the WAL Engine's production Writer: it
// posts a batch of AuditEntry values to the Audit Receiver's POST /entries
// over the S2S client, the same raw-passthrough path the Gateway uses for
// proxying, grounded in internal/s2s.Client.CallRaw.
package auditwriter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/s2s"
)

// HTTPWriter satisfies wal.Writer by forwarding entries to the Audit
// Receiver.
type HTTPWriter struct {
	client          s2s.Client
	receiverSlug    string
	receiverVersion int
	timeoutMs       int
}

// New constructs an HTTPWriter targeting the Audit Receiver's
// receiverSlug@receiverVersion.
func New(client s2s.Client, receiverSlug string, receiverVersion int) *HTTPWriter {
	return &HTTPWriter{client: client, receiverSlug: receiverSlug, receiverVersion: receiverVersion, timeoutMs: 5000}
}

type entriesResponse struct {
	OK   bool `json:"ok"`
	Data struct {
		Body struct {
			Accepted int `json:"accepted"`
		} `json:"body"`
	} `json:"data"`
}

// Write implements wal.Writer. A transport failure or a 5xx response is
// returned as WRITER_TRANSIENT, a retryable failure: the batch stays queued
// and is retried on the next Flush, since the entries are already durable
// in the journal. Any other non-2xx response is returned as
// WRITER_BAD_INPUT, which the WAL classifies as non-retryable and retries
// item by item, quarantining the items that still fail. An undecodable
// response body yields an unclassified error, which the WAL retries.
func (w *HTTPWriter) Write(ctx context.Context, batch []contract.AuditEntry) (int, error) {
	payload, err := json.Marshal(contract.AuditBatch{Entries: batch})
	if err != nil {
		return 0, fmt.Errorf("auditwriter: marshal batch: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set(contract.ContractHeader, contract.ContractIDAuditEntriesV1)

	// The resolved target's ComposedBase already ends in
	// "/<receiverSlug>/v<receiverVersion>", so only "/entries" is appended.
	// forProxy=false: this is an internal S2S call, not an edge proxy hop, so
	// an internalOnly/!allowProxy audit receiver must not reject its own
	// mesh's WAL flushes per spec.md §4.4.
	resp, err := w.client.CallRaw(ctx, w.receiverSlug, w.receiverVersion, http.MethodPost,
		"/entries", headers, bytes.NewReader(payload), w.timeoutMs, false)
	if err != nil {
		// A transport-level failure (the receiver unreachable, DNS, reset)
		// is transient by nature; bias it retryable explicitly rather than
		// leaving classification to string heuristics alone.
		return 0, fmt.Errorf("WRITER_TRANSIENT: auditwriter: %w", err)
	}
	if resp.Status >= 500 {
		return 0, fmt.Errorf("WRITER_TRANSIENT: auditwriter: receiver returned %d: %s", resp.Status, string(resp.Body))
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return 0, fmt.Errorf("WRITER_BAD_INPUT: auditwriter: receiver returned %d: %s", resp.Status, string(resp.Body))
	}

	var decoded entriesResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return 0, fmt.Errorf("auditwriter: decode response: %w", err)
	}
	return decoded.Data.Body.Accepted, nil
}
