package gatewaysvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arc-self/svcmesh/internal/contract"
)

// facilitatorMirrorQuerier implements mirror.Querier by pulling the
// facilitator's GET /mirror snapshot over plain HTTP. The gateway cannot
// use the S2S client for this call: s2s.Client's Resolver needs the Mirror
// populated to resolve anything other than the facilitator itself, and the
// facilitator is always resolved to an explicitly configured base, so a
// bare http.Client with a fixed timeout is used instead — this is the one
// mesh hop that exists to bootstrap the Mirror, not to consume it.
type facilitatorMirrorQuerier struct {
	baseURL    string
	httpClient *http.Client
}

// NewFacilitatorMirrorQuerier constructs the gateway's mirror.Querier
// adapter over the facilitator's GET /mirror endpoint.
func NewFacilitatorMirrorQuerier(baseURL string, timeout time.Duration) *facilitatorMirrorQuerier {
	return &facilitatorMirrorQuerier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type mirrorGetResponse struct {
	Mirror map[string]contract.ServiceConfigRecord `json:"mirror"`
	Meta   struct {
		Source    string `json:"source"`
		FetchedAt string `json:"fetchedAt"`
		Count     int    `json:"count"`
	} `json:"meta"`
}

// ListActiveServiceConfigs satisfies mirror.Querier.
func (q *facilitatorMirrorQuerier) ListActiveServiceConfigs(ctx context.Context) ([]contract.ServiceConfigRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/mirror", nil)
	if err != nil {
		return nil, fmt.Errorf("gatewaysvc: build mirror request: %w", err)
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gatewaysvc: fetch mirror: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gatewaysvc: facilitator /mirror returned %d", resp.StatusCode)
	}

	var body mirrorGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("gatewaysvc: decode mirror response: %w", err)
	}

	records := make([]contract.ServiceConfigRecord, 0, len(body.Mirror))
	for _, r := range body.Mirror {
		records = append(records, r)
	}
	return records, nil
}
