package s2s

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/arc-self/svcmesh/internal/contract"
)

// hopByHopHeaders are stripped before forwarding per RFC 7230 §6.1, never
// forwarded in either direction.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailer", "Transfer-Encoding", "Upgrade", "Authorization",
}

// RawResponse is callRaw's result shape: it never throws on status.
type RawResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Client is the S2S client's public surface: typed DTO calls and raw
// passthrough, both routed through the Resolver.
type Client interface {
	Call(ctx context.Context, slug string, version int, dtoType, op, id string, body any, timeoutMs int) (*contract.Envelope, error)
	// CallRaw passes forProxy through to Preflight unchanged: true for an
	// edge gateway proxy hop (subject to internalOnly/allowProxy), false for
	// an internal S2S call made by the mesh itself (health probes, the
	// audit writer) which must never be blocked by those edge-only checks.
	CallRaw(ctx context.Context, slug string, version int, method, fullPath string, headers http.Header, body io.Reader, timeoutMs int, forProxy bool) (*RawResponse, error)
}

type client struct {
	resolver   *Resolver
	signer     Signer
	issuer     string
	audience   string
	serviceTag string
	httpClient *http.Client
	maxRetries uint64
}

// NewClient constructs the production S2S client.
func NewClient(resolver *Resolver, signer Signer, issuer, audience, serviceTag string) Client {
	return &client{
		resolver:   resolver,
		signer:     signer,
		issuer:     issuer,
		audience:   audience,
		serviceTag: serviceTag,
		httpClient: &http.Client{},
		maxRetries: 3,
	}
}

// crudSuffix builds the method+path suffix per SPEC_FULL.md §4.4.
func crudSuffix(dtoType, op, id string) (method, path string, err error) {
	switch op {
	case "create":
		return http.MethodPut, fmt.Sprintf("/%s/create", dtoType), nil
	case "update":
		return http.MethodPatch, fmt.Sprintf("/%s/update/%s", dtoType, id), nil
	case "read":
		return http.MethodGet, fmt.Sprintf("/%s/read/%s", dtoType, id), nil
	case "delete":
		return http.MethodDelete, fmt.Sprintf("/%s/delete/%s", dtoType, id), nil
	case "list":
		return http.MethodGet, fmt.Sprintf("/%s/list", dtoType), nil
	default:
		return "", "", fmt.Errorf("s2s: unrecognized op %q", op)
	}
}

// Call issues a typed DTO request, building the CRUD-suffix path, minting a
// fresh S2S token, and decoding the canonical response envelope.
func (c *client) Call(ctx context.Context, slug string, version int, dtoType, op, id string, body any, timeoutMs int) (*contract.Envelope, error) {
	target, err := c.resolver.Resolve(slug, version)
	if err != nil {
		return nil, err
	}
	if err := Preflight(target.Record, false); err != nil {
		return nil, err
	}

	method, suffix, err := crudSuffix(dtoType, op, id)
	if err != nil {
		return nil, err
	}

	var buf io.Reader
	if body != nil && method != http.MethodGet && method != http.MethodHead && !(method == http.MethodDelete && id != "") {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("s2s: marshal request body: %w", err)
		}
		buf = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, target.ComposedBase+suffix, buf, slug, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var env contract.Envelope
	if err := c.doWithRetry(req, timeoutMs, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// CallRaw executes a passthrough request against the Mirror-resolved target.
// Only host/port change; body and headers are opaque. It never returns an
// error purely because of a non-2xx upstream status. forProxy must be true
// only for an edge gateway proxy hop; internal callers (health checks, the
// audit writer) pass false so an internalOnly/!allowProxy target doesn't
// reject its own mesh's traffic.
func (c *client) CallRaw(ctx context.Context, slug string, version int, method, fullPath string, headers http.Header, body io.Reader, timeoutMs int, forProxy bool) (*RawResponse, error) {
	target, err := c.resolver.Resolve(slug, version)
	if err != nil {
		return nil, err
	}
	if err := Preflight(target.Record, forProxy); err != nil {
		return nil, err
	}

	requestID := requestIDFrom(headers)
	req, err := c.newRequest(ctx, method, target.ComposedBase+fullPath, body, slug, requestID)
	if err != nil {
		return nil, err
	}
	copyOpaqueHeaders(req.Header, headers)

	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(ctxWithTimeout)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("s2s: callRaw: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s2s: callRaw: read body: %w", err)
	}
	return &RawResponse{Status: resp.StatusCode, Headers: resp.Header, Body: raw}, nil
}

// newRequest builds a request carrying a freshly minted S2S token. Inbound
// client Authorization is never forwarded — callers never pass it in.
func (c *client) newRequest(ctx context.Context, method, url string, body io.Reader, targetSlug, requestID string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("s2s: build request: %w", err)
	}

	token, err := c.signer.Sign(Claims{
		Issuer:   c.issuer,
		Audience: c.audience,
		Subject:  c.serviceTag,
		Service:  targetSlug,
		TTL:      MaxTTL,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("x-request-id", requestID)
	req.Header.Set("x-service-name", c.serviceTag)

	return req, nil
}

func requestIDFrom(h http.Header) string {
	if h == nil {
		return ""
	}
	for _, name := range []string{"x-request-id", "x-correlation-id", "request-id"} {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// copyOpaqueHeaders copies inbound headers onto the outbound request,
// stripping hop-by-hop headers (including Authorization, which is minted
// fresh per hop and never forwarded).
func copyOpaqueHeaders(dst http.Header, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// doWithRetry executes req with capped attempts, exponential backoff, and
// jitter (base ~250ms), decoding the JSON response into dest on a 2xx
// status.
func (c *client) doWithRetry(req *http.Request, timeoutMs int, dest any) error {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		return fmt.Errorf("s2s: timeoutMs is required")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	retrier := backoff.WithMaxRetries(b, c.maxRetries)

	return backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()
		attempt := req.Clone(ctx)

		resp, err := c.httpClient.Do(attempt)
		if err != nil {
			return fmt.Errorf("s2s: call: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("s2s: call: read body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("s2s: call: unexpected status %d: %s", resp.StatusCode, string(raw)))
		}
		if dest != nil {
			if err := json.Unmarshal(raw, dest); err != nil {
				return backoff.Permanent(fmt.Errorf("s2s: call: unmarshal response: %w", err))
			}
		}
		return nil
	}, retrier)
}
