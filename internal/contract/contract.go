// Package contract defines the wire shapes shared across the mesh — service
// configuration records, route policies, audit blobs/entries/batches, and
// the canonical success envelope — plus the parse/normalize/verify
// operations every component uses to validate them at the edge.
package contract

import (
	"fmt"
	"regexp"
	"strings"
)

// Contract IDs carried in the X-NV-Contract header.
const (
	ContractIDAuditEntriesV1 = "audit/entries@v1"
	ContractIDMirrorV2       = "mirror@v2"
)

// ContractHeader is the single canonical header name for contract
// negotiation. x-contract-id is a rejected alias, never accepted silently —
// see SPEC_FULL.md §9 (Open Questions).
const ContractHeader = "X-NV-Contract"

// Error is a stable, wire-safe error code paired with an HTTP status and a
// human-readable detail. Every component surfaces errors as *Error so
// middleware can map them to RFC 7807 Problem JSON without ad-hoc bodies.
type Error struct {
	Code   string
	Status int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// NewError constructs a contract Error.
func NewError(code string, status int, detail string) *Error {
	return &Error{Code: code, Status: status, Detail: detail}
}

// Verify checks a received X-NV-Contract header value against the expected
// contract id. Mismatches return contract_id_mismatch with both values in
// the detail so the caller can self-diagnose.
func Verify(headerID, expected string) error {
	if headerID != expected {
		return NewError("contract_id_mismatch", 400,
			fmt.Sprintf("expected: %s, got: %q", expected, headerID))
	}
	return nil
}

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// NormalizeSlug validates a service slug and returns it unchanged. Slugs must already
// be lower-case; this function does not silently fold case, it rejects
// anything that doesn't already match the canonical pattern.
func NormalizeSlug(slug string) (string, error) {
	if !slugPattern.MatchString(slug) {
		return "", NewError("slug_invalid", 400, fmt.Sprintf("slug %q does not match ^[a-z][a-z0-9-]*$", slug))
	}
	return slug, nil
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod upper-cases and validates an HTTP method.
func NormalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if !validMethods[m] {
		return "", NewError("method_invalid", 400, fmt.Sprintf("method %q is not a recognized HTTP method", method))
	}
	return m, nil
}

// NormalizePath normalizes a route path: ensures a leading slash, collapses
// duplicate slashes, strips any trailing slash (except for the root path),
// and rejects query strings or fragments. Idempotent: NormalizePath(NormalizePath(x)) == NormalizePath(x).
func NormalizePath(path string) (string, error) {
	if strings.ContainsAny(path, "?#") {
		return "", NewError("path_invalid", 400, fmt.Sprintf("path %q must not carry a query or fragment", path))
	}
	p := path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		p = "/"
	}
	return p, nil
}
