package contract

import "fmt"

// ServiceConfigRecord is the identity + routing record for one slug@version.
type ServiceConfigRecord struct {
	Slug               string `json:"slug"`
	Version            int    `json:"version"`
	BaseURL            string `json:"baseUrl"`
	OutboundAPIPrefix  string `json:"outboundApiPrefix"`
	Port               int    `json:"port"`
	Enabled            bool   `json:"enabled"`
	AllowProxy         bool   `json:"allowProxy"`
	InternalOnly       bool   `json:"internalOnly"`
	ExposeHealth       bool   `json:"exposeHealth"`
	ConfigRevision     int    `json:"configRevision"`
	ETag               string `json:"etag"`
	UpdatedAt          string `json:"updatedAt"` // ISO-8601
	UpdatedBy          string `json:"updatedBy"`
}

// Key returns the canonical Mirror key "<slug>@<version>".
func (r ServiceConfigRecord) Key() string {
	return fmt.Sprintf("%s@%d", r.Slug, r.Version)
}

// ComposedBase returns "<baseUrl><outboundApiPrefix>/<slug>/v<version>" —
// the target origin for S2S calls against this record.
func (r ServiceConfigRecord) ComposedBase() string {
	return fmt.Sprintf("%s%s/%s/v%d", r.BaseURL, r.OutboundAPIPrefix, r.Slug, r.Version)
}

// RoutePolicy governs access to one (svcconfigId, version, method, path).
type RoutePolicy struct {
	SvcConfigID    string `json:"svcconfigId"`
	Version        int    `json:"version"`
	Method         string `json:"method"`
	Path           string `json:"path"`
	MinAccessLevel int    `json:"minAccessLevel"`
	Enabled        bool   `json:"enabled"`
	Type           string `json:"type,omitempty"` // "edge" | "s2s"
}

// Key returns the RoutePolicy's unique key.
func (p RoutePolicy) Key() string {
	return fmt.Sprintf("%s@%d:%s:%s", p.SvcConfigID, p.Version, p.Method, p.Path)
}

// AuditTarget identifies the downstream route an audit entry concerns.
type AuditTarget struct {
	Slug    string `json:"slug,omitempty"`
	Version int    `json:"version,omitempty"`
	Route   string `json:"route,omitempty"`
	Method  string `json:"method,omitempty"`
}

// AuditMeta carries identity shared by every audit blob.
type AuditMeta struct {
	Service   string `json:"service"`
	TS        int64  `json:"ts"` // epoch ms
	RequestID string `json:"requestId"`
}

// AuditPhase distinguishes request-begin from request-end audit entries.
type AuditPhase string

const (
	PhaseBegin AuditPhase = "begin"
	PhaseEnd   AuditPhase = "end"
)

// AuditBlob is the loosely-typed audit wire unit: meta, an opaque payload,
// and an optional phase and target. The WAL journals AuditEntry values (see
// WalLine) without inspecting them; only the Audit Receiver validates their
// shape.
type AuditBlob struct {
	Meta   AuditMeta        `json:"meta"`
	Blob   any              `json:"blob"`
	Phase  AuditPhase       `json:"phase,omitempty"`
	Target *AuditTarget     `json:"target,omitempty"`
}

// AuditEntry refines an AuditBlob with the explicit phase/status fields the
// Audit Receiver requires.
type AuditEntry struct {
	Meta     AuditMeta  `json:"meta"`
	Blob     any        `json:"blob"`
	Phase    AuditPhase `json:"phase"`
	Status   string     `json:"status,omitempty"` // "ok" | "error"
	HTTPCode *int       `json:"httpCode,omitempty"`
	Err      string     `json:"err,omitempty"`
	Target   *AuditTarget `json:"target,omitempty"`
}

// AuditBatch is a non-empty slice of AuditEntry, the shape the Audit
// Receiver accepts on POST /entries.
type AuditBatch struct {
	Entries []AuditEntry `json:"entries"`
}

// Validate enforces the AuditBatch non-empty invariant and that every entry
// carries a requestId and a recognized phase.
func (b AuditBatch) Validate() error {
	if len(b.Entries) == 0 {
		return NewError("AUDIT_BLOB_INVALID", 400, "entries must be non-empty")
	}
	for i, e := range b.Entries {
		if e.Meta.RequestID == "" {
			return NewError("BLOB_INVALID_REQUEST_ID", 400, fmt.Sprintf("entries[%d].meta.requestId is required", i))
		}
		if e.Phase != PhaseBegin && e.Phase != PhaseEnd {
			return NewError("BLOB_INVALID_PHASE", 400, fmt.Sprintf("entries[%d].phase must be begin or end", i))
		}
		if e.HTTPCode != nil && (*e.HTTPCode < 100 || *e.HTTPCode > 599) {
			return NewError("BLOB_INVALID_HTTP_CODE", 400, fmt.Sprintf("entries[%d].httpCode out of range", i))
		}
	}
	return nil
}

// FinalizeReason explains why an AuditRecord's END phase was written.
type FinalizeReason string

const (
	FinalizeFinish         FinalizeReason = "finish"
	FinalizeError          FinalizeReason = "error"
	FinalizeTimeout        FinalizeReason = "timeout"
	FinalizeClientAbort    FinalizeReason = "client-abort"
	FinalizeShutdownReplay FinalizeReason = "shutdown-replay"
)

// AuditRecord is the persisted, finalized outcome of one requestId.
type AuditRecord struct {
	EventID        string         `json:"eventId"`
	RequestID      string         `json:"requestId"`
	Service        string         `json:"service"`
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Slug           string         `json:"slug"`
	Status         int            `json:"status"`
	BeginTS        int64          `json:"beginTs"`
	EndTS          int64          `json:"endTs"`
	DurationMS     int64          `json:"durationMs"`
	FinalizeReason FinalizeReason `json:"finalizeReason"`
	BillableUnits  int            `json:"billableUnits"`
}

// NewAuditRecord builds the derived AuditRecord from a BEGIN/END pair,
// computing eventId, durationMs, and billableUnits per the invariants in
// SPEC_FULL.md §3.
func NewAuditRecord(requestID, service, method, path, slug string, status int, beginTS, endTS int64, reason FinalizeReason) AuditRecord {
	duration := endTS - beginTS
	if duration < 0 {
		duration = 0
	}
	billable := 0
	if reason == FinalizeFinish && status >= 200 && status < 400 {
		billable = 1
	}
	return AuditRecord{
		EventID:        fmt.Sprintf("evt-%s-%d", requestID, endTS),
		RequestID:      requestID,
		Service:        service,
		Method:         method,
		Path:           path,
		Slug:           slug,
		Status:         status,
		BeginTS:        beginTS,
		EndTS:          endTS,
		DurationMS:     duration,
		FinalizeReason: reason,
		BillableUnits:  billable,
	}
}

// WalLine is one journaled line: the append timestamp plus the blob.
//
// The spec describes AuditBlob as the opaque wire unit the WAL journals,
// with AuditEntry as its phase/status-refined form. In this implementation
// the only blob kind ever journaled is already phase/status-refined at the
// point of append (the gateway emits a fully-formed AuditEntry for both
// BEGIN and END), so WalLine journals AuditEntry directly rather than
// carrying a redundant wrapper layer — see DESIGN.md.
type WalLine struct {
	AppendedAt int64      `json:"appendedAt"`
	Blob       AuditEntry `json:"blob"`
}

// Envelope is the canonical success response shape.
type Envelope struct {
	OK      bool        `json:"ok"`
	Service string      `json:"service"`
	Data    EnvelopeData `json:"data"`
}

// EnvelopeData carries the inner status/body pair of an Envelope.
type EnvelopeData struct {
	Status int `json:"status"`
	Body   any `json:"body"`
}

// MakeOK constructs a success Envelope.
func MakeOK(service string, status int, body any) Envelope {
	return Envelope{OK: true, Service: service, Data: EnvelopeData{Status: status, Body: body}}
}

// Problem is the RFC 7807 error shape. It is never enveloped.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// MakeProblem constructs a Problem with the conventional "about:blank" type.
func MakeProblem(status int, title, detail string) Problem {
	return Problem{Type: "about:blank", Title: title, Status: status, Detail: detail}
}
