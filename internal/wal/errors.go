package wal

import (
	"errors"
	"strings"
)

// Classification is the outcome of classifying a writer error, grounded in
// the teacher's audit-service consumer split between msg.Term() (poison
// pill, never redelivered) and msg.Nak() (requeue for retry) — see
// audit-service/internal/consumer/audit.go:processMessage.
type Classification int

const (
	Unknown Classification = iota
	NonRetryable
	Retryable
)

// nonRetryableCodes are contract/schema-invalid codes that can never
// succeed on retry; matching items are quarantined rather than retried.
var nonRetryableCodes = []string{
	"AUDIT_BLOB_INVALID",
	"WRITER_BAD_INPUT",
	"BLOB_INVALID_REQUEST_ID",
	"BLOB_INVALID_PHASE",
	"BLOB_INVALID_HTTP_CODE",
	"contract_id_mismatch",
}

// retryableCodes are transient DB/network codes that an external cadence
// should retry.
var retryableCodes = []string{
	"ETIMEDOUT",
	"ECONNRESET",
	"WRITER_TRANSIENT",
	"DB_WRITE_FAILED",
	"DB_CONN_FAILED",
	"WAL_PERSIST_FAILED",
}

// retryableHeuristics bias unknown errors toward retryable when their
// message suggests a transient condition.
var retryableHeuristics = []string{"timeout", "network", "temporary", "reset", "refused", "unavailable"}

// Classify inspects err and returns whether it is retryable,
// non-retryable, or unknown (callers should treat Unknown as Retryable per
// SPEC_FULL.md §4.2).
func Classify(err error) Classification {
	if err == nil {
		return Unknown
	}
	msg := err.Error()
	for _, code := range nonRetryableCodes {
		if strings.Contains(msg, code) {
			return NonRetryable
		}
	}
	for _, code := range retryableCodes {
		if strings.Contains(msg, code) {
			return Retryable
		}
	}
	lower := strings.ToLower(msg)
	for _, h := range retryableHeuristics {
		if strings.Contains(lower, h) {
			return Retryable
		}
	}
	return Unknown
}

// IsRetryable treats Unknown as retryable, matching the spec's policy that
// unknown errors bias toward retry rather than silent data loss.
func IsRetryable(err error) bool {
	c := Classify(err)
	return c == Retryable || c == Unknown
}

// ErrAppendFailed is returned by Append/AppendBatch when the journal itself
// fails to accept a write.
var ErrAppendFailed = errors.New("WAL_APPEND_FAILED")
