// Package natsfanout layers a NATS JetStream publisher on top of the WAL
// Engine's Writer: a genuine supplemental feature (SPEC_FULL.md §4.7) that
// gives downstream consumers a durable event stream instead of forcing them
// to poll the Audit Receiver's HTTP surface.
//
// Grounded in packages/go-core/natsclient's Client{Conn, JS, Log} +
// ProvisionStreams idiom (reused in this repo as internal/natsclient), and
// in the decorator shape the WAL package already uses for its own
// wal.WriterFunc adapter.
package natsfanout

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/arc-self/svcmesh/internal/contract"
	"github.com/arc-self/svcmesh/internal/natsclient"
	"github.com/arc-self/svcmesh/internal/wal"
)

// Publisher is the narrow surface Decorator depends on — satisfied by
// *natsclient.Client, and trivially fakeable in tests without standing up a
// NATS server or stubbing the full nats.JetStreamContext interface.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Decorator wraps a wal.Writer, publishing every successfully-persisted
// entry to AUDIT_EVENTS after the inner Write completes. Publish failures
// are logged and swallowed: fan-out is a freshness hint for downstream
// consumers, never a correctness dependency — the Audit Receiver write
// through inner is what the WAL's single-flight flush/retry logic depends
// on, not this decorator.
type Decorator struct {
	inner     wal.Writer
	publisher Publisher
	logger    *zap.Logger
}

// NewDecorator wraps inner with NATS fan-out over publisher. Call
// client.ProvisionStreams() once at boot before passing client here.
func NewDecorator(inner wal.Writer, publisher Publisher, logger *zap.Logger) *Decorator {
	return &Decorator{inner: inner, publisher: publisher, logger: logger}
}

// Write implements wal.Writer: persist first, fan out best-effort second.
func (d *Decorator) Write(ctx context.Context, batch []contract.AuditEntry) (int, error) {
	accepted, err := d.inner.Write(ctx, batch)
	if err != nil {
		return accepted, err
	}

	for _, entry := range batch {
		payload, marshalErr := json.Marshal(entry)
		if marshalErr != nil {
			d.logger.Warn("natsfanout: marshal entry failed", zap.Error(marshalErr))
			continue
		}
		subject := natsclient.StreamAuditEvents
		if entry.Target != nil && entry.Target.Slug != "" {
			subject = natsclient.StreamAuditEvents + "." + entry.Target.Slug
		}
		if pubErr := d.publisher.Publish(subject, payload); pubErr != nil {
			d.logger.Warn("natsfanout: publish failed", zap.String("subject", subject), zap.Error(pubErr))
		}
	}
	return accepted, nil
}
