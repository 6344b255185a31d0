package natsclient

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// StreamAuditEvents is the durable stream audit fan-out publishes to.
	StreamAuditEvents = "AUDIT_EVENTS"
	// SubjectAuditEvents captures every finalized audit entry, partitioned
	// by slug so a downstream consumer can subscribe to one service's
	// traffic (e.g. "AUDIT_EVENTS.widgets") or the whole stream
	// ("AUDIT_EVENTS.>").
	SubjectAuditEvents = "AUDIT_EVENTS.>"
)

// ProvisionStreams idempotently ensures the AUDIT_EVENTS JetStream stream
// exists with the correct subject filter. A no-op if the stream already
// exists.
func (c *Client) ProvisionStreams() error {
	_, err := c.JS.StreamInfo(StreamAuditEvents)
	if err == nil {
		c.Log.Info("NATS stream already exists", zap.String("stream", StreamAuditEvents))
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamAuditEvents,
		Subjects:  []string{SubjectAuditEvents},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}
	if _, err := c.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	c.Log.Info("NATS stream provisioned",
		zap.String("stream", StreamAuditEvents),
		zap.String("subject", SubjectAuditEvents))
	return nil
}
