// Package natsclient wraps a NATS connection and its JetStream context,
// adapted verbatim in spirit from packages/go-core/natsclient for the mesh's
// Audit Fan-out supplement (SPEC_FULL.md §4.7): downstream consumers
// subscribe to the durable AUDIT_EVENTS stream rather than re-polling the
// Audit Receiver's HTTP surface.
package natsclient

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
	Log  *zap.Logger
}

// NewClient connects to NATS and initialises a JetStream context.
func NewClient(url string, logger *zap.Logger) (*Client, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	logger.Info("NATS JetStream connected", zap.String("url", url))
	return &Client{Conn: nc, JS: js, Log: logger}, nil
}

// Publish sends data to subject via the JetStream context, returning only
// the error — callers that don't need the PubAck (e.g. best-effort fan-out)
// get a narrow, easily-faked surface instead of the full JetStreamContext.
func (c *Client) Publish(subject string, data []byte) error {
	_, err := c.JS.Publish(subject, data)
	return err
}

// Close drains the connection, flushing pending JetStream publish
// acknowledgments and outstanding deliveries, falling back to a hard close
// if draining itself errors (e.g. already disconnected).
func (c *Client) Close() {
	if c.Conn == nil {
		return
	}
	if err := c.Conn.Drain(); err != nil {
		c.Conn.Close()
	}
}
