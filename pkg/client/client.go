// Package client provides the JetStream client used by Talaria services. It
// manages the NATS connection and exposes the message service once
// connected.
package client

import (
	"context"

	natsclient "github.com/nats-io/nats.go"
	"github.com/wehubfusion/Talaria/internal/nats"
	sdkerrors "github.com/wehubfusion/Talaria/pkg/errors"
	"github.com/wehubfusion/Talaria/pkg/message"
	"go.uber.org/zap"
)

// Client is the entry point for all JetStream operations. It must be
// connected with Connect before use and closed when done.
type Client struct {
	conn   *natsclient.Conn
	js     natsclient.JetStreamContext
	config *nats.ConnectionConfig
	logger *zap.Logger

	// Messages provides publish and pull-consume operations. Nil until
	// Connect succeeds.
	Messages *message.Service
}

// NewClient creates a client with default configuration for the given URL.
func NewClient(url string) *Client {
	return &Client{
		config: nats.DefaultConnectionConfig(url),
		logger: zap.NewNop(),
	}
}

// NewClientWithConfig creates a client with full control over connection
// parameters.
func NewClientWithConfig(config *nats.ConnectionConfig) *Client {
	return &Client{
		config: config,
		logger: zap.NewNop(),
	}
}

// SetLogger sets a custom zap logger for the client.
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Connect establishes the NATS connection, initializes the JetStream
// context, and wires up the message service. JetStream must be enabled on
// the server.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	conn, err := nats.Connect(ctx, c.config, c.logger)
	if err != nil {
		return sdkerrors.NewError("CONNECTION_FAILED", "failed to connect to NATS", err)
	}
	c.conn = conn

	js, err := conn.JetStream()
	if err != nil {
		_ = nats.Close(c.conn)
		c.conn = nil
		return sdkerrors.NewError("JETSTREAM_NOT_ENABLED", "JetStream is not enabled on the NATS server", err)
	}
	c.js = js

	svc, err := message.NewService(js, c.config.ResultSubject, c.config.PublishMaxRetries, c.logger)
	if err != nil {
		_ = nats.Close(c.conn)
		c.conn = nil
		c.js = nil
		return sdkerrors.NewError("SERVICE_INIT_FAILED", "failed to initialize message service", err)
	}
	c.Messages = svc

	return nil
}

// Close drains the connection and releases all resources.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	if err := nats.Close(c.conn); err != nil {
		return sdkerrors.NewError("CLOSE_FAILED", "failed to close connection", err)
	}

	c.conn = nil
	c.js = nil
	c.Messages = nil
	return nil
}

// IsConnected reports whether the client is currently connected.
func (c *Client) IsConnected() bool {
	return nats.IsConnected(c.conn)
}

// JetStream returns the JetStream context for advanced operations, or nil if
// not connected.
func (c *Client) JetStream() natsclient.JetStreamContext {
	return c.js
}
