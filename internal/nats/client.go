// Package nats publishes document change notifications to NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/config"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
)

// clientName identifies the service in NATS connection listings.
const clientName = "chat-sync"

var errPartialCert = errors.New("NATS client certificate needs both cert and key files")

// Config is the change feed connection. An empty URL disables the feed.
type Config struct {
	URL   string
	Token string

	// CAFile alone enables server-verified TLS. CertFile and KeyFile add a
	// client certificate and must be set together.
	CAFile   string
	CertFile string
	KeyFile  string
}

// ConfigFrom extracts the change feed settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		URL:      cfg.NATSURL,
		Token:    cfg.NATSToken,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
	}
}

func (c Config) options(log *logger.Logger) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("change feed disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("change feed reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return nil, errPartialCert
	}
	if c.CAFile != "" {
		opts = append(opts, nats.RootCAs(c.CAFile))
	}
	if c.CertFile != "" {
		opts = append(opts, nats.ClientCert(c.CertFile, c.KeyFile))
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}
	return opts, nil
}

// Client holds the change feed connection.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials NATS and opens a JetStream context. The connection retries
// forever once established; only the initial dial can fail.
func Connect(_ context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	opts, err := cfg.options(log)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &Client{conn: nc, js: js}, nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Close drops the connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// IsConnected reports whether the connection is currently up. Readiness
// fails while it is reconnecting.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
