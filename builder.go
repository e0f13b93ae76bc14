package wren

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/perchlabs/wren/sasl"
)

// ServerBuilder provides a fluent API for configuring a Server.
//
//	srv, err := wren.NewServerBuilder().
//		WithHostname("mx.example.com").
//		WithAddr(":2525").
//		WithDelivery(factory).
//		WithAuth(validator, sasl.NewPlain, sasl.NewLogin).
//		Build()
type ServerBuilder struct {
	config Config
}

// NewServerBuilder creates a builder with default settings.
func NewServerBuilder() *ServerBuilder {
	return &ServerBuilder{}
}

// WithHostname sets the hostname announced to clients.
func (b *ServerBuilder) WithHostname(hostname string) *ServerBuilder {
	b.config.Hostname = hostname
	return b
}

// WithAddr sets the listen address.
func (b *ServerBuilder) WithAddr(addr string) *ServerBuilder {
	b.config.Addr = addr
	return b
}

// WithSoftwareName sets the software identifier in the banner and
// Received headers.
func (b *ServerBuilder) WithSoftwareName(name string) *ServerBuilder {
	b.config.SoftwareName = name
	return b
}

// WithDelivery sets the per-transaction handler factory.
func (b *ServerBuilder) WithDelivery(factory HandlerFactory) *ServerBuilder {
	b.config.Delivery = factory
	return b
}

// WithMaxMessageSize limits message bodies and enables the SIZE
// extension.
func (b *ServerBuilder) WithMaxMessageSize(size int64) *ServerBuilder {
	b.config.MaxMessageSize = size
	return b
}

// WithMaxRecipients limits recipients per transaction.
func (b *ServerBuilder) WithMaxRecipients(n int) *ServerBuilder {
	b.config.MaxRecipients = n
	return b
}

// WithMaxConnections limits concurrent connections.
func (b *ServerBuilder) WithMaxConnections(n int) *ServerBuilder {
	b.config.MaxConnections = n
	return b
}

// WithTimeouts sets the read and write timeouts.
func (b *ServerBuilder) WithTimeouts(read, write time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	return b
}

// WithTLS enables STARTTLS. When enforce is true, MAIL, RCPT and DATA
// are refused until the connection is upgraded.
func (b *ServerBuilder) WithTLS(config *tls.Config, enforce bool) *ServerBuilder {
	b.config.TLSConfig = config
	b.config.EnforceTLS = enforce
	return b
}

// WithAuth enables AUTH with the given validator and mechanisms.
func (b *ServerBuilder) WithAuth(validator Validator, mechanisms ...sasl.Factory) *ServerBuilder {
	b.config.Validator = validator
	b.config.Mechanisms = mechanisms
	return b
}

// WithRequireAuth refuses MAIL, RCPT and DATA until the client has
// authenticated.
func (b *ServerBuilder) WithRequireAuth() *ServerBuilder {
	b.config.RequireAuth = true
	return b
}

// WithoutReceivedHeader disables the Received trace header.
func (b *ServerBuilder) WithoutReceivedHeader() *ServerBuilder {
	b.config.DisableReceivedHeader = true
	return b
}

// WithLogger sets the structured logger.
func (b *ServerBuilder) WithLogger(logger *slog.Logger) *ServerBuilder {
	b.config.Logger = logger
	return b
}

// Config returns a copy of the accumulated configuration.
func (b *ServerBuilder) Config() Config {
	return b.config
}

// Build creates the Server.
func (b *ServerBuilder) Build() (*Server, error) {
	return NewServer(b.config)
}
