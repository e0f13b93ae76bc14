package wren

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/perchlabs/wren/sasl"
)

// Config describes a Server. The zero value is usable for testing once
// Delivery is set; NewServer fills in defaults for everything else.
type Config struct {
	// Hostname is announced in the greeting, EHLO response and
	// Received headers. Defaults to "localhost".
	Hostname string

	// Addr is the listen address for ListenAndServe, e.g. ":2525".
	Addr string

	// SoftwareName appears in the greeting banner and Received
	// headers. Defaults to DefaultSoftwareName.
	SoftwareName string

	// MaxLineLength limits command lines, excluding CRLF. Defaults to
	// 998 (RFC 2822).
	MaxLineLength int

	// MaxMessageSize limits message bodies in bytes, advertised via
	// the EHLO SIZE extension. 0 means unlimited.
	MaxMessageSize int64

	// MaxRecipients limits recipients per transaction. 0 means
	// unlimited.
	MaxRecipients int

	// MaxConnections limits concurrent client connections. Clients
	// over the limit are greeted with a 421 and disconnected. 0 means
	// unlimited.
	MaxConnections int

	// MemoryThreshold is the body size at which the engine spools the
	// message to a temporary file instead of RAM. Defaults to 5 MiB.
	MemoryThreshold int

	// ReadTimeout bounds each wait for a client line. Defaults to one
	// minute.
	ReadTimeout time.Duration

	// WriteTimeout bounds each reply write. Defaults to 30 seconds.
	WriteTimeout time.Duration

	// TLSConfig enables STARTTLS when non-nil.
	TLSConfig *tls.Config

	// EnforceTLS requires STARTTLS before MAIL, RCPT and DATA.
	EnforceTLS bool

	// HideTLS suppresses the STARTTLS line in the EHLO response while
	// still accepting the command.
	HideTLS bool

	// Mechanisms lists the SASL mechanisms offered via AUTH. Empty
	// means authentication is not supported.
	Mechanisms []sasl.Factory

	// Validator checks AUTH credentials. Required when Mechanisms is
	// non-empty.
	Validator Validator

	// RequireAuth requires a successful AUTH before MAIL, RCPT and
	// DATA.
	RequireAuth bool

	// DisableReceivedHeader skips prepending the Received trace header
	// to delivered messages.
	DisableReceivedHeader bool

	// DisableReverseLookup skips the PTR lookup when building the
	// Received header; the header then carries the address literal
	// only.
	DisableReverseLookup bool

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Delivery creates the per-transaction message handlers. Required.
	Delivery HandlerFactory
}

// withDefaults returns a copy of the config with unset fields filled
// in.
func (c Config) withDefaults() Config {
	if c.Hostname == "" {
		c.Hostname = "localhost"
	}
	if c.SoftwareName == "" {
		c.SoftwareName = DefaultSoftwareName
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = 998
	}
	if c.MemoryThreshold <= 0 {
		c.MemoryThreshold = 5 * 1024 * 1024
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Minute
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
