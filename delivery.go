package wren

import (
	"context"
	"io"
	"net"
)

// SessionInfo describes the connection a mail transaction arrived on.
// It is handed to the HandlerFactory when a transaction starts.
type SessionInfo struct {
	// ID is the engine-assigned session identifier. It is stable across
	// a STARTTLS upgrade.
	ID string

	// RemoteAddr is the client's network address.
	RemoteAddr net.Addr

	// HeloName is the hostname the client announced in HELO/EHLO, or
	// empty if it has not greeted yet.
	HeloName string

	// TLS reports whether the conversation has been upgraded with
	// STARTTLS.
	TLS bool

	// AuthIdentity is the authenticated identity, or empty when the
	// client has not authenticated.
	AuthIdentity string
}

// Handler receives a single mail transaction. The engine creates one
// Handler per MAIL command and guarantees Done is called exactly once
// when the transaction ends, whether it completed or was aborted by
// RSET, a rejection, an error or disconnect.
//
// All methods are called from the session's goroutine; a Handler never
// sees concurrent calls.
type Handler interface {
	// From is called with the envelope sender. Returning a *Reject
	// refuses the sender and rolls the transaction back.
	From(sender string) error

	// Accept is asked once per RCPT command whether the recipient
	// should be taken. Returning false yields a 553 reply.
	Accept(from, rcpt string) bool

	// Deliver hands over the message body for one recipient. The body
	// reader is only valid for the duration of the call. With multiple
	// recipients Deliver is called once per recipient with a fresh
	// reader over the same bytes.
	Deliver(from, rcpt string, body io.Reader) error

	// Done marks the end of the transaction.
	Done()
}

// HandlerFactory creates one Handler per mail transaction.
type HandlerFactory interface {
	NewHandler(info SessionInfo) Handler
}

// HandlerFactoryFunc adapts a function to the HandlerFactory interface.
type HandlerFactoryFunc func(info SessionInfo) Handler

func (f HandlerFactoryFunc) NewHandler(info SessionInfo) Handler {
	return f(info)
}

// Validator checks AUTH credentials. Return nil to accept,
// ErrLoginFailed to refuse them, or any other error for a temporary
// failure.
type Validator interface {
	Login(ctx context.Context, username, password string) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, username, password string) error

func (f ValidatorFunc) Login(ctx context.Context, username, password string) error {
	return f(ctx, username, password)
}
