package wren

import (
	"errors"
	"fmt"
)

// ErrServerClosed is returned by ListenAndServe and Serve after Shutdown.
// A Server cannot be restarted.
var ErrServerClosed = errors.New("wren: server closed")

// ErrLoginFailed is the error a Validator returns when the supplied
// credentials are wrong. It maps to a 535 reply. Any other validator
// error is treated as a temporary failure and maps to a 454 reply.
var ErrLoginFailed = errors.New("wren: login failed")

// Reject aborts the current command with a specific SMTP reply. Delivery
// handlers and validators return it to refuse a sender, recipient or
// message with a reply of their choosing; the session continues.
type Reject struct {
	Code         SMTPCode
	EnhancedCode EnhancedCode
	Message      string
}

// RejectWithCode creates a Reject carrying the given reply.
func RejectWithCode(code SMTPCode, message string) *Reject {
	return &Reject{Code: code, Message: message}
}

func (r *Reject) Error() string {
	return fmt.Sprintf("rejected: %d %s", r.Code, r.Message)
}

// Response returns the SMTP reply this rejection maps to.
func (r *Reject) Response() Response {
	return Response{Code: r.Code, EnhancedCode: r.EnhancedCode, Message: r.Message}
}

// Drop instructs the engine to close the connection. If Response is
// non-nil it is written before the connection is closed.
type Drop struct {
	Response *Response
}

func (d *Drop) Error() string {
	return "dropping connection"
}
