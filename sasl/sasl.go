// Package sasl implements the server side of the SASL mechanisms used
// for SMTP authentication (RFC 4954).
package sasl

import "errors"

var (
	// ErrCancelled is returned when the client sends "*" to abort the
	// authentication exchange.
	ErrCancelled = errors.New("authentication cancelled by client")

	// ErrMalformed is returned when decoded authentication data does
	// not have the shape the mechanism requires.
	ErrMalformed = errors.New("malformed authentication data")

	// ErrBadBase64 is returned when a client response is not valid
	// base64.
	ErrBadBase64 = errors.New("invalid base64 encoding")
)

// Credentials holds the identities extracted by a completed exchange.
type Credentials struct {
	AuthorizationID  string // identity to act as (authzid)
	AuthenticationID string // identity being authenticated (authcid)
	Password         string
}

// Identity returns the effective identity for authorization.
func (c *Credentials) Identity() string {
	if c.AuthorizationID != "" {
		return c.AuthorizationID
	}
	return c.AuthenticationID
}

// Mechanism is a single authentication attempt. A new Mechanism is
// created for every AUTH command; instances are not reusable.
//
// Challenges are returned verbatim and sent after "334 "; mechanisms
// that challenge with base64 must return the encoded form.
type Mechanism interface {
	Name() string
	Start(initialResponse string) (challenge string, done bool, err error)
	Next(response string) (challenge string, done bool, err error)
	Credentials() *Credentials
}

// Factory creates a fresh Mechanism for one authentication attempt.
type Factory func() Mechanism
