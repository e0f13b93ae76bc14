package sasl

import (
	"bytes"
	"encoding/base64"
)

// Plain implements the PLAIN mechanism (RFC 4616). Use only over TLS;
// the password travels in clear text.
type Plain struct {
	creds *Credentials
}

// NewPlain creates a PLAIN mechanism handler.
func NewPlain() Mechanism {
	return &Plain{}
}

// Name returns "PLAIN".
func (p *Plain) Name() string {
	return "PLAIN"
}

// Start consumes the initial response, or prompts for one when the
// client sent none.
func (p *Plain) Start(initialResponse string) (challenge string, done bool, err error) {
	if initialResponse == "" {
		return "Ok", false, nil
	}
	return p.consume(initialResponse)
}

// Next consumes the client's response to the prompt.
func (p *Plain) Next(response string) (challenge string, done bool, err error) {
	return p.consume(response)
}

func (p *Plain) consume(response string) (challenge string, done bool, err error) {
	if response == "*" {
		return "", true, ErrCancelled
	}
	decoded, err := base64.StdEncoding.DecodeString(response)
	if err != nil {
		return "", true, ErrBadBase64
	}

	// authzid NUL authcid NUL passwd
	authzid, rest, ok := bytes.Cut(decoded, []byte{0})
	if !ok {
		return "", true, ErrMalformed
	}
	authcid, passwd, ok := bytes.Cut(rest, []byte{0})
	if !ok || len(authcid) == 0 || bytes.IndexByte(passwd, 0) >= 0 {
		return "", true, ErrMalformed
	}

	p.creds = &Credentials{
		AuthorizationID:  string(authzid),
		AuthenticationID: string(authcid),
		Password:         string(passwd),
	}
	return "", true, nil
}

// Credentials returns the extracted credentials after a completed
// exchange, or nil.
func (p *Plain) Credentials() *Credentials {
	return p.creds
}
