package sasl

import "encoding/base64"

const (
	loginStateUsername = iota
	loginStatePassword
	loginStateDone
)

// Base64-encoded challenge strings for the LOGIN mechanism.
const (
	// LoginChallengeUsername is "Username:" in base64.
	LoginChallengeUsername = "VXNlcm5hbWU6"
	// LoginChallengePassword is "Password:" in base64.
	LoginChallengePassword = "UGFzc3dvcmQ6"
)

// Login implements the obsolete LOGIN mechanism, kept for legacy client
// compatibility. Prefer PLAIN.
type Login struct {
	state    int
	username string
	creds    *Credentials
}

// NewLogin creates a LOGIN mechanism handler.
func NewLogin() Mechanism {
	return &Login{state: loginStateUsername}
}

// Name returns "LOGIN".
func (l *Login) Name() string {
	return "LOGIN"
}

// Start begins the exchange. An initial response, when present,
// carries the username.
func (l *Login) Start(initialResponse string) (challenge string, done bool, err error) {
	if initialResponse != "" {
		return l.Next(initialResponse)
	}
	return LoginChallengeUsername, false, nil
}

// Next consumes the client's response to the current challenge.
func (l *Login) Next(response string) (challenge string, done bool, err error) {
	if response == "*" {
		l.state = loginStateDone
		return "", true, ErrCancelled
	}

	decoded, err := base64.StdEncoding.DecodeString(response)
	if err != nil {
		l.state = loginStateDone
		return "", true, ErrBadBase64
	}

	switch l.state {
	case loginStateUsername:
		l.username = string(decoded)
		l.state = loginStatePassword
		return LoginChallengePassword, false, nil

	case loginStatePassword:
		// LOGIN has no authzid; the username is the identity.
		l.creds = &Credentials{
			AuthenticationID: l.username,
			Password:         string(decoded),
		}
		l.state = loginStateDone
		return "", true, nil

	default:
		return "", true, ErrMalformed
	}
}

// Credentials returns the extracted credentials after a completed
// exchange, or nil.
func (l *Login) Credentials() *Credentials {
	return l.creds
}
