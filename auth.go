package wren

import (
	"errors"

	"github.com/perchlabs/wren/sasl"
)

// CodeTempAuthFailure is the 454 reply RFC 4954 assigns to temporary
// authentication failures. Same wire code as CodeTLSUnavailable.
const CodeTempAuthFailure SMTPCode = 454

type authCommand struct{}

func (authCommand) Verb() string { return "AUTH" }
func (authCommand) Help() string {
	return "AUTH <mechanism> [ <initial-response> ]\nAuthenticate using a SASL mechanism."
}

func (authCommand) Execute(s *Session, args string) error {
	cfg := &s.server.config
	if s.authenticated {
		return s.writeResponse(Response{
			Code:    CodeBadSequence,
			Message: "Refusing any other AUTH command.",
		})
	}
	if len(s.server.mechanisms) == 0 || cfg.Validator == nil {
		return s.writeResponse(Response{
			Code:    CodeCommandNotImplemented,
			Message: "Authentication not supported",
		})
	}
	if args == "" {
		return s.writeResponse(ResponseSyntaxError("Syntax: AUTH mechanism [initial-response]"))
	}

	mechName, initial := cutVerb(args)
	factory, ok := s.server.mechanisms[mechName]
	if !ok {
		return s.writeResponse(Response{
			Code:    CodeParameterNotImpl,
			Message: "The requested authentication mechanism is not supported",
		})
	}

	mech := factory()
	challenge, done, err := mech.Start(initial)
	for !done {
		if err != nil {
			break
		}
		if werr := s.writeResponse(Response{
			Code:    CodeAuthContinue,
			Message: challenge,
		}); werr != nil {
			return werr
		}
		line, rerr := s.readLine()
		if rerr != nil {
			return rerr
		}
		challenge, done, err = mech.Next(line)
	}
	if err != nil {
		return s.writeResponse(saslErrorResponse(err))
	}

	creds := mech.Credentials()
	if creds == nil {
		return s.writeResponse(saslErrorResponse(sasl.ErrMalformed))
	}

	if err := cfg.Validator.Login(s.ctx, creds.AuthenticationID, creds.Password); err != nil {
		var rej *Reject
		switch {
		case errors.Is(err, ErrLoginFailed):
			return s.writeResponse(Response{
				Code:         CodeAuthCredentialsInvalid,
				EnhancedCode: ESCAuthCredentialsInvalid,
				Message:      "Authentication credentials invalid",
			})
		case errors.As(err, &rej):
			return s.writeResponse(rej.Response())
		default:
			s.log.Error("credential validation failed", "error", err)
			return s.writeResponse(Response{
				Code:         CodeTempAuthFailure,
				EnhancedCode: ESCTempAuthFailed,
				Message:      "Temporary authentication failure, please try again later",
			})
		}
	}

	s.authenticated = true
	s.authIdentity = creds.Identity()
	s.log.Info("client authenticated", "identity", s.authIdentity)
	return s.writeResponse(Response{
		Code:         CodeAuthSuccess,
		EnhancedCode: ESCSecuritySuccess,
		Message:      "Authentication successful.",
	})
}

// saslErrorResponse maps mechanism errors to their 501 replies.
func saslErrorResponse(err error) Response {
	switch {
	case errors.Is(err, sasl.ErrCancelled):
		return ResponseSyntaxError("Authentication canceled by client.")
	case errors.Is(err, sasl.ErrBadBase64):
		return ResponseSyntaxError("Invalid command argument, not a valid Base64 string")
	default:
		return ResponseSyntaxError("Invalid command argument")
	}
}
