package wren

import "fmt"

// SMTPCode represents SMTP reply codes (RFC 5321).
// 2yz: Success, 3yz: Continue, 4yz: Transient failure, 5yz: Permanent failure.
type SMTPCode int

const (
	// 2xx - Success
	CodeHelpMessage    SMTPCode = 214
	CodeServiceReady   SMTPCode = 220
	CodeServiceClosing SMTPCode = 221
	CodeAuthSuccess    SMTPCode = 235
	CodeOK             SMTPCode = 250

	// 3xx - Intermediate
	CodeAuthContinue   SMTPCode = 334
	CodeStartMailInput SMTPCode = 354

	// 4xx - Transient Failure
	CodeServiceUnavailable  SMTPCode = 421
	CodeInsufficientStorage SMTPCode = 452
	CodeTLSUnavailable      SMTPCode = 454

	// 5xx - Permanent Failure
	CodeCommandUnrecognized    SMTPCode = 500
	CodeSyntaxError            SMTPCode = 501
	CodeCommandNotImplemented  SMTPCode = 502
	CodeBadSequence            SMTPCode = 503
	CodeParameterNotImpl       SMTPCode = 504
	CodeAuthRequired           SMTPCode = 530
	CodeAuthCredentialsInvalid SMTPCode = 535
	CodeExceededStorage        SMTPCode = 552
	CodeMailboxNameInvalid     SMTPCode = 553
	CodeTransactionFailed      SMTPCode = 554
)

// EnhancedCode represents an enhanced status code (RFC 3463, RFC 2034).
// Format: "class.subject.detail" (e.g., "2.1.5").
type EnhancedCode string

const (
	ESCSuccess         EnhancedCode = "2.0.0"
	ESCSecuritySuccess EnhancedCode = "2.7.0"

	ESCTempLocalError   EnhancedCode = "4.3.0"
	ESCTempNetworkError EnhancedCode = "4.4.0"
	ESCTempAuthFailed   EnhancedCode = "4.7.0"

	ESCBadCommandSequence     EnhancedCode = "5.5.1"
	ESCMailSystemFull         EnhancedCode = "5.3.4"
	ESCSecurityError          EnhancedCode = "5.7.0"
	ESCAuthCredentialsInvalid EnhancedCode = "5.7.8"
)

// String returns the enhanced code as a string.
func (e EnhancedCode) String() string {
	return string(e)
}

// Response represents an SMTP reply to be sent to the client.
type Response struct {
	Code         SMTPCode
	EnhancedCode EnhancedCode
	Message      string
}

// String formats the response as a single SMTP reply line, without the
// trailing CRLF.
func (r Response) String() string {
	if r.EnhancedCode != "" {
		return fmt.Sprintf("%d %s %s", r.Code, r.EnhancedCode, r.Message)
	}
	return fmt.Sprintf("%d %s", r.Code, r.Message)
}

// IsError returns true for 4xx or 5xx codes.
func (r Response) IsError() bool {
	return r.Code >= 400
}

// IsSuccess returns true for 2xx codes.
func (r Response) IsSuccess() bool {
	return r.Code >= 200 && r.Code < 300
}

// IsTransientError returns true for 4xx codes.
func (r Response) IsTransientError() bool {
	return r.Code >= 400 && r.Code < 500
}

// IsPermanentError returns true for 5xx codes.
func (r Response) IsPermanentError() bool {
	return r.Code >= 500
}

// ResponseOK creates the stock 250 reply.
func ResponseOK() Response {
	return Response{Code: CodeOK, Message: "Ok"}
}

// ResponseBadSequence creates a 503 bad sequence of commands reply.
func ResponseBadSequence(message string) Response {
	return Response{
		Code:         CodeBadSequence,
		EnhancedCode: ESCBadCommandSequence,
		Message:      message,
	}
}

// ResponseSyntaxError creates a 501 syntax error reply.
func ResponseSyntaxError(message string) Response {
	return Response{Code: CodeSyntaxError, Message: message}
}

// ResponseAddressUnusable creates the 553 reply for a rejected address.
func ResponseAddressUnusable(address string) Response {
	return Response{
		Code:    CodeMailboxNameInvalid,
		Message: fmt.Sprintf("<%s> Address unusable", address),
	}
}

// ResponseExceededStorage creates the 552 reply for an oversized message.
func ResponseExceededStorage() Response {
	return Response{
		Code:         CodeExceededStorage,
		EnhancedCode: ESCMailSystemFull,
		Message:      "Message size exceeds fixed limit",
	}
}
