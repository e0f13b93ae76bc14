package wren

import (
	"bufio"
	"crypto/tls"
	"time"
)

type startTLSCommand struct{}

func (startTLSCommand) Verb() string { return "STARTTLS" }
func (startTLSCommand) Help() string { return "STARTTLS\nUpgrade the connection to TLS." }

func (startTLSCommand) Execute(s *Session, args string) error {
	if args != "" {
		return s.writeResponse(ResponseSyntaxError("Syntax error (no parameters allowed)"))
	}
	cfg := &s.server.config
	if cfg.TLSConfig == nil {
		return s.writeResponse(Response{
			Code:    CodeTLSUnavailable,
			Message: "TLS not supported",
		})
	}
	if s.tlsStarted {
		return s.writeResponse(Response{
			Code:    CodeTLSUnavailable,
			Message: "TLS not available due to temporary reason: TLS already active",
		})
	}
	if err := s.writeResponse(Response{
		Code:    CodeServiceReady,
		Message: "Ready to start TLS",
	}); err != nil {
		return err
	}

	tlsConn := tls.Server(s.conn, cfg.TLSConfig)
	tlsConn.SetDeadline(time.Now().Add(cfg.ReadTimeout))
	if err := tlsConn.Handshake(); err != nil {
		// The client may retry or carry on in clear; the failure is
		// its problem to notice.
		s.log.Warn("TLS handshake failed", "error", err)
		return nil
	}
	tlsConn.SetDeadline(time.Time{})

	s.wmu.Lock()
	s.conn = tlsConn
	s.writer = bufio.NewWriter(tlsConn)
	s.wmu.Unlock()
	s.reader = bufio.NewReader(tlsConn)
	s.tlsStarted = true

	// RFC 3207: the server must discard all knowledge gained before
	// the handshake. The session id survives; everything else resets.
	s.resetProtocol()
	return nil
}
