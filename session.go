package wren

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	smtpio "github.com/perchlabs/wren/io"
)

// Session is the state of one client connection. It lives on a single
// goroutine and commands mutate it freely while they execute. The one
// exception is the write path: wmu guards conn and writer so Shutdown
// can deliver its closing notice from outside the session goroutine.
type Session struct {
	server *Server

	// wmu guards conn and writer. The session goroutine replaces both
	// during a STARTTLS upgrade; the shutdown goroutine writes through
	// them in shutdownNotice.
	wmu    sync.Mutex
	conn   net.Conn
	writer *bufio.Writer

	reader *bufio.Reader
	ctx    context.Context
	log    *slog.Logger
	id     string

	helo          string
	esmtp         bool
	tlsStarted    bool
	authenticated bool
	authIdentity  string

	// Mail transaction state. handler is non-nil exactly while
	// inTransaction is true.
	inTransaction bool
	handler       Handler
	from          string
	recipients    []string

	quitting bool

	// Conversation counters, reported when the session closes.
	commandCount int
	errorCount   int
}

func newSession(srv *Server, conn net.Conn) *Session {
	id := ulid.Make().String()
	return &Session{
		server: srv,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		ctx:    srv.ctx,
		log:    srv.log.With("session", id, "remote", conn.RemoteAddr().String()),
		id:     id,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the client's network address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// info snapshots the session for the delivery collaborator.
func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:           s.id,
		RemoteAddr:   s.conn.RemoteAddr(),
		HeloName:     s.helo,
		TLS:          s.tlsStarted,
		AuthIdentity: s.authIdentity,
	}
}

// serve runs the command loop until the client quits, the connection
// fails, or the server shuts down. It is the last-resort error
// boundary: nothing a client sends may take the server down.
func (s *Session) serve() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in session", "panic", fmt.Sprint(r))
			s.writeResponse(Response{
				Code:         CodeServiceUnavailable,
				EnhancedCode: ESCTempLocalError,
				Message:      "Mail system failure, closing transmission channel",
			})
		}
		s.resetMailTransaction()
		s.conn.Close()
		s.log.Debug("session closed", "commands", s.commandCount, "errors", s.errorCount)
	}()

	cfg := &s.server.config
	if err := s.writeResponse(Response{
		Code:    CodeServiceReady,
		Message: fmt.Sprintf("%s ESMTP %s", cfg.Hostname, cfg.SoftwareName),
	}); err != nil {
		return
	}
	s.log.Info("session started")

	for {
		line, err := s.readLine()
		if err != nil {
			if s.handleReadError(err) {
				s.errorCount++
				continue
			}
			return
		}
		s.commandCount++
		if err := s.server.registry.dispatch(s, line); err != nil {
			if !s.handleCommandError(err) {
				return
			}
		}
		if s.quitting {
			s.log.Info("session ended")
			return
		}
	}
}

// rejectTooMany greets an over-capacity client with an informative 421
// and hangs up.
func (s *Session) rejectTooMany() {
	s.log.Warn("connection rejected, server at capacity")
	s.writeResponse(Response{
		Code:    CodeServiceUnavailable,
		Message: "Too many connections, try again later",
	})
}

// handleReadError reports a failed line read to the client where that
// is still possible. It returns true when the session may continue:
// framing errors consume the whole offending line, so the conversation
// is still in sync after the 501.
func (s *Session) handleReadError(err error) bool {
	var bare *smtpio.BareLineBreakError
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		s.log.Info("client disconnected")
	case errors.As(err, &netErr) && netErr.Timeout():
		s.writeResponse(Response{
			Code:    CodeServiceUnavailable,
			Message: "Timeout waiting for data from client.",
		})
	case errors.Is(err, smtpio.ErrLineTooLong):
		return s.writeResponse(ResponseSyntaxError("Input line length is too long!")) == nil
	case errors.As(err, &bare):
		return s.writeResponse(ResponseSyntaxError(fmt.Sprintf(
			"Syntax error at character position %d. CR and LF must be CRLF paired. See RFC 2821 #2.7.1.",
			bare.Position))) == nil
	default:
		s.log.Warn("read failed", "error", err)
		s.writeResponse(Response{
			Code:         CodeServiceUnavailable,
			EnhancedCode: ESCTempNetworkError,
			Message:      "Problem attempting to execute commands. Please try again later.",
		})
	}
	return false
}

// handleCommandError deals with an error escaping a command. It returns
// true when the session may continue.
func (s *Session) handleCommandError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// The client went quiet mid-command (DATA body, AUTH
		// challenge). Same farewell as an idle timeout.
		s.writeResponse(Response{
			Code:    CodeServiceUnavailable,
			Message: "Timeout waiting for data from client.",
		})
		return false
	}
	var rej *Reject
	if errors.As(err, &rej) {
		// A rejection that bubbled up unanswered.
		return s.writeResponse(rej.Response()) == nil
	}
	var drop *Drop
	if errors.As(err, &drop) {
		if drop.Response != nil {
			s.writeResponse(*drop.Response)
		}
		s.log.Info("dropping connection on handler request")
		return false
	}
	s.log.Error("command failed", "error", err)
	s.writeResponse(Response{
		Code:         CodeServiceUnavailable,
		EnhancedCode: ESCTempLocalError,
		Message:      "Mail system failure, closing transmission channel",
	})
	return false
}

// readLine reads the next command line, bounded by the read timeout.
func (s *Session) readLine() (string, error) {
	s.extendReadDeadline()
	return smtpio.ReadLine(s.reader, s.server.config.MaxLineLength)
}

func (s *Session) extendReadDeadline() {
	s.conn.SetReadDeadline(time.Now().Add(s.server.config.ReadTimeout))
}

// bodyReader re-arms the read deadline before every chunk, so
// ReadTimeout bounds client idleness during DATA rather than the total
// transfer time.
type bodyReader struct {
	s *Session
	r io.Reader
}

func (b bodyReader) Read(p []byte) (int, error) {
	b.s.extendReadDeadline()
	return b.r.Read(p)
}

// writeResponse sends a single reply line.
func (s *Session) writeResponse(resp Response) error {
	return s.writeRaw(resp.String() + "\r\n")
}

// writeMultiline sends a multi-line reply: every line but the last uses
// the code-dash form.
func (s *Session) writeMultiline(code SMTPCode, lines []string) error {
	var b []byte
	for i, line := range lines {
		sep := "-"
		if i == len(lines)-1 {
			sep = " "
		}
		b = fmt.Appendf(b, "%d%s%s\r\n", code, sep, line)
	}
	return s.writeRaw(string(b))
}

func (s *Session) writeRaw(data string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.writeRawLocked(data)
}

func (s *Session) writeRawLocked(data string) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.server.config.WriteTimeout))
	if _, err := s.writer.WriteString(data); err != nil {
		return err
	}
	return s.writer.Flush()
}

// shutdownNotice tells the client the server is going away and closes
// the connection. Unlike every other write, it runs on the shutdown
// goroutine, so it must hold wmu for the whole exchange.
func (s *Session) shutdownNotice() {
	resp := Response{
		Code:    CodeServiceUnavailable,
		Message: s.server.config.Hostname + " Service not available, closing transmission channel",
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.writeRawLocked(resp.String() + "\r\n")
	s.conn.Close()
}

// resetMailTransaction aborts any transaction in progress. The delivery
// handler's Done is called exactly once.
func (s *Session) resetMailTransaction() {
	if s.handler != nil {
		s.handler.Done()
		s.handler = nil
	}
	s.inTransaction = false
	s.from = ""
	s.recipients = nil
}

// resetProtocol forgets everything learned during the conversation, as
// required after a STARTTLS upgrade.
func (s *Session) resetProtocol() {
	s.resetMailTransaction()
	s.helo = ""
	s.esmtp = false
}
