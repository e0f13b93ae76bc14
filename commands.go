package wren

import (
	"errors"
	"fmt"
	"io"
	"strings"

	smtpio "github.com/perchlabs/wren/io"
)

type heloCommand struct{}

func (heloCommand) Verb() string { return "HELO" }
func (heloCommand) Help() string { return "HELO <hostname>\nIntroduce yourself." }

func (heloCommand) Execute(s *Session, args string) error {
	if args == "" {
		return s.writeResponse(ResponseSyntaxError("Syntax: HELO <hostname>"))
	}
	s.resetMailTransaction()
	s.helo = args
	s.esmtp = false
	return s.writeResponse(Response{Code: CodeOK, Message: s.server.config.Hostname})
}

type ehloCommand struct{}

func (ehloCommand) Verb() string { return "EHLO" }
func (ehloCommand) Help() string {
	return "EHLO <hostname>\nIntroduce yourself and request extended SMTP mode."
}

func (ehloCommand) Execute(s *Session, args string) error {
	if args == "" {
		return s.writeResponse(ResponseSyntaxError("Syntax: EHLO hostname"))
	}
	s.resetMailTransaction()
	s.helo = args
	s.esmtp = true

	cfg := &s.server.config
	lines := []string{cfg.Hostname, "8BITMIME"}
	if cfg.MaxMessageSize > 0 {
		lines = append(lines, fmt.Sprintf("SIZE %d", cfg.MaxMessageSize))
	}
	if cfg.TLSConfig != nil && !cfg.HideTLS {
		lines = append(lines, "STARTTLS")
	}
	if names := s.server.mechanismNames; len(names) > 0 {
		lines = append(lines, "AUTH "+strings.Join(names, " "))
	}
	lines = append(lines, "Ok")
	return s.writeMultiline(CodeOK, lines)
}

type mailCommand struct{}

func (mailCommand) Verb() string { return "MAIL" }
func (mailCommand) Help() string {
	return "MAIL FROM: <sender> [ SIZE=byte-count ]\nStart a mail transaction."
}

func (mailCommand) Execute(s *Session, args string) error {
	if s.inTransaction {
		return s.writeResponse(ResponseBadSequence("Sender already specified."))
	}
	if len(args) < 5 || !strings.EqualFold(args[:5], "FROM:") {
		return s.writeResponse(ResponseSyntaxError("Syntax: MAIL FROM: <address>"))
	}
	sender := parsePath(args[5:])
	if !validAddress(sender) {
		return s.writeResponse(ResponseAddressUnusable(sender))
	}
	if max := s.server.config.MaxMessageSize; max > 0 {
		if declared := parseSizeParam(args); declared > max {
			return s.writeResponse(ResponseExceededStorage())
		}
	}

	handler := s.server.config.Delivery.NewHandler(s.info())
	if err := handler.From(sender); err != nil {
		handler.Done()
		var rej *Reject
		if errors.As(err, &rej) {
			return s.writeResponse(rej.Response())
		}
		return err
	}

	s.handler = handler
	s.inTransaction = true
	s.from = sender
	return s.writeResponse(ResponseOK())
}

type rcptCommand struct{}

func (rcptCommand) Verb() string { return "RCPT" }
func (rcptCommand) Help() string {
	return "RCPT TO: <recipient>\nAdd a recipient to the current transaction."
}

func (rcptCommand) Execute(s *Session, args string) error {
	if !s.inTransaction {
		return s.writeResponse(ResponseBadSequence("Error: need MAIL command"))
	}
	if max := s.server.config.MaxRecipients; max > 0 && len(s.recipients) >= max {
		return s.writeResponse(Response{
			Code:    CodeInsufficientStorage,
			Message: "Error: too many recipients",
		})
	}
	if len(args) < 3 || !strings.EqualFold(args[:3], "TO:") {
		return s.writeResponse(ResponseSyntaxError("Syntax: RCPT TO: <address>"))
	}
	rcpt := parsePath(args[3:])
	if rcpt == "" || !validAddress(rcpt) {
		return s.writeResponse(ResponseAddressUnusable(rcpt))
	}
	if !s.handler.Accept(s.from, rcpt) {
		return s.writeResponse(ResponseAddressUnusable(rcpt))
	}
	s.recipients = append(s.recipients, rcpt)
	return s.writeResponse(ResponseOK())
}

type dataCommand struct{}

func (dataCommand) Verb() string { return "DATA" }
func (dataCommand) Help() string {
	return "DATA\nSend the message body, terminated by <CR><LF>.<CR><LF>."
}

func (dataCommand) Execute(s *Session, args string) error {
	if !s.inTransaction {
		return s.writeResponse(ResponseBadSequence("Error: need MAIL command"))
	}
	if len(s.recipients) == 0 {
		return s.writeResponse(ResponseBadSequence("Error: need RCPT command"))
	}
	if err := s.writeResponse(Response{
		Code:    CodeStartMailInput,
		Message: "End data with <CR><LF>.<CR><LF>",
	}); err != nil {
		return err
	}

	buf := smtpio.NewDeferredBuffer(s.server.config.MemoryThreshold)
	defer buf.Close()

	if !s.server.config.DisableReceivedHeader {
		if _, err := io.WriteString(buf, s.receivedHeader()); err != nil {
			return err
		}
	}

	dot := smtpio.NewDotReader(s.reader)
	max := s.server.config.MaxMessageSize
	var body io.Reader = bodyReader{s: s, r: dot}
	if max > 0 {
		body = io.LimitReader(body, max+1)
	}
	n, err := io.Copy(buf, body)
	if err != nil {
		return err
	}
	if max > 0 && n > max {
		// Refuse, but consume the rest of the body so the connection
		// stays in sync.
		if _, err := io.Copy(io.Discard, bodyReader{s: s, r: dot}); err != nil {
			return err
		}
		s.resetMailTransaction()
		return s.writeResponse(ResponseExceededStorage())
	}

	for _, rcpt := range s.recipients {
		rd, err := buf.Reader()
		if err != nil {
			return err
		}
		if err := s.handler.Deliver(s.from, rcpt, rd); err != nil {
			s.resetMailTransaction()
			var rej *Reject
			if errors.As(err, &rej) {
				return s.writeResponse(rej.Response())
			}
			return err
		}
	}

	s.resetMailTransaction()
	return s.writeResponse(ResponseOK())
}

type rsetCommand struct{}

func (rsetCommand) Verb() string { return "RSET" }
func (rsetCommand) Help() string { return "RSET\nAbort the current mail transaction." }

func (rsetCommand) Execute(s *Session, args string) error {
	s.resetMailTransaction()
	return s.writeResponse(ResponseOK())
}

type noopCommand struct{}

func (noopCommand) Verb() string { return "NOOP" }
func (noopCommand) Help() string { return "NOOP\nDo nothing." }

func (noopCommand) Execute(s *Session, args string) error {
	return s.writeResponse(ResponseOK())
}

type quitCommand struct{}

func (quitCommand) Verb() string { return "QUIT" }
func (quitCommand) Help() string { return "QUIT\nClose the connection." }

func (quitCommand) Execute(s *Session, args string) error {
	s.quitting = true
	return s.writeResponse(Response{Code: CodeServiceClosing, Message: "Bye"})
}

type vrfyCommand struct{}

func (vrfyCommand) Verb() string { return "VRFY" }
func (vrfyCommand) Help() string { return "VRFY\nVerify an address. Disabled on this server." }

func (vrfyCommand) Execute(s *Session, args string) error {
	return s.writeResponse(Response{
		Code:    CodeCommandNotImplemented,
		Message: "VRFY command is disabled",
	})
}

type expnCommand struct{}

func (expnCommand) Verb() string { return "EXPN" }
func (expnCommand) Help() string { return "EXPN\nExpand a mailing list. Disabled on this server." }

func (expnCommand) Execute(s *Session, args string) error {
	return s.writeResponse(Response{
		Code:    CodeCommandNotImplemented,
		Message: "EXPN command is disabled",
	})
}

type helpCommand struct{}

func (helpCommand) Verb() string { return "HELP" }
func (helpCommand) Help() string { return "HELP [ <topic> ]\nShow help on a command." }

func (helpCommand) Execute(s *Session, args string) error {
	r := s.server.registry
	if args == "" {
		cfg := &s.server.config
		lines := []string{cfg.SoftwareName + " on " + cfg.Hostname, "Topics:"}
		for _, verb := range r.verbs() {
			lines = append(lines, "    "+verb)
		}
		lines = append(lines, "For more info use \"HELP <topic>\".", "End of HELP info")
		return s.writeMultiline(CodeHelpMessage, lines)
	}

	topic, _ := cutVerb(args)
	cmd, ok := r.lookup(topic)
	if !ok {
		return s.writeResponse(Response{
			Code:    CodeParameterNotImpl,
			Message: fmt.Sprintf("HELP topic %q unknown.", topic),
		})
	}
	lines := strings.Split(cmd.Help(), "\n")
	lines = append(lines, "End of HELP info")
	return s.writeMultiline(CodeHelpMessage, lines)
}
