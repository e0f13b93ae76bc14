package wren

import (
	"sort"
	"strings"
)

// Command handles one SMTP verb. Implementations reply to the client
// through the session and return an error only for conditions the
// session loop must act on (*Reject, *Drop, or an I/O failure).
type Command interface {
	Verb() string
	Help() string
	Execute(s *Session, args string) error
}

// requireTLSCommand refuses its wrapped command until the conversation
// has been secured with STARTTLS.
type requireTLSCommand struct {
	Command
}

func (c requireTLSCommand) Execute(s *Session, args string) error {
	if !s.tlsStarted {
		return s.writeResponse(Response{
			Code:    CodeAuthRequired,
			Message: "Must issue a STARTTLS command first",
		})
	}
	return c.Command.Execute(s, args)
}

// requireAuthCommand refuses its wrapped command until the client has
// authenticated.
type requireAuthCommand struct {
	Command
}

func (c requireAuthCommand) Execute(s *Session, args string) error {
	if !s.authenticated {
		return s.writeResponse(Response{
			Code:         CodeAuthRequired,
			EnhancedCode: ESCSecurityError,
			Message:      "Authentication required",
		})
	}
	return c.Command.Execute(s, args)
}

// registry maps verbs to commands. It is built once at server startup
// and never mutated, so sessions read it without locking.
type registry struct {
	commands map[string]Command
}

func newRegistry(cfg *Config) *registry {
	list := []Command{
		heloCommand{},
		ehloCommand{},
		mailCommand{},
		rcptCommand{},
		dataCommand{},
		rsetCommand{},
		noopCommand{},
		quitCommand{},
		vrfyCommand{},
		expnCommand{},
		helpCommand{},
		startTLSCommand{},
		authCommand{},
	}

	r := &registry{commands: make(map[string]Command, len(list))}
	for _, cmd := range list {
		wrapped := cmd
		switch cmd.Verb() {
		case "MAIL", "RCPT", "DATA":
			if len(cfg.Mechanisms) > 0 && cfg.RequireAuth {
				wrapped = requireAuthCommand{wrapped}
			}
			if cfg.EnforceTLS {
				wrapped = requireTLSCommand{wrapped}
			}
		}
		r.commands[cmd.Verb()] = wrapped
	}
	return r
}

// dispatch parses the verb and runs the matching command.
func (r *registry) dispatch(s *Session, line string) error {
	if len(line) < 4 {
		return s.writeResponse(Response{
			Code:    CodeCommandUnrecognized,
			Message: "Error: bad syntax",
		})
	}
	verb, args := cutVerb(line)
	cmd, ok := r.commands[verb]
	if !ok {
		return s.writeResponse(Response{
			Code:    CodeCommandUnrecognized,
			Message: "Error: command not implemented",
		})
	}
	return cmd.Execute(s, args)
}

// lookup returns the command for a verb, for HELP.
func (r *registry) lookup(verb string) (Command, bool) {
	cmd, ok := r.commands[strings.ToUpper(verb)]
	return cmd, ok
}

// verbs returns the registered verbs in sorted order.
func (r *registry) verbs() []string {
	out := make([]string, 0, len(r.commands))
	for verb := range r.commands {
		out = append(out, verb)
	}
	sort.Strings(out)
	return out
}
