package wren

import (
	"fmt"
	"strings"
	"time"

	wrendns "github.com/perchlabs/wren/dns"
	"github.com/perchlabs/wren/utils"
)

// receivedHeader builds the folded Received trace header for the
// current transaction. Called from DATA, when the recipient list is
// complete.
func (s *Session) receivedHeader() string {
	cfg := &s.server.config

	tcpInfo := "[unknown]"
	if ip, err := utils.GetIPFromAddr(s.conn.RemoteAddr()); err == nil {
		literal := "[" + ip.String() + "]"
		tcpInfo = literal
		if !cfg.DisableReverseLookup {
			if name, err := wrendns.ReverseLookup(s.conn.RemoteAddr(), 0); err == nil {
				tcpInfo = name + " " + literal
			}
		}
	}

	// RFC 3848 "with" keywords.
	proto := "SMTP"
	switch {
	case s.esmtp && s.tlsStarted:
		proto = "ESMTPS"
	case s.esmtp:
		proto = "ESMTP"
	}
	if s.authenticated {
		proto += "A"
	}

	heloHost := s.helo
	if heloHost == "" {
		heloHost = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Received: from %s (%s)\r\n", heloHost, tcpInfo)
	fmt.Fprintf(&b, "        by %s\r\n", cfg.Hostname)
	fmt.Fprintf(&b, "        with %s (%s) id %s", proto, cfg.SoftwareName, s.id)
	if len(s.recipients) == 1 {
		fmt.Fprintf(&b, "\r\n        for %s", s.recipients[0])
	}
	b.WriteString(";\r\n")
	fmt.Fprintf(&b, "        %s\r\n", time.Now().Format("Mon, 02 Jan 2006 15:04:05 -0700 (MST)"))
	return b.String()
}
