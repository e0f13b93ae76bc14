// Package dns provides the reverse (PTR) lookup the engine uses to
// build the TCP-info element of Received trace headers.
package dns

import (
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/perchlabs/wren/utils"
)

// DefaultTimeout bounds a single PTR query.
const DefaultTimeout = 3 * time.Second

// ReverseLookup resolves the PTR record for the given network address
// using the system resolvers from /etc/resolv.conf. It returns the
// first PTR name found, without the trailing dot.
func ReverseLookup(addr net.Addr, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ip, err := utils.GetIPFromAddr(addr)
	if err != nil {
		return "", err
	}

	arpa, err := mdns.ReverseAddr(ip.String())
	if err != nil {
		return "", fmt.Errorf("reverse address for %s: %w", ip, err)
	}

	msg := new(mdns.Msg)
	msg.SetQuestion(arpa, mdns.TypePTR)
	msg.RecursionDesired = true

	config, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("read resolver config: %w", err)
	}

	client := &mdns.Client{Timeout: timeout}
	var lastErr error
	for _, server := range config.Servers {
		r, _, err := client.Exchange(msg, net.JoinHostPort(server, config.Port))
		if err != nil {
			lastErr = err
			continue
		}
		if r.Rcode != mdns.RcodeSuccess {
			lastErr = fmt.Errorf("PTR query rcode %s", mdns.RcodeToString[r.Rcode])
			continue
		}
		for _, ans := range r.Answer {
			if ptr, ok := ans.(*mdns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("reverse lookup of %s: %w", ip, lastErr)
	}
	return "", fmt.Errorf("no PTR records for %s", ip)
}
