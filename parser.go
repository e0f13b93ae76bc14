package wren

import (
	"strconv"
	"strings"

	"github.com/perchlabs/wren/utils"
)

// cutVerb splits a command line into its verb (uppercased) and the
// remaining arguments.
func cutVerb(line string) (verb, args string) {
	before, after, found := strings.Cut(line, " ")
	if !found {
		return strings.ToUpper(line), ""
	}
	return strings.ToUpper(before), strings.TrimSpace(after)
}

// parsePath extracts the address from a MAIL FROM / RCPT TO argument,
// after the colon. Angle brackets are optional; parameters after the
// closing bracket are left for the caller.
func parsePath(arg string) string {
	arg = strings.TrimSpace(arg)
	if start := strings.IndexByte(arg, '<'); start != -1 {
		if end := strings.IndexByte(arg, '>'); end > start {
			return strings.TrimSpace(arg[start+1 : end])
		}
	}
	// Bare address, possibly followed by parameters.
	if space := strings.IndexByte(arg, ' '); space != -1 {
		return arg[:space]
	}
	return arg
}

// validAddress applies the loose envelope address check: the null
// reverse-path is allowed, anything else needs a local part, an "@" and
// a domain, all in 7-bit ASCII.
func validAddress(addr string) bool {
	if addr == "" {
		// Null reverse-path (bounce sender).
		return true
	}
	if utils.ContainsNonASCII(addr) {
		return false
	}
	local, domain, found := strings.Cut(addr, "@")
	if !found || local == "" || domain == "" {
		return false
	}
	return !strings.ContainsAny(addr, " \t")
}

// parseSizeParam scans MAIL parameters for SIZE=n and returns the
// declared size. Unparseable values are disregarded rather than
// rejected; clients that mangle the parameter still get their mail
// judged by the actual byte count.
func parseSizeParam(args string) int64 {
	idx := strings.Index(strings.ToUpper(args), " SIZE=")
	if idx == -1 {
		return 0
	}
	value := args[idx+len(" SIZE="):]
	if space := strings.IndexByte(value, ' '); space != -1 {
		value = value[:space]
	}
	size, err := strconv.ParseInt(value, 10, 64)
	if err != nil || size < 0 {
		return 0
	}
	return size
}
