package smtpio

import (
	"bufio"
	"errors"
	"io"
)

// ErrPrematureEnd is returned when the underlying stream ends before
// the <CRLF>.<CRLF> terminator was seen.
var ErrPrematureEnd = errors.New("smtp: premature end of <CRLF>.<CRLF> terminated data")

const (
	dotStateBeginLine = iota // at the beginning of a line
	dotStateDot              // read "." at the beginning of a line
	dotStateDotCR            // read ".\r" at the beginning of a line
	dotStateCR               // read "\r" inside a line
	dotStateData             // inside a line
	dotStateEOF              // terminator consumed
)

// DotReader streams a DATA message body up to, and excluding, the
// <CRLF>.<CRLF> terminator, removing dot-stuffing along the way: a dot
// directly after a line break is dropped, so ".." becomes ".". CRLF
// line breaks are preserved in the output, including the one that
// precedes the terminator.
//
// The reader starts as if a CRLF had just been seen, so a body that
// consists of the terminator alone yields zero bytes. Bytes after the
// terminator are left unread in the underlying bufio.Reader.
type DotReader struct {
	r     *bufio.Reader
	state int
	carry byte // deferred '\r' or '\n' still owed to the caller
	owe   bool
}

// NewDotReader returns a DotReader consuming from r.
func NewDotReader(r *bufio.Reader) *DotReader {
	return &DotReader{r: r, state: dotStateBeginLine}
}

func (d *DotReader) Read(p []byte) (n int, err error) {
	for n < len(p) && d.state != dotStateEOF {
		if d.owe {
			p[n] = d.carry
			n++
			d.owe = false
			continue
		}
		if n > 0 && d.r.Buffered() == 0 {
			// Something to return already; don't block for more input.
			break
		}

		var c byte
		c, err = d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = ErrPrematureEnd
			}
			break
		}

		switch d.state {
		case dotStateBeginLine:
			if c == '.' {
				d.state = dotStateDot
				continue
			}
			if c == '\r' {
				d.state = dotStateCR
				continue
			}
			d.state = dotStateData

		case dotStateDot:
			if c == '\r' {
				d.state = dotStateDotCR
				continue
			}
			if c == '\n' {
				// Lenient: ".\n" also terminates.
				d.state = dotStateEOF
				continue
			}
			// Stuffing dot: drop the dot, keep this byte.
			d.state = dotStateData

		case dotStateDotCR:
			if c == '\n' {
				d.state = dotStateEOF
				continue
			}
			// ".\rX": the dot was stuffing; emit the held CR and
			// reprocess X.
			d.r.UnreadByte()
			c = '\r'
			d.state = dotStateData

		case dotStateCR:
			if c == '\n' {
				// End of line: emit the CRLF pair.
				p[n] = '\r'
				n++
				d.carry, d.owe = '\n', true
				d.state = dotStateBeginLine
				continue
			}
			// Bare CR inside the body; pass it through.
			d.r.UnreadByte()
			c = '\r'
			d.state = dotStateData

		case dotStateData:
			if c == '\r' {
				d.state = dotStateCR
				continue
			}
			if c == '\n' {
				// Bare LF; pass through and treat as a line break for
				// unstuffing purposes.
				d.state = dotStateBeginLine
			}
		}

		p[n] = c
		n++
	}
	if err == nil && n == 0 && len(p) > 0 && d.state == dotStateEOF {
		err = io.EOF
	}
	return n, err
}

// Drain consumes the remainder of the body, including the terminator,
// so the connection is positioned at the next command line. It is a
// no-op once the terminator has been seen.
func (d *DotReader) Drain() error {
	_, err := io.Copy(io.Discard, d)
	return err
}
