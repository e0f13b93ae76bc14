// Package smtpio implements the wire-level framing used by the SMTP
// engine: strict CRLF command lines, <CRLF>.<CRLF>-terminated message
// bodies with dot-unstuffing, and a message buffer that spills to disk.
package smtpio

import (
	"bufio"
	"errors"
	"fmt"
)

// MaxLineLength is the longest command line the reader accepts,
// excluding the CRLF (RFC 2822 section 2.1.1).
const MaxLineLength = 998

// ErrLineTooLong is returned when a line exceeds the configured limit.
// The reader drains the rest of the line so the next read starts at a
// line boundary.
var ErrLineTooLong = errors.New("smtp: line too long")

// BareLineBreakError reports a CR or LF that is not part of a CRLF
// pair. Position is the 1-based byte offset of the offending character
// within the line.
type BareLineBreakError struct {
	Position int
}

func (e *BareLineBreakError) Error() string {
	return fmt.Sprintf("smtp: bare CR or LF at character position %d", e.Position)
}

// ReadLine reads a single SMTP command line with strict CRLF and length
// enforcement. The returned string excludes the CRLF.
func ReadLine(reader *bufio.Reader, max int) (string, error) {
	if max <= 0 {
		max = MaxLineLength
	}

	// Fast path: the whole line fits in the bufio buffer.
	line, err := reader.ReadSlice('\n')
	if err == nil {
		return validateLine(line, max)
	}
	if err != bufio.ErrBufferFull {
		return "", err
	}

	// Slow path: accumulate chunks. The first chunk must be copied
	// because the next ReadSlice will overwrite it.
	buf := append([]byte(nil), line...)
	for {
		line, err = reader.ReadSlice('\n')
		if len(buf)+len(line) > max+2 {
			drainLine(reader)
			return "", ErrLineTooLong
		}
		buf = append(buf, line...)
		if err == nil {
			break
		}
		if err != bufio.ErrBufferFull {
			return "", err
		}
	}
	return validateLine(buf, max)
}

// validateLine checks CRLF pairing and length. b always ends in '\n'
// because ReadSlice returned it without error.
func validateLine(b []byte, max int) (string, error) {
	if len(b) < 2 || b[len(b)-2] != '\r' {
		// Bare LF terminating the line.
		return "", &BareLineBreakError{Position: len(b)}
	}
	body := b[: len(b)-2 : len(b)-2]
	if len(body) > max {
		return "", ErrLineTooLong
	}
	for i, c := range body {
		if c == '\r' {
			// ReadSlice stops at '\n', so any CR here is bare.
			return "", &BareLineBreakError{Position: i + 1}
		}
	}
	return string(body), nil
}

// drainLine discards the rest of the current line to recover protocol
// synchronization after an oversized line.
func drainLine(reader *bufio.Reader) {
	for {
		_, err := reader.ReadSlice('\n')
		if err != bufio.ErrBufferFull {
			return
		}
	}
}
