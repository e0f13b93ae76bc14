package smtpio

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func readDot(t *testing.T, input string) (string, *bufio.Reader) {
	t.Helper()
	br := bufio.NewReader(strings.NewReader(input))
	data, err := io.ReadAll(NewDotReader(br))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return string(data), br
}

func TestDotReader_Simple(t *testing.T) {
	body, _ := readDot(t, "Hello\r\nWorld\r\n.\r\n")
	if body != "Hello\r\nWorld\r\n" {
		t.Errorf("got %q", body)
	}
}

func TestDotReader_EmptyBody(t *testing.T) {
	body, _ := readDot(t, ".\r\n")
	if body != "" {
		t.Errorf("expected empty body, got %q", body)
	}
}

func TestDotReader_Unstuffing(t *testing.T) {
	body, _ := readDot(t, "..leading dot\r\n...two dots\r\n.\r\n")
	if body != ".leading dot\r\n..two dots\r\n" {
		t.Errorf("got %q", body)
	}
}

func TestDotReader_LoneStuffedDotLine(t *testing.T) {
	// A line of two dots decodes to a line holding a single dot.
	body, _ := readDot(t, "a\r\n..\r\nb\r\n.\r\n")
	if body != "a\r\n.\r\nb\r\n" {
		t.Errorf("got %q", body)
	}
}

func TestDotReader_LeavesTrailingBytes(t *testing.T) {
	body, br := readDot(t, "msg\r\n.\r\nQUIT\r\n")
	if body != "msg\r\n" {
		t.Errorf("got %q", body)
	}
	rest, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rest != "QUIT\r\n" {
		t.Errorf("expected QUIT line after terminator, got %q", rest)
	}
}

func TestDotReader_PrematureEnd(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("no terminator\r\n"))
	_, err := io.ReadAll(NewDotReader(br))
	if !errors.Is(err, ErrPrematureEnd) {
		t.Fatalf("expected ErrPrematureEnd, got %v", err)
	}
}

func TestDotReader_DotNotAtLineStart(t *testing.T) {
	body, _ := readDot(t, "dots . in .. the middle\r\n.\r\n")
	if body != "dots . in .. the middle\r\n" {
		t.Errorf("got %q", body)
	}
}

func TestDotReader_BareCRPassedThrough(t *testing.T) {
	body, _ := readDot(t, "a\rb\r\n.\r\n")
	if body != "a\rb\r\n" {
		t.Errorf("got %q", body)
	}
}

func TestDotReader_Drain(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("ignored body\r\n.\r\nNOOP\r\n"))
	d := NewDotReader(br)

	buf := make([]byte, 4)
	if _, err := d.Read(buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Drain(); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	rest, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rest != "NOOP\r\n" {
		t.Errorf("expected NOOP after drain, got %q", rest)
	}
}

func TestDotReader_SmallReadBuffer(t *testing.T) {
	// One-byte reads exercise the carry logic for CRLF pairs.
	br := bufio.NewReader(strings.NewReader("ab\r\ncd\r\n.\r\n"))
	d := NewDotReader(br)

	var out []byte
	buf := make([]byte, 1)
	for {
		n, err := d.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if string(out) != "ab\r\ncd\r\n" {
		t.Errorf("got %q", out)
	}
}

// chunkedReader hands out one chunk per Read call, standing in for a
// connection that delivers the body in spurts.
type chunkedReader struct {
	chunks []string
	reads  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.reads >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.reads])
	r.reads++
	return n, nil
}

func TestDotReader_ReturnsWithoutBlockingForMore(t *testing.T) {
	cr := &chunkedReader{chunks: []string{"hello\r\n", "world\r\n.\r\n"}}
	d := NewDotReader(bufio.NewReader(cr))
	buf := make([]byte, 64)

	// The first Read must hand back what arrived instead of waiting
	// for the buffer to fill.
	n, err := d.Read(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(buf[:n]); got != "hello\r\n" {
		t.Errorf("first read = %q, want %q", got, "hello\r\n")
	}
	if cr.reads != 1 {
		t.Errorf("first read pulled %d chunks, want 1", cr.reads)
	}

	n, err = d.Read(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(buf[:n]); got != "world\r\n" {
		t.Errorf("second read = %q, want %q", got, "world\r\n")
	}
	if _, err := d.Read(buf); err != io.EOF {
		t.Errorf("expected EOF after terminator, got %v", err)
	}
}

func FuzzDotReader(f *testing.F) {
	f.Add("Hello\r\n.\r\n")
	f.Add(".\r\n")
	f.Add("..\r\n.\r\n")
	f.Add("a\rb\nc\r\n.\r\n")
	f.Fuzz(func(t *testing.T, input string) {
		br := bufio.NewReader(strings.NewReader(input + "\r\n.\r\n"))
		d := NewDotReader(br)
		if _, err := io.ReadAll(d); err != nil && !errors.Is(err, ErrPrematureEnd) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
