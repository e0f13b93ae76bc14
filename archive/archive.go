// Package archive persists accepted messages as an append-only stream
// of MessagePack records, one per delivered recipient. It doubles as a
// delivery HandlerFactory, so a capture server is just a Server wired
// to an open archive.
package archive

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/perchlabs/wren"
)

// Record is one captured message as delivered to one recipient.
type Record struct {
	SessionID string
	Received  time.Time
	From      string
	Rcpt      string
	Body      []byte
}

// Writer appends records to an archive file. Safe for concurrent use
// by multiple sessions.
type Writer struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens or creates an archive file for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Append writes one record.
func (w *Writer) Append(rec *Record) error {
	buf := appendRecord(make([]byte, 0, 128+len(rec.Body)), rec)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(buf); err != nil {
		return fmt.Errorf("archive: append: %w", err)
	}
	return nil
}

// Sync flushes the archive to stable storage.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Sync()
}

// Close closes the archive file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// NewHandler implements wren.HandlerFactory: every transaction gets a
// handler that records each delivery into the archive.
func (w *Writer) NewHandler(info wren.SessionInfo) wren.Handler {
	return &handler{w: w, session: info.ID}
}

type handler struct {
	w       *Writer
	session string
}

func (h *handler) From(sender string) error { return nil }

func (h *handler) Accept(from, rcpt string) bool { return true }

func (h *handler) Deliver(from, rcpt string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return h.w.Append(&Record{
		SessionID: h.session,
		Received:  time.Now(),
		From:      from,
		Rcpt:      rcpt,
		Body:      data,
	})
}

func (h *handler) Done() {}

const recordFields = 5

func appendRecord(b []byte, rec *Record) []byte {
	b = msgp.AppendArrayHeader(b, recordFields)
	b = msgp.AppendString(b, rec.SessionID)
	b = msgp.AppendTime(b, rec.Received)
	b = msgp.AppendString(b, rec.From)
	b = msgp.AppendString(b, rec.Rcpt)
	b = msgp.AppendBytes(b, rec.Body)
	return b
}

func readRecord(b []byte) (Record, []byte, error) {
	var rec Record
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return rec, b, err
	}
	if sz != recordFields {
		return rec, b, fmt.Errorf("archive: record has %d fields, want %d", sz, recordFields)
	}
	if rec.SessionID, b, err = msgp.ReadStringBytes(b); err != nil {
		return rec, b, err
	}
	if rec.Received, b, err = msgp.ReadTimeBytes(b); err != nil {
		return rec, b, err
	}
	if rec.From, b, err = msgp.ReadStringBytes(b); err != nil {
		return rec, b, err
	}
	if rec.Rcpt, b, err = msgp.ReadStringBytes(b); err != nil {
		return rec, b, err
	}
	if rec.Body, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
		return rec, b, err
	}
	return rec, b, nil
}

// ReadFile loads every record from an archive file.
func ReadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	var records []Record
	for len(data) > 0 {
		rec, rest, err := readRecord(data)
		if err != nil {
			return records, fmt.Errorf("archive: corrupt record %d: %w", len(records), err)
		}
		records = append(records, rec)
		data = rest
	}
	return records, nil
}
