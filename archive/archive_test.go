package archive

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/perchlabs/wren"
)

func TestWriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.msgp")

	w, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	want := []Record{
		{SessionID: "01HZX", Received: time.Unix(100, 0).UTC(), From: "a@example.com", Rcpt: "b@example.com", Body: []byte("first")},
		{SessionID: "01HZY", Received: time.Unix(200, 0).UTC(), From: "c@example.com", Rcpt: "d@example.com", Body: []byte("second body")},
	}
	for i := range want {
		if err := w.Append(&want[i]); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].SessionID != want[i].SessionID ||
			got[i].From != want[i].From ||
			got[i].Rcpt != want[i].Rcpt ||
			!bytes.Equal(got[i].Body, want[i].Body) {
			t.Errorf("record %d mismatch: %+v", i, got[i])
		}
		if !got[i].Received.Equal(want[i].Received) {
			t.Errorf("record %d time = %v, want %v", i, got[i].Received, want[i].Received)
		}
	}
}

func TestReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.msgp")

	for i := 0; i < 2; i++ {
		w, err := Open(path)
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		if err := w.Append(&Record{SessionID: "s", Received: time.Now(), Body: []byte{byte(i)}}); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		w.Close()
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records after reopen, want 2", len(got))
	}
}

func TestHandlerRecordsDeliveries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.msgp")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	h := w.NewHandler(wren.SessionInfo{ID: "sess-1"})
	if err := h.From("a@example.com"); err != nil {
		t.Fatalf("from failed: %v", err)
	}
	if !h.Accept("a@example.com", "b@example.com") {
		t.Fatal("archive handler should accept everything")
	}
	body := "Subject: hi\r\n\r\nhello\r\n"
	if err := h.Deliver("a@example.com", "b@example.com", strings.NewReader(body)); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	h.Done()
	w.Close()

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].SessionID != "sess-1" || string(got[0].Body) != body {
		t.Errorf("record mismatch: %+v", got[0])
	}
}

func TestReadFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.msgp")
	w, _ := Open(path)
	w.Append(&Record{SessionID: "x", Received: time.Now()})
	w.f.Write([]byte{0xc1}) // never a valid msgpack byte
	w.Close()

	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected error on corrupt archive")
	}
}
