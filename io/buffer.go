package smtpio

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// DefaultMemoryThreshold is the buffer size at which a DeferredBuffer
// spills to a temporary file.
const DefaultMemoryThreshold = 5 * 1024 * 1024

// DeferredBuffer accumulates a message body in memory until a size
// threshold is reached, then transparently spills to a temporary file
// with owner-only permissions. Close removes the file.
//
// Reader may be called any number of times; each call returns a reader
// positioned at the start of the accumulated bytes, which is what the
// multi-recipient delivery fan-out relies on.
type DeferredBuffer struct {
	threshold int
	mem       bytes.Buffer
	file      *os.File
	size      int64
	closed    bool
}

// NewDeferredBuffer creates a buffer spilling to disk past threshold
// bytes. A threshold <= 0 selects DefaultMemoryThreshold.
func NewDeferredBuffer(threshold int) *DeferredBuffer {
	if threshold <= 0 {
		threshold = DefaultMemoryThreshold
	}
	return &DeferredBuffer{threshold: threshold}
}

// Write appends p, spilling to a temp file once the threshold is
// crossed.
func (b *DeferredBuffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, os.ErrClosed
	}
	if b.file == nil && b.mem.Len()+len(p) > b.threshold {
		// os.CreateTemp creates the file with mode 0600.
		f, err := os.CreateTemp("", "wren-*.msg")
		if err != nil {
			return 0, fmt.Errorf("spill message buffer: %w", err)
		}
		if _, err := f.Write(b.mem.Bytes()); err != nil {
			f.Close()
			os.Remove(f.Name())
			return 0, fmt.Errorf("spill message buffer: %w", err)
		}
		b.file = f
		b.mem.Reset()
	}

	var n int
	var err error
	if b.file != nil {
		n, err = b.file.Write(p)
	} else {
		n, err = b.mem.Write(p)
	}
	b.size += int64(n)
	return n, err
}

// Size returns the number of bytes written so far.
func (b *DeferredBuffer) Size() int64 {
	return b.size
}

// InMemory reports whether the buffer has not spilled to disk.
func (b *DeferredBuffer) InMemory() bool {
	return b.file == nil
}

// Reader returns a reader over everything written so far, starting at
// the beginning. Writing after calling Reader is not supported.
func (b *DeferredBuffer) Reader() (io.Reader, error) {
	if b.closed {
		return nil, os.ErrClosed
	}
	if b.file == nil {
		return bytes.NewReader(b.mem.Bytes()), nil
	}
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.LimitReader(b.file, b.size), nil
}

// Close releases the buffer and deletes the backing file, if any.
func (b *DeferredBuffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.mem.Reset()
	if b.file == nil {
		return nil
	}
	name := b.file.Name()
	err := b.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}
