// Package body implements the storage backing a body read off the
// wire. The Connection Engine's body-transfer phase knows the declared
// Content-Length before the first payload byte arrives, and a Store is
// built around that: it is constructed with the byte count it will
// hold, chooses its backing once up front — memory for bodies within
// the limit, a temp file for bodies past it — and enforces the
// declared size across the chunked Write calls that follow, so the
// engine can ask the Store how many bytes are still owed instead of
// keeping its own running count. There is no migrate-on-threshold
// step: a body that will not fit in memory never passes through it.
package body

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/nodestream-io/httpcore/pkg/errors"
)

// DefaultMemoryLimit is the backing-choice threshold a Store falls
// back to when constructed with a non-positive limit.
const DefaultMemoryLimit = 4 * 1024 * 1024 // 4MB

// Store accumulates exactly the declared number of body bytes across
// one or more Write calls. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	want    int64
	written int64

	mem      bytes.Buffer // used while onDisk is false
	file     *os.File
	filePath string
	onDisk   bool

	closed bool
}

// New returns an empty Store that will hold exactly want bytes. The
// backing is decided here: in memory when want fits within limit, on a
// temp file otherwise (created lazily on the first Write). A
// non-positive limit falls back to DefaultMemoryLimit.
func New(want, limit int64) *Store {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	s := &Store{want: want, onDisk: want > limit}
	if !s.onDisk {
		s.mem.Grow(int(want))
	}
	return s
}

// Want reports the declared body size this Store was built for.
func (s *Store) Want() int64 {
	return s.want
}

// Size reports the number of bytes written so far.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Remaining reports how many declared bytes are still owed. The
// body-transfer phase clamps its residual drain and transport reads to
// this.
func (s *Store) Remaining() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.want - s.written
}

// Complete reports whether every declared byte has arrived.
func (s *Store) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written == s.want
}

// IsSpilled reports whether this Store is file-backed.
func (s *Store) IsSpilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onDisk
}

// Path returns the filesystem path backing a file-backed Store, or ""
// before the first Write or for a memory-backed one.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filePath
}

// Write appends one wire chunk. Writing past the declared size is
// rejected outright rather than clamped: the engine sizes every read
// it issues against Remaining, so an overflowing chunk means the
// caller and the Store disagree about the transfer and nothing useful
// can come of storing the excess.
func (s *Store) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.NewValidationError("body.write", "write on a closed body store")
	}
	if s.written+int64(len(p)) > s.want {
		return 0, errors.NewValidationError("body.write", "write exceeds the declared body size")
	}

	if !s.onDisk {
		n, _ := s.mem.Write(p)
		s.written += int64(n)
		return n, nil
	}

	if s.file == nil {
		tmp, err := os.CreateTemp("", "httpcore-body-*.tmp")
		if err != nil {
			return 0, errors.NewOutOfMemoryError("body.write", err)
		}
		s.file = tmp
		s.filePath = tmp.Name()
	}
	n, err := s.file.Write(p)
	s.written += int64(n)
	if err != nil {
		return n, errors.NewOutOfMemoryError("body.write", err)
	}
	return n, nil
}

// Bytes returns the payload of a memory-backed Store, or nil for a
// file-backed one — use Reader in that case.
func (s *Store) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onDisk {
		return nil
	}
	return s.mem.Bytes()
}

// Reader opens a fresh, independent reader over everything written so
// far, whichever backing the Store chose.
func (s *Store) Reader() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.NewValidationError("body.reader", "reader on a closed body store")
	}
	if !s.onDisk {
		return io.NopCloser(bytes.NewReader(s.mem.Bytes())), nil
	}
	if s.file == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if err := s.file.Sync(); err != nil {
		return nil, errors.NewOutOfMemoryError("body.reader", err)
	}
	f, err := os.Open(s.filePath)
	if err != nil {
		return nil, errors.NewOutOfMemoryError("body.reader", err)
	}
	return f, nil
}

// Close removes the backing temp file, if any. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	closeErr := s.file.Close()
	removeErr := os.Remove(s.filePath)
	s.file = nil
	s.filePath = ""
	if closeErr != nil {
		return errors.NewOutOfMemoryError("body.close", closeErr)
	}
	if removeErr != nil {
		return errors.NewOutOfMemoryError("body.close", removeErr)
	}
	return nil
}
