// Package iobuf implements the Read Buffer: a fixed-capacity
// byte buffer with a residual region [get, put) and compaction.
package iobuf

import "github.com/nodestream-io/httpcore/pkg/errors"

// ReadBuffer is a fixed-capacity buffer holding bytes read from a
// transport that have not yet been fully consumed by the Line
// Tokenizer or the body-transfer phase. get <= put <= capacity always
// holds; after Compact, get == 0.
type ReadBuffer struct {
	data []byte
	get  int
	put  int
}

// New allocates a ReadBuffer with the given fixed capacity.
func New(capacity int) (*ReadBuffer, error) {
	if capacity <= 0 {
		return nil, errors.NewOutOfMemoryError("read_buffer.new", nil)
	}
	return &ReadBuffer{data: make([]byte, capacity)}, nil
}

// Capacity returns the fixed size of the underlying storage.
func (b *ReadBuffer) Capacity() int {
	return len(b.data)
}

// Pending returns the residual, unconsumed bytes [get, put). The
// returned slice aliases the buffer's storage and is only valid until
// the next mutating call (Advance, Consume, Compact, Reset).
func (b *ReadBuffer) Pending() []byte {
	return b.data[b.get:b.put]
}

// Avail returns the writable tail [put, capacity) — the target for the
// next transport read.
func (b *ReadBuffer) Avail() []byte {
	return b.data[b.put:]
}

// Advance records that n bytes were written into the slice previously
// returned by Avail.
func (b *ReadBuffer) Advance(n int) {
	b.put += n
}

// Consume drops n bytes off the front of the residual region, as when
// bytes are handed to a caller's iov in the residual-first read path.
func (b *ReadBuffer) Consume(n int) {
	b.get += n
}

// Full reports whether the residual region occupies the entire buffer,
// i.e. there is no room left for a transport read without first
// consuming or compacting.
func (b *ReadBuffer) Full() bool {
	return b.put-b.get == len(b.data)
}

// Compact moves [get, put) down to [0, put-get), maximizing headroom
// for the next transport read. After Compact, get == 0.
func (b *ReadBuffer) Compact() {
	if b.get == 0 {
		return
	}
	n := copy(b.data, b.data[b.get:b.put])
	b.get = 0
	b.put = n
}

// Reset empties the buffer entirely, discarding any residual bytes.
func (b *ReadBuffer) Reset() {
	b.get = 0
	b.put = 0
}
