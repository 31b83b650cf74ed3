// Package tokenizer implements the Line Tokenizer: it extracts
// CRLF-terminated lines from a bounded Read Buffer, enforcing
// printable-ASCII with HTAB as the sole sub-0x20 exception.
package tokenizer

import (
	"github.com/nodestream-io/httpcore/pkg/errors"
	"github.com/nodestream-io/httpcore/pkg/iobuf"
)

// Result classifies the outcome of a NextLine call.
type Result int

const (
	// NeedMore means no complete CRLF-terminated line is present yet;
	// the buffer has already been compacted and the caller should issue
	// a transport read targeting Avail() before calling again.
	NeedMore Result = iota
	// Line means a complete line was extracted.
	Line
	// ProtocolError means the input violates the wire grammar.
	ProtocolError
)

// NextLine scans rb's residual region for a CRLF-terminated line.
//
// On Line, the returned slice aliases rb's storage and is valid only
// until the next call that mutates rb — callers must copy out anything
// they need to keep before tokenizing again.
//
// On NeedMore, rb has already been compacted (get == 0) to maximize
// headroom for the next transport read.
//
// On ProtocolError, rb is left as-is; the caller must treat the
// exchange as terminal.
func NextLine(rb *iobuf.ReadBuffer) ([]byte, Result, error) {
	pending := rb.Pending()

	for i := 0; i < len(pending); i++ {
		c := pending[i]

		if c == '\r' {
			if i+1 < len(pending) {
				if pending[i+1] != '\n' {
					return nil, ProtocolError, errors.NewProtocolError("tokenizer.next_line", "CR not followed by LF")
				}
				line := pending[:i]
				rb.Consume(i + 2)
				return line, Line, nil
			}
			// CR is the last byte seen so far — need the next read to
			// learn whether LF follows.
			break
		}

		if c < 0x20 && c != '\t' {
			return nil, ProtocolError, errors.NewProtocolError("tokenizer.next_line", "control character in header region")
		}
	}

	if rb.Full() {
		return nil, ProtocolError, errors.NewProtocolError("tokenizer.next_line", "header line exceeds buffer capacity")
	}

	rb.Compact()
	return nil, NeedMore, nil
}
