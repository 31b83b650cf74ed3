// Package constants defines magic numbers and default values shared
// across the httpcore engine.
package constants

// Read buffer sizing.
const (
	// DefaultReadBufferCapacity is the default fixed capacity of a
	// Connection's read buffer. A single header line can never be
	// longer than the buffer that holds it, so this also caps the
	// line length the tokenizer will accept.
	DefaultReadBufferCapacity = 8192
)

// Body limits.
const (
	// DefaultBodyMemLimit is the default threshold, in bytes, above
	// which a parsed body spills from memory to a temp file (pkg/body).
	DefaultBodyMemLimit = 4 * 1024 * 1024 // 4MB

	// MaxContentLength guards against a Content-Length header large
	// enough to be used as a memory-exhaustion vector.
	MaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB
)

// Status code bounds.
const (
	MinStatusCode = 100
	MaxStatusCode = 999
)
