// serializer.go implements the Serializer: a two-pass sizing+emitting
// formatter for the start line, headers, and the trailing CRLF
// terminator. The Connection Engine uses the Len functions to size its
// reusable write scratch buffer before calling the matching Write
// function.
package message

import (
	"strconv"

	"github.com/nodestream-io/httpcore/pkg/header"
)

const terminator = "\r\n"

// RequestLineLen returns the byte length of r's request line, including
// its trailing CRLF.
func RequestLineLen(r *Request) int {
	return len(r.Method) + 1 + len(r.URI) + 1 + len(r.Version) + len(terminator)
}

// WriteRequestLine writes r's request line ("%s %s %s\r\n") into dst,
// which must have length >= RequestLineLen(r), and returns the number
// of bytes written.
func WriteRequestLine(dst []byte, r *Request) int {
	n := copy(dst, r.Method)
	n += copy(dst[n:], " ")
	n += copy(dst[n:], r.URI)
	n += copy(dst[n:], " ")
	n += copy(dst[n:], r.Version)
	n += copy(dst[n:], terminator)
	return n
}

// StatusLineLen returns the byte length of r's status line, including
// its trailing CRLF.
func StatusLineLen(r *Response) int {
	return len(r.Version) + 1 + len(strconv.Itoa(r.Status)) + 1 + len(r.Reason) + len(terminator)
}

// WriteStatusLine writes r's status line ("%s %d %s\r\n") into dst,
// which must have length >= StatusLineLen(r), and returns the number
// of bytes written.
func WriteStatusLine(dst []byte, r *Response) int {
	n := copy(dst, r.Version)
	n += copy(dst[n:], " ")
	n += copy(dst[n:], strconv.Itoa(r.Status))
	n += copy(dst[n:], " ")
	n += copy(dst[n:], r.Reason)
	n += copy(dst[n:], terminator)
	return n
}

// HeadersLen returns the byte length of tb's entries in wire form, each
// as "name: value\r\n", plus the trailing empty-line terminator.
func HeadersLen(tb *header.Table) int {
	n := len(terminator) // header block terminator
	for _, h := range tb.Iter() {
		n += len(h.Name) + 2 + len(h.Value) + len(terminator)
	}
	return n
}

// WriteHeaders writes tb's entries into dst, which must have length >=
// HeadersLen(tb), and returns the number of bytes written, including
// the trailing empty-line terminator.
func WriteHeaders(dst []byte, tb *header.Table) int {
	n := 0
	for _, h := range tb.Iter() {
		n += copy(dst[n:], h.Name)
		n += copy(dst[n:], ": ")
		n += copy(dst[n:], h.Value)
		n += copy(dst[n:], terminator)
	}
	n += copy(dst[n:], terminator)
	return n
}

// RequestHeadLen returns the total byte length of r's request line plus
// headers plus terminator — everything the Connection Engine writes
// before the body.
func RequestHeadLen(r *Request) int {
	return RequestLineLen(r) + HeadersLen(r.Headers)
}

// WriteRequestHead writes r's full head (request line + headers +
// terminator) into dst, which must have length >= RequestHeadLen(r),
// and returns the number of bytes written.
func WriteRequestHead(dst []byte, r *Request) int {
	n := WriteRequestLine(dst, r)
	n += WriteHeaders(dst[n:], r.Headers)
	return n
}

// ResponseHeadLen returns the total byte length of r's status line plus
// headers plus terminator.
func ResponseHeadLen(r *Response) int {
	return StatusLineLen(r) + HeadersLen(r.Headers)
}

// WriteResponseHead writes r's full head (status line + headers +
// terminator) into dst, which must have length >= ResponseHeadLen(r),
// and returns the number of bytes written.
func WriteResponseHead(dst []byte, r *Response) int {
	n := WriteStatusLine(dst, r)
	n += WriteHeaders(dst[n:], r.Headers)
	return n
}
