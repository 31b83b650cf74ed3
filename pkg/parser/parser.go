// Package parser implements the Message Parser: per-line
// dispatch that fills a Request or Response from tokenized lines,
// driven by the Connection Engine's read state.
package parser

import (
	"bytes"

	"github.com/nodestream-io/httpcore/pkg/errors"
	"github.com/nodestream-io/httpcore/pkg/header"
	"github.com/nodestream-io/httpcore/pkg/message"
)

// State is the Connection's read state.
type State int

const (
	StateNone State = iota
	StateReqLine
	StateReqHeaders
	StateReqData
	StateResLine
	StateResHeaders
	StateResData
)

// ParseRequestLine splits line on the first two ASCII spaces into
// method, uri, version and assigns them into req. Any missing field is
// a protocol error.
func ParseRequestLine(line []byte, req *message.Request) error {
	method, rest, ok := cut(line, ' ')
	if !ok {
		return errors.NewProtocolError("parser.request_line", "missing request-target and version")
	}
	uri, version, ok := cut(rest, ' ')
	if !ok {
		return errors.NewProtocolError("parser.request_line", "missing version")
	}
	if len(method) == 0 || len(uri) == 0 || len(version) == 0 {
		return errors.NewProtocolError("parser.request_line", "empty method, request-target, or version")
	}
	if bytes.IndexByte(version, ' ') >= 0 {
		return errors.NewProtocolError("parser.request_line", "version must not contain a space")
	}

	req.Method = string(method)
	req.URI = string(uri)
	req.Version = string(version)
	return nil
}

// ParseStatusLine splits line into version, a strict 3-digit status
// code, and a reason phrase, rejecting a status code outside [100, 999].
func ParseStatusLine(line []byte, res *message.Response) error {
	version, rest, ok := cut(line, ' ')
	if !ok {
		return errors.NewProtocolError("parser.status_line", "missing status code and reason phrase")
	}
	codeBytes, reason, ok := cut(rest, ' ')
	if !ok {
		// A status line with no reason phrase (just "HTTP/1.1 200") is
		// still well-formed; treat the remainder as the status code and
		// leave the reason phrase empty.
		codeBytes = rest
		reason = nil
	}
	if len(version) == 0 {
		return errors.NewProtocolError("parser.status_line", "empty version")
	}

	code, err := parseStatusCode(codeBytes)
	if err != nil {
		return err
	}

	res.Version = string(version)
	res.Status = code
	res.Reason = string(reason)
	return nil
}

func parseStatusCode(b []byte) (int, error) {
	if len(b) != 3 {
		return 0, errors.NewProtocolError("parser.status_line", "status code must be exactly 3 digits")
	}
	code := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errors.NewProtocolError("parser.status_line", "status code must be numeric")
		}
		code = code*10 + int(c-'0')
	}
	if code < 100 || code > 999 {
		return 0, errors.NewProtocolError("parser.status_line", "status code out of range [100, 999]")
	}
	return code, nil
}

// ParseHeaderLine parses one header line into headers. An empty line
// signals the end of the header block (done=true). Otherwise the line
// is split on the first ':'; its value is trimmed of leading/trailing
// SP and HTAB (OWS) and folded into headers via Append.
func ParseHeaderLine(line []byte, headers *header.Table) (done bool, err error) {
	if len(line) == 0 {
		return true, nil
	}

	name, value, ok := cut(line, ':')
	if !ok {
		return false, errors.NewProtocolError("parser.header_line", "missing ':' in header line")
	}
	if len(name) == 0 {
		return false, errors.NewProtocolError("parser.header_line", "empty header field name")
	}
	value = trimOWS(value)

	// The table's own name/value validation also guards its API surface;
	// a failure here came off the wire, so it is a protocol error.
	if err := headers.Append(string(name), string(value)); err != nil {
		return false, errors.NewProtocolError("parser.header_line", "invalid header field name or value")
	}
	return false, nil
}

// cut splits b at the first occurrence of sep, returning the parts
// before and after it. ok is false if sep does not occur in b.
func cut(b []byte, sep byte) (before, after []byte, ok bool) {
	i := bytes.IndexByte(b, sep)
	if i < 0 {
		return b, nil, false
	}
	return b[:i], b[i+1:], true
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
