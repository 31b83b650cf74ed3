// Package message implements Request and Response messages and their
// wire serialization.
package message

import (
	"bytes"
	"io"
	"strconv"

	"golang.org/x/net/http/httpguts"

	"github.com/nodestream-io/httpcore/pkg/body"
	"github.com/nodestream-io/httpcore/pkg/constants"
	"github.com/nodestream-io/httpcore/pkg/errors"
	"github.com/nodestream-io/httpcore/pkg/header"
)

// Body is the optional payload of a Request or Response. A Body set via
// SetBody/CopyBody holds a plain byte slice; a Body populated by the
// Connection Engine's body-transfer phase holds a spillable body.Store
// instead, so a
// large incoming Content-Length cannot pin arbitrary memory.
type Body struct {
	raw   []byte
	store *body.Store
	owned bool
}

// Bytes returns the body's bytes, or nil if the body spilled to disk —
// use Reader in that case.
func (b *Body) Bytes() []byte {
	if b == nil {
		return nil
	}
	if b.store != nil {
		return b.store.Bytes()
	}
	return b.raw
}

// Size returns the total body length.
func (b *Body) Size() int64 {
	if b == nil {
		return 0
	}
	if b.store != nil {
		return b.store.Size()
	}
	return int64(len(b.raw))
}

// Owned reports whether the message is responsible for the body's
// storage.
func (b *Body) Owned() bool {
	return b != nil && b.owned
}

// Reader returns a fresh reader over the body, regardless of whether it
// is held in memory, spilled to disk, or empty.
func (b *Body) Reader() (io.ReadCloser, error) {
	if b == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if b.store != nil {
		return b.store.Reader()
	}
	return io.NopCloser(bytes.NewReader(b.raw)), nil
}

// NewStoredBody wraps a body.Store populated by the Connection Engine's
// body-transfer phase as an owned Body.
func NewStoredBody(store *body.Store) *Body {
	return &Body{store: store, owned: true}
}

// Request holds the fields of an HTTP/1.1 request.
type Request struct {
	Method  string
	URI     string
	Version string
	Headers *header.Table
	Body    *Body
}

// NewRequest returns a Request with the standard defaults: method=GET,
// uri=/, version=HTTP/1.1, empty headers, no body.
func NewRequest() *Request {
	return &Request{
		Method:  "GET",
		URI:     "/",
		Version: "HTTP/1.1",
		Headers: header.New(),
	}
}

// SetMethod sets the request method. The method must be non-empty.
func (r *Request) SetMethod(method string) error {
	if method == "" {
		return errors.NewValidationError("request.set_method", "method must not be empty")
	}
	if !httpguts.ValidHeaderFieldValue(method) {
		return errors.NewValidationError("request.set_method", "method contains invalid characters")
	}
	r.Method = method
	return nil
}

// SetURI sets the request target. It must be non-empty.
func (r *Request) SetURI(uri string) error {
	if uri == "" {
		return errors.NewValidationError("request.set_uri", "uri must not be empty")
	}
	if !httpguts.ValidHeaderFieldValue(uri) {
		return errors.NewValidationError("request.set_uri", "uri contains invalid characters")
	}
	r.URI = uri
	return nil
}

// SetVersion sets the HTTP version token. It must be non-empty.
func (r *Request) SetVersion(version string) error {
	if version == "" {
		return errors.NewValidationError("request.set_version", "version must not be empty")
	}
	if !httpguts.ValidHeaderFieldValue(version) {
		return errors.NewValidationError("request.set_version", "version contains invalid characters")
	}
	r.Version = version
	return nil
}

// SetBody sets the body pointer and records ownership, writing
// Content-Length via the Header Table's Set, not Append.
func (r *Request) SetBody(data []byte, owned bool) error {
	return setBody(r.Headers, &r.Body, data, owned)
}

// CopyBody allocates a defensive copy of data and calls SetBody with
// owned=true. On failure the prior body is left untouched.
func (r *Request) CopyBody(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	return r.SetBody(cp, true)
}

// Response holds the fields of an HTTP/1.1 response.
type Response struct {
	Version string
	Status  int
	Reason  string
	Headers *header.Table
	Body    *Body
}

// NewResponse returns a Response with defaults version=HTTP/1.1,
// status=200, reason=OK, empty headers, no body.
func NewResponse() *Response {
	return &Response{
		Version: "HTTP/1.1",
		Status:  200,
		Reason:  "OK",
		Headers: header.New(),
	}
}

// SetVersion sets the HTTP version token.
func (r *Response) SetVersion(version string) error {
	if version == "" {
		return errors.NewValidationError("response.set_version", "version must not be empty")
	}
	if !httpguts.ValidHeaderFieldValue(version) {
		return errors.NewValidationError("response.set_version", "version contains invalid characters")
	}
	r.Version = version
	return nil
}

// SetStatus sets the status code. status must be in [100, 999].
func (r *Response) SetStatus(status int) error {
	if status < constants.MinStatusCode || status > constants.MaxStatusCode {
		return errors.NewValidationError("response.set_status", "status code out of range [100, 999]")
	}
	r.Status = status
	return nil
}

// SetReason sets the reason phrase. It must contain no CR or LF.
func (r *Response) SetReason(reason string) error {
	if !httpguts.ValidHeaderFieldValue(reason) {
		return errors.NewValidationError("response.set_reason", "reason phrase contains CR, LF, or other control characters")
	}
	r.Reason = reason
	return nil
}

// SetBody sets the body pointer and records ownership, writing
// Content-Length via the Header Table's Set, not Append.
func (r *Response) SetBody(data []byte, owned bool) error {
	return setBody(r.Headers, &r.Body, data, owned)
}

// CopyBody allocates a defensive copy of data and calls SetBody with
// owned=true.
func (r *Response) CopyBody(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	return r.SetBody(cp, true)
}

func setBody(headers *header.Table, dst **Body, data []byte, owned bool) error {
	if err := headers.Set("Content-Length", strconv.Itoa(len(data))); err != nil {
		return err
	}
	*dst = &Body{raw: data, owned: owned}
	return nil
}
