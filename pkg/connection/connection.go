// Package connection implements the Connection Engine: a
// single-threaded, mutex-protected async state machine that wires
// together the Read Buffer, Line Tokenizer, Message Parser, and
// Serializer over an abstract Transport, and exposes the client/server
// exchange operations plus a post-upgrade pass-through read/write.
package connection

import (
	"io"
	"strconv"
	"sync"

	"github.com/nodestream-io/httpcore/pkg/body"
	"github.com/nodestream-io/httpcore/pkg/constants"
	"github.com/nodestream-io/httpcore/pkg/errors"
	"github.com/nodestream-io/httpcore/pkg/header"
	"github.com/nodestream-io/httpcore/pkg/iobuf"
	"github.com/nodestream-io/httpcore/pkg/message"
	"github.com/nodestream-io/httpcore/pkg/parser"
	"github.com/nodestream-io/httpcore/pkg/tokenizer"
	"github.com/nodestream-io/httpcore/pkg/transport"
)

// Completion finishes a submission exactly once, with either a byte
// count or an error.
type Completion func(n int, err error)

// fireList accumulates user completions to invoke after the connection
// mutex has been released, so a completion that re-enters the
// Connection synchronously can never deadlock on its own lock.
type fireList struct {
	calls []func()
}

func (f *fireList) add(completion Completion, n int, err error) {
	if completion == nil {
		return
	}
	f.calls = append(f.calls, func() { completion(n, err) })
}

func (f *fireList) run() {
	for _, call := range f.calls {
		call()
	}
}

// queuedOp is a submission waiting behind the in-flight operation of
// its kind. The completion is held alongside
// the start closure so a drain on Close can still finish it exactly
// once, with a cancellation error.
type queuedOp struct {
	start      func(*fireList)
	completion Completion
}

// headOp tracks the message currently being read across the head
// (request-line/status-line + headers) and body phases.
type headOp struct {
	completion Completion
	req        *message.Request
	res        *message.Response
	isResponse bool
	total      int
}

// Connection drives one exchange at a time over Transport: a single
// in-flight read and a single in-flight write, with additional
// submissions queued FIFO.
type Connection struct {
	mu sync.Mutex

	tr transport.Transport
	rb *iobuf.ReadBuffer

	readState parser.State
	head      *headOp

	bodyStore *body.Store
	bodyChunk []byte

	readInFlight bool
	readAioDone  Completion
	readQueue    []queuedOp

	writeScratch    []byte
	writeInFlight   bool
	writeIov        [][]byte
	writeTotal      int
	writeCompletion Completion
	writeQueue      []queuedOp

	closed        bool
	exchangeCount int
}

// New returns a Connection driving tr, with a Read Buffer of the given
// capacity (default constants.DefaultReadBufferCapacity).
func New(tr transport.Transport, readBufCapacity int) (*Connection, error) {
	if readBufCapacity <= 0 {
		readBufCapacity = constants.DefaultReadBufferCapacity
	}
	rb, err := iobuf.New(readBufCapacity)
	if err != nil {
		return nil, err
	}
	return &Connection{tr: tr, rb: rb}, nil
}

// ExchangeCount reports the number of request/response exchanges this
// Connection has completed (head read or write), a plain counter rather
// than a metrics pipeline.
func (c *Connection) ExchangeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchangeCount
}

// WriteRequest serializes and sends req.
func (c *Connection) WriteRequest(req *message.Request, completion Completion) {
	fire := &fireList{}
	c.mu.Lock()
	c.submitWriteLocked(fire, completion, func(f *fireList) { c.startWriteHeadLocked(f, req, nil, completion) })
	c.mu.Unlock()
	fire.run()
}

// ReadRequest receives a request into req, header block and body both.
func (c *Connection) ReadRequest(req *message.Request, completion Completion) {
	fire := &fireList{}
	c.mu.Lock()
	req.Body = nil
	c.submitReadLocked(fire, completion, func(f *fireList) {
		c.head = &headOp{completion: completion, req: req, isResponse: false}
		c.readState = parser.StateReqLine
		c.pumpHeadReadLocked(f)
	})
	c.mu.Unlock()
	fire.run()
}

// WriteResponse serializes and sends res.
func (c *Connection) WriteResponse(res *message.Response, completion Completion) {
	fire := &fireList{}
	c.mu.Lock()
	c.submitWriteLocked(fire, completion, func(f *fireList) { c.startWriteHeadLocked(f, nil, res, completion) })
	c.mu.Unlock()
	fire.run()
}

// ReadResponse receives a response into res, header block and body both.
func (c *Connection) ReadResponse(res *message.Response, completion Completion) {
	fire := &fireList{}
	c.mu.Lock()
	res.Body = nil
	c.submitReadLocked(fire, completion, func(f *fireList) {
		c.head = &headOp{completion: completion, res: res, isResponse: true}
		c.readState = parser.StateResLine
		c.pumpHeadReadLocked(f)
	})
	c.mu.Unlock()
	fire.run()
}

// Read is the post-upgrade pass-through. Residual bytes already
// buffered are delivered before any new transport read is issued.
func (c *Connection) Read(iov [][]byte, completion Completion) {
	fire := &fireList{}
	c.mu.Lock()
	c.submitReadLocked(fire, completion, func(f *fireList) {
		if n := c.drainResidualIntoIovLocked(iov); n > 0 {
			c.endReadLocked(f)
			f.add(completion, n, nil)
			return
		}
		c.readAioDone = completion
		c.tr.Read(iov, func(n int, err error) { c.onAioRead(n, err) })
	})
	c.mu.Unlock()
	fire.run()
}

// Write is the post-upgrade pass-through.
func (c *Connection) Write(iov [][]byte, completion Completion) {
	fire := &fireList{}
	c.mu.Lock()
	c.submitWriteLocked(fire, completion, func(f *fireList) {
		c.writeIov = iov
		c.writeTotal = 0
		c.writeCompletion = completion
		c.driveWriteLocked()
	})
	c.mu.Unlock()
	fire.run()
}

// Close cancels outstanding transport operations and releases buffers.
// Queued submissions are failed with a cancellation error.
func (c *Connection) Close() error {
	fire := &fireList{}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.drainQueuesLocked(fire)
	c.mu.Unlock()
	fire.run()

	return c.tr.Close()
}

func (c *Connection) drainQueuesLocked(f *fireList) {
	if c.head != nil {
		f.add(c.head.completion, 0, errors.NewCanceledError("connection.close"))
		c.head = nil
	}
	c.readState = parser.StateNone
	if c.bodyStore != nil {
		c.bodyStore.Close()
		c.bodyStore = nil
	}
	c.bodyChunk = nil
	if c.readAioDone != nil {
		f.add(c.readAioDone, 0, errors.NewCanceledError("connection.close"))
		c.readAioDone = nil
	}
	if c.writeCompletion != nil {
		f.add(c.writeCompletion, 0, errors.NewCanceledError("connection.close"))
		c.writeCompletion = nil
	}
	for _, op := range c.readQueue {
		f.add(op.completion, 0, errors.NewCanceledError("connection.close"))
	}
	for _, op := range c.writeQueue {
		f.add(op.completion, 0, errors.NewCanceledError("connection.close"))
	}
	c.readQueue = nil
	c.writeQueue = nil
}

// --- submission queueing ---

func (c *Connection) submitReadLocked(f *fireList, completion Completion, start func(*fireList)) {
	if c.closed {
		f.add(completion, 0, errors.NewCanceledError("connection.read"))
		return
	}
	if c.readInFlight {
		c.readQueue = append(c.readQueue, queuedOp{start: start, completion: completion})
		return
	}
	c.readInFlight = true
	start(f)
}

func (c *Connection) endReadLocked(f *fireList) {
	if len(c.readQueue) > 0 {
		next := c.readQueue[0]
		c.readQueue = c.readQueue[1:]
		next.start(f)
		return
	}
	c.readInFlight = false
}

func (c *Connection) submitWriteLocked(f *fireList, completion Completion, start func(*fireList)) {
	if c.closed {
		f.add(completion, 0, errors.NewCanceledError("connection.write"))
		return
	}
	if c.writeInFlight {
		c.writeQueue = append(c.writeQueue, queuedOp{start: start, completion: completion})
		return
	}
	c.writeInFlight = true
	start(f)
}

func (c *Connection) endWriteLocked(f *fireList) {
	if len(c.writeQueue) > 0 {
		next := c.writeQueue[0]
		c.writeQueue = c.writeQueue[1:]
		next.start(f)
		return
	}
	c.writeInFlight = false
}

// --- write path ---

func (c *Connection) startWriteHeadLocked(f *fireList, req *message.Request, res *message.Response, completion Completion) {
	var headLen int
	if req != nil {
		headLen = message.RequestHeadLen(req)
	} else {
		headLen = message.ResponseHeadLen(res)
	}
	if cap(c.writeScratch) < headLen {
		c.writeScratch = make([]byte, headLen)
	}
	head := c.writeScratch[:headLen]
	if req != nil {
		message.WriteRequestHead(head, req)
	} else {
		message.WriteResponseHead(head, res)
	}

	iov := make([][]byte, 0, 2)
	iov = append(iov, head)
	var bodyBytes []byte
	if req != nil {
		bodyBytes = req.Body.Bytes()
	} else {
		bodyBytes = res.Body.Bytes()
	}
	if len(bodyBytes) > 0 {
		iov = append(iov, bodyBytes)
	}

	c.writeIov = iov
	c.writeTotal = 0
	c.writeCompletion = completion
	c.driveWriteLocked()
}

func (c *Connection) driveWriteLocked() {
	c.tr.Write(c.writeIov, func(n int, err error) { c.onWriteComplete(n, err) })
}

// onWriteComplete is the transport completion for a write; it always
// runs on its own goroutine (transport.Transport never calls back
// synchronously), so it is safe to acquire the mutex here.
func (c *Connection) onWriteComplete(n int, err error) {
	fire := &fireList{}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.writeTotal += n
	if err != nil {
		c.finishWriteLocked(fire, err)
		c.mu.Unlock()
		fire.run()
		return
	}
	c.writeIov = shrinkIov(c.writeIov, n)
	if iovRemaining(c.writeIov) == 0 {
		c.finishWriteLocked(fire, nil)
		c.mu.Unlock()
		fire.run()
		return
	}
	c.driveWriteLocked()
	c.mu.Unlock()
}

func (c *Connection) finishWriteLocked(f *fireList, err error) {
	completion := c.writeCompletion
	total := c.writeTotal
	c.writeCompletion = nil
	c.writeIov = nil
	if err == nil {
		c.exchangeCount++
	}
	c.endWriteLocked(f)
	f.add(completion, total, err)
}

func shrinkIov(iov [][]byte, n int) [][]byte {
	for n > 0 && len(iov) > 0 {
		if n < len(iov[0]) {
			iov[0] = iov[0][n:]
			return iov
		}
		n -= len(iov[0])
		iov = iov[1:]
	}
	return iov
}

func iovRemaining(iov [][]byte) int {
	total := 0
	for _, b := range iov {
		total += len(b)
	}
	return total
}

// --- read path: head (request-line/status-line + headers) ---

func (c *Connection) pumpHeadReadLocked(f *fireList) {
	for {
		line, res, tokErr := tokenizer.NextLine(c.rb)
		switch res {
		case tokenizer.Line:
			done, derr := c.dispatchLineLocked(line)
			if derr != nil {
				c.failHeadLocked(f, derr)
				return
			}
			if done {
				c.startBodyPhaseLocked(f)
				return
			}
		case tokenizer.NeedMore:
			c.issueHeadTransportReadLocked(f)
			return
		case tokenizer.ProtocolError:
			err := tokErr
			if err == nil {
				err = errors.NewProtocolError("connection.read_head", "malformed request or status line")
			}
			c.failHeadLocked(f, err)
			return
		}
	}
}

func (c *Connection) dispatchLineLocked(line []byte) (done bool, err error) {
	switch c.readState {
	case parser.StateReqLine:
		if err := parser.ParseRequestLine(line, c.head.req); err != nil {
			return false, err
		}
		c.readState = parser.StateReqHeaders
		return false, nil
	case parser.StateResLine:
		if err := parser.ParseStatusLine(line, c.head.res); err != nil {
			return false, err
		}
		c.readState = parser.StateResHeaders
		return false, nil
	case parser.StateReqHeaders:
		headerDone, err := parser.ParseHeaderLine(line, c.head.req.Headers)
		if err != nil {
			return false, err
		}
		if headerDone {
			c.readState = parser.StateReqData
			return true, nil
		}
		return false, nil
	case parser.StateResHeaders:
		headerDone, err := parser.ParseHeaderLine(line, c.head.res.Headers)
		if err != nil {
			return false, err
		}
		if headerDone {
			c.readState = parser.StateResData
			return true, nil
		}
		return false, nil
	default:
		return false, errors.NewProtocolError("connection.read_head", "line received outside a head-parsing state")
	}
}

func (c *Connection) issueHeadTransportReadLocked(f *fireList) {
	avail := c.rb.Avail()
	if len(avail) == 0 {
		c.failHeadLocked(f, errors.NewProtocolError("connection.read_head", "header line exceeds read buffer capacity"))
		return
	}
	c.tr.Read([][]byte{avail}, func(n int, err error) { c.onHeadTransportRead(n, err) })
}

// onHeadTransportRead is a transport completion; always async, safe to
// lock here.
func (c *Connection) onHeadTransportRead(n int, err error) {
	fire := &fireList{}
	c.mu.Lock()
	if c.head == nil {
		// Close drained this operation already; the user completion has
		// fired with a cancellation error and must not fire again.
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.failHeadLocked(fire, err)
		c.mu.Unlock()
		fire.run()
		return
	}
	if n == 0 {
		c.failHeadLocked(fire, errors.NewTransportError("connection.read_head", io.ErrUnexpectedEOF))
		c.mu.Unlock()
		fire.run()
		return
	}
	c.rb.Advance(n)
	c.pumpHeadReadLocked(fire)
	c.mu.Unlock()
	fire.run()
}

func (c *Connection) failHeadLocked(f *fireList, err error) {
	completion := c.head.completion
	c.head = nil
	c.readState = parser.StateNone
	if c.bodyStore != nil {
		// A body that already spilled to a temp file must have that
		// file removed here — this is the only path out of the body
		// phase on failure, nothing downstream ever sees this Store.
		c.bodyStore.Close()
		c.bodyStore = nil
	}
	c.bodyChunk = nil
	c.endReadLocked(f)
	f.add(completion, 0, err)
}

func (c *Connection) finishHeadLocked(f *fireList) {
	completion := c.head.completion
	total := c.head.total
	c.head = nil
	c.readState = parser.StateNone
	c.exchangeCount++
	c.endReadLocked(f)
	f.add(completion, total, nil)
}

// --- read path: body (*_DATA) ---

func (c *Connection) startBodyPhaseLocked(f *fireList) {
	var headers *header.Table
	var version string
	if c.head.isResponse {
		headers = c.head.res.Headers
		version = c.head.res.Version
	} else {
		headers = c.head.req.Headers
		version = c.head.req.Version
	}

	want, ok, err := contentLength(headers, version)
	if err != nil {
		c.failHeadLocked(f, err)
		return
	}
	if !ok || want == 0 {
		c.finishHeadLocked(f)
		return
	}

	c.bodyStore = body.New(want, constants.DefaultBodyMemLimit)
	chunkCap := int64(c.rb.Capacity())
	if chunkCap > want {
		chunkCap = want
	}
	c.bodyChunk = make([]byte, chunkCap)
	c.drainResidualIntoBodyLocked(f)
}

// contentLength reports the body size to read for the *_DATA phase.
// ok is false (no error) when there is no applicable Content-Length —
// non-HTTP/1.1, header absent, or unparseable — which the body phase
// treats as an empty body. A
// Content-Length that parses but exceeds constants.MaxContentLength is
// a PROTOCOL_ERROR rather than silently falling back to empty: the
// header is present and well-formed, it is simply refused as a
// memory-exhaustion vector, which must not be read as "no body".
func contentLength(headers *header.Table, version string) (int64, bool, error) {
	if version != "HTTP/1.1" {
		return 0, false, nil
	}
	v, ok := headers.Find("Content-Length")
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false, nil
	}
	if n > constants.MaxContentLength {
		return 0, false, errors.NewProtocolError("connection.read_body", "content-length exceeds the maximum accepted body size")
	}
	return n, true, nil
}

func (c *Connection) drainResidualIntoBodyLocked(f *fireList) {
	pending := c.rb.Pending()
	if len(pending) > 0 {
		take := int64(len(pending))
		if remaining := c.bodyStore.Remaining(); take > remaining {
			take = remaining
		}
		if _, err := c.bodyStore.Write(pending[:take]); err != nil {
			c.failHeadLocked(f, err)
			return
		}
		c.rb.Consume(int(take))
	}
	if c.bodyStore.Complete() {
		c.completeBodyLocked(f)
		return
	}
	c.issueBodyReadLocked(f)
}

func (c *Connection) issueBodyReadLocked(f *fireList) {
	chunk := c.bodyChunk
	if remaining := c.bodyStore.Remaining(); int64(len(chunk)) > remaining {
		chunk = chunk[:remaining]
	}
	c.tr.Read([][]byte{chunk}, func(n int, err error) { c.onBodyRead(chunk, n, err) })
}

// onBodyRead is a transport completion; always async, safe to lock here.
func (c *Connection) onBodyRead(chunk []byte, n int, err error) {
	fire := &fireList{}
	c.mu.Lock()
	if c.head == nil {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.failHeadLocked(fire, err)
		c.mu.Unlock()
		fire.run()
		return
	}
	if n == 0 {
		c.failHeadLocked(fire, errors.NewTransportError("connection.read_body", io.ErrUnexpectedEOF))
		c.mu.Unlock()
		fire.run()
		return
	}
	if _, werr := c.bodyStore.Write(chunk[:n]); werr != nil {
		c.failHeadLocked(fire, werr)
		c.mu.Unlock()
		fire.run()
		return
	}
	if c.bodyStore.Complete() {
		c.completeBodyLocked(fire)
		c.mu.Unlock()
		fire.run()
		return
	}
	c.issueBodyReadLocked(fire)
	c.mu.Unlock()
	fire.run()
}

func (c *Connection) completeBodyLocked(f *fireList) {
	bodyMsg := message.NewStoredBody(c.bodyStore)
	if c.head.isResponse {
		c.head.res.Body = bodyMsg
	} else {
		c.head.req.Body = bodyMsg
	}
	c.head.total = int(c.bodyStore.Size())
	c.bodyStore = nil
	c.bodyChunk = nil
	c.finishHeadLocked(f)
}

// Upgrade returns a blocking io.ReadWriter over the post-upgrade
// pass-through Read/Write, for handing the connection to a protocol
// layer (e.g. a WebSocket frame reader) that expects a synchronous
// byte stream. Residual bytes buffered past the final head terminator
// are still delivered first, via the same path Read uses.
func (c *Connection) Upgrade() io.ReadWriter {
	return &upgraded{c: c}
}

type upgraded struct {
	c *Connection
}

func (u *upgraded) Read(p []byte) (int, error) {
	done := make(chan struct{})
	var n int
	var err error
	u.c.Read([][]byte{p}, func(gotN int, gotErr error) {
		n, err = gotN, gotErr
		close(done)
	})
	<-done
	return n, err
}

func (u *upgraded) Write(p []byte) (int, error) {
	done := make(chan struct{})
	var n int
	var err error
	u.c.Write([][]byte{p}, func(gotN int, gotErr error) {
		n, err = gotN, gotErr
		close(done)
	})
	<-done
	return n, err
}

// --- post-upgrade aio read ---

func (c *Connection) drainResidualIntoIovLocked(iov [][]byte) int {
	pending := c.rb.Pending()
	if len(pending) == 0 {
		return 0
	}
	total := 0
	for _, dst := range iov {
		if len(pending) == 0 {
			break
		}
		n := copy(dst, pending)
		pending = pending[n:]
		total += n
	}
	c.rb.Consume(total)
	return total
}

// onAioRead is a transport completion; always async, safe to lock here.
func (c *Connection) onAioRead(n int, err error) {
	fire := &fireList{}
	c.mu.Lock()
	completion := c.readAioDone
	c.readAioDone = nil
	c.endReadLocked(fire)
	c.mu.Unlock()
	fire.add(completion, n, err)
	fire.run()
}
