// Package transport provides the asynchronous I/O abstraction the
// Connection Engine drives: a single in-flight read and a
// single in-flight write, each completed via callback rather than a
// blocking return, so the engine never blocks its caller on socket I/O.
package transport

import (
	"net"
	"sync"

	"github.com/nodestream-io/httpcore/pkg/errors"
)

// Completion is invoked exactly once per Read or Write call, from a
// goroutine owned by the Transport, with either the byte count
// transferred or an error.
type Completion func(n int, err error)

// Transport performs vectored reads and writes asynchronously. A
// well-behaved caller issues at most one in-flight Read and one
// in-flight Write at a time (the Connection Engine enforces this via
// its own FIFO queues); Transport implementations are not required to
// support concurrent calls of the same kind.
type Transport interface {
	// Read fills iov (in order) with data read from the underlying
	// transport and reports the total bytes read via completion.
	Read(iov [][]byte, completion Completion)

	// Write sends iov (in order, as a single vectored write where the
	// underlying transport supports it) and reports the total bytes
	// written via completion.
	Write(iov [][]byte, completion Completion)

	// Close shuts down the transport. Completions of calls still in
	// flight are still invoked, with the error the interrupted operation
	// reported; calls made after Close complete with a canceled error.
	Close() error
}

// netConnTransport adapts a blocking net.Conn to the asynchronous
// Transport interface by running each Read/Write on its own goroutine.
// Close closes conn first — which unblocks any goroutine parked in a
// blocking Read or Write on it — then waits the WaitGroup out, so no
// goroutine outlives Close.
type netConnTransport struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewNetConnTransport wraps conn as a Transport.
func NewNetConnTransport(conn net.Conn) Transport {
	return &netConnTransport{conn: conn}
}

func (t *netConnTransport) Read(iov [][]byte, completion Completion) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		// Still asynchronous: a caller may hold its own lock across this
		// call and re-acquire it inside completion.
		go completion(0, errors.NewCanceledError("transport.read"))
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		total := 0
		var readErr error
		for _, buf := range iov {
			if len(buf) == 0 {
				continue
			}
			n, err := t.conn.Read(buf)
			total += n
			if err != nil {
				readErr = errors.NewTransportError("transport.read", err)
				break
			}
			if n < len(buf) {
				// Partial fill of this segment; stop rather than block
				// for the rest, mirroring a single-read completion.
				break
			}
		}
		completion(total, readErr)
	}()
}

func (t *netConnTransport) Write(iov [][]byte, completion Completion) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		go completion(0, errors.NewCanceledError("transport.write"))
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		buffers := net.Buffers(make([][]byte, 0, len(iov)))
		for _, buf := range iov {
			if len(buf) > 0 {
				buffers = append(buffers, buf)
			}
		}
		n, err := buffers.WriteTo(t.conn)
		if err != nil {
			completion(int(n), errors.NewTransportError("transport.write", err))
			return
		}
		completion(int(n), nil)
	}()
}

func (t *netConnTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	err := t.conn.Close()
	t.wg.Wait()
	if err != nil {
		return errors.NewTransportError("transport.close", err)
	}
	return nil
}
