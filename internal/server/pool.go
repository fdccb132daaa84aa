// Package server runs the node's accept loop and the bounded worker
// pool that executes each connection's request handler, the same
// fixed-size-pool shape the original node used for its background
// threads, generalized to a typed Go worker pool instead of a raw
// thread-per-task channel of boxed closures.
package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PoolSize is the number of worker goroutines processing accepted
// connections concurrently.
const PoolSize = 10

// Handler processes one accepted connection end to end.
type Handler interface {
	Serve(conn net.Conn)
}

// Pool is a fixed-size worker pool draining an unbounded FIFO queue of
// accepted connections. A panic inside a single connection's handler
// is contained to that task; it never takes down the worker goroutine
// or any other in-flight connection.
type Pool struct {
	handler Handler
	logger  *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []net.Conn
	closed bool
}

// NewPool starts size worker goroutines draining a single unbounded
// FIFO queue, each dispatching accepted connections to handler. The
// queue has no capacity limit: Submit never blocks the accept loop
// waiting for a free worker, matching the original server's unbounded
// task channel.
func NewPool(size int, handler Handler, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{handler: handler, logger: logger}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Submit enqueues an accepted connection for processing and returns
// immediately.
func (p *Pool) Submit(conn net.Conn) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.queue = append(p.queue, conn)
	p.mu.Unlock()
	p.cond.Signal()
}

// Close stops all workers once the queue drains; any connection
// submitted after Close is dropped.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Pool) worker(id int) {
	for {
		conn, ok := p.dequeue()
		if !ok {
			return
		}
		p.runTask(id, conn)
	}
}

func (p *Pool) dequeue() (net.Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}

	conn := p.queue[0]
	p.queue = p.queue[1:]
	return conn, true
}

func (p *Pool) runTask(workerID int, conn net.Conn) {
	correlationID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("request handler panicked",
				zap.Int("worker", workerID),
				zap.String("correlation_id", correlationID),
				zap.Any("panic", r))
			conn.Write([]byte(fmt.Sprintf("ERROR=[internal error: %v];", r)))
			conn.Close()
		}
	}()

	p.logger.Debug("handling connection",
		zap.Int("worker", workerID),
		zap.String("correlation_id", correlationID),
		zap.Stringer("remote", conn.RemoteAddr()))

	p.handler.Serve(conn)
}
