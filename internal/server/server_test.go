package server

import (
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type countingHandler struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
	want  int
}

func (h *countingHandler) Serve(conn net.Conn) {
	defer conn.Close()
	h.mu.Lock()
	h.count++
	reached := h.count == h.want
	h.mu.Unlock()
	if reached {
		close(h.done)
	}
}

func TestPoolProcessesAllSubmittedConnections(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := &countingHandler{want: 20, done: make(chan struct{})}
	pool := NewPool(4, h, nil)

	conns := make([]net.Conn, 0, 20)
	for i := 0; i < 20; i++ {
		c1, c2 := net.Pipe()
		conns = append(conns, c1, c2)
		pool.Submit(c2)
	}

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out, processed %d/20", h.count)
	}

	pool.Close()
	for _, c := range conns {
		c.Close()
	}
}

type panickingHandler struct{}

func (panickingHandler) Serve(conn net.Conn) {
	defer conn.Close()
	panic("boom")
}

func TestPoolContainsPanicPerTask(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pool := NewPool(2, panickingHandler{}, nil)
	defer pool.Close()

	c1, c2 := net.Pipe()
	defer c1.Close()
	pool.Submit(c2)

	// give the worker a moment to panic and recover; if the panic
	// propagated, the test binary itself would have crashed by now.
	time.Sleep(100 * time.Millisecond)

	// the pool must still accept and process further work afterward.
	h := &countingHandler{want: 1, done: make(chan struct{})}
	pool.handler = h
	c3, c4 := net.Pipe()
	defer c3.Close()
	pool.Submit(c4)

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not recover after a panicking task")
	}
}

func TestServeStopsOnListenerClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	h := &countingHandler{want: 1, done: make(chan struct{})}
	srv := New(ln, h, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	srv.Close()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after Close")
	}
}
