package handler

import (
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/chordring/overlay/internal/protocol"
)

// Dispatcher reads one request off an inbound connection, tries it as
// a Chord request and then as a Gossip request, and writes back the
// matching response. A stream that parses as neither is dropped
// without a response, the same way an unrecognized frame is ignored
// at the transport's other end.
type Dispatcher struct {
	Chord  *Chord
	Gossip *Gossip
	Logger *zap.Logger
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Serve handles a single accepted connection end to end: read to EOF,
// parse, dispatch, write, close. Serve does not recover panics itself:
// a panic raised inside a handler propagates to the caller, where the
// worker pool contains it.
func (d *Dispatcher) Serve(conn net.Conn) {
	defer conn.Close()

	body, err := io.ReadAll(conn)
	if err != nil {
		d.logger().Debug("failed to read request", zap.Error(err))
		return
	}
	raw := string(body)

	if chordReq, err := protocol.ParseChordRequest(raw); err == nil {
		resp := d.Chord.Handle(chordReq)
		conn.Write([]byte(resp.String()))
		return
	}

	if gossipReq, err := protocol.ParseGossipRequest(raw); err == nil {
		resp := d.Gossip.Handle(gossipReq)
		conn.Write([]byte(resp.String()))
		return
	}

	d.logger().Debug("request matched neither protocol", zap.String("raw", raw))
}
