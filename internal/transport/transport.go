// Package transport implements the synchronous, one-shot RPC pattern
// every outbound Chord and Gossip call uses: dial, write the request,
// half-close the write side to delimit it, apply a read deadline, read
// the response to EOF, and parse it. There are no retries — a failure
// at any stage is folded into a response value (ERROR for Chord,
// IGNORE for gossip) so callers never need a second error channel.
package transport

import (
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/chordring/overlay/internal/protocol"
	"github.com/chordring/overlay/internal/routingstate"
)

// ResponseTimeout bounds both the dial and the subsequent read; it
// mirrors the 5 second figure the rest of the overlay's request
// handling assumes for a single round trip.
const ResponseTimeout = 5 * time.Second

// Dialer issues one-shot requests against remote Chord/Gossip peers.
// The zero value is usable; Logger defaults to a no-op logger when nil.
type Dialer struct {
	Logger *zap.Logger
}

func (d *Dialer) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Dialer) roundTrip(remoteAddr *net.TCPAddr, payload string) (string, error) {
	conn, err := net.DialTimeout("tcp", remoteAddr.String(), ResponseTimeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return "", err
	}

	if err := conn.SetDeadline(time.Now().Add(ResponseTimeout)); err != nil {
		return "", err
	}

	if _, err := tcpConn.Write([]byte(payload)); err != nil {
		return "", err
	}
	if err := tcpConn.CloseWrite(); err != nil {
		return "", err
	}

	body, err := io.ReadAll(tcpConn)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ChordRequest sends req to remoteAddr and returns its ChordResponse.
// Any failure at dial, write, or read is folded into an ERROR response
// rather than a Go error, matching the rest of the handler layer's
// expectation that a Chord RPC always resolves to a response.
func (d *Dialer) ChordRequest(remoteAddr *net.TCPAddr, req protocol.ChordRequest) protocol.ChordResponse {
	raw, err := d.roundTrip(remoteAddr, req.String())
	if err != nil {
		d.logger().Debug("chord request failed",
			zap.Stringer("remote", remoteAddr),
			zap.Error(err))
		return protocol.ErrorResponse(err.Error())
	}

	resp, err := protocol.ParseChordResponse(raw)
	if err != nil {
		d.logger().Debug("chord response did not parse",
			zap.Stringer("remote", remoteAddr),
			zap.Error(err))
		return protocol.ErrorResponse(err.Error())
	}
	return resp
}

// FindSuccessorOfNode asks remoteAddr to locate the successor of target.
func (d *Dialer) FindSuccessorOfNode(target routingstate.Node, remoteAddr *net.TCPAddr) protocol.ChordResponse {
	return d.ChordRequest(remoteAddr, protocol.ChordRequest{Kind: protocol.FindSuccessorOfNode, TargetNode: target})
}

// GetSuccessorList asks remoteAddr for its successor list.
func (d *Dialer) GetSuccessorList(remoteAddr *net.TCPAddr) protocol.ChordResponse {
	return d.ChordRequest(remoteAddr, protocol.ChordRequest{Kind: protocol.GetSuccessorList})
}

// GetPredecessor asks remoteAddr for its predecessor.
func (d *Dialer) GetPredecessor(remoteAddr *net.TCPAddr) protocol.ChordResponse {
	return d.ChordRequest(remoteAddr, protocol.ChordRequest{Kind: protocol.GetPredecessor})
}

// NotifyRemoteNode informs remoteAddr that self may be its predecessor.
func (d *Dialer) NotifyRemoteNode(self routingstate.Node, remoteAddr *net.TCPAddr) protocol.ChordResponse {
	return d.ChordRequest(remoteAddr, protocol.ChordRequest{Kind: protocol.NotificationBy, NotifyingNode: self})
}

// CheckRemoteNode asks remoteAddr whether it is still active.
func (d *Dialer) CheckRemoteNode(remoteAddr *net.TCPAddr) protocol.ChordResponse {
	return d.ChordRequest(remoteAddr, protocol.ChordRequest{Kind: protocol.CheckNode})
}

// ShareData sends the local gossip state (nil meaning absent) to
// remoteAddr and returns the reconciled GossipResponse. Any failure
// resolves to RESPONSE=IGNORE rather than an error, matching the
// fire-and-forget nature of gossip dissemination: a single failed
// round never blocks convergence, the next tick tries again.
func (d *Dialer) ShareData(local *routingstate.GossipState, remoteAddr *net.TCPAddr) protocol.GossipResponse {
	req := protocol.GossipRequest{Kind: protocol.ShareData, Shared: local}

	raw, err := d.roundTrip(remoteAddr, req.String())
	if err != nil {
		d.logger().Debug("share_data failed",
			zap.Stringer("remote", remoteAddr),
			zap.Error(err))
		return protocol.IgnoreResponse()
	}

	resp, err := protocol.ParseGossipResponse(raw)
	if err != nil {
		d.logger().Debug("share_data response did not parse",
			zap.Stringer("remote", remoteAddr),
			zap.Error(err))
		return protocol.IgnoreResponse()
	}
	return resp
}
