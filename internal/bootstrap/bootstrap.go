// Package bootstrap constructs a node's initial routing state: either
// as the sole member of a brand-new ring, or by joining an existing
// one through a known remote node. It also performs the loopback
// self-check that catches a misconfigured public address before the
// node starts serving traffic.
package bootstrap

import (
	"fmt"
	"net"
	"time"

	"github.com/chordring/overlay/internal/protocol"
	"github.com/chordring/overlay/internal/routingstate"
	"github.com/chordring/overlay/internal/transport"
)

// Result is the routing state a node starts with, before stabilization
// takes over.
type Result struct {
	SuccessorList [routingstate.SuccessorListLength]routingstate.Node
	FingerTable   [routingstate.FingerTableLength]*routingstate.Node
}

// Init seeds a brand-new ring with self as its own successor and sole
// finger table entry.
func Init(self routingstate.Node) Result {
	var list [routingstate.SuccessorListLength]routingstate.Node
	for i := range list {
		list[i] = self
	}

	var fingers [routingstate.FingerTableLength]*routingstate.Node
	fingers[0] = &self

	return Result{SuccessorList: list, FingerTable: fingers}
}

// Join locates self's successor through remoteAddr, fetches that
// successor's successor list to seed its own, and returns the initial
// routing state a freshly joined node starts with.
func Join(self routingstate.Node, remoteAddr *net.TCPAddr, dialer *transport.Dialer) (Result, error) {
	resp := dialer.FindSuccessorOfNode(self, remoteAddr)

	var successor routingstate.Node
	switch resp.Kind {
	case protocol.RespSuccessor:
		successor = resp.Successor
	case protocol.RespError:
		return Result{}, fmt.Errorf("failed to locate the successor of node [%s]: %s", self, resp.ErrorMessage)
	default:
		return Result{}, fmt.Errorf("failed to locate the successor of node [%s]: invalid response (protocol error)", self)
	}

	remoteListResp := dialer.GetSuccessorList(successor.PublicAddr)

	var remoteList [routingstate.SuccessorListLength]routingstate.Node
	switch remoteListResp.Kind {
	case protocol.RespSuccessorList:
		remoteList = remoteListResp.SuccessorList
	case protocol.RespError:
		return Result{}, fmt.Errorf("failed to retrieve the successor list of the remote node [%s]: %s", successor, remoteListResp.ErrorMessage)
	default:
		return Result{}, fmt.Errorf("failed to retrieve the successor list of the remote node [%s]: invalid response (protocol error)", successor)
	}

	var list [routingstate.SuccessorListLength]routingstate.Node
	list[0] = successor
	copy(list[1:], remoteList[0:routingstate.SuccessorListLength-1])

	var fingers [routingstate.FingerTableLength]*routingstate.Node
	fingers[0] = &successor

	return Result{SuccessorList: list, FingerTable: fingers}, nil
}

// VerifyPublicAddr confirms that publicAddr actually routes back to
// listener: it connects to publicAddr, writes zero bytes, and expects
// that connection to appear on listener's accept queue. A node whose
// public address is misconfigured (e.g. pointed at the wrong
// interface or a NAT that doesn't loop back) fails this check before
// it ever starts serving real traffic.
func VerifyPublicAddr(publicAddr *net.TCPAddr, listener *net.TCPListener) error {
	conn, err := net.DialTimeout("tcp", publicAddr.String(), transport.ResponseTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(nil); err != nil {
		return err
	}

	if err := listener.SetDeadline(time.Now().Add(transport.ResponseTimeout)); err != nil {
		return err
	}
	accepted, err := listener.Accept()
	if err != nil {
		return err
	}
	defer accepted.Close()

	return listener.SetDeadline(time.Time{})
}
