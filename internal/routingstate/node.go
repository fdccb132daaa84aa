// Package routingstate holds the per-process Chord routing state: the
// local node's identity, its successor list, finger table, predecessor
// and gossip value. Each piece of state is a single-writer/
// multiple-reader cell; callers take a snapshot before any network
// operation and never hold a lock across I/O, per the concurrency
// model the overlay requires.
package routingstate

import (
	"fmt"
	"net"

	"github.com/chordring/overlay/internal/identifier"
)

// SuccessorListLength is L, the fixed number of cached successors a
// node tracks for fault tolerance of the immediate successor.
const SuccessorListLength = 5

// FingerTableLength is the number of finger table slots, one per bit
// of the identifier space.
const FingerTableLength = identifier.ByteLength * 8

// Node is the value pair (id, public_addr) identifying a Chord peer.
// Nodes are freely copied; equality is defined on both fields.
type Node struct {
	ID         identifier.ID
	PublicAddr *net.TCPAddr
}

// NewNode derives a Node's identifier from its public address.
func NewNode(addr *net.TCPAddr) Node {
	return Node{ID: identifier.Derive(addr), PublicAddr: addr}
}

// Equal reports whether two nodes share both identifier and address.
func (n Node) Equal(other Node) bool {
	return identifier.Equal(n.ID, other.ID) && sameAddr(n.PublicAddr, other.PublicAddr)
}

func sameAddr(a, b *net.TCPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

func (n Node) String() string {
	return fmt.Sprintf("%s@%s", n.ID, n.PublicAddr)
}
