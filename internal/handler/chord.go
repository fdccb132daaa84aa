// Package handler implements the request handlers for both the Chord
// control plane and the gossip data plane, and the single dispatcher
// that tries one then the other against an inbound stream's message.
package handler

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chordring/overlay/internal/diagnostics"
	"github.com/chordring/overlay/internal/identifier"
	"github.com/chordring/overlay/internal/protocol"
	"github.com/chordring/overlay/internal/routingstate"
	"github.com/chordring/overlay/internal/transport"
)

// Chord answers Chord control-plane requests against a node's routing
// state. SuccessorList, FingerTable and Predecessor are the live,
// mutable cells a running node owns; they and Self and Dialer are
// required. Logger and Metrics are nil-safe: a nil Logger logs
// nothing and a nil Metrics simply skips instrumentation.
type Chord struct {
	Self          routingstate.Node
	SuccessorList *routingstate.SuccessorListCell
	FingerTable   *routingstate.FingerTableCell
	Predecessor   *routingstate.PredecessorCell
	Dialer        *transport.Dialer
	Logger        *zap.Logger
	Metrics       *diagnostics.Metrics
}

func (h *Chord) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Handle dispatches a single ChordRequest to the matching handler.
func (h *Chord) Handle(req protocol.ChordRequest) protocol.ChordResponse {
	switch req.Kind {
	case protocol.FindSuccessorOfNode:
		return h.findSuccessorOfNode(req.TargetNode)
	case protocol.GetSuccessorList:
		return protocol.SuccessorListResponse(h.SuccessorList.Snapshot())
	case protocol.GetPredecessor:
		return protocol.PredecessorResponse(h.Predecessor.Snapshot())
	case protocol.NotificationBy:
		return h.notificationBy(req.NotifyingNode)
	case protocol.CheckNode:
		return protocol.ActiveResponse()
	default:
		return protocol.ErrorResponse("unrecognized chord request")
	}
}

// findSuccessorOfNode locates the node responsible for target,
// accelerating the search with the finger table when target isn't
// covered by the successor list, and falling back to a linear scan of
// the successor list when it is. Unlike a once-observed reference
// implementation of this search, running out of live candidates is
// not a crash: it resolves to an ERROR response the caller can retry
// against a different entry point.
func (h *Chord) findSuccessorOfNode(target routingstate.Node) protocol.ChordResponse {
	successorList := h.SuccessorList.Snapshot()
	successor := successorList[0]

	if identifier.Equal(target.ID, h.Self.ID) || identifier.Equal(target.ID, successor.ID) {
		return protocol.ErrorResponse("the node's identifier already exists in the network")
	}

	if identifier.Equal(h.Self.ID, successor.ID) {
		h.countServed()
		return protocol.SuccessorResponse(successor)
	}

	if identifier.StrictlyBetween(target.ID, h.Self.ID, successor.ID) {
		h.countServed()
		return protocol.SuccessorResponse(successor)
	}

	var candidates []routingstate.Node
	if identifier.StrictlyBetween(target.ID, h.Self.ID, successorList[routingstate.SuccessorListLength-1].ID) {
		candidates = successorList[:]
	} else {
		for _, n := range h.FingerTable.Snapshot() {
			if n != nil {
				candidates = append(candidates, *n)
			}
		}
	}

	var probeErrs error
	var closest *routingstate.Node
	for i := len(candidates) - 1; i >= 0; i-- {
		entry := candidates[i]
		if !identifier.StrictlyBetween(entry.ID, h.Self.ID, target.ID) {
			continue
		}
		resp := h.Dialer.CheckRemoteNode(entry.PublicAddr)
		if resp.Kind != protocol.RespActive {
			probeErrs = multierr.Append(probeErrs, errString(entry))
			continue
		}
		closest = &entry
		break
	}

	if closest == nil {
		h.logger().Debug("no reachable preceding node", zap.NamedError("probe_errors", probeErrs))
		return protocol.ErrorResponse("no reachable preceding node")
	}

	h.countForwarded()
	return h.Dialer.FindSuccessorOfNode(target, closest.PublicAddr)
}

func (h *Chord) countServed() {
	if h.Metrics != nil {
		h.Metrics.LookupsServed.Inc()
	}
}

func (h *Chord) countForwarded() {
	if h.Metrics != nil {
		h.Metrics.LookupsForwarded.Inc()
	}
}

func errString(n routingstate.Node) error {
	return fmt.Errorf("candidate %s unreachable", n)
}

// notificationBy processes a NOTIFICATION_BY: external claims it may
// be self's predecessor. Self adopts it when it has no predecessor
// yet, when its current predecessor is itself, or when external lies
// strictly between the current predecessor and self. The response
// always carries self's successor list, regardless of whether the
// notification was accepted, so the caller always learns something.
func (h *Chord) notificationBy(external routingstate.Node) protocol.ChordResponse {
	h.Predecessor.CompareAndSet(external, func(current *routingstate.Node) bool {
		if current == nil {
			return true
		}
		if identifier.Equal(current.ID, h.Self.ID) {
			return true
		}
		return identifier.StrictlyBetween(external.ID, current.ID, h.Self.ID)
	})

	return protocol.SuccessorListResponse(h.SuccessorList.Snapshot())
}
