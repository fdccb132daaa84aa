package handler

import (
	"time"

	"github.com/chordring/overlay/internal/diagnostics"
	"github.com/chordring/overlay/internal/protocol"
	"github.com/chordring/overlay/internal/routingstate"
)

// Gossip answers gossip data-plane requests against a node's single
// latest-write-wins value.
type Gossip struct {
	State *routingstate.GossipCell
	// Now is overridable for tests; defaults to time.Now when nil.
	Now func() time.Time
	// Metrics is nil-safe: a nil value simply skips instrumentation.
	Metrics *diagnostics.Metrics
}

func (h *Gossip) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// Handle dispatches a single GossipRequest to the matching handler.
func (h *Gossip) Handle(req protocol.GossipRequest) protocol.GossipResponse {
	switch req.Kind {
	case protocol.UpdateData:
		return h.updateData(req.Payload)
	case protocol.ShareData:
		return h.shareData(req.Shared)
	default:
		return protocol.IgnoreResponse()
	}
}

// updateData is the client-originated write: it always wins over
// whatever is locally held, stamped with the time it was accepted.
func (h *Gossip) updateData(payload string) protocol.GossipResponse {
	h.State.Set(routingstate.GossipState{
		Data:            payload,
		TimestampMillis: uint64(h.now().UnixMilli()),
	})
	return protocol.IgnoreResponse()
}

// shareData reconciles a peer-originated value against the local one
// using the gossip lattice merge rule.
func (h *Gossip) shareData(received *routingstate.GossipState) protocol.GossipResponse {
	before := h.State.Snapshot()
	reply := h.State.Merge(received)
	after := h.State.Snapshot()

	h.countMerge(before, after, reply)

	if reply == nil {
		return protocol.IgnoreResponse()
	}
	return protocol.WithDataResponse(*reply)
}

// countMerge reports whether a SHARE_DATA reconciliation adopted the
// peer's value (state changed), rejected it (reply carries the local
// value back), or neither (both absent, or a tied timestamp).
func (h *Gossip) countMerge(before, after *routingstate.GossipState, reply *routingstate.GossipState) {
	if h.Metrics == nil {
		return
	}
	switch {
	case reply != nil:
		h.Metrics.GossipMergesRejected.Inc()
	case after != nil && (before == nil || *before != *after):
		h.Metrics.GossipMergesAdopted.Inc()
	}
}
