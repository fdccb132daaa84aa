// Package stabilizer runs the three periodic background loops a live
// Chord node needs once it has joined a ring: successor-list repair,
// finger table maintenance, and gossip dissemination. All three are
// supervised together so that a fatal failure in one tears down the
// others rather than leaving a node half alive.
package stabilizer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chordring/overlay/internal/diagnostics"
	"github.com/chordring/overlay/internal/identifier"
	"github.com/chordring/overlay/internal/protocol"
	"github.com/chordring/overlay/internal/routingstate"
	"github.com/chordring/overlay/internal/transport"
)

// StabilizeInterval is how often the successor-list repair runs. A
// var, not a const, so tests can shrink it to exercise Run's ticker
// loops without waiting out the production period.
var StabilizeInterval = 2 * time.Second

// FingerFixInterval is how often a single finger table slot is
// refreshed; a full table sweep takes FingerFixInterval *
// routingstate.FingerTableLength.
var FingerFixInterval = 1 * time.Second

// GossipInterval is how often the local gossip value is pushed to the
// immediate successor.
var GossipInterval = 1500 * time.Millisecond

// Supervisor owns a node's live routing state and runs the
// maintenance loops against it.
type Supervisor struct {
	Self          routingstate.Node
	SuccessorList *routingstate.SuccessorListCell
	FingerTable   *routingstate.FingerTableCell
	Predecessor   *routingstate.PredecessorCell
	Gossip        *routingstate.GossipCell
	Dialer        *transport.Dialer
	Logger        *zap.Logger
	// Metrics is nil-safe: a nil value simply skips instrumentation.
	Metrics *diagnostics.Metrics

	nextFinger int
}

func (s *Supervisor) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Run starts all three loops and blocks until ctx is canceled or one
// of them returns a fatal error, in which case the others are
// canceled too and the fatal error is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.runStabilize(ctx) })
	g.Go(func() error { return s.runFingerFix(ctx) })
	g.Go(func() error { return s.runGossip(ctx) })

	return g.Wait()
}

func (s *Supervisor) runStabilize(ctx context.Context) error {
	ticker := time.NewTicker(StabilizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.stabilizeOnce(); err != nil {
				return err
			}
		}
	}
}

// stabilizeOnce runs one round of successor-list repair: find the
// first live entry in the successor list, ask it for its predecessor,
// possibly adopt that predecessor as the new immediate successor,
// notify the chosen successor of self, and rebuild the successor
// list from its response. A successor list with no live entry at all
// is a fatal condition a single node can't recover from on its own.
func (s *Supervisor) stabilizeOnce() error {
	list := s.SuccessorList.Snapshot()

	var activeSuccessor *routingstate.Node
	var potentialSuccessor *routingstate.Node

	for i := range list {
		resp := s.Dialer.GetPredecessor(list[i].PublicAddr)
		if resp.Kind != protocol.RespPredecessor {
			continue
		}
		n := list[i]
		activeSuccessor = &n
		potentialSuccessor = resp.Predecessor
		break
	}

	if activeSuccessor == nil {
		return fmt.Errorf("network failure: all successor list entries are unreachable during stabilization")
	}

	currentSuccessor := *activeSuccessor
	if potentialSuccessor != nil {
		selfIsSuccessor := identifier.Equal(s.Self.ID, activeSuccessor.ID)
		between := identifier.StrictlyBetween(potentialSuccessor.ID, s.Self.ID, activeSuccessor.ID)
		if selfIsSuccessor || between {
			if s.Dialer.CheckRemoteNode(potentialSuccessor.PublicAddr).Kind == protocol.RespActive {
				currentSuccessor = *potentialSuccessor
			}
		}
	}

	notifyResp := s.Dialer.NotifyRemoteNode(s.Self, currentSuccessor.PublicAddr)
	if notifyResp.Kind != protocol.RespSuccessorList {
		return fmt.Errorf("network failure: the current successor is unreachable during stabilization")
	}

	var newList [routingstate.SuccessorListLength]routingstate.Node
	newList[0] = currentSuccessor
	copy(newList[1:], notifyResp.SuccessorList[0:routingstate.SuccessorListLength-1])
	s.SuccessorList.Commit(newList)

	if predecessor := s.Predecessor.Snapshot(); predecessor != nil {
		if s.Dialer.CheckRemoteNode(predecessor.PublicAddr).Kind != protocol.RespActive {
			s.Predecessor.Clear()
		}
	}

	if s.Metrics != nil {
		s.Metrics.StabilizationTicks.Inc()
	}

	return nil
}

func (s *Supervisor) runFingerFix(ctx context.Context) error {
	ticker := time.NewTicker(FingerFixInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.fixNextFinger()
		}
	}
}

// fixNextFinger refreshes one finger table slot per tick, cycling
// through all slots. Finger table freshness never affects lookup
// correctness, only its acceleration, so a failed lookup here is
// logged and skipped rather than treated as fatal.
func (s *Supervisor) fixNextFinger() {
	i := s.nextFinger
	s.nextFinger = (s.nextFinger + 1) % routingstate.FingerTableLength

	targetID := identifier.AddPowerOfTwo(s.Self.ID, i)
	list := s.SuccessorList.Snapshot()
	entryPoint := list[0]

	if identifier.Equal(targetID, s.Self.ID) {
		s.FingerTable.Set(i, s.Self)
		return
	}

	resp := s.Dialer.FindSuccessorOfNode(routingstate.Node{ID: targetID, PublicAddr: entryPoint.PublicAddr}, entryPoint.PublicAddr)

	if resp.Kind != protocol.RespSuccessor {
		s.logger().Debug("finger fix lookup failed", zap.Int("slot", i))
		return
	}
	s.FingerTable.Set(i, resp.Successor)
}

func (s *Supervisor) runGossip(ctx context.Context) error {
	ticker := time.NewTicker(GossipInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.disseminateOnce()
		}
	}
}

// disseminateOnce pushes the local gossip value to the immediate
// successor and reconciles whatever it sends back, converging both
// sides onto the higher-timestamped value.
func (s *Supervisor) disseminateOnce() {
	list := s.SuccessorList.Snapshot()
	target := list[0]
	if identifier.Equal(target.ID, s.Self.ID) {
		return
	}

	local := s.Gossip.Snapshot()
	resp := s.Dialer.ShareData(local, target.PublicAddr)
	if resp.Kind == protocol.RespWithData {
		s.Gossip.Merge(&resp.Value)
	}
}
