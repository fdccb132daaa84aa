package routingstate

import "sync"

// SuccessorListCell holds the ordered list of the L nearest successors
// behind a single-writer/multi-reader lock. Readers take a snapshot
// (a copy) and release the lock immediately; writers replace the
// whole list in one commit.
type SuccessorListCell struct {
	mu   sync.RWMutex
	list [SuccessorListLength]Node
}

// NewSuccessorListCell seeds the cell with every slot set to seed,
// the shape a freshly initialized single-node ring starts in.
func NewSuccessorListCell(seed Node) *SuccessorListCell {
	cell := &SuccessorListCell{}
	for i := range cell.list {
		cell.list[i] = seed
	}
	return cell
}

// Snapshot returns a copy of the current successor list.
func (c *SuccessorListCell) Snapshot() [SuccessorListLength]Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list
}

// Commit replaces the successor list in one exclusive write.
func (c *SuccessorListCell) Commit(list [SuccessorListLength]Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = list
}

// FingerTableCell holds the 128 acceleration slots. A nil slot means
// unpopulated; lookup correctness never depends on any slot being
// populated or fresh, only on the successor list.
type FingerTableCell struct {
	mu    sync.RWMutex
	slots [FingerTableLength]*Node
}

// NewFingerTableCell seeds slot 0 with seed and leaves the rest empty.
func NewFingerTableCell(seed Node) *FingerTableCell {
	cell := &FingerTableCell{}
	s := seed
	cell.slots[0] = &s
	return cell
}

// Snapshot returns a copy of the current finger table.
func (c *FingerTableCell) Snapshot() [FingerTableLength]*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slots
}

// Set populates a single slot, used opportunistically by the
// finger-fixing loop.
func (c *FingerTableCell) Set(i int, n Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[i] = &n
}

// PredecessorCell holds the (possibly absent) predecessor pointer.
type PredecessorCell struct {
	mu    sync.RWMutex
	value *Node
}

// Snapshot returns the current predecessor, or nil if absent.
func (c *PredecessorCell) Snapshot() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil {
		return nil
	}
	v := *c.value
	return &v
}

// Set replaces the predecessor with n.
func (c *PredecessorCell) Set(n Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := n
	c.value = &v
}

// Clear removes the predecessor, used when it fails a liveness check.
func (c *PredecessorCell) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}

// CompareAndSet atomically replaces the predecessor with candidate iff
// decide, evaluated against the current value, returns true. It
// returns whether the replacement happened. The writer acquires
// exclusive access only for the duration of this single assignment,
// matching the snapshot-then-commit discipline required for
// NOTIFICATION_BY handling.
func (c *PredecessorCell) CompareAndSet(candidate Node, decide func(current *Node) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !decide(c.value) {
		return false
	}

	v := candidate
	c.value = &v
	return true
}

// GossipState is the single latest-write-wins value disseminated by
// the epidemic layer: a payload and the Unix-epoch millisecond
// timestamp at which it was accepted. spec.md documents the wire
// timestamp as a u128 decimal; it's held here as a uint64 (see
// DESIGN.md's Open Question decisions) since a Unix millisecond clock
// doesn't reach the uint64 ceiling for another several hundred million
// years and every producer of this field is time.Now().UnixMilli().
type GossipState struct {
	Data            string
	TimestampMillis uint64
}

// GossipCell holds the (possibly absent) current gossip value.
type GossipCell struct {
	mu    sync.RWMutex
	value *GossipState
}

// Snapshot returns the current gossip state, or nil if none has been
// received yet.
func (c *GossipCell) Snapshot() *GossipState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil {
		return nil
	}
	v := *c.value
	return &v
}

// Set unconditionally replaces the gossip state, used by
// client-originated UPDATE_DATA writes.
func (c *GossipCell) Set(s GossipState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := s
	c.value = &v
}

// Merge applies the lattice merge rule for a peer-originated
// SHARE_DATA reconciliation: the higher timestamp always wins; ties
// favor the local value with no write. It returns the value that
// should be reported back to the sender (nil means IGNORE).
func (c *GossipCell) Merge(received *GossipState) *GossipState {
	c.mu.Lock()
	defer c.mu.Unlock()

	local := c.value

	switch {
	case received == nil && local == nil:
		return nil
	case received == nil && local != nil:
		v := *local
		return &v
	case received != nil && local == nil:
		v := *received
		c.value = &v
		return nil
	case received.TimestampMillis > local.TimestampMillis:
		v := *received
		c.value = &v
		return nil
	case received.TimestampMillis < local.TimestampMillis:
		v := *local
		return &v
	default:
		return nil
	}
}
