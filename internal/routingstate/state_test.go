package routingstate

import "testing"

func TestGossipMergeNoneNone(t *testing.T) {
	cell := &GossipCell{}
	if got := cell.Merge(nil); got != nil {
		t.Fatalf("expected IGNORE, got %+v", got)
	}
	if cell.Snapshot() != nil {
		t.Fatalf("local state should remain absent")
	}
}

func TestGossipMergeNoneLocalSome(t *testing.T) {
	cell := &GossipCell{}
	cell.Set(GossipState{Data: "v1", TimestampMillis: 10})

	got := cell.Merge(nil)
	if got == nil || got.Data != "v1" {
		t.Fatalf("expected RESPONSE(v1), got %+v", got)
	}
}

func TestGossipMergeAdoptsWhenLocalAbsent(t *testing.T) {
	cell := &GossipCell{}
	got := cell.Merge(&GossipState{Data: "v1", TimestampMillis: 10})
	if got != nil {
		t.Fatalf("expected IGNORE, got %+v", got)
	}
	if cell.Snapshot().Data != "v1" {
		t.Fatalf("expected adopted value v1")
	}
}

func TestGossipMergeAdoptsHigherTimestamp(t *testing.T) {
	cell := &GossipCell{}
	cell.Set(GossipState{Data: "v1", TimestampMillis: 10})

	got := cell.Merge(&GossipState{Data: "v2", TimestampMillis: 20})
	if got != nil {
		t.Fatalf("expected IGNORE, got %+v", got)
	}
	if cell.Snapshot().Data != "v2" {
		t.Fatalf("expected adopted value v2")
	}
}

func TestGossipMergeRejectsLowerTimestamp(t *testing.T) {
	cell := &GossipCell{}
	cell.Set(GossipState{Data: "v2", TimestampMillis: 20})

	got := cell.Merge(&GossipState{Data: "v1", TimestampMillis: 10})
	if got == nil || got.Data != "v2" {
		t.Fatalf("expected RESPONSE(v2), got %+v", got)
	}
	if cell.Snapshot().Data != "v2" {
		t.Fatalf("local value must not change on a stale merge")
	}
}

func TestGossipMergeTieFavorsLocalNoWrite(t *testing.T) {
	cell := &GossipCell{}
	cell.Set(GossipState{Data: "local", TimestampMillis: 10})

	got := cell.Merge(&GossipState{Data: "remote", TimestampMillis: 10})
	if got != nil {
		t.Fatalf("expected IGNORE on tie, got %+v", got)
	}
	if cell.Snapshot().Data != "local" {
		t.Fatalf("tie must not overwrite the local value")
	}
}

func TestGossipMergeIdempotent(t *testing.T) {
	cell := &GossipCell{}
	cell.Set(GossipState{Data: "v1", TimestampMillis: 10})

	before := cell.Snapshot()
	cell.Merge(&GossipState{Data: before.Data, TimestampMillis: before.TimestampMillis})
	after := cell.Snapshot()

	if after.Data != before.Data || after.TimestampMillis != before.TimestampMillis {
		t.Fatalf("merging a value with itself must not change state")
	}
}

func TestGossipMergeCommutative(t *testing.T) {
	// merge(s1 incoming, s2 local) and merge(s2 incoming, s1 local)
	// must both converge to the higher-timestamped value.
	s1 := GossipState{Data: "s1", TimestampMillis: 5}
	s2 := GossipState{Data: "s2", TimestampMillis: 9}

	cellA := &GossipCell{}
	cellA.Set(s2)
	cellA.Merge(&s1)

	cellB := &GossipCell{}
	cellB.Set(s1)
	cellB.Merge(&s2)

	if cellA.Snapshot().Data != "s2" || cellB.Snapshot().Data != "s2" {
		t.Fatalf("merge must converge to the higher-timestamped value regardless of direction")
	}
}

func TestPredecessorCompareAndSetAbsentAlwaysAdopts(t *testing.T) {
	cell := &PredecessorCell{}
	n := Node{}

	ok := cell.CompareAndSet(n, func(current *Node) bool {
		return current == nil
	})

	if !ok {
		t.Fatalf("expected adoption when predecessor absent")
	}
}

func TestPredecessorClear(t *testing.T) {
	cell := &PredecessorCell{}
	cell.Set(Node{})
	cell.Clear()

	if cell.Snapshot() != nil {
		t.Fatalf("expected predecessor to be cleared")
	}
}

func TestSuccessorListSnapshotIsACopy(t *testing.T) {
	seed := Node{ID: [16]byte{1}}
	cell := NewSuccessorListCell(seed)

	snap := cell.Snapshot()
	snap[0] = Node{}

	cell.mu.RLock()
	original := cell.list[0]
	cell.mu.RUnlock()

	if !original.Equal(seed) {
		t.Fatalf("mutating a snapshot changed the cell's list: got %v", original)
	}
	if len(snap) != SuccessorListLength {
		t.Fatalf("expected successor list length %d, got %d", SuccessorListLength, len(snap))
	}
}
