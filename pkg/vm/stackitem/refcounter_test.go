package stackitem

import "testing"

func TestReferenceCounterReclaimsCycle(t *testing.T) {
	rc := NewReferenceCounter()

	a := NewArray(nil)
	b := NewArray(nil)
	a.Append(b)
	b.Append(a) // a <-> b cycle, no external reference

	rc.Add(a)
	rc.Add(b)
	// a live reference exists while both sit on the stack directly.
	if got := rc.CheckGarbage(); got != 0 {
		t.Fatalf("expected nothing collected while both stack refs live, got %d", got)
	}

	rc.Remove(a)
	rc.Remove(b)
	// stack refs gone, only the mutual cycle keeps each other alive: garbage.
	if got := rc.CheckGarbage(); got != 2 {
		t.Fatalf("expected cycle of 2 to be collected, got %d", got)
	}
}

func TestReferenceCounterKeepsExternallyRootedCycle(t *testing.T) {
	rc := NewReferenceCounter()

	a := NewArray(nil)
	b := NewArray(nil)
	a.Append(b)
	b.Append(a)

	rc.Add(a) // a is directly on the stack; b is only reachable via a
	rc.Add(b)
	rc.Remove(b) // b's only stack ref goes away, but a still roots the cycle

	if got := rc.CheckGarbage(); got != 0 {
		t.Fatalf("expected cycle rooted by a's stack ref to survive, got %d collected", got)
	}
}

func TestReferenceCounterCollectsUnreachableTree(t *testing.T) {
	rc := NewReferenceCounter()

	root := NewArray(nil)
	child := NewArray(nil)
	root.Append(child)

	rc.Add(root)
	rc.Remove(root)

	if got := rc.CheckGarbage(); got != 2 {
		t.Fatalf("expected root+child to be collected together, got %d", got)
	}
}

func TestReferenceCounterCount(t *testing.T) {
	rc := NewReferenceCounter()
	a := NewArray(nil)
	rc.Add(a)
	rc.Add(NewIntegerFromInt64(5))
	if got := rc.Count(); got != 2 {
		t.Fatalf("expected 2 total references (one array, one integer), got %d", got)
	}

	child := NewArray(nil)
	a.Append(child)
	rc.Add(child) // child enters the stack too (e.g. DUP before APPEND)
	rc.Remove(child)
	// a -> child edge plus a's own stack ref plus the lingering integer ref.
	if got := rc.Count(); got != 3 {
		t.Fatalf("expected 3 total references after nesting child under a, got %d", got)
	}
}
