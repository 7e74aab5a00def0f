package stackitem

import (
	"bytes"
	"errors"
)

// MaxComparableSize bounds the total number of content bytes Equals may
// inspect across both operands before it gives up, the overflow fault for
// pathological EQUAL comparisons on deeply nested structures.
const MaxComparableSize = 65536

// ErrComparisonBudgetExceeded is the fault EQUAL must raise when comparing
// two items would require inspecting more than MaxComparableSize bytes.
var ErrComparisonBudgetExceeded = errors.New("stackitem: comparison exceeds budget")

type eqPair struct{ a, b Item }

// Equals implements the EQUAL opcode's item-identity rules: primitives
// (Boolean, Integer, ByteString) compare by their canonical byte content,
// across types; Struct compares deeply and iteratively (never by pointer);
// Array/Map/Buffer/InteropInterface compare only by reference identity, and
// Pointer by its script handle and position. The traversal is an explicit work-queue so a
// pathological nested Struct can't exhaust the call stack, and a budget
// counter charges the byte size of every primitive content inspected,
// enforcing MaxComparableSize.
func Equals(a, b Item) (bool, error) {
	queue := []eqPair{{a, b}}
	budget := MaxComparableSize

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		eq, children, cost, err := equalStep(p.a, p.b)
		if err != nil {
			return false, err
		}
		budget -= cost
		if budget < 0 {
			return false, ErrComparisonBudgetExceeded
		}
		if !eq {
			return false, nil
		}
		queue = append(queue, children...)
	}
	return true, nil
}

func isPrimitive(it Item) bool {
	switch it.Type() {
	case TypeBoolean, TypeInteger, TypeByteString:
		return true
	}
	return false
}

// equalStep compares a single pair, returning (for Struct operands) the
// child pairs still to be compared and the byte cost the comparison charged.
func equalStep(a, b Item) (bool, []eqPair, int, error) {
	if isPrimitive(a) && isPrimitive(b) {
		ab, _ := a.ToByteArray()
		bb, _ := b.ToByteArray()
		cost := len(ab)
		if len(bb) > cost {
			cost = len(bb)
		}
		if cost == 0 {
			cost = 1
		}
		return bytes.Equal(ab, bb), nil, cost, nil
	}
	if a.Type() != b.Type() {
		return false, nil, 1, nil
	}
	switch av := a.(type) {
	case nullItem:
		return true, nil, 1, nil
	case *Buffer:
		return av == b.(*Buffer), nil, 1, nil
	case *Struct:
		bv := b.(*Struct)
		if len(av.items) != len(bv.items) {
			return false, nil, 1, nil
		}
		children := make([]eqPair, len(av.items))
		for i := range av.items {
			children[i] = eqPair{av.items[i], bv.items[i]}
		}
		return true, children, 1, nil
	case *Array:
		return av == b.(*Array), nil, 1, nil
	case *MapItem:
		return av == b.(*MapItem), nil, 1, nil
	case *InteropInterface:
		return av == b.(*InteropInterface), nil, 1, nil
	case Pointer:
		bv := b.(Pointer)
		return av.script == bv.script && av.position == bv.position, nil, 1, nil
	default:
		return a == b, nil, 1, nil
	}
}
