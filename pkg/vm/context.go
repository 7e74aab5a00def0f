package vm

import (
	"fmt"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

// EvaluationStack is a single context's working stack. Index
// 0 is the top, matching the engine's PICK/ROLL/XDROP addressing.
type EvaluationStack struct {
	items []stackitem.Item
}

func (s *EvaluationStack) Len() int { return len(s.items) }

func (s *EvaluationStack) Push(item stackitem.Item) {
	s.items = append(s.items, item)
}

func (s *EvaluationStack) Pop() (stackitem.Item, error) {
	if len(s.items) == 0 {
		return nil, errOutOfRangeIndex
	}
	n := len(s.items) - 1
	item := s.items[n]
	s.items = s.items[:n]
	return item, nil
}

// Peek returns the item n from the top (0 == top) without removing it.
func (s *EvaluationStack) Peek(n int) (stackitem.Item, error) {
	idx := len(s.items) - 1 - n
	if idx < 0 || idx >= len(s.items) {
		return nil, errOutOfRangeIndex
	}
	return s.items[idx], nil
}

// RemoveAt deletes and returns the item n from the top (0 == top).
func (s *EvaluationStack) RemoveAt(n int) (stackitem.Item, error) {
	idx := len(s.items) - 1 - n
	if idx < 0 || idx >= len(s.items) {
		return nil, errOutOfRangeIndex
	}
	item := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return item, nil
}

// InsertAt inserts item so that it becomes position n from the top.
func (s *EvaluationStack) InsertAt(n int, item stackitem.Item) error {
	idx := len(s.items) - n
	if idx < 0 || idx > len(s.items) {
		return errOutOfRangeIndex
	}
	s.items = append(s.items, nil)
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = item
	return nil
}

func (s *EvaluationStack) Clear() { s.items = s.items[:0] }

// All returns the stack top-first, used by RET when transferring rvcount
// items and by the debugger for inspection. The returned slice must not be
// mutated by the caller.
func (s *EvaluationStack) All() []stackitem.Item {
	out := make([]stackitem.Item, len(s.items))
	for i := range s.items {
		out[i] = s.items[len(s.items)-1-i]
	}
	return out
}

// slotVector is a fixed-size vector of local/static/argument slots.
// Newly allocated slots hold stackitem.Nil until first written, the
// INITSLOT convention. A slot position is a stack
// reference like any evaluation-stack position, so every
// entry — the initial Nils included — is registered with the engine's
// reference counter, and stores swap the old entry's reference for the
// new one.
type slotVector struct {
	items []stackitem.Item
	refs  *stackitem.ReferenceCounter
}

func newSlotVector(n int, refs *stackitem.ReferenceCounter) *slotVector {
	v := &slotVector{items: make([]stackitem.Item, n), refs: refs}
	for i := range v.items {
		v.items[i] = stackitem.Nil
		refs.Add(stackitem.Nil)
	}
	return v
}

func (v *slotVector) Len() int { return len(v.items) }

func (v *slotVector) Load(i int) (stackitem.Item, error) {
	if v == nil || i < 0 || i >= len(v.items) {
		return nil, errOutOfRangeIndex
	}
	return v.items[i], nil
}

func (v *slotVector) Store(i int, item stackitem.Item) error {
	if v == nil || i < 0 || i >= len(v.items) {
		return errOutOfRangeIndex
	}
	v.refs.Remove(v.items[i])
	v.items[i] = item
	v.refs.Add(item)
	return nil
}

// TryState is the lifecycle of a single try record.
type TryState int

const (
	TryStateTry TryState = iota
	TryStateCatch
	TryStateFinally
)

// TryRecord is one entry on a context's try stack.
type TryRecord struct {
	CatchOffset   int
	HasCatch      bool
	FinallyOffset int
	HasFinally    bool
	EndOffset     int
	State         TryState
}

// CallTableEntry resolves a CALLT token to a target context.
type CallTableEntry struct {
	Script   *Script
	Offset   int
	RVCount  int
}

// ExecutionContext is one invocation frame. The engine keeps
// a stack of these; RET unloads the top one.
type ExecutionContext struct {
	Script       *Script
	IP           int
	EvalStack    *EvaluationStack
	StaticFields *slotVector
	LocalVars    *slotVector
	Arguments    *slotVector
	TryStack     []*TryRecord
	RVCount      int // -1 means "transfer everything" (entry context convention)
	CallTable    map[uint16]CallTableEntry

	// ownsStatics is set by INITSSLOT in the context that allocated the
	// static-field slot. Cloned callee contexts share the vector (statics
	// are shared across calls to the same script) but must
	// not release it on unload.
	ownsStatics bool

	// State is an opaque per-type registry engine callers may use to cache
	// contract-specific data across opcodes in this context.
	State map[string]interface{}
}

// NewExecutionContext builds a fresh context over script, with no slots
// allocated yet (INITSLOT/INITSSLOT allocate them lazily, once).
func NewExecutionContext(script *Script, rvcount int, callTable map[uint16]CallTableEntry) *ExecutionContext {
	return &ExecutionContext{
		Script:    script,
		EvalStack: &EvaluationStack{},
		RVCount:   rvcount,
		CallTable: callTable,
		State:     make(map[string]interface{}),
	}
}

// Clone creates a new context sharing the same script, call table, and
// static-field slot but with fresh locals/arguments and an
// empty evaluation stack, positioned at offset — used by CALL/CALLA/CALLT
// to push a new invocation frame.
func (c *ExecutionContext) Clone(offset, rvcount int) *ExecutionContext {
	nc := NewExecutionContext(c.Script, rvcount, c.CallTable)
	nc.StaticFields = c.StaticFields
	nc.IP = offset
	return nc
}

func (c *ExecutionContext) PushTry(rec *TryRecord) error {
	if len(c.TryStack) >= MaxTryNestingDepth {
		return errTryNestingOverflow
	}
	c.TryStack = append(c.TryStack, rec)
	return nil
}

func (c *ExecutionContext) CurrentTry() *TryRecord {
	if len(c.TryStack) == 0 {
		return nil
	}
	return c.TryStack[len(c.TryStack)-1]
}

func (c *ExecutionContext) PopTry() (*TryRecord, error) {
	if len(c.TryStack) == 0 {
		return nil, fmt.Errorf("%w", errNotInTryContext)
	}
	n := len(c.TryStack) - 1
	rec := c.TryStack[n]
	c.TryStack = c.TryStack[:n]
	return rec, nil
}
