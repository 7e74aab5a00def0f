package stackitem

import (
	"errors"
	"fmt"
)

// ErrArrayTooBig reports an element count over a limit. Nothing in this
// package returns it; the engine's NEWARRAY family reports its own
// errInitialCountTooBig.
var ErrArrayTooBig = errors.New("stackitem: initial element count exceeds limit")

// Array is an ordered, mutable sequence of stack items.
type Array struct {
	items []Item
}

func NewArray(items []Item) *Array {
	c := make([]Item, len(items))
	copy(c, items)
	return &Array{items: c}
}

func (a *Array) Type() Type         { return TypeArray }
func (a *Array) Value() interface{} { return a.items }
func (a *Array) Boolean() bool      { return true }
func (a *Array) String() string     { return fmt.Sprintf("Array(%d)", len(a.items)) }
func (a *Array) ToByteArray() ([]byte, error) {
	return nil, &ErrInvalidConversion{From: TypeArray, To: TypeByteString}
}

func (a *Array) Len() int          { return len(a.items) }
func (a *Array) Items() []Item     { return a.items }
func (a *Array) At(i int) Item     { return a.items[i] }
func (a *Array) Set(i int, v Item) { a.items[i] = v }
func (a *Array) Append(v Item)     { a.items = append(a.items, v) }
func (a *Array) Clear()            { a.items = a.items[:0] }
func (a *Array) RemoveAt(i int) {
	a.items = append(a.items[:i], a.items[i+1:]...)
}
func (a *Array) Reverse() {
	for l, r := 0, len(a.items)-1; l < r; l, r = l+1, r-1 {
		a.items[l], a.items[r] = a.items[r], a.items[l]
	}
}

// children implements the Compound interface the ReferenceCounter
// uses to rebuild object-reference edges on every scan.
func (a *Array) children() []Item { return a.items }

// Struct is an ordered, mutable sequence with value semantics on clone and
// equality — it differs from Array only in how the engine's
// equality procedure and CLONE-on-copy behavior treat it; the underlying
// storage is identical.
type Struct struct {
	items []Item
}

func NewStruct(items []Item) *Struct {
	c := make([]Item, len(items))
	copy(c, items)
	return &Struct{items: c}
}

func (s *Struct) Type() Type         { return TypeStruct }
func (s *Struct) Value() interface{} { return s.items }
func (s *Struct) Boolean() bool      { return true }
func (s *Struct) String() string     { return fmt.Sprintf("Struct(%d)", len(s.items)) }
func (s *Struct) ToByteArray() ([]byte, error) {
	return nil, &ErrInvalidConversion{From: TypeStruct, To: TypeByteString}
}

func (s *Struct) Len() int          { return len(s.items) }
func (s *Struct) Items() []Item     { return s.items }
func (s *Struct) At(i int) Item     { return s.items[i] }
func (s *Struct) Set(i int, v Item) { s.items[i] = v }
func (s *Struct) Append(v Item)     { s.items = append(s.items, v) }
func (s *Struct) Clear()            { s.items = s.items[:0] }
func (s *Struct) RemoveAt(i int) {
	s.items = append(s.items[:i], s.items[i+1:]...)
}
func (s *Struct) Reverse() {
	for l, r := 0, len(s.items)-1; l < r; l, r = l+1, r-1 {
		s.items[l], s.items[r] = s.items[r], s.items[l]
	}
}

// Clone deep-copies the struct, iteratively rather than recursively so that
// a ~20,000-deep nested struct (the adversarial case calls out)
// doesn't blow the Go call stack.
func (s *Struct) Clone() *Struct {
	root := &Struct{items: make([]Item, len(s.items))}
	type frame struct {
		src  *Struct
		dst  *Struct
		idx  int
	}
	stack := []*frame{{src: s, dst: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.idx >= len(f.src.items) {
			stack = stack[:len(stack)-1]
			continue
		}
		child := f.src.items[f.idx]
		if cs, ok := child.(*Struct); ok {
			ndst := &Struct{items: make([]Item, len(cs.items))}
			f.dst.items[f.idx] = ndst
			stack = append(stack, &frame{src: cs, dst: ndst})
		} else {
			f.dst.items[f.idx] = child
		}
		f.idx++
	}
	return root
}

func (s *Struct) children() []Item { return s.items }

// MapItem is an insertion-ordered mapping from primitive stack items
// (Boolean, Integer, ByteString) to arbitrary stack items.
type MapItem struct {
	keys   []Item
	values []Item
	index  map[string]int // serialized-key -> position in keys/values
}

func NewMap() *MapItem {
	return &MapItem{index: make(map[string]int)}
}

func (m *MapItem) Type() Type         { return TypeMap }
func (m *MapItem) Value() interface{} { return m }
func (m *MapItem) Boolean() bool      { return true }
func (m *MapItem) String() string     { return fmt.Sprintf("Map(%d)", len(m.keys)) }
func (m *MapItem) ToByteArray() ([]byte, error) {
	return nil, &ErrInvalidConversion{From: TypeMap, To: TypeByteString}
}

// mapKey renders a primitive item to a comparable Go string, the map's
// internal index key. Only Boolean/Integer/ByteString are legal map keys.
func mapKey(k Item) (string, error) {
	switch v := k.(type) {
	case Boolean:
		if v {
			return "B1", nil
		}
		return "B0", nil
	case Integer:
		return "I" + v.Big().String(), nil
	case ByteString:
		return "S" + string(v), nil
	default:
		return "", fmt.Errorf("stackitem: invalid map key type %s", k.Type())
	}
}

func (m *MapItem) Len() int { return len(m.keys) }

func (m *MapItem) Get(k Item) (Item, bool) {
	mk, err := mapKey(k)
	if err != nil {
		return nil, false
	}
	i, ok := m.index[mk]
	if !ok {
		return nil, false
	}
	return m.values[i], true
}

func (m *MapItem) Set(k, v Item) error {
	mk, err := mapKey(k)
	if err != nil {
		return err
	}
	if i, ok := m.index[mk]; ok {
		m.values[i] = v
		return nil
	}
	m.index[mk] = len(m.keys)
	m.keys = append(m.keys, k)
	m.values = append(m.values, v)
	return nil
}

func (m *MapItem) Delete(k Item) {
	mk, err := mapKey(k)
	if err != nil {
		return
	}
	i, ok := m.index[mk]
	if !ok {
		return
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.values = append(m.values[:i], m.values[i+1:]...)
	delete(m.index, mk)
	for key, idx := range m.index {
		if idx > i {
			m.index[key] = idx - 1
		}
	}
}

func (m *MapItem) Has(k Item) bool {
	_, ok := m.Get(k)
	return ok
}

func (m *MapItem) Keys() []Item   { return m.keys }
func (m *MapItem) Values() []Item { return m.values }
func (m *MapItem) Clear() {
	m.keys = nil
	m.values = nil
	m.index = make(map[string]int)
}

// children reports both keys and values as object-reference edges: a key
// can itself hold no children (primitives only) but is included for
// uniformity with the reference-counting scan.
func (m *MapItem) children() []Item {
	out := make([]Item, 0, len(m.keys)+len(m.values))
	out = append(out, m.keys...)
	out = append(out, m.values...)
	return out
}

// Compound is implemented by every reference-counted graph node: Array,
// Struct, and MapItem. The ReferenceCounter uses it to enumerate object
// edges without needing per-type switches.
type Compound interface {
	Item
	children() []Item
}

var (
	_ Compound = (*Array)(nil)
	_ Compound = (*Struct)(nil)
	_ Compound = (*MapItem)(nil)
)

// ListLike is implemented by Array and Struct, the two index-addressed
// compound variants the PICKITEM/SETITEM/APPEND family of opcodes operate
// on. MapItem is deliberately excluded: its Get/Set take a key item, not an
// integer index.
type ListLike interface {
	Compound
	Len() int
	Items() []Item
	At(i int) Item
	Set(i int, v Item)
	Append(v Item)
	Clear()
	RemoveAt(i int)
	Reverse()
}

var (
	_ ListLike = (*Array)(nil)
	_ ListLike = (*Struct)(nil)
)
