package stackitem

import (
	"bytes"
	"testing"
)

func TestEqualsPrimitivesCompareByContent(t *testing.T) {
	one := NewIntegerFromInt64(1)
	oneBytes := NewByteString([]byte{1})
	eq, err := Equals(one, oneBytes)
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if !eq {
		t.Error("Integer 1 and ByteString {0x01} must compare equal by content")
	}

	eq, err = Equals(NewBoolean(true), NewIntegerFromInt64(1))
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if !eq {
		t.Error("Boolean true and Integer 1 share the canonical byte encoding")
	}

	eq, err = Equals(NewIntegerFromInt64(1), NewIntegerFromInt64(2))
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if eq {
		t.Error("distinct integers must not compare equal")
	}
}

func TestEqualsStructComparesDeep(t *testing.T) {
	mk := func() *Struct {
		return NewStruct([]Item{
			NewIntegerFromInt64(7),
			NewStruct([]Item{NewByteString([]byte("x"))}),
		})
	}
	eq, err := Equals(mk(), mk())
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if !eq {
		t.Error("structurally identical Structs must compare equal")
	}
}

func TestEqualsArrayComparesByIdentity(t *testing.T) {
	a := NewArray([]Item{NewIntegerFromInt64(1)})
	b := NewArray([]Item{NewIntegerFromInt64(1)})
	eq, err := Equals(a, b)
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if eq {
		t.Error("distinct Array instances compare by identity, not content")
	}
	eq, err = Equals(a, a)
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if !eq {
		t.Error("an Array must equal itself")
	}
}

func TestEqualsNullSingleton(t *testing.T) {
	eq, err := Equals(Nil, Nil)
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if !eq {
		t.Error("all Nulls are equal")
	}
	eq, err = Equals(Nil, NewBoolean(false))
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if eq {
		t.Error("Null equals nothing but Null")
	}
}

func TestEqualsChargesComparableBudget(t *testing.T) {
	big := bytes.Repeat([]byte{0xaa}, 40000)
	mk := func() *Struct {
		return NewStruct([]Item{
			NewByteString(big),
			NewByteString(big),
		})
	}
	if _, err := Equals(mk(), mk()); err != ErrComparisonBudgetExceeded {
		t.Fatalf("err = %v, want ErrComparisonBudgetExceeded", err)
	}

	small := NewByteString(bytes.Repeat([]byte{0xbb}, 40000))
	if _, err := Equals(small, small); err != nil {
		t.Fatalf("a single comparison within budget must succeed, got %v", err)
	}
}

func TestEqualsSurvivesDeepNesting(t *testing.T) {
	const depth = 20000
	build := func() Item {
		var cur Item = NewIntegerFromInt64(1)
		for i := 0; i < depth; i++ {
			cur = NewStruct([]Item{cur})
		}
		return cur
	}
	eq, err := Equals(build(), build())
	if err != nil {
		t.Fatalf("Equals on %d-deep struct: %v", depth, err)
	}
	if !eq {
		t.Error("identical deep structs must compare equal")
	}
}

func TestStructCloneIsDeepAndIterative(t *testing.T) {
	const depth = 20000
	var cur *Struct = NewStruct([]Item{NewIntegerFromInt64(1)})
	for i := 0; i < depth; i++ {
		cur = NewStruct([]Item{cur})
	}
	clone := cur.Clone()
	if clone == cur {
		t.Fatal("Clone must allocate a fresh root")
	}
	eq, err := Equals(cur, clone)
	if err != nil {
		t.Fatalf("Equals(original, clone): %v", err)
	}
	if !eq {
		t.Error("clone must be value-equal to the original")
	}
}

func TestConvertTable(t *testing.T) {
	buf := NewBufferFromBytes([]byte{1, 2})
	bs, err := Convert(buf, TypeByteString)
	if err != nil {
		t.Fatalf("Buffer->ByteString: %v", err)
	}
	buf.Bytes()[0] = 0xff
	if bs.(ByteString)[0] == 0xff {
		t.Error("Buffer->ByteString must copy")
	}

	if _, err := Convert(NewArray(nil), TypeInteger); err == nil {
		t.Error("Array->Integer must be rejected")
	}

	i, err := Convert(NewBoolean(true), TypeInteger)
	if err != nil {
		t.Fatalf("Boolean->Integer: %v", err)
	}
	if i.(Integer).Big().Int64() != 1 {
		t.Errorf("true converts to 1, got %s", i.(Integer).Big())
	}
}
