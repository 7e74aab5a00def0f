// Package stackitem implements the VM's value universe: the eleven stack
// item variants, their equality and conversion rules, and the
// reference-counter that reclaims unreachable compound graphs. The
// package has no dependency on the execution engine itself — it is the
// data model the engine operates on.
package stackitem

import (
	"fmt"
	"math/big"
)

// Type identifies one of the eleven stack item variants.
type Type byte

const (
	TypeAny Type = iota
	TypePointer
	TypeBoolean
	TypeInteger
	TypeByteString
	TypeBuffer
	TypeArray
	TypeStruct
	TypeMap
	TypeInteropInterface
	// TypeNull has a dedicated slot even though it behaves like TypeAny's
	// degenerate case, because every Null value must compare equal and
	// share a canonical instance.
	TypeNull
	// typeExceptionMarker is internal and unexported: no Item reports it,
	// since the engine holds an in-flight exception as a plain Item (see
	// interop.go). Type.String still renders it.
	typeExceptionMarker
)

func (t Type) String() string {
	switch t {
	case TypeAny:
		return "Any"
	case TypePointer:
		return "Pointer"
	case TypeBoolean:
		return "Boolean"
	case TypeInteger:
		return "Integer"
	case TypeByteString:
		return "ByteString"
	case TypeBuffer:
		return "Buffer"
	case TypeArray:
		return "Array"
	case TypeStruct:
		return "Struct"
	case TypeMap:
		return "Map"
	case TypeInteropInterface:
		return "InteropInterface"
	case TypeNull:
		return "Null"
	case typeExceptionMarker:
		return "ExceptionThrownMarker"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// IsValid reports whether the type slot was produced by this
// package (used by ISTYPE/CONVERT operand validation).
func (t Type) IsValid() bool {
	return t <= TypeNull
}

// MaxItemSize bounds any single ByteString/Buffer's length.
const MaxItemSize = 131070

// MaxBigIntegerSizeBytes mirrors the 32-byte two's-complement bound arithmetic
// results must respect.
const MaxBigIntegerSizeBytes = 32

// Item is the common interface every stack item variant implements.
type Item interface {
	// Type reports the item's variant.
	Type() Type
	// Value returns the item's underlying Go value: nil for Null, bool for
	// Boolean, *big.Int for Integer, []byte for ByteString/Buffer, []Item
	// for Array/Struct, *MapItem's ordered pairs for Map, the opaque handle
	// for InteropInterface, a Pointer struct for Pointer.
	Value() interface{}
	// Boolean converts the item to its truth value, per the engine's
	// implicit-bool-conversion rules (used by JMPIF and friends).
	Boolean() bool
	// ToByteArray returns the item's canonical byte encoding, or an error
	// if the conversion loses information.
	ToByteArray() ([]byte, error)
	// String is a debug rendering, not used for hashing or equality.
	String() string
}

// ErrInvalidConversion is returned whenever the conversion table has no
// entry for the requested (from, to) pair.
type ErrInvalidConversion struct {
	From Type
	To   Type
}

func (e *ErrInvalidConversion) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.From, e.To)
}

// bigIntFitsLimit reports whether v's two's-complement encoding fits in
// MaxBigIntegerSizeBytes bytes, the bound arithmetic opcodes must enforce.
func bigIntFitsLimit(v *big.Int) bool {
	if v.Sign() == 0 {
		return true
	}
	bitLen := v.BitLen()
	// Two's complement needs one extra bit for the sign except when the
	// value is a negative power of two, where BitLen already accounts for
	// it exactly.
	if v.Sign() < 0 {
		abs := new(big.Int).Abs(v)
		abs.Sub(abs, big.NewInt(1))
		bitLen = abs.BitLen() + 1
	} else {
		bitLen = v.BitLen() + 1
	}
	return bitLen <= MaxBigIntegerSizeBytes*8
}
