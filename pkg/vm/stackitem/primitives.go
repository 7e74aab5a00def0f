package stackitem

import (
	"encoding/hex"
	"errors"
	"math/big"
)

// ErrTooBig's message names the 32-byte Integer bound, but the only place
// that returns it is Convert, for an Array->Struct conversion over
// maxStructConvertDepth elements. The engine's arithmetic opcodes report an
// oversized Integer with their own errItemTooBig.
var ErrTooBig = errors.New("stackitem: integer result exceeds 32-byte bound")

// Null is the absent value. All Null items compare equal and share a
// single canonical instance.
type nullItem struct{}

// Nil is the canonical Null instance; every Null in the system is this
// value, never a fresh allocation, so pointer identity checks on Null are
// meaningless — use Type() == TypeNull instead.
var Nil Item = nullItem{}

func (nullItem) Type() Type               { return TypeNull }
func (nullItem) Value() interface{}       { return nil }
func (nullItem) Boolean() bool            { return false }
func (nullItem) String() string           { return "Null" }
func (nullItem) ToByteArray() ([]byte, error) {
	return nil, &ErrInvalidConversion{From: TypeNull, To: TypeByteString}
}

// Boolean is a true/false stack item.
type Boolean bool

func NewBoolean(b bool) Boolean { return Boolean(b) }

func (b Boolean) Type() Type         { return TypeBoolean }
func (b Boolean) Value() interface{} { return bool(b) }
func (b Boolean) Boolean() bool      { return bool(b) }
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Boolean) ToByteArray() ([]byte, error) {
	if b {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

// Integer is an arbitrary-precision signed integer, constrained to fit in
// at most 32 bytes two's-complement whenever it is the product of
// arithmetic.
type Integer struct {
	v *big.Int
}

// NewInteger wraps v. Callers that produce v via arithmetic must check
// the 32-byte bound themselves (the engine's arithmetic opcodes do, with
// bigFits in pkg/vm/ops_arith.go) — NewInteger itself does not re-validate, so
// that integers decoded from PUSHINT literals (which are allowed up to
// 32 bytes by construction) aren't double-checked on every push.
func NewInteger(v *big.Int) Integer { return Integer{v: new(big.Int).Set(v)} }

func NewIntegerFromInt64(v int64) Integer { return Integer{v: big.NewInt(v)} }

func (i Integer) Type() Type         { return TypeInteger }
func (i Integer) Value() interface{} { return i.v }
func (i Integer) Big() *big.Int      { return i.v }
func (i Integer) Boolean() bool      { return i.v.Sign() != 0 }
func (i Integer) String() string     { return i.v.String() }

func (i Integer) ToByteArray() ([]byte, error) {
	return bigIntToBytes(i.v), nil
}

// bigIntToBytes renders v as minimal little-endian two's-complement bytes,
// matching the encoding PUSHINT* operands use.
func bigIntToBytes(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{}
	}
	var abs *big.Int
	neg := v.Sign() < 0
	if neg {
		abs = new(big.Int).Abs(v)
	} else {
		abs = v
	}
	b := abs.Bytes() // big-endian
	// reverse to little-endian
	for l, r := 0, len(b)-1; l < r; l, r = l+1, r-1 {
		b[l], b[r] = b[r], b[l]
	}
	if neg {
		// two's complement: invert and add one, then sign-extend with 0xff
		// if the top bit came out clear.
		carry := byte(1)
		for idx := range b {
			b[idx] = ^b[idx]
			s := int(b[idx]) + int(carry)
			b[idx] = byte(s)
			if s > 0xff {
				carry = 1
			} else {
				carry = 0
			}
		}
		if b[len(b)-1]&0x80 == 0 {
			b = append(b, 0xff)
		}
	} else if len(b) > 0 && b[len(b)-1]&0x80 != 0 {
		b = append(b, 0)
	}
	return b
}

// bytesToBigInt parses little-endian two's-complement bytes (the inverse of
// bigIntToBytes), used by the Integer<-ByteString conversion. pkg/vm
// decodes PUSHINT* operands with its own copy, bytesLEToBigInt.
func bytesToBigInt(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	neg := be[0]&0x80 != 0
	v := new(big.Int).SetBytes(be)
	if neg {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8))
		v.Sub(v, mod)
	}
	return v
}

// ByteString is an immutable octet sequence. It may exceed 32 bytes, in
// which case it is not coerceable back to Integer.
type ByteString []byte

func NewByteString(b []byte) ByteString {
	c := make([]byte, len(b))
	copy(c, b)
	return ByteString(c)
}

func (s ByteString) Type() Type         { return TypeByteString }
func (s ByteString) Value() interface{} { return []byte(s) }
func (s ByteString) Boolean() bool {
	for _, b := range s {
		if b != 0 {
			return true
		}
	}
	return false
}
func (s ByteString) String() string { return hex.EncodeToString(s) }
func (s ByteString) ToByteArray() ([]byte, error) {
	out := make([]byte, len(s))
	copy(out, s)
	return out, nil
}

// Int attempts the ByteString->Integer conversion, which is only legal
// within the 32-byte bound.
func (s ByteString) Int() (Integer, error) {
	if len(s) > MaxBigIntegerSizeBytes {
		return Integer{}, &ErrInvalidConversion{From: TypeByteString, To: TypeInteger}
	}
	return Integer{v: bytesToBigInt(s)}, nil
}

// Buffer is a mutable octet sequence — a distinct type from ByteString
// because mutability is observable.
type Buffer struct {
	b []byte
}

func NewBuffer(size int) *Buffer { return &Buffer{b: make([]byte, size)} }

func NewBufferFromBytes(b []byte) *Buffer {
	c := make([]byte, len(b))
	copy(c, b)
	return &Buffer{b: c}
}

func (b *Buffer) Type() Type         { return TypeBuffer }
func (b *Buffer) Value() interface{} { return b.b }
func (b *Buffer) Bytes() []byte      { return b.b }
func (b *Buffer) Boolean() bool {
	for _, c := range b.b {
		if c != 0 {
			return true
		}
	}
	return false
}
func (b *Buffer) String() string { return hex.EncodeToString(b.b) }
func (b *Buffer) ToByteArray() ([]byte, error) {
	out := make([]byte, len(b.b))
	copy(out, b.b)
	return out, nil
}

// ToByteString copies the buffer into an immutable ByteString; the
// Buffer->ByteString conversion always copies.
func (b *Buffer) ToByteString() ByteString { return NewByteString(b.b) }
