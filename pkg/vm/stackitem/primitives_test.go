package stackitem

import (
	"math/big"
	"testing"
)

func TestIntegerRoundTrip(t *testing.T) {
	tests := []int64{0, 1, -1, 127, 128, -128, -129, 255, 256, -256}
	for _, v := range tests {
		i := NewIntegerFromInt64(v)
		b, err := i.ToByteArray()
		if err != nil {
			t.Fatalf("ToByteArray(%d): %v", v, err)
		}
		got := bytesToBigInt(b)
		if got.Cmp(big.NewInt(v)) != 0 {
			t.Errorf("round trip %d: got %s via bytes %x", v, got, b)
		}
	}
}

func TestBigIntFitsLimit(t *testing.T) {
	max := new(big.Int).Lsh(big.NewInt(1), 255)
	max.Sub(max, big.NewInt(1)) // 2^255-1, fits in 32 bytes signed
	if !bigIntFitsLimit(max) {
		t.Errorf("expected 2^255-1 to fit")
	}
	tooBig := new(big.Int).Lsh(big.NewInt(1), 255) // 2^255, needs 33 bytes signed
	if bigIntFitsLimit(tooBig) {
		t.Errorf("expected 2^255 to exceed the bound")
	}
	negPow2 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255)) // -2^255 fits exactly
	if !bigIntFitsLimit(negPow2) {
		t.Errorf("expected -2^255 to fit exactly in 32 bytes")
	}
}

func TestByteStringIntConversionBound(t *testing.T) {
	ok := NewByteString(make([]byte, 32))
	if _, err := ok.Int(); err != nil {
		t.Errorf("32-byte ByteString should convert to Integer: %v", err)
	}
	tooLong := NewByteString(make([]byte, 33))
	if _, err := tooLong.Int(); err == nil {
		t.Errorf("33-byte ByteString should not convert to Integer")
	}
}

func TestBooleanConversion(t *testing.T) {
	zero := NewByteString([]byte{0, 0, 0})
	if zero.Boolean() {
		t.Errorf("all-zero ByteString should be falsy")
	}
	nonzero := NewByteString([]byte{0, 0, 1})
	if !nonzero.Boolean() {
		t.Errorf("ByteString with a nonzero byte should be truthy")
	}
}

func TestBufferToByteStringCopies(t *testing.T) {
	buf := NewBufferFromBytes([]byte{1, 2, 3})
	bs := buf.ToByteString()
	buf.b[0] = 0xff
	if bs[0] == 0xff {
		t.Errorf("ToByteString must copy, mutation of buffer leaked into ByteString")
	}
}

func TestNullSingleton(t *testing.T) {
	if Nil.Type() != TypeNull {
		t.Errorf("Nil must have TypeNull")
	}
	if Nil.Boolean() {
		t.Errorf("Null must be falsy")
	}
}
