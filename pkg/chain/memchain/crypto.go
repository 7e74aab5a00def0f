// Package memchain is the reference implementation of the pkg/chain
// collaborator contracts, used only by this module's own tests — real
// deployments supply their own. Crypto is built on
// golang.org/x/crypto/ripemd160 plus the standard library's
// crypto/ecdsa+crypto/elliptic (P-256) and crypto/sha256.
package memchain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"errors"
	"math/big"

	"golang.org/x/crypto/ripemd160"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

// Crypto is the test-only reference adapter for chain.Crypto.
type Crypto struct{}

func NewCrypto() Crypto { return Crypto{} }

// Verify checks an ECDSA-P-256 signature over signData against a
// compressed (33-byte) or uncompressed (65-byte) public key.
func (Crypto) Verify(signData, sig, pubKey []byte) bool {
	pub, err := decodePublicKey(pubKey)
	if err != nil {
		return false
	}
	if len(sig) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	digest := sha256.Sum256(signData)
	return ecdsa.Verify(pub, digest[:], r, s)
}

// Hash160 is RIPEMD160(SHA256(b)), Neo's script-hash scheme.
func (Crypto) Hash160(b []byte) transaction.Hash160 {
	sum := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sum[:])
	var out transaction.Hash160
	copy(out[:], r.Sum(nil))
	return out
}

// Hash256 is double SHA-256, the checksum scheme Base58Check leans on.
func (Crypto) Hash256(b []byte) transaction.Hash256 {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return transaction.Hash256(second)
}

var base58Alphabet = []byte("123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz")

// Base58CheckEncode/Decode are hand-rolled: the encoding is a ~20-line
// big.Int divmod loop, not a primitive worth a dependency inside a
// test-only adapter.
func (c Crypto) Base58CheckEncode(b []byte) string {
	checksum := c.Hash256(b)
	payload := append(append([]byte{}, b...), checksum[:4]...)

	zero := big.NewInt(0)
	base := big.NewInt(58)
	x := new(big.Int).SetBytes(payload)
	mod := new(big.Int)
	var out []byte
	for x.Cmp(zero) > 0 {
		x.DivMod(x, base, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	for _, bb := range payload {
		if bb != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}
	reverse(out)
	return string(out)
}

func (c Crypto) Base58CheckDecode(s string) ([]byte, error) {
	x := big.NewInt(0)
	base := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		idx := indexByte(base58Alphabet, s[i])
		if idx < 0 {
			return nil, errors.New("memchain: invalid base58 character")
		}
		x.Mul(x, base)
		x.Add(x, big.NewInt(int64(idx)))
	}
	decoded := x.Bytes()
	for i := 0; i < len(s) && s[i] == byte(base58Alphabet[0]); i++ {
		decoded = append([]byte{0}, decoded...)
	}
	if len(decoded) < 4 {
		return nil, errors.New("memchain: base58check payload too short")
	}
	payload, checksum := decoded[:len(decoded)-4], decoded[len(decoded)-4:]
	want := c.Hash256(payload)
	for i := 0; i < 4; i++ {
		if checksum[i] != want[i] {
			return nil, errors.New("memchain: base58check checksum mismatch")
		}
	}
	return payload, nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func indexByte(alphabet []byte, c byte) int {
	for i, a := range alphabet {
		if a == c {
			return i
		}
	}
	return -1
}

func decodePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	curve := elliptic.P256()
	switch {
	case len(b) == 33 && (b[0] == 0x02 || b[0] == 0x03):
		x, y := elliptic.UnmarshalCompressed(curve, b)
		if x == nil {
			return nil, errors.New("memchain: invalid compressed point")
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	case len(b) == 65 && b[0] == 0x04:
		x, y := elliptic.Unmarshal(curve, b)
		if x == nil {
			return nil, errors.New("memchain: invalid uncompressed point")
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	default:
		return nil, errors.New("memchain: unrecognized public key encoding")
	}
}
