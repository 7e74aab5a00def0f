// Package transaction defines the wire-level transaction envelope the
// Verifier (pkg/verifier), Protocol Handler (pkg/p2p), and RPC layer
// (pkg/rpc) all operate on.
package transaction

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Hash256 is a 32-byte big-endian-printed, little-endian-wire identifier —
// Neo's UInt256. It is a plain value type; computing one from bytes is a
// mechanical SHA-256 (this package's own concern), not the pluggable
// chain.Crypto collaborator, which exists for ECDSA/RIPEMD-160/Base58.
type Hash256 [32]byte

func (h Hash256) String() string {
	// Neo prints hashes reversed (big-endian) with a 0x prefix.
	var rev [32]byte
	for i := range h {
		rev[i] = h[31-i]
	}
	return fmt.Sprintf("0x%x", rev[:])
}

func (h Hash256) Bytes() []byte { return h[:] }

func (h Hash256) IsZero() bool { return h == Hash256{} }

func sha256Sum(b []byte) Hash256 {
	return Hash256(sha256.Sum256(b))
}

// Hash160 is Neo's 20-byte script hash (RIPEMD160(SHA256(script))); the
// value type lives here so Signer.Account has something to hold, but
// computing one from a script is the chain.Crypto collaborator's job
// since RIPEMD-160 is an explicitly out-of-scope primitive.
type Hash160 [20]byte

func (h Hash160) Bytes() []byte { return h[:] }

func (h Hash160) String() string {
	var rev [20]byte
	for i := range h {
		rev[i] = h[19-i]
	}
	return fmt.Sprintf("0x%x", rev[:])
}

// Signer is one entry of a transaction's signer list; its witness is
// bound to the account by script hash during verification.
type Signer struct {
	Account          Hash160
	Scopes           WitnessScope
	AllowedContracts []Hash160
	AllowedGroups    [][]byte // compressed EC points, opaque to this package
	Rules            []WitnessRule
}

// Witness is a transaction's (invocation, verification) script pair, one
// per signer, in signer order.
type Witness struct {
	InvocationScript   []byte
	VerificationScript []byte
}

// Attribute is an opaque transaction attribute (oracle response, high
// priority, not-valid-before, conflicts...); the verifier doesn't interpret
// attribute semantics beyond counting them toward tx size.
type Attribute struct {
	Type  byte
	Value []byte
}

// Transaction is the Neo N3 transaction envelope (supplemental
// data model; fields).
type Transaction struct {
	Version         byte
	Nonce           uint32
	SystemFee       int64
	NetworkFee      int64
	ValidUntilBlock uint32
	Signers         []Signer
	Attributes      []Attribute
	Script          []byte
	Witnesses       []Witness

	hash      *Hash256
	sizeCache int
}

var (
	ErrNoSigners  = errors.New("transaction: must have at least one signer")
	ErrNoScript   = errors.New("transaction: script must not be empty")
	ErrBadWitness = errors.New("transaction: witness count must equal signer count")
)

// Validate checks the structural invariants that hold before any fee or
// signature work: a transaction must have at least one signer, a
// non-empty script, and exactly one witness per signer, in the same order.
func (tx *Transaction) Validate() error {
	if len(tx.Signers) == 0 {
		return ErrNoSigners
	}
	if len(tx.Script) == 0 {
		return ErrNoScript
	}
	if len(tx.Witnesses) != len(tx.Signers) {
		return ErrBadWitness
	}
	return nil
}

// Sender is the first signer's account, the Neo convention for "who pays".
func (tx *Transaction) Sender() Hash160 {
	if len(tx.Signers) == 0 {
		return Hash160{}
	}
	return tx.Signers[0].Account
}

// bodyBytes serializes every field except the witnesses — the unsigned
// portion every signature in tx.Witnesses covers.
func (tx *Transaction) bodyBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tx.Version)
	writeUint32(&buf, tx.Nonce)
	writeInt64(&buf, tx.SystemFee)
	writeInt64(&buf, tx.NetworkFee)
	writeUint32(&buf, tx.ValidUntilBlock)

	writeVarInt(&buf, uint64(len(tx.Signers)))
	for _, s := range tx.Signers {
		buf.Write(s.Account.Bytes())
		buf.WriteByte(byte(s.Scopes))
		writeVarInt(&buf, uint64(len(s.AllowedContracts)))
		for _, c := range s.AllowedContracts {
			buf.Write(c.Bytes())
		}
		writeVarInt(&buf, uint64(len(s.AllowedGroups)))
		for _, g := range s.AllowedGroups {
			writeVarBytes(&buf, g)
		}
		writeVarInt(&buf, uint64(len(s.Rules)))
		for _, r := range s.Rules {
			buf.WriteByte(byte(r.Action))
			writeVarBytes(&buf, r.Condition)
		}
	}

	writeVarInt(&buf, uint64(len(tx.Attributes)))
	for _, a := range tx.Attributes {
		buf.WriteByte(a.Type)
		writeVarBytes(&buf, a.Value)
	}

	writeVarBytes(&buf, tx.Script)
	return buf.Bytes()
}

// Bytes is the full wire encoding: body followed by the witness list.
func (tx *Transaction) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(tx.bodyBytes())
	writeVarInt(&buf, uint64(len(tx.Witnesses)))
	for _, w := range tx.Witnesses {
		writeVarBytes(&buf, w.InvocationScript)
		writeVarBytes(&buf, w.VerificationScript)
	}
	return buf.Bytes()
}

// Size is the encoded byte length, the quantity the network-fee check
// multiplies by feePerByte.
func (tx *Transaction) Size() int {
	if tx.sizeCache == 0 {
		tx.sizeCache = len(tx.Bytes())
	}
	return tx.sizeCache
}

// Hash is the transaction identifier: SHA-256 of the unsigned body bytes.
// Memoized since it's read repeatedly (mempool keys, cache keys, RPC
// responses) and the transaction is immutable once constructed.
func (tx *Transaction) Hash() Hash256 {
	if tx.hash == nil {
		h := sha256Sum(tx.bodyBytes())
		tx.hash = &h
	}
	return *tx.hash
}

// SignData is the payload every witness's signature covers: the network
// magic (4-byte little-endian) concatenated with the body hash (Hash(),
// not hashed again). Distinct from Hash(), which
// identifies the transaction on the wire without a network magic.
func SignData(tx *Transaction, networkMagic uint32) []byte {
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], networkMagic)
	bodyHash := tx.Hash()
	payload := make([]byte, 0, 4+32)
	payload = append(payload, magic[:]...)
	payload = append(payload, bodyHash.Bytes()...)
	return payload
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

// writeVarInt encodes v using Neo's variable-length integer prefix, the
// same scheme Bitcoin-lineage wire formats use (0xfd/0xfe/0xff markers).
func writeVarInt(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xfd:
		buf.WriteByte(byte(v))
	case v <= 0xffff:
		buf.WriteByte(0xfd)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		buf.Write(b[:])
	case v <= 0xffffffff:
		buf.WriteByte(0xfe)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	default:
		buf.WriteByte(0xff)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	writeVarInt(buf, uint64(len(b)))
	buf.Write(b)
}

// ParseHash256 parses the reversed, 0x-prefixed hex Hash256.String() prints,
// the form both the RPC layer's params and its responses use:
// block/transaction hashes travel as 0x-prefixed big-endian hex.
func ParseHash256(s string) (Hash256, error) {
	s = trim0x(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash256{}, err
	}
	if len(b) != 32 {
		return Hash256{}, fmt.Errorf("transaction: hash256 must be 32 bytes, got %d", len(b))
	}
	var h Hash256
	for i := range b {
		h[i] = b[len(b)-1-i]
	}
	return h, nil
}

// ParseHash160 is ParseHash256's counterpart for script hashes.
func ParseHash160(s string) (Hash160, error) {
	s = trim0x(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash160{}, err
	}
	if len(b) != 20 {
		return Hash160{}, fmt.Errorf("transaction: hash160 must be 20 bytes, got %d", len(b))
	}
	var h Hash160
	for i := range b {
		h[i] = b[len(b)-1-i]
	}
	return h, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// reader walks raw wire bytes for Deserialize, the inverse of the
// write*/Bytes family above.
type reader struct {
	b   []byte
	pos int
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) byte() byte {
	if r.err != nil || r.pos >= len(r.b) {
		r.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := r.b[r.pos]
	r.pos++
	return v
}

func (r *reader) bytesN(n int) []byte {
	if r.err != nil || r.pos+n > len(r.b) {
		r.fail(io.ErrUnexpectedEOF)
		return nil
	}
	out := make([]byte, n)
	copy(out, r.b[r.pos:r.pos+n])
	r.pos += n
	return out
}

func (r *reader) uint32() uint32 {
	b := r.bytesN(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.bytesN(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) int64() int64 { return int64(r.uint64()) }

func (r *reader) varInt() uint64 {
	prefix := r.byte()
	switch prefix {
	case 0xfd:
		b := r.bytesN(2)
		if r.err != nil {
			return 0
		}
		return uint64(binary.LittleEndian.Uint16(b))
	case 0xfe:
		return uint64(r.uint32())
	case 0xff:
		return r.uint64()
	default:
		return uint64(prefix)
	}
}

const maxVarBytesLen = 1 << 20

func (r *reader) varBytes() []byte {
	n := r.varInt()
	if n > maxVarBytesLen {
		r.fail(fmt.Errorf("transaction: varBytes length %d exceeds sanity bound", n))
		return nil
	}
	return r.bytesN(int(n))
}

// count reads a varInt that sizes an allocation, bounded so a hostile
// length prefix can't force a multi-gigabyte make().
func (r *reader) count(max uint64) int {
	n := r.varInt()
	if n > max {
		r.fail(fmt.Errorf("transaction: element count %d exceeds bound %d", n, max))
		return 0
	}
	return int(n)
}

func (r *reader) hash160() Hash160 {
	var h Hash160
	copy(h[:], r.bytesN(20))
	return h
}

// Deserialize parses raw, the inverse of Bytes(): the unsigned body
// followed by the witness list. It is the RPC layer's (sendrawtransaction,
// submitblock) entry point for client-submitted wire bytes; the Protocol
// Handler never calls it directly since wire decode there is the
// chain.Transport collaborator's job.
func Deserialize(raw []byte) (*Transaction, error) {
	r := &reader{b: raw}
	tx := &Transaction{}
	tx.Version = r.byte()
	tx.Nonce = r.uint32()
	tx.SystemFee = r.int64()
	tx.NetworkFee = r.int64()
	tx.ValidUntilBlock = r.uint32()

	signerCount := r.count(16)
	tx.Signers = make([]Signer, signerCount)
	for i := range tx.Signers {
		s := &tx.Signers[i]
		s.Account = r.hash160()
		s.Scopes = WitnessScope(r.byte())
		contractCount := r.count(16)
		s.AllowedContracts = make([]Hash160, contractCount)
		for j := range s.AllowedContracts {
			s.AllowedContracts[j] = r.hash160()
		}
		groupCount := r.count(16)
		s.AllowedGroups = make([][]byte, groupCount)
		for j := range s.AllowedGroups {
			s.AllowedGroups[j] = r.varBytes()
		}
		ruleCount := r.count(16)
		s.Rules = make([]WitnessRule, ruleCount)
		for j := range s.Rules {
			s.Rules[j].Action = WitnessRuleAction(r.byte())
			s.Rules[j].Condition = r.varBytes()
		}
	}

	attrCount := r.count(16)
	tx.Attributes = make([]Attribute, attrCount)
	for i := range tx.Attributes {
		tx.Attributes[i].Type = r.byte()
		tx.Attributes[i].Value = r.varBytes()
	}

	tx.Script = r.varBytes()

	witnessCount := r.count(16)
	tx.Witnesses = make([]Witness, witnessCount)
	for i := range tx.Witnesses {
		tx.Witnesses[i].InvocationScript = r.varBytes()
		tx.Witnesses[i].VerificationScript = r.varBytes()
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(raw) {
		return nil, fmt.Errorf("transaction: %d trailing bytes after deserialize", len(raw)-r.pos)
	}
	return tx, nil
}
