// Package block holds the ledger's header/block envelope, the minimal
// supplemental data model the Verifier, Protocol Handler, and RPC layer
// need to reference a position in the chain.
package block

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

// Header is a Neo N3 block header (supplemental data model).
type Header struct {
	Version       uint32
	PrevHash      transaction.Hash256
	MerkleRoot    transaction.Hash256
	Timestamp     uint64
	Nonce         uint64
	Index         uint32
	PrimaryIndex  byte
	NextConsensus transaction.Hash160
	Witness       transaction.Witness

	hash *transaction.Hash256
}

// Block pairs a header with its transaction list.
type Block struct {
	Header       Header
	Transactions []*transaction.Transaction
}

func (h *Header) unsignedBytes() []byte {
	var buf bytes.Buffer
	var b4 [4]byte
	binary.LittleEndian.PutUint32(b4[:], h.Version)
	buf.Write(b4[:])
	buf.Write(h.PrevHash.Bytes())
	buf.Write(h.MerkleRoot.Bytes())
	var b8 [8]byte
	binary.LittleEndian.PutUint64(b8[:], h.Timestamp)
	buf.Write(b8[:])
	binary.LittleEndian.PutUint64(b8[:], h.Nonce)
	buf.Write(b8[:])
	binary.LittleEndian.PutUint32(b4[:], h.Index)
	buf.Write(b4[:])
	buf.WriteByte(h.PrimaryIndex)
	buf.Write(h.NextConsensus.Bytes())
	return buf.Bytes()
}

// Hash identifies the header (and therefore the block): SHA-256 over every
// field but the witness, the same convention as transaction.Hash().
func (h *Header) Hash() transaction.Hash256 {
	if h.hash == nil {
		sum := sha256.Sum256(h.unsignedBytes())
		hh := transaction.Hash256(sum)
		h.hash = &hh
	}
	return *h.hash
}

// Hash delegates to the header.
func (b *Block) Hash() transaction.Hash256 { return b.Header.Hash() }

// Index is the block's height.
func (b *Block) Index() uint32 { return b.Header.Index }

// ValidatesLink reports whether h is a legal direct successor of prev:
// its PrevHash must match prev's hash, its Index must be exactly one more,
// and its Timestamp must be strictly greater (header chain
// validation: "chain link and timestamp monotonicity").
func (h *Header) ValidatesLink(prev *Header) bool {
	if prev == nil {
		return h.Index == 0
	}
	if h.PrevHash != prev.Hash() {
		return false
	}
	if h.Index != prev.Index+1 {
		return false
	}
	if h.Timestamp <= prev.Timestamp {
		return false
	}
	return true
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	switch n := len(b); {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		var b2 [2]byte
		binary.LittleEndian.PutUint16(b2[:], uint16(n))
		buf.Write(b2[:])
	default:
		buf.WriteByte(0xfe)
		var b4 [4]byte
		binary.LittleEndian.PutUint32(b4[:], uint32(n))
		buf.Write(b4[:])
	}
	buf.Write(b)
}

// Bytes is the header's full wire encoding: the unsigned fields followed
// by its single witness ("a header carries exactly one
// witness, the primary speaker's").
func (h *Header) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(h.unsignedBytes())
	writeVarBytes(&buf, h.Witness.InvocationScript)
	writeVarBytes(&buf, h.Witness.VerificationScript)
	return buf.Bytes()
}

// Bytes is the block's full wire encoding: its header followed by its
// transaction list, each transaction in its own wire form.
func (b *Block) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(b.Header.Bytes())
	writeVarInt(&buf, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		txBytes := tx.Bytes()
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(txBytes)))
		buf.Write(n[:])
		buf.Write(txBytes)
	}
	return buf.Bytes()
}

func writeVarInt(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xfd:
		buf.WriteByte(byte(v))
	case v <= 0xffff:
		buf.WriteByte(0xfd)
		var b2 [2]byte
		binary.LittleEndian.PutUint16(b2[:], uint16(v))
		buf.Write(b2[:])
	case v <= 0xffffffff:
		buf.WriteByte(0xfe)
		var b4 [4]byte
		binary.LittleEndian.PutUint32(b4[:], uint32(v))
		buf.Write(b4[:])
	default:
		buf.WriteByte(0xff)
		var b8 [8]byte
		binary.LittleEndian.PutUint64(b8[:], v)
		buf.Write(b8[:])
	}
}

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
	if r.err != nil || n < 0 || r.pos+n > len(r.b) {
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

func (r *reader) hash256() transaction.Hash256 {
	var h transaction.Hash256
	copy(h[:], r.bytesN(32))
	return h
}

func (r *reader) hash160() transaction.Hash160 {
	var h transaction.Hash160
	copy(h[:], r.bytesN(20))
	return h
}

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
		r.fail(fmt.Errorf("block: varBytes length %d exceeds sanity bound", n))
		return nil
	}
	return r.bytesN(int(n))
}

// DeserializeHeader parses raw into a Header, the inverse of Bytes().
func DeserializeHeader(raw []byte) (*Header, error) {
	r := &reader{b: raw}
	h := &Header{}
	h.Version = r.uint32()
	h.PrevHash = r.hash256()
	h.MerkleRoot = r.hash256()
	h.Timestamp = r.uint64()
	h.Nonce = r.uint64()
	h.Index = r.uint32()
	h.PrimaryIndex = r.byte()
	h.NextConsensus = r.hash160()
	h.Witness.InvocationScript = r.varBytes()
	h.Witness.VerificationScript = r.varBytes()
	if r.err != nil {
		return nil, r.err
	}
	return h, nil
}

// Deserialize parses raw into a Block, the inverse of Bytes(). It is the
// RPC layer's (submitblock) entry point for client-submitted wire bytes.
func Deserialize(raw []byte) (*Block, error) {
	r := &reader{b: raw}
	h := &Header{}
	h.Version = r.uint32()
	h.PrevHash = r.hash256()
	h.MerkleRoot = r.hash256()
	h.Timestamp = r.uint64()
	h.Nonce = r.uint64()
	h.Index = r.uint32()
	h.PrimaryIndex = r.byte()
	h.NextConsensus = r.hash160()
	h.Witness.InvocationScript = r.varBytes()
	h.Witness.VerificationScript = r.varBytes()
	if r.err != nil {
		return nil, r.err
	}

	txCount := r.varInt()
	if txCount > 1<<16 {
		return nil, fmt.Errorf("block: transaction count %d exceeds sanity bound", txCount)
	}
	txs := make([]*transaction.Transaction, txCount)
	for i := range txs {
		txLen := r.uint32()
		if r.err != nil {
			return nil, r.err
		}
		txRaw := r.bytesN(int(txLen))
		if r.err != nil {
			return nil, r.err
		}
		tx, err := transaction.Deserialize(txRaw)
		if err != nil {
			return nil, fmt.Errorf("block: transaction %d: %w", i, err)
		}
		txs[i] = tx
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(raw) {
		return nil, fmt.Errorf("block: %d trailing bytes after deserialize", len(raw)-r.pos)
	}
	return &Block{Header: *h, Transactions: txs}, nil
}
