// Package chain defines the collaborator contracts the core subsystems
// consume but never implement themselves: a read-only ledger/storage
// Snapshot, a Mempool, a Crypto adapter, a Policy contract reader, a
// PeerStore, and a Transport. Production nodes supply their own; this
// package's only concrete code is the interfaces and sentinel errors. The
// reference in-memory implementation lives in pkg/chain/memchain and is
// imported only by this module's own tests.
package chain

import (
	"errors"

	"github.com/r3e-network/neo-go-core/pkg/core/block"
	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

// ErrNotFound is returned by any Snapshot lookup that misses.
var ErrNotFound = errors.New("chain: not found")

// ErrPolicyNotInitialized is the sentinel the Policy collaborator returns
// before the Policy native contract has run its first activation block;
// the Verifier falls back to ProtocolSettings.FeePerByteFallback only on
// this exact error.
var ErrPolicyNotInitialized = errors.New("chain: policy contract not yet initialized")

// ContractState is the subset of a deployed contract's manifest the RPC
// layer and verifier need: its script (for invocation) and its declared
// hash (for script-hash binding checks).
type ContractState struct {
	Hash     transaction.Hash160
	Script   []byte
	Manifest []byte // opaque JSON manifest, passed through verbatim by RPC
}

// Snapshot is an immutable, point-in-time view of the ledger plus contract
// storage. No method on Snapshot may block on
// anything but the underlying storage engine's own I/O, and none may
// mutate state — writes belong to the ledger/consensus collaborators.
type Snapshot interface {
	GetHeight() uint32
	GetBlock(hashOrIndex interface{}) (*block.Block, error)
	GetHeader(hashOrIndex interface{}) (*block.Header, error)
	GetTransaction(hash transaction.Hash256) (*transaction.Transaction, error)
	GetTransactionHeight(hash transaction.Hash256) (uint32, error)
	GetContract(hash transaction.Hash160) (*ContractState, error)
	Get(contract transaction.Hash160, key []byte) ([]byte, error)
	Find(contract transaction.Hash160, prefix []byte) (map[string][]byte, error)
	HasBlock(hash transaction.Hash256) bool
	HasTransaction(hash transaction.Hash256) bool
}

// Mempool is the pending-transaction pool.
type Mempool interface {
	TryAdd(tx *transaction.Transaction) error
	Has(hash transaction.Hash256) bool
	Get(hash transaction.Hash256) (*transaction.Transaction, error)
	All() []*transaction.Transaction
	Clear()
}

// Crypto is the cryptographic-primitive collaborator; the
// core never implements ECDSA/RIPEMD-160/Base58 itself.
type Crypto interface {
	Verify(signData, sig, pubKey []byte) bool
	Hash160(b []byte) transaction.Hash160
	Hash256(b []byte) transaction.Hash256
	Base58CheckEncode(b []byte) string
	Base58CheckDecode(s string) ([]byte, error)
}

// PolicyReader exposes the one policy value the Verifier needs directly:
// the current per-byte network fee.
type PolicyReader interface {
	GetFeePerByte(snap Snapshot) (int64, error)
}

// PeerRecord is the persisted shape of one known peer address: the
// little-endian tuple stored under "PeerAddress:<addr>:<port>".
type PeerRecord struct {
	Timestamp uint64
	Services  uint64
	Connected bool
	Attempts  uint32
	LastSeen  uint64
}

// PeerStore persists peer address records for reconnection seeding. The
// Protocol Handler writes qualifying Addr entries through
// it; the concrete storage engine behind it is a collaborator concern.
type PeerStore interface {
	Put(addr string, port uint16, rec PeerRecord) error
	Get(addr string, port uint16) (PeerRecord, bool, error)
	All() (map[string]PeerRecord, error)
}

// Transport is the outbound side of the Protocol Handler's contract with
// the concrete network layer: send a message to a peer, or
// disconnect it. Delivery is guaranteed at-most-once and in-order per peer;
// the Transport owns framing and the TCP connection, neither of which this
// module implements.
type Transport interface {
	Send(peerID string, msg interface{}) error
	Disconnect(peerID string, reason string)
}
