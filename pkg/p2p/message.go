// Package p2p implements the per-peer message-driven protocol state
// machine: handshake, inventory gossip, block/header/transaction
// request-response with alternate-peer retry, address gossip, keepalive,
// and a synchronisation oracle. It calls into pkg/verifier to admit
// inbound transactions and never touches the wire itself — encode/decode
// and framing are the chain.Transport collaborator's job.
package p2p

import "github.com/r3e-network/neo-go-core/pkg/core/transaction"

// InventoryType distinguishes what an inventory hash refers to.
type InventoryType byte

const (
	InvTypeTransaction InventoryType = 0x2b
	InvTypeBlock       InventoryType = 0x2c
)

func (t InventoryType) String() string {
	if t == InvTypeBlock {
		return "Block"
	}
	return "Transaction"
}

// InventoryVector is one (type, hash) gossip unit.
type InventoryVector struct {
	Type InventoryType
	Hash transaction.Hash256
}

// Command names the fixed command set the core handles.
type Command string

const (
	CmdVersion         Command = "version"
	CmdVerack          Command = "verack"
	CmdGetAddr         Command = "getaddr"
	CmdAddr            Command = "addr"
	CmdPing            Command = "ping"
	CmdPong            Command = "pong"
	CmdGetHeaders      Command = "getheaders"
	CmdHeaders         Command = "headers"
	CmdGetBlocks       Command = "getblocks"
	CmdGetBlockByIndex Command = "getblockbyindex"
	CmdGetData         Command = "getdata"
	CmdInv             Command = "inv"
	CmdBlock           Command = "block"
	CmdTransaction     Command = "transaction"
	CmdMempool         Command = "mempool"
	CmdNotFound        Command = "notfound"
	CmdReject          Command = "reject"
)

// Message is the decoded form of one wire frame: a command tag plus a
// typed payload. The concrete wire encoding (length-prefixed,
// command-tagged frames) is produced and consumed by the Transport
// collaborator; this package only ever sees already-decoded Messages.
type Message struct {
	Command Command
	Payload interface{}
}

// VersionPayload is the handshake's capability announcement.
type VersionPayload struct {
	Magic       uint32
	Version     uint32
	Nonce       uint32
	UserAgent   string
	StartHeight uint32
	Timestamp   uint64
}

type VerackPayload struct{}

type GetAddrPayload struct{}

// NetworkAddress is one gossip-able peer endpoint.
type NetworkAddress struct {
	Timestamp uint32
	Address   string
	Port      uint16
	Services  uint64
}

type AddrPayload struct {
	Addresses []NetworkAddress
}

// PingPayload/PongPayload carry an 8-byte nonce plus the sender's last
// known block index.
type PingPayload struct {
	Nonce          uint64
	LastBlockIndex uint32
}

type PongPayload struct {
	Nonce          uint64
	LastBlockIndex uint32
}

type GetHeadersPayload struct {
	IndexStart uint32
	Count      int16
}

type HeadersPayload struct {
	Headers []HeaderView
}

// HeaderView is the minimal chain-link information the sync state machine
// needs without importing pkg/core/block's full Header (kept separate so
// p2p doesn't need a hard dependency on block internals beyond hash/index
// linkage — the concrete collaborator supplies full headers to the
// ledger).
type HeaderView struct {
	Hash      transaction.Hash256
	PrevHash  transaction.Hash256
	Index     uint32
	Timestamp uint64
}

type GetBlocksPayload struct {
	HashStart transaction.Hash256
	Count     int16
}

type GetBlockByIndexPayload struct {
	IndexStart uint32
	Count      int16
}

type GetDataPayload struct {
	Inventory []InventoryVector
}

type InvPayload struct {
	Inventory []InventoryVector
}

type BlockPayload struct {
	Hash  transaction.Hash256
	Index uint32
	Raw   []byte // block wire bytes (block.Bytes()), decoded by handleBlock
}

type TransactionPayload struct {
	Tx *transaction.Transaction
}

type MempoolPayload struct{}

type NotFoundPayload struct {
	Inventory []InventoryVector
}

type RejectPayload struct {
	Reason string
}
