// Package rpc implements the read-only JSON-RPC query surface: a fixed
// dispatch table of named methods, each a plain function of
// (node, params) -> JSON, plus the session-scoped iterator store invoke*
// methods populate.
package rpc

import (
	"github.com/r3e-network/neo-go-core/internal/nlog"
	"github.com/r3e-network/neo-go-core/pkg/chain"
	"github.com/r3e-network/neo-go-core/pkg/config"
	"github.com/r3e-network/neo-go-core/pkg/core/block"
	"github.com/r3e-network/neo-go-core/pkg/metrics"
	"github.com/r3e-network/neo-go-core/pkg/p2p"
	"github.com/r3e-network/neo-go-core/pkg/verifier"
)

// PeerSource is the subset of *p2p.Handler the RPC layer needs for
// getpeers/getconnectioncount. Keeping the surface named and small
// documents exactly what RPC consumes.
type PeerSource interface {
	Peers() []p2p.PeerInfo
}

// Broadcaster is how accepted transactions/blocks re-enter the gossip
// layer after `sendrawtransaction`/`submitblock` — relay-on-ingest
// applies just as much to locally originated items as to ones learned
// from a peer.
type Broadcaster interface {
	RelayInventory(iv p2p.InventoryVector, fromPeer string)
}

// Node bundles every collaborator a method handler might need: the
// snapshot/mempool pair, the Verifier for
// `sendrawtransaction`, the Protocol Handler for peer-count methods, and
// the process-wide iterator session store.
type Node struct {
	Snapshot    chain.Snapshot
	Mempool     chain.Mempool
	Verifier    *verifier.Verifier
	Crypto      chain.Crypto
	Peers       PeerSource
	Broadcaster Broadcaster
	Settings    config.ProtocolSettings
	NetworkMagic uint32
	Nonce       uint32
	UserAgent   string

	// AcceptBlock hands a `submitblock` body to the ledger collaborator,
	// the same extension point p2p.Config exposes for gossip-received
	// blocks. Nil means submitblock only validates and relays.
	AcceptBlock func(*block.Block) error

	Sessions *SessionStore
	Metrics  metrics.Sink
	log      nlog.Logger
}

// NewNode wires a Node ready to serve the dispatch table. Session TTL and
// the per-session iterator cap come from config.RPCSettings (60s and 128
// by default).
func NewNode(snap chain.Snapshot, pool chain.Mempool, v *verifier.Verifier, crypto chain.Crypto, peers PeerSource, bc Broadcaster, settings config.ProtocolSettings, rpcSettings config.RPCSettings, nonce uint32, userAgent string, sink metrics.Sink) *Node {
	if sink == nil {
		sink = metrics.Noop
	}
	return &Node{
		Snapshot:     snap,
		Mempool:      pool,
		Verifier:     v,
		Crypto:       crypto,
		Peers:        peers,
		Broadcaster:  bc,
		Settings:     settings,
		NetworkMagic: settings.NetworkMagic,
		Nonce:        nonce,
		UserAgent:    userAgent,
		Sessions:     NewSessionStore(rpcSettings.SessionTTL, rpcSettings.MaxIteratorsPerSession),
		Metrics:      sink,
		log:          nlog.New("component", "rpc"),
	}
}
