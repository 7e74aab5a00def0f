package p2p

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

// HandshakeState is a peer's position in the connection state machine.
type HandshakeState int

const (
	Connected HandshakeState = iota
	VersionSent
	VerackReceived
	Ready
)

// knownHashCapacity bounds each peer's known-inventory set; an unbounded
// set would let a malicious peer grow our memory without limit simply by
// announcing hashes, hence a fixed-capacity LRU per peer.
const knownHashCapacity = 65536

// Peer is the per-connection state the handler tracks.
type Peer struct {
	ID      string
	Inbound bool

	State HandshakeState

	VersionReceived bool
	VerackReceived  bool
	StartHeight     uint32

	knownHashes *lru.Cache

	// pingMu guards the keepalive fields: the peer's own message goroutine
	// records pongs while the supervisor's CheckKeepalive tick reads and
	// sends pings.
	pingMu        sync.Mutex
	lastPingNonce uint64
	lastPingSent  time.Time
	lastPong      time.Time
	missedPings   int
}

// RecordPong notes a pong reply; a stale nonce is ignored, since Pong
// must echo the Ping payload unchanged.
func (p *Peer) RecordPong(nonce uint64, now time.Time) {
	p.pingMu.Lock()
	defer p.pingMu.Unlock()
	if nonce != p.lastPingNonce {
		return
	}
	p.lastPong = now
	p.missedPings = 0
}

// notePingSent records an outbound ping under the keepalive lock.
func (p *Peer) notePingSent(nonce uint64, now time.Time) {
	p.pingMu.Lock()
	p.lastPingNonce = nonce
	p.lastPingSent = now
	p.pingMu.Unlock()
}

// keepaliveDue reports whether a ping is due and whether the peer has now
// missed enough consecutive pings to be disconnected.
func (p *Peer) keepaliveDue(now time.Time, interval time.Duration) (sendPing, drop bool) {
	p.pingMu.Lock()
	defer p.pingMu.Unlock()
	if now.Sub(p.lastPingSent) < interval {
		return false, false
	}
	if !p.lastPingSent.IsZero() && p.lastPong.Before(p.lastPingSent) {
		p.missedPings++
		if p.missedPings >= 2 {
			return false, true
		}
	}
	return true, false
}

// NewPeer constructs fresh per-peer state for a just-accepted/dialed
// connection.
func NewPeer(id string, inbound bool) *Peer {
	known, _ := lru.New(knownHashCapacity)
	return &Peer{ID: id, Inbound: inbound, State: Connected, knownHashes: known}
}

// KnowsInventory reports whether hash has already been announced to or by
// this peer.
func (p *Peer) KnowsInventory(hash transaction.Hash256) bool {
	_, ok := p.knownHashes.Get(hash)
	return ok
}

// MarkKnown records hash as known by this peer. The LRU set is itself safe
// for concurrent use; RelayInventory calls this inside handler.go's
// per-peer lock, where relay-set computation also happens, so a relayed
// hash is never both "not yet known" and "just relayed back" in the same
// instant. The Inv and Headers handlers call it without that lock.
func (p *Peer) MarkKnown(hash transaction.Hash256) {
	p.knownHashes.Add(hash, struct{}{})
}

func (p *Peer) IsReady() bool { return p.State == Ready }
