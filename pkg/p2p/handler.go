package p2p

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/r3e-network/neo-go-core/internal/nlog"
	"github.com/r3e-network/neo-go-core/pkg/chain"
	"github.com/r3e-network/neo-go-core/pkg/config"
	"github.com/r3e-network/neo-go-core/pkg/core/block"
	"github.com/r3e-network/neo-go-core/pkg/metrics"
	"github.com/r3e-network/neo-go-core/pkg/verifier"
)

// Config bundles everything one Handler needs at construction: transport
// and chain collaborators, a verifier, identity, and tunables.
type Config struct {
	Settings  config.P2PSettings
	Transport chain.Transport
	Mempool   chain.Mempool
	Snapshot  chain.Snapshot
	Verifier  *verifier.Verifier

	// PeerStore persists qualifying Addr gossip entries for reconnection
	// seeding. Optional; nil disables persistence.
	PeerStore chain.PeerStore

	NetworkMagic uint32
	OurNonce     uint32
	UserAgent    string

	// AcceptBlock hands a validated, gap-free block to the ledger
	// collaborator. The handler itself never mutates chain state.
	AcceptBlock func(*block.Block) error

	Metrics metrics.Sink
}

// Handler is one node's protocol handler instance: a message-driven
// per-peer state machine plus inventory and request-retry bookkeeping.
// Separate locks partition state — the per-peer map, the limiter map, and
// each of the two pending-request maps — to keep the hot path narrow.
type Handler struct {
	cfg Config

	peersMu sync.RWMutex
	peers   map[string]*Peer

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	pendingBlocks *pendingSet
	pendingTx     *pendingSet

	log     nlog.Logger
	metrics metrics.Sink

	now func() time.Time
}

// New builds a Handler ready to accept OnConnect calls.
func New(cfg Config) *Handler {
	sink := cfg.Metrics
	if sink == nil {
		sink = metrics.Noop
	}
	return &Handler{
		cfg:           cfg,
		peers:         make(map[string]*Peer),
		pendingBlocks: newPendingSet(cfg.Settings.BlockRequestTimeout, cfg.Settings.MaxBlockRetries),
		pendingTx:     newPendingSet(cfg.Settings.TxRequestTimeout, cfg.Settings.MaxTxRetries),
		log:           nlog.New("component", "p2p"),
		metrics:       sink,
		now:           time.Now,
	}
}

// OnConnect registers a freshly connected peer and, for an outbound
// dial, immediately sends our Version.
func (h *Handler) OnConnect(peerID string, inbound bool) {
	p := NewPeer(peerID, inbound)
	h.peersMu.Lock()
	h.peers[peerID] = p
	h.peersMu.Unlock()
	h.metrics.IncCounter(metrics.PeersConnected)

	if !inbound {
		h.sendVersion(peerID)
		p.State = VersionSent
	}
}

// OnDisconnect drops peerID's state. reason is logged and counted but
// otherwise inert — no partial state is retained for the offending peer.
func (h *Handler) OnDisconnect(peerID string, reason string) {
	h.peersMu.Lock()
	delete(h.peers, peerID)
	h.peersMu.Unlock()
	h.dropLimiter(peerID)
	h.metrics.IncLabeled(metrics.PeersDisconnectedByReason, reason)
	h.log.Info("peer disconnected", "peer", peerID, "reason", reason)
}

func (h *Handler) peer(peerID string) (*Peer, bool) {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	p, ok := h.peers[peerID]
	return p, ok
}

func (h *Handler) readyPeerIDs() []string {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	var out []string
	for id, p := range h.peers {
		if p.IsReady() {
			out = append(out, id)
		}
	}
	return out
}

// PeerInfo is the read-only peer snapshot the RPC layer's getpeers/
// getconnectioncount expose.
type PeerInfo struct {
	ID          string
	Inbound     bool
	Ready       bool
	StartHeight uint32
}

// Peers snapshots every currently tracked connection, handshaking or not.
func (h *Handler) Peers() []PeerInfo {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	out := make([]PeerInfo, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, PeerInfo{ID: p.ID, Inbound: p.Inbound, Ready: p.IsReady(), StartHeight: p.StartHeight})
	}
	return out
}

func (h *Handler) disconnect(peerID, reason string) {
	h.cfg.Transport.Disconnect(peerID, reason)
	h.OnDisconnect(peerID, reason)
}

func (h *Handler) send(peerID string, cmd Command, payload interface{}) {
	if err := h.cfg.Transport.Send(peerID, Message{Command: cmd, Payload: payload}); err != nil {
		h.log.Warn("send failed", "peer", peerID, "cmd", cmd, "err", err)
	}
}

// HandleMessage dispatches one decoded message for peerID. Every handler
// call sits behind one recovery boundary: a panic here disconnects the
// peer and records the cause rather than taking the node down.
func (h *Handler) HandleMessage(peerID string, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("p2p: handler panic: %v", r)
			h.disconnect(peerID, "handler panic")
		}
	}()

	p, ok := h.peer(peerID)
	if !ok {
		return fmt.Errorf("p2p: unknown peer %s", peerID)
	}

	if !p.IsReady() && msg.Command != CmdVersion && msg.Command != CmdVerack {
		h.log.Warn("non-handshake message before Ready", "peer", peerID, "cmd", msg.Command)
		return nil
	}

	switch msg.Command {
	case CmdVersion:
		return h.handleVersion(p, msg.Payload.(*VersionPayload))
	case CmdVerack:
		return h.handleVerack(p)
	case CmdGetAddr:
		return h.handleGetAddr(p)
	case CmdAddr:
		return h.handleAddr(p, msg.Payload.(*AddrPayload))
	case CmdPing:
		return h.handlePing(p, msg.Payload.(*PingPayload))
	case CmdPong:
		return h.handlePong(p, msg.Payload.(*PongPayload))
	case CmdGetHeaders:
		return h.handleGetHeaders(p, msg.Payload.(*GetHeadersPayload))
	case CmdHeaders:
		return h.handleHeaders(p, msg.Payload.(*HeadersPayload))
	case CmdGetBlocks:
		return h.handleGetBlocks(p, msg.Payload.(*GetBlocksPayload))
	case CmdGetBlockByIndex:
		return h.handleGetBlockByIndex(p, msg.Payload.(*GetBlockByIndexPayload))
	case CmdBlock:
		return h.handleBlock(p, msg.Payload.(*BlockPayload))
	case CmdGetData:
		return h.handleGetData(p, msg.Payload.(*GetDataPayload))
	case CmdInv:
		return h.handleInv(p, msg.Payload.(*InvPayload))
	case CmdTransaction:
		return h.handleTransaction(p, msg.Payload.(*TransactionPayload))
	case CmdNotFound:
		return h.handleNotFound(p, msg.Payload.(*NotFoundPayload))
	case CmdMempool:
		return h.handleMempool(p)
	case CmdReject:
		return nil
	default:
		h.log.Warn("unhandled command", "peer", peerID, "cmd", msg.Command)
		return nil
	}
}

// --- Handshake ---

func (h *Handler) sendVersion(peerID string) {
	h.send(peerID, CmdVersion, &VersionPayload{
		Magic:       h.cfg.NetworkMagic,
		Version:     protocolVersion,
		Nonce:       h.cfg.OurNonce,
		UserAgent:   h.cfg.UserAgent,
		StartHeight: h.cfg.Snapshot.GetHeight(),
		Timestamp:   uint64(h.now().Unix()),
	})
}

// protocolVersion is what we announce in our own Version message;
// minProtocolVersion is the oldest peer protocol we still talk to. Peers
// below it never learned the N3 message set, so the handshake rejects them
// outright.
const (
	protocolVersion    = 3
	minProtocolVersion = 3
)

func (h *Handler) handleVersion(p *Peer, v *VersionPayload) error {
	if v.Magic != h.cfg.NetworkMagic {
		h.disconnect(p.ID, "magic mismatch")
		return nil
	}
	if v.Version < minProtocolVersion {
		h.disconnect(p.ID, "protocol version too old")
		return nil
	}
	if v.Nonce == h.cfg.OurNonce {
		h.disconnect(p.ID, "nonce collision (self-connect)")
		return nil
	}

	p.VersionReceived = true
	p.StartHeight = v.StartHeight
	if p.State == Connected {
		h.sendVersion(p.ID)
		p.State = VersionSent
	}
	h.send(p.ID, CmdVerack, &VerackPayload{})
	return nil
}

func (h *Handler) handleVerack(p *Peer) error {
	if !p.VersionReceived {
		h.disconnect(p.ID, "verack before version")
		return nil
	}
	p.VerackReceived = true
	p.State = Ready
	h.onReady(p)
	return nil
}

func (h *Handler) onReady(p *Peer) {
	h.send(p.ID, CmdGetAddr, &GetAddrPayload{})
	ourHeight := h.cfg.Snapshot.GetHeight()
	if p.StartHeight > ourHeight {
		h.send(p.ID, CmdGetHeaders, &GetHeadersPayload{IndexStart: ourHeight, Count: -1})
	}
}

// --- Inventory propagation ---

const (
	blockInvWindow = 2 * time.Minute
	txInvWindow    = 1 * time.Minute
)

func (h *Handler) handleInv(p *Peer, inv *InvPayload) error {
	now := h.now()
	var need []InventoryVector
	for _, iv := range inv.Inventory {
		p.MarkKnown(iv.Hash)
		if h.weNeed(iv, now) {
			need = append(need, iv)
		}
	}
	if len(need) > 0 {
		for _, iv := range need {
			if iv.Type == InvTypeBlock {
				h.pendingBlocks.Start(iv.Hash, p.ID, now)
			} else {
				h.pendingTx.Start(iv.Hash, p.ID, now)
			}
		}
		h.send(p.ID, CmdGetData, &GetDataPayload{Inventory: need})
	}
	return nil
}

func (h *Handler) weNeed(iv InventoryVector, now time.Time) bool {
	switch iv.Type {
	case InvTypeBlock:
		if h.cfg.Snapshot.HasBlock(iv.Hash) {
			return false
		}
		return !h.pendingBlocks.Has(iv.Hash, now)
	default:
		if h.cfg.Mempool.Has(iv.Hash) || h.cfg.Snapshot.HasTransaction(iv.Hash) {
			return false
		}
		return !h.pendingTx.Has(iv.Hash, now)
	}
}

// RelayInventory announces iv to every Ready peer that doesn't already
// know it, skipping the sender. The relay-set
// computation and the known-hashes update happen inside the same
// per-peer lock acquisition so no peer can be sent a hash it's already
// marked known, nor omitted after genuinely not knowing it.
func (h *Handler) RelayInventory(iv InventoryVector, fromPeer string) {
	h.peersMu.Lock()
	var targets []string
	for id, p := range h.peers {
		if id == fromPeer || !p.IsReady() {
			continue
		}
		if p.KnowsInventory(iv.Hash) {
			continue
		}
		p.MarkKnown(iv.Hash)
		targets = append(targets, id)
	}
	h.peersMu.Unlock()

	for _, id := range targets {
		h.send(id, CmdInv, &InvPayload{Inventory: []InventoryVector{iv}})
	}
}

// --- Request/response ---

func (h *Handler) handleGetData(p *Peer, gd *GetDataPayload) error {
	limiter := h.limiterFor(p.ID)
	var missing []InventoryVector
	for _, iv := range gd.Inventory {
		if !limiter.Allow() {
			// Peer exceeded its share; whatever's left unserved this round
			// it can re-request, the same as a dropped NotFound retry.
			break
		}
		switch iv.Type {
		case InvTypeTransaction:
			if tx, err := h.cfg.Mempool.Get(iv.Hash); err == nil {
				h.send(p.ID, CmdTransaction, &TransactionPayload{Tx: tx})
				continue
			}
			if tx, err := h.cfg.Snapshot.GetTransaction(iv.Hash); err == nil {
				h.send(p.ID, CmdTransaction, &TransactionPayload{Tx: tx})
				continue
			}
			missing = append(missing, iv)
		case InvTypeBlock:
			if b, err := h.cfg.Snapshot.GetBlock(iv.Hash); err == nil {
				h.send(p.ID, CmdBlock, &BlockPayload{Hash: iv.Hash, Index: b.Index(), Raw: b.Bytes()})
				continue
			}
			missing = append(missing, iv)
		}
	}
	if len(missing) > 0 {
		h.send(p.ID, CmdNotFound, &NotFoundPayload{Inventory: missing})
	}
	return nil
}

func (h *Handler) handleNotFound(p *Peer, nf *NotFoundPayload) error {
	now := h.now()
	ready := h.readyPeerIDs()
	for _, iv := range nf.Inventory {
		set := h.pendingTx
		if iv.Type == InvTypeBlock {
			set = h.pendingBlocks
		}
		outcome, alt := set.Fail(iv.Hash, p.ID, now, ready)
		switch outcome {
		case outcomeRetry:
			h.send(alt, CmdGetData, &GetDataPayload{Inventory: []InventoryVector{iv}})
		case outcomeDropped:
			h.log.Info("request dropped after retry cap", "hash", iv.Hash, "type", iv.Type)
		}
	}
	return nil
}

func (h *Handler) handleTransaction(p *Peer, tp *TransactionPayload) error {
	tx := tp.Tx
	h.pendingTx.Complete(tx.Hash())

	out := h.cfg.Verifier.Verify(tx, verifier.VerificationContext{
		Snapshot:     h.cfg.Snapshot,
		NetworkMagic: h.cfg.NetworkMagic,
		MaxGas:       0,
	})
	if out.Result != verifier.Succeed {
		h.log.Warn("rejected inbound transaction", "hash", tx.Hash(), "result", out.Result, "msg", out.Message)
		return nil
	}
	if err := h.cfg.Mempool.TryAdd(tx); err != nil {
		return nil
	}
	h.RelayInventory(InventoryVector{Type: InvTypeTransaction, Hash: tx.Hash()}, p.ID)
	return nil
}

// AcceptIncomingBlock is called once a Block payload has been decoded and
// structurally validated; it is exposed as a method (not only reachable
// through handleBlock) so a ledger integration that does its own wire
// decode can feed blocks in directly.
func (h *Handler) AcceptIncomingBlock(p *Peer, b *block.Block) error {
	h.pendingBlocks.Complete(b.Hash())

	currentHeight := h.cfg.Snapshot.GetHeight()
	if b.Index() > currentHeight+1 {
		h.requestGap(p, currentHeight+1, b.Index())
	}

	if h.cfg.AcceptBlock != nil {
		if err := h.cfg.AcceptBlock(b); err != nil {
			h.log.Warn("block rejected by ledger", "hash", b.Hash(), "err", err)
			return err
		}
	}
	h.RelayInventory(InventoryVector{Type: InvTypeBlock, Hash: b.Hash()}, p.ID)
	return nil
}

// requestGap enqueues GetBlockByIndex for [from, to) against the peer that
// handed us the block with the gap.
func (h *Handler) requestGap(p *Peer, from, to uint32) {
	if to <= from {
		return
	}
	gap := int(to - from)
	if max := h.cfg.Settings.MaxBlocksPerInv; max > 0 && gap > max {
		gap = max
	}
	if gap > 32767 {
		gap = 32767
	}
	h.send(p.ID, CmdGetBlockByIndex, &GetBlockByIndexPayload{IndexStart: from, Count: int16(gap)})
}

// --- Header & block synchronisation ---

func (h *Handler) handleGetHeaders(p *Peer, req *GetHeadersPayload) error {
	count := int(req.Count)
	if count < 0 || count > h.cfg.Settings.MaxHeadersPerReply {
		count = h.cfg.Settings.MaxHeadersPerReply
	}
	var headers []HeaderView
	for i := 0; i < count; i++ {
		idx := req.IndexStart + uint32(i)
		hdr, err := h.cfg.Snapshot.GetHeader(idx)
		if err != nil {
			break
		}
		headers = append(headers, HeaderView{Hash: hdr.Hash(), PrevHash: hdr.PrevHash, Index: hdr.Index, Timestamp: hdr.Timestamp})
	}
	h.send(p.ID, CmdHeaders, &HeadersPayload{Headers: headers})
	return nil
}

// handleHeaders validates each received header's chain link and timestamp
// monotonicity, discards duplicates, and batch-requests the block bodies we
// still lack.
func (h *Handler) handleHeaders(p *Peer, hp *HeadersPayload) error {
	headers := hp.Headers
	if len(headers) > h.cfg.Settings.MaxHeadersPerReply {
		headers = headers[:h.cfg.Settings.MaxHeadersPerReply]
	}
	now := h.now()
	var need []InventoryVector
	var prev *HeaderView
	for i := range headers {
		hdr := &headers[i]
		if prev != nil {
			if hdr.PrevHash != prev.Hash || hdr.Index != prev.Index+1 || hdr.Timestamp <= prev.Timestamp {
				h.disconnect(p.ID, "broken header chain")
				return nil
			}
		}
		prev = hdr
		p.MarkKnown(hdr.Hash)
		if h.cfg.Snapshot.HasBlock(hdr.Hash) || h.pendingBlocks.Has(hdr.Hash, now) {
			continue
		}
		need = append(need, InventoryVector{Type: InvTypeBlock, Hash: hdr.Hash})
	}
	if len(need) > 0 {
		for _, iv := range need {
			h.pendingBlocks.Start(iv.Hash, p.ID, now)
		}
		h.send(p.ID, CmdGetData, &GetDataPayload{Inventory: need})
	}
	return nil
}

// handleGetBlocks answers a hash-rooted block walk with the inventory of
// the blocks that follow it, capped at MaxBlocksPerInv.
func (h *Handler) handleGetBlocks(p *Peer, req *GetBlocksPayload) error {
	start, err := h.cfg.Snapshot.GetBlock(req.HashStart)
	if err != nil {
		return nil
	}
	count := int(req.Count)
	if count <= 0 || count > h.cfg.Settings.MaxBlocksPerInv {
		count = h.cfg.Settings.MaxBlocksPerInv
	}
	var inv []InventoryVector
	for i := 1; i <= count; i++ {
		b, err := h.cfg.Snapshot.GetBlock(start.Index() + uint32(i))
		if err != nil {
			break
		}
		inv = append(inv, InventoryVector{Type: InvTypeBlock, Hash: b.Hash()})
	}
	if len(inv) > 0 {
		h.send(p.ID, CmdInv, &InvPayload{Inventory: inv})
	}
	return nil
}

// handleBlock decodes a gossiped block body and feeds it through the same
// accept/relay path AcceptIncomingBlock exposes to direct ledger wiring.
func (h *Handler) handleBlock(p *Peer, bp *BlockPayload) error {
	if len(bp.Raw) == 0 {
		return nil
	}
	b, err := block.Deserialize(bp.Raw)
	if err != nil {
		h.disconnect(p.ID, "malformed block payload")
		return nil
	}
	return h.AcceptIncomingBlock(p, b)
}

func (h *Handler) handleGetBlockByIndex(p *Peer, req *GetBlockByIndexPayload) error {
	count := int(req.Count)
	if count <= 0 || count > h.cfg.Settings.MaxBlocksPerInv {
		count = h.cfg.Settings.MaxBlocksPerInv
	}
	var inv []InventoryVector
	for i := 0; i < count; i++ {
		b, err := h.cfg.Snapshot.GetBlock(req.IndexStart + uint32(i))
		if err != nil {
			break
		}
		inv = append(inv, InventoryVector{Type: InvTypeBlock, Hash: b.Hash()})
	}
	if len(inv) > 0 {
		h.send(p.ID, CmdInv, &InvPayload{Inventory: inv})
	}
	return nil
}

// --- Address gossip ---

func (h *Handler) handleGetAddr(p *Peer) error {
	h.peersMu.RLock()
	var addrs []NetworkAddress
	for id, peer := range h.peers {
		if !peer.IsReady() {
			continue
		}
		addrs = append(addrs, NetworkAddress{Address: id})
		if len(addrs) >= 1000 {
			break
		}
	}
	h.peersMu.RUnlock()
	h.send(p.ID, CmdAddr, &AddrPayload{Addresses: addrs})
	return nil
}

func (h *Handler) handleAddr(p *Peer, ap *AddrPayload) error {
	now := uint32(h.now().Unix())
	for _, a := range ap.Addresses {
		if a.Port == 0 {
			continue
		}
		if now > a.Timestamp && now-a.Timestamp > 24*3600 {
			continue
		}
		if a.Address == p.ID {
			continue
		}
		if h.cfg.PeerStore == nil {
			continue
		}
		rec, existed, err := h.cfg.PeerStore.Get(a.Address, a.Port)
		if err != nil {
			h.log.Warn("peer store read failed", "addr", a.Address, "err", err)
			continue
		}
		rec.Timestamp = uint64(a.Timestamp)
		rec.Services = a.Services
		rec.LastSeen = uint64(now)
		if !existed {
			rec.Attempts = 0
			rec.Connected = false
		}
		if err := h.cfg.PeerStore.Put(a.Address, a.Port, rec); err != nil {
			h.log.Warn("peer store write failed", "addr", a.Address, "err", err)
		}
	}
	return nil
}

func (h *Handler) handleMempool(p *Peer) error {
	txs := h.cfg.Mempool.All()
	inv := make([]InventoryVector, 0, len(txs))
	for _, tx := range txs {
		inv = append(inv, InventoryVector{Type: InvTypeTransaction, Hash: tx.Hash()})
	}
	if len(inv) > 0 {
		h.send(p.ID, CmdInv, &InvPayload{Inventory: inv})
	}
	return nil
}

// --- Keepalive ---

func (h *Handler) SendPing(p *Peer, nonce uint64) {
	p.notePingSent(nonce, h.now())
	h.send(p.ID, CmdPing, &PingPayload{Nonce: nonce, LastBlockIndex: h.cfg.Snapshot.GetHeight()})
}

func (h *Handler) handlePing(p *Peer, ping *PingPayload) error {
	h.send(p.ID, CmdPong, &PongPayload{Nonce: ping.Nonce, LastBlockIndex: h.cfg.Snapshot.GetHeight()})
	return nil
}

func (h *Handler) handlePong(p *Peer, pong *PongPayload) error {
	p.RecordPong(pong.Nonce, h.now())
	return nil
}

// CheckKeepalive sends a ping to every Ready peer whose interval has
// elapsed and disconnects any peer that missed two consecutive pings.
// Called periodically by the owning supervisor loop — the handler itself
// never spawns a goroutine.
func (h *Handler) CheckKeepalive(now time.Time, nonceSeed func() uint64) {
	h.peersMu.RLock()
	var ready []*Peer
	for _, p := range h.peers {
		if p.IsReady() {
			ready = append(ready, p)
		}
	}
	h.peersMu.RUnlock()

	for _, p := range ready {
		sendPing, drop := p.keepaliveDue(now, h.cfg.Settings.PingInterval)
		if drop {
			h.disconnect(p.ID, "missed keepalive pings")
			continue
		}
		if sendPing {
			h.SendPing(p, nonceSeed())
		}
	}
}

// --- Retry/expiry sweep ---

// SweepExpiredRequests retries or drops block/tx requests that have gone
// silent past their timeout, using the same alternate-peer logic NotFound
// triggers.
func (h *Handler) SweepExpiredRequests(now time.Time) {
	ready := h.readyPeerIDs()
	for _, set := range []struct {
		s   *pendingSet
		typ InventoryType
	}{{h.pendingBlocks, InvTypeBlock}, {h.pendingTx, InvTypeTransaction}} {
		for _, req := range set.s.TimedOut(now) {
			outcome, alt := set.s.Fail(req.hash, req.peer, now, ready)
			switch outcome {
			case outcomeRetry:
				h.send(alt, CmdGetData, &GetDataPayload{Inventory: []InventoryVector{{Type: set.typ, Hash: req.hash}}})
			case outcomeDropped:
				h.log.Info("request expired and dropped", "hash", req.hash, "type", set.typ)
			}
		}
	}
}

// --- Synchronisation oracle ---

// IsSynchronized reports whether this node is caught up with its Ready
// peers: at least one Ready peer exists, our height is within 2 blocks of
// the maximum start_height among them, and at least half the Ready peers
// fall within that same window.
func (h *Handler) IsSynchronized() bool {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()

	var ready []*Peer
	for _, p := range h.peers {
		if p.IsReady() {
			ready = append(ready, p)
		}
	}
	if len(ready) == 0 {
		return false
	}

	var maxHeight uint32
	for _, p := range ready {
		if p.StartHeight > maxHeight {
			maxHeight = p.StartHeight
		}
	}
	ourHeight := h.cfg.Snapshot.GetHeight()
	if maxHeight > ourHeight && maxHeight-ourHeight > 2 {
		return false
	}

	withinWindow := 0
	for _, p := range ready {
		diff := int64(maxHeight) - int64(p.StartHeight)
		if diff < 0 {
			diff = -diff
		}
		if diff <= 2 {
			withinWindow++
		}
	}
	return withinWindow*2 >= len(ready)
}
