package p2p

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/r3e-network/neo-go-core/pkg/chain/memchain"
	"github.com/r3e-network/neo-go-core/pkg/config"
	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
	"github.com/r3e-network/neo-go-core/pkg/verifier"
	"github.com/r3e-network/neo-go-core/pkg/vm"
)

// fakeTransport records every Message sent to each peer instead of
// putting anything on a wire.
type fakeTransport struct {
	mu   sync.Mutex
	sent map[string][]Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][]Message)}
}

func (f *fakeTransport) Send(peerID string, msg interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[peerID] = append(f.sent[peerID], msg.(Message))
	return nil
}

func (f *fakeTransport) Disconnect(peerID string, reason string) {}

func (f *fakeTransport) messagesTo(peerID string, cmd Command) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.sent[peerID] {
		if m.Command == cmd {
			out = append(out, m)
		}
	}
	return out
}

const testMagic = 0x4e454f33

func newTestHandler(t *testing.T, transport *fakeTransport) (*Handler, *memchain.Snapshot, *memchain.Mempool) {
	t.Helper()
	snap := memchain.NewSnapshot()
	snap.SetFeePerByte(0)
	mempool := memchain.NewMempool()
	v := verifier.New(memchain.NewCrypto(), memchain.NewPolicy(), nil)

	h := New(Config{
		Settings:     config.Default().P2P,
		Transport:    transport,
		Mempool:      mempool,
		Snapshot:     snap,
		Verifier:     v,
		NetworkMagic: testMagic,
		OurNonce:     1,
		UserAgent:    "/test:0.0/",
	})
	return h, snap, mempool
}

func addReadyPeer(h *Handler, id string) *Peer {
	p := NewPeer(id, true)
	p.State = Ready
	p.VersionReceived = true
	p.VerackReceived = true
	h.peersMu.Lock()
	h.peers[id] = p
	h.peersMu.Unlock()
	return p
}

func compressPubKey(pub *ecdsa.PublicKey) []byte {
	return elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)
}

func singleSigVerificationScript(pubKey []byte, token uint32) []byte {
	out := []byte{byte(vm.PUSHDATA1), byte(len(pubKey))}
	out = append(out, pubKey...)
	out = append(out, byte(vm.SYSCALL))
	var tok [4]byte
	binary.LittleEndian.PutUint32(tok[:], token)
	return append(out, tok[:]...)
}

// buildValidTx mirrors pkg/verifier's own single-sig test fixture: a
// freshly signed one-signer transaction the reference Crypto adapter will
// accept, used to exercise the transaction-arrival/relay path end to end.
func buildValidTx(t *testing.T) *transaction.Transaction {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	crypto := memchain.NewCrypto()
	checkSigToken := vm.SyscallToken("Neo.Crypto.CheckSig")
	verScript := singleSigVerificationScript(compressPubKey(&priv.PublicKey), checkSigToken)
	account := crypto.Hash160(verScript)

	tx := &transaction.Transaction{
		Version:         0,
		Nonce:           7,
		SystemFee:       1 << 20,
		NetworkFee:      1 << 25,
		ValidUntilBlock: 1000,
		Signers:         []transaction.Signer{{Account: account, Scopes: transaction.ScopeCalledByEntry}},
		Script:          []byte{byte(vm.PUSH1), byte(vm.RET)},
		Witnesses:       []transaction.Witness{{VerificationScript: verScript}},
	}

	signData := transaction.SignData(tx, testMagic)
	digest := sha256.Sum256(signData)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	tx.Witnesses[0].InvocationScript = append([]byte{byte(vm.PUSHDATA1), byte(len(sig))}, sig...)
	return tx
}

// TestInvRequestsThenRelaysOnArrival: an unrecognised Inv triggers a
// GetData to the announcer, and once the
// transaction arrives and verifies, it's relayed to every other Ready peer
// but never echoed back to the peer that sent it.
func TestInvRequestsThenRelaysOnArrival(t *testing.T) {
	transport := newFakeTransport()
	h, _, mempool := newTestHandler(t, transport)

	a := addReadyPeer(h, "A")
	addReadyPeer(h, "B")
	addReadyPeer(h, "C")

	tx := buildValidTx(t)
	iv := InventoryVector{Type: InvTypeTransaction, Hash: tx.Hash()}

	if err := h.handleInv(a, &InvPayload{Inventory: []InventoryVector{iv}}); err != nil {
		t.Fatalf("handleInv: %v", err)
	}
	getData := transport.messagesTo("A", CmdGetData)
	if len(getData) != 1 {
		t.Fatalf("expected exactly one GetData sent to A, got %d", len(getData))
	}

	if err := h.handleTransaction(a, &TransactionPayload{Tx: tx}); err != nil {
		t.Fatalf("handleTransaction: %v", err)
	}
	if !mempool.Has(tx.Hash()) {
		t.Fatal("expected verified transaction to land in the mempool")
	}

	if got := transport.messagesTo("A", CmdInv); len(got) != 0 {
		t.Fatalf("relay must not echo back to the announcing peer, got %d Inv messages to A", len(got))
	}
	for _, id := range []string{"B", "C"} {
		got := transport.messagesTo(id, CmdInv)
		if len(got) != 1 {
			t.Fatalf("expected exactly one relayed Inv to %s, got %d", id, len(got))
		}
	}
}

// TestNotFoundRetriesThenDrops: a NotFound from the first-asked peer
// triggers a retry against the only other ready
// peer; once that peer also replies NotFound, with no further candidate
// the request is dropped rather than retried forever.
func TestNotFoundRetriesThenDrops(t *testing.T) {
	transport := newFakeTransport()
	h, _, _ := newTestHandler(t, transport)

	a := addReadyPeer(h, "A")
	b := addReadyPeer(h, "B")

	var hash transaction.Hash256
	hash[0] = 0x42
	iv := InventoryVector{Type: InvTypeBlock, Hash: hash}

	now := time.Now()
	h.pendingBlocks.Start(hash, "A", now)

	if err := h.handleNotFound(a, &NotFoundPayload{Inventory: []InventoryVector{iv}}); err != nil {
		t.Fatalf("handleNotFound (A): %v", err)
	}
	retryToB := transport.messagesTo("B", CmdGetData)
	if len(retryToB) != 1 {
		t.Fatalf("expected exactly one retry GetData sent to B, got %d", len(retryToB))
	}

	if err := h.handleNotFound(b, &NotFoundPayload{Inventory: []InventoryVector{iv}}); err != nil {
		t.Fatalf("handleNotFound (B): %v", err)
	}
	if len(transport.messagesTo("A", CmdGetData)) != 0 {
		t.Fatalf("expected no further retry back to A once both peers have failed")
	}
	if len(transport.messagesTo("B", CmdGetData)) != 1 {
		t.Fatalf("expected B to have received exactly the one earlier retry, no second attempt")
	}
}

// TestSynchronizedRequiresAgreeingReadyPeers exercises the sync oracle:
// no Ready peers means not synchronized, and once peers agree on a height
// within the window, it flips true.
func TestSynchronizedRequiresAgreeingReadyPeers(t *testing.T) {
	transport := newFakeTransport()
	h, _, _ := newTestHandler(t, transport)

	if h.IsSynchronized() {
		t.Fatal("expected not synchronized with zero peers")
	}

	p := addReadyPeer(h, "A")
	p.StartHeight = 0
	if !h.IsSynchronized() {
		t.Fatal("expected synchronized once a single Ready peer agrees with our height")
	}

	far := addReadyPeer(h, "B")
	far.StartHeight = 1000
	if h.IsSynchronized() {
		t.Fatal("expected not synchronized once peers disagree by more than the window")
	}
}

// TestSweepExpiredRequestsRetriesAlternatePeer covers the timeout path:
// a block request that has gone silent past its window is reissued to a
// Ready peer that hasn't failed it yet, through the same retry logic an
// explicit NotFound takes.
func TestSweepExpiredRequestsRetriesAlternatePeer(t *testing.T) {
	transport := newFakeTransport()
	h, _, _ := newTestHandler(t, transport)

	addReadyPeer(h, "A")
	addReadyPeer(h, "B")

	var hash transaction.Hash256
	hash[0] = 0x99
	issued := time.Now().Add(-3 * time.Minute)
	h.pendingBlocks.Start(hash, "A", issued)

	h.SweepExpiredRequests(time.Now())

	if got := transport.messagesTo("B", CmdGetData); len(got) != 1 {
		t.Fatalf("expected one retry GetData to B after expiry, got %d", len(got))
	}
}

// TestHandshakeReachesReady walks the full inbound state machine: Version
// in, Version+Verack out, Verack in, then GetAddr on reaching Ready.
func TestHandshakeReachesReady(t *testing.T) {
	transport := newFakeTransport()
	h, _, _ := newTestHandler(t, transport)

	h.OnConnect("peer1", true)
	err := h.HandleMessage("peer1", Message{Command: CmdVersion, Payload: &VersionPayload{
		Magic:       testMagic,
		Version:     3,
		Nonce:       999,
		StartHeight: 0,
	}})
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if len(transport.messagesTo("peer1", CmdVersion)) != 1 {
		t.Fatal("inbound handshake must reply with our Version")
	}
	if len(transport.messagesTo("peer1", CmdVerack)) != 1 {
		t.Fatal("Version must be answered with Verack")
	}

	if err := h.HandleMessage("peer1", Message{Command: CmdVerack, Payload: &VerackPayload{}}); err != nil {
		t.Fatalf("verack: %v", err)
	}
	p, ok := h.peer("peer1")
	if !ok || !p.IsReady() {
		t.Fatal("peer must be Ready after both handshake legs")
	}
	if len(transport.messagesTo("peer1", CmdGetAddr)) != 1 {
		t.Fatal("reaching Ready must trigger GetAddr")
	}
}

// TestNonceCollisionDisconnects rejects a self-connection.
func TestNonceCollisionDisconnects(t *testing.T) {
	transport := newFakeTransport()
	h, _, _ := newTestHandler(t, transport)

	h.OnConnect("self", true)
	err := h.HandleMessage("self", Message{Command: CmdVersion, Payload: &VersionPayload{
		Magic:   testMagic,
		Version: 3,
		Nonce:   1, // equals our own nonce
	}})
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if _, ok := h.peer("self"); ok {
		t.Fatal("a nonce collision must drop the peer")
	}
}

// TestVerackBeforeVersionDisconnects enforces handshake ordering.
func TestVerackBeforeVersionDisconnects(t *testing.T) {
	transport := newFakeTransport()
	h, _, _ := newTestHandler(t, transport)

	h.OnConnect("early", true)
	if err := h.HandleMessage("early", Message{Command: CmdVerack, Payload: &VerackPayload{}}); err != nil {
		t.Fatalf("verack: %v", err)
	}
	if _, ok := h.peer("early"); ok {
		t.Fatal("verack before version must drop the peer")
	}
}
