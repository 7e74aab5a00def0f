package verifier

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/r3e-network/neo-go-core/pkg/chain/memchain"
	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
	"github.com/r3e-network/neo-go-core/pkg/vm"
)

const testNetworkMagic = 0x4e454f33

func compressPubKey(pub *ecdsa.PublicKey) []byte {
	return elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)
}

func singleSigVerificationScript(pubKey []byte) []byte {
	out := []byte{byte(vm.PUSHDATA1), byte(len(pubKey))}
	out = append(out, pubKey...)
	out = append(out, byte(vm.SYSCALL))
	var tok [4]byte
	binary.LittleEndian.PutUint32(tok[:], checkSigToken)
	return append(out, tok[:]...)
}

func pushSig(sig []byte) []byte {
	return append([]byte{byte(vm.PUSHDATA1), byte(len(sig))}, sig...)
}

// buildSingleSigTx assembles a one-signer transaction whose witness
// follows the canonical single-sig template, signed with a freshly
// generated P-256 key.
func buildSingleSigTx(t *testing.T) (*transaction.Transaction, memchain.Crypto) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	crypto := memchain.NewCrypto()
	pubKey := compressPubKey(&priv.PublicKey)
	verScript := singleSigVerificationScript(pubKey)
	account := crypto.Hash160(verScript)

	tx := &transaction.Transaction{
		Version:         0,
		Nonce:           1,
		SystemFee:       1 << 20,
		NetworkFee:      1 << 20,
		ValidUntilBlock: 1000,
		Signers:         []transaction.Signer{{Account: account, Scopes: transaction.ScopeCalledByEntry}},
		Script:          []byte{byte(vm.PUSH1), byte(vm.RET)},
		Witnesses:       []transaction.Witness{{VerificationScript: verScript}},
	}

	signData := transaction.SignData(tx, testNetworkMagic)
	digest := sha256.Sum256(signData)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	tx.Witnesses[0].InvocationScript = pushSig(sig)
	return tx, crypto
}

func TestVerifySingleSigSucceeds(t *testing.T) {
	tx, crypto := buildSingleSigTx(t)

	snap := memchain.NewSnapshot()
	snap.SetFeePerByte(0)
	policy := memchain.NewPolicy()

	v := New(crypto, policy, nil)
	out := v.Verify(tx, VerificationContext{Snapshot: snap, NetworkMagic: testNetworkMagic, MaxGas: 1 << 30})

	if out.Result != Succeed {
		t.Fatalf("result = %v (%s), want Succeed", out.Result, out.Message)
	}
	if out.GasConsumed < checkSigFixedCost {
		t.Errorf("gas consumed = %d, want >= one CheckSig cost (%d)", out.GasConsumed, checkSigFixedCost)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	tx, crypto := buildSingleSigTx(t)
	tx.Witnesses[0].InvocationScript[3] ^= 0xff // flip a byte inside the signature

	snap := memchain.NewSnapshot()
	snap.SetFeePerByte(0)
	v := New(crypto, memchain.NewPolicy(), nil)

	out := v.Verify(tx, VerificationContext{Snapshot: snap, NetworkMagic: testNetworkMagic, MaxGas: 1 << 30})
	if out.Result != InvalidSignature {
		t.Fatalf("result = %v, want InvalidSignature", out.Result)
	}
}

func TestVerifyCachesSecondLookup(t *testing.T) {
	tx, crypto := buildSingleSigTx(t)
	snap := memchain.NewSnapshot()
	snap.SetFeePerByte(0)
	v := New(crypto, memchain.NewPolicy(), nil)

	ctx := VerificationContext{Snapshot: snap, NetworkMagic: testNetworkMagic, MaxGas: 1 << 30}
	first := v.Verify(tx, ctx)
	second := v.Verify(tx, ctx)
	if first.Result != Succeed || second.Result != Succeed {
		t.Fatalf("expected both lookups to succeed, got %v then %v", first.Result, second.Result)
	}
	if _, ok := v.cache.lookup(cacheKey{hash: tx.Hash(), mode: modeOf(ctx)}, snap.GetHeight()); !ok {
		t.Fatal("expected a cache hit after the first Verify call")
	}
}

func TestVerifyFallsBackToFeePerByteWhenPolicyUninitialized(t *testing.T) {
	tx, crypto := buildSingleSigTx(t)
	snap := memchain.NewSnapshot() // SetFeePerByte never called
	tx.NetworkFee = 1 << 25        // generous enough to clear any fallback fee
	v := New(crypto, memchain.NewPolicy(), nil)

	out := v.Verify(tx, VerificationContext{
		Snapshot:           snap,
		NetworkMagic:       testNetworkMagic,
		FeePerByteFallback: 1000,
		MaxGas:             1 << 30,
	})
	if out.Result != Succeed {
		t.Fatalf("result = %v (%s), want Succeed via fee-per-byte fallback", out.Result, out.Message)
	}
}
