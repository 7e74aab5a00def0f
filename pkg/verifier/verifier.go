package verifier

import (
	"fmt"

	"github.com/r3e-network/neo-go-core/internal/nlog"
	"github.com/r3e-network/neo-go-core/pkg/chain"
	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
	"github.com/r3e-network/neo-go-core/pkg/metrics"
	"github.com/r3e-network/neo-go-core/pkg/vm"
	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

// VerificationContext carries everything one Verify call needs beyond the
// transaction itself.
type VerificationContext struct {
	Snapshot                   chain.Snapshot
	NetworkMagic               uint32
	FeePerByteFallback         int64
	PersistingBlockIndex       *uint32
	MaxGas                     int64
	SkipSignatureVerification  bool
	SkipWitnessVerification    bool
}

// Verifier runs the verification pipeline. It is safe for concurrent use:
// the cache and metrics sink both lock internally.
type Verifier struct {
	crypto  chain.Crypto
	policy  chain.PolicyReader
	cache   *cache
	metrics metrics.Sink
	log     nlog.Logger
}

func New(crypto chain.Crypto, policy chain.PolicyReader, sink metrics.Sink) *Verifier {
	if sink == nil {
		sink = metrics.Noop
	}
	return &Verifier{
		crypto:  crypto,
		policy:  policy,
		cache:   newCache(),
		metrics: sink,
		log:     nlog.New("component", "verifier"),
	}
}

// Verify runs tx through the full pipeline, consulting and then updating
// the verification cache.
func (v *Verifier) Verify(tx *transaction.Transaction, ctx VerificationContext) Outcome {
	if err := tx.Validate(); err != nil {
		return Outcome{Result: Invalid, Message: err.Error()}
	}

	height := ctx.Snapshot.GetHeight()
	key := cacheKey{hash: tx.Hash(), mode: modeOf(ctx)}
	if out, ok := v.cache.lookup(key, height); ok {
		return out
	}

	out := v.runPipeline(tx, ctx)
	v.recordMetrics(out)
	v.cache.store(key, out, height)
	return out
}

func (v *Verifier) recordMetrics(out Outcome) {
	if out.Result == Succeed {
		v.metrics.IncCounter(metrics.TxAccepted)
		return
	}
	v.metrics.IncLabeled(metrics.TxRejectedByKind, out.Result.String())
}

func (v *Verifier) runPipeline(tx *transaction.Transaction, ctx VerificationContext) Outcome {
	var totalGas int64

	if !ctx.SkipSignatureVerification {
		for i, signer := range tx.Signers {
			w := tx.Witnesses[i]
			signData := transaction.SignData(tx, ctx.NetworkMagic)
			ok, gas, err := v.verifyWitnessSignature(signData, w)
			totalGas += gas
			if err != nil {
				v.log.Warn("witness verification error", "tx", tx.Hash(), "signer", signer.Account, "err", err)
				return Outcome{Result: Failed, Message: err.Error(), GasConsumed: totalGas}
			}
			if !ok {
				v.log.Warn("invalid witness signature", "tx", tx.Hash(), "signer", signer.Account)
				return Outcome{Result: InvalidSignature, Message: "signature verification failed", GasConsumed: totalGas}
			}
		}
	}

	if !ctx.SkipWitnessVerification {
		for i, signer := range tx.Signers {
			w := tx.Witnesses[i]
			hash := v.crypto.Hash160(w.VerificationScript)
			if hash != signer.Account {
				v.log.Warn("witness script-hash mismatch", "tx", tx.Hash(), "signer", signer.Account)
				return Outcome{Result: Invalid, Message: "verification script does not match signer account", GasConsumed: totalGas}
			}
		}
	}

	feePerByte, err := v.policy.GetFeePerByte(ctx.Snapshot)
	if err != nil {
		if err == chain.ErrPolicyNotInitialized {
			feePerByte = ctx.FeePerByteFallback
		} else {
			// State we need isn't readable right now; transient, never cached.
			return Outcome{Result: UnableToVerify, Message: err.Error(), GasConsumed: totalGas}
		}
	}
	witnessCost := totalGas
	if ctx.SkipSignatureVerification {
		// Witness execution was skipped, so only the two recognised
		// templates can be priced without running anything.
		witnessCost = templateWitnessCost(tx)
	}
	requiredNetworkFee := int64(tx.Size())*feePerByte + witnessCost
	if tx.NetworkFee < requiredNetworkFee {
		v.log.Warn("insufficient network fee", "tx", tx.Hash(), "have", tx.NetworkFee, "need", requiredNetworkFee)
		return Outcome{Result: InsufficientNetworkFee, Message: "network fee below required minimum", GasConsumed: totalGas}
	}

	sysGasLimit := tx.SystemFee
	if ctx.MaxGas > 0 && ctx.MaxGas < sysGasLimit {
		sysGasLimit = ctx.MaxGas
	}
	consumed, _ := v.measureSystemFee(tx, sysGasLimit)
	// A fault during this measurement is permitted — only the fee budget
	// matters for admission.
	if consumed > tx.SystemFee {
		v.log.Warn("insufficient system fee", "tx", tx.Hash(), "consumed", consumed, "budget", tx.SystemFee)
		return Outcome{Result: InsufficientSystemFee, Message: "system fee below gas consumed", GasConsumed: totalGas + consumed}
	}

	return Outcome{Result: Succeed, GasConsumed: totalGas + consumed}
}

// Flat gas charges for the two recognised witness templates, independent
// of actual execution.
const (
	checkSigFixedCost      = 1 << 15
	checkMultisigBaseCost  = 1 << 15
	checkMultisigPerKey    = 1 << 10
)

func templateWitnessCost(tx *transaction.Transaction) int64 {
	var total int64
	for _, w := range tx.Witnesses {
		if _, ok := matchSingleSig(w.VerificationScript); ok {
			total += checkSigFixedCost
			continue
		}
		if _, keys, ok := matchMultiSig(w.VerificationScript); ok {
			total += checkMultisigBaseCost + int64(len(keys))*checkMultisigPerKey
		}
	}
	return total
}

// verifyWitnessSignature checks one witness: template fast paths first,
// generic script execution otherwise. Returns
// (accepted, gas charged for this witness's verification — the fixed
// template cost on the fast paths, actual engine consumption otherwise,
// error).
func (v *Verifier) verifyWitnessSignature(signData []byte, w transaction.Witness) (bool, int64, error) {
	if pubKey, ok := matchSingleSig(w.VerificationScript); ok {
		sigs, ok := invocationSignatures(w.InvocationScript)
		if !ok || len(sigs) != 1 {
			return false, checkSigFixedCost, nil
		}
		return v.crypto.Verify(signData, sigs[0], pubKey), checkSigFixedCost, nil
	}

	if m, keys, ok := matchMultiSig(w.VerificationScript); ok {
		cost := checkMultisigBaseCost + int64(len(keys))*checkMultisigPerKey
		sigs, ok := invocationSignatures(w.InvocationScript)
		if !ok || len(sigs) > m {
			return false, cost, nil
		}
		return v.verifyMultiSig(signData, sigs, keys, m), cost, nil
	}

	return v.verifyGenericWitness(signData, w)
}

// verifyMultiSig accepts iff at least m of the provided signatures verify
// against distinct public keys in order.
func (v *Verifier) verifyMultiSig(signData []byte, sigs, keys [][]byte, m int) bool {
	matched := 0
	keyIdx := 0
	for _, sig := range sigs {
		found := false
		for keyIdx < len(keys) {
			if v.crypto.Verify(signData, sig, keys[keyIdx]) {
				found = true
				keyIdx++
				break
			}
			keyIdx++
		}
		if found {
			matched++
		}
	}
	return matched >= m
}

// verifyGenericWitness runs both scripts under an application engine in
// Verification trigger. The verification script is the entry context; the invocation script is
// loaded on top so it executes first and its leftover stack becomes the
// verification script's input, exactly as falling off the end of a
// well-formed script transfers its stack to the caller via RET.
func (v *Verifier) verifyGenericWitness(signData []byte, w transaction.Witness) (bool, int64, error) {
	const genericGasLimit = 1 << 22

	host := vm.NewSimpleHost(1)
	host.Register(SyscallCheckSig, checkSigFixedCost, func(e *vm.Engine, ctx *vm.ExecutionContext) error {
		pubKeyItem, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		sigItem, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		pubKey, err := pubKeyItem.ToByteArray()
		if err != nil {
			return err
		}
		sig, err := sigItem.ToByteArray()
		if err != nil {
			return err
		}
		e.Push(ctx, stackitem.NewBoolean(v.crypto.Verify(signData, sig, pubKey)))
		return nil
	})
	host.Register(SyscallCheckMultisig, checkMultisigBaseCost, func(e *vm.Engine, ctx *vm.ExecutionContext) error {
		pubKeysItem, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		sigsItem, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		pubKeys, ok := pubKeysItem.(*stackitem.Array)
		if !ok {
			return fmt.Errorf("verifier: CheckMultisig expects an Array of public keys")
		}
		sigs, ok := sigsItem.(*stackitem.Array)
		if !ok {
			return fmt.Errorf("verifier: CheckMultisig expects an Array of signatures")
		}
		var keyBytes, sigBytes [][]byte
		for _, it := range pubKeys.Items() {
			b, err := it.ToByteArray()
			if err != nil {
				return err
			}
			keyBytes = append(keyBytes, b)
		}
		for _, it := range sigs.Items() {
			b, err := it.ToByteArray()
			if err != nil {
				return err
			}
			sigBytes = append(sigBytes, b)
		}
		e.Push(ctx, stackitem.NewBoolean(v.verifyMultiSig(signData, sigBytes, keyBytes, len(sigBytes))))
		return nil
	})

	verScript, err := vm.NewScript(ensureRet(w.VerificationScript), true)
	if err != nil {
		return false, 0, nil
	}
	invScript, err := vm.NewScript(ensureRet(w.InvocationScript), true)
	if err != nil {
		return false, 0, nil
	}

	eng := vm.NewEngine(host, genericGasLimit)
	if _, err := eng.LoadScript(verScript, -1, nil); err != nil {
		return false, 0, err
	}
	if _, err := eng.LoadScript(invScript, -1, nil); err != nil {
		return false, 0, err
	}

	state := eng.Execute()
	if state != vm.StateHalt {
		return false, eng.GasConsumed, nil
	}
	res := eng.ResultStack()
	if res.Len() != 1 {
		return false, eng.GasConsumed, nil
	}
	item, err := res.Pop()
	if err != nil {
		return false, eng.GasConsumed, nil
	}
	return item.Boolean(), eng.GasConsumed, nil
}

// measureSystemFee executes tx.Script under an application engine with
// gas limit sysGasLimit. A fault is tolerated: only the gas consumed
// matters for admission.
func (v *Verifier) measureSystemFee(tx *transaction.Transaction, sysGasLimit int64) (int64, error) {
	host := vm.NewSimpleHost(1)
	script, err := vm.NewScript(ensureRet(tx.Script), true)
	if err != nil {
		return 0, err
	}
	eng := vm.NewEngine(host, sysGasLimit)
	if _, err := eng.LoadScript(script, -1, nil); err != nil {
		return 0, err
	}
	eng.Execute()
	return eng.GasConsumed, nil
}

// ensureRet appends an explicit RET to script if it doesn't already end
// with one, so a script that merely "falls off the end" (legal wire
// format, e.g. bare `PUSHDATA1 <sig>` invocation scripts) behaves exactly
// like an explicit return in this engine, which requires RET to unload a
// context.
func ensureRet(script []byte) []byte {
	if len(script) > 0 && vm.OpCode(script[len(script)-1]) == vm.RET {
		return script
	}
	out := make([]byte, len(script)+1)
	copy(out, script)
	out[len(script)] = byte(vm.RET)
	return out
}
