package rpc

import (
	"sort"

	"github.com/r3e-network/neo-go-core/pkg/chain"
	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
	"github.com/r3e-network/neo-go-core/pkg/vm"
	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

// The interop names this module's Application Engine recognises. Real Neo
// exposes dozens; the core's scope is the engine and the RPC
// surface, not the native-contract library, so only the handful an
// invoke* caller can actually observe through the method table are
// wired: contract-to-contract call, storage read/enumerate, and the two
// runtime facts a verification script commonly branches on.
const (
	SyscallContractCall       = "System.Contract.Call"
	SyscallStorageGet         = "System.Storage.Get"
	SyscallStorageFind        = "System.Storage.Find"
	SyscallRuntimeCheckWitness = "System.Runtime.CheckWitness"
	SyscallRuntimeGasLeft     = "System.Runtime.GasLeft"
)

const invokeGasLimit = 1 << 24

// invokeTrigger selects which syscalls an Application Engine installs;
// Verification trigger omits System.Contract.Call (a
// verification script may read state but must not re-enter another
// contract's business logic).
type invokeTrigger int

const (
	triggerApplication invokeTrigger = iota
	triggerVerification
)

// newInvokeHost builds the syscall table an invoke*/invokecontractverify
// call runs against. Each handler is responsible for popping its own
// arguments and pushing its own result, the same contract SimpleHost
// documents and pkg/verifier's generic-witness path already exercises.
func newInvokeHost(snap chain.Snapshot, signers []transaction.Signer, trig invokeTrigger) *vm.SimpleHost {
	host := vm.NewSimpleHost(1)

	host.Register(SyscallStorageGet, 1<<10, func(e *vm.Engine, ctx *vm.ExecutionContext) error {
		key, err := popBytes(e, ctx)
		if err != nil {
			return err
		}
		contract, err := popHash160(e, ctx)
		if err != nil {
			return err
		}
		v, err := snap.Get(contract, key)
		if err == chain.ErrNotFound {
			e.Push(ctx, stackitem.Nil)
			return nil
		}
		if err != nil {
			return err
		}
		e.Push(ctx, stackitem.NewByteString(v))
		return nil
	})

	host.Register(SyscallStorageFind, 1<<15, func(e *vm.Engine, ctx *vm.ExecutionContext) error {
		prefix, err := popBytes(e, ctx)
		if err != nil {
			return err
		}
		contract, err := popHash160(e, ctx)
		if err != nil {
			return err
		}
		entries, err := snap.Find(contract, prefix)
		if err != nil {
			return err
		}
		e.Push(ctx, stackitem.NewInteropInterface(newStorageIterator(entries)))
		return nil
	})

	host.Register(SyscallRuntimeCheckWitness, 1<<10, func(e *vm.Engine, ctx *vm.ExecutionContext) error {
		accountBytes, err := popBytes(e, ctx)
		if err != nil {
			return err
		}
		var account transaction.Hash160
		copy(account[:], accountBytes)
		ok := false
		for _, s := range signers {
			if s.Account == account {
				ok = true
				break
			}
		}
		e.Push(ctx, stackitem.NewBoolean(ok))
		return nil
	})

	host.Register(SyscallRuntimeGasLeft, 1<<8, func(e *vm.Engine, ctx *vm.ExecutionContext) error {
		left := e.GasLimit - e.GasConsumed
		if e.GasLimit <= 0 {
			left = -1
		}
		e.Push(ctx, stackitem.NewIntegerFromInt64(left))
		return nil
	})

	if trig == triggerApplication {
		host.Register(SyscallContractCall, 1<<15, func(e *vm.Engine, ctx *vm.ExecutionContext) error {
			contractItem, err := e.Pop(ctx)
			if err != nil {
				return err
			}
			contractBytes, err := contractItem.ToByteArray()
			if err != nil {
				return err
			}
			var hash transaction.Hash160
			copy(hash[:], contractBytes)

			methodItem, err := e.Pop(ctx)
			if err != nil {
				return err
			}
			if _, err := methodItem.ToByteArray(); err != nil {
				return err
			}

			argsItem, err := e.Pop(ctx)
			if err != nil {
				return err
			}

			cs, err := snap.GetContract(hash)
			if err != nil {
				return err
			}
			script, err := vm.NewScript(cs.Script, true)
			if err != nil {
				return err
			}
			callee, err := e.LoadScript(script, -1, nil)
			if err != nil {
				return err
			}
			e.Push(callee, argsItem)
			return nil
		})
	}

	return host
}

func popBytes(e *vm.Engine, ctx *vm.ExecutionContext) ([]byte, error) {
	item, err := e.Pop(ctx)
	if err != nil {
		return nil, err
	}
	return item.ToByteArray()
}

func popHash160(e *vm.Engine, ctx *vm.ExecutionContext) (transaction.Hash160, error) {
	b, err := popBytes(e, ctx)
	if err != nil {
		return transaction.Hash160{}, err
	}
	var h transaction.Hash160
	copy(h[:], b)
	return h, nil
}

// storageIterator walks a snapshot.Find() result set in deterministic
// (sorted-key) order, each step producing a Struct{key ByteString, value
// ByteString} pair — the wire shape `findstorage`/`traverseiterator`
// clients expect.
type storageIterator struct {
	keys    []string
	values  map[string][]byte
	pos     int
}

func newStorageIterator(entries map[string][]byte) *storageIterator {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &storageIterator{keys: keys, values: entries}
}

func (it *storageIterator) Next() (stackitem.Item, bool) {
	if it.pos >= len(it.keys) {
		return nil, false
	}
	k := it.keys[it.pos]
	it.pos++
	return stackitem.NewStruct([]stackitem.Item{
		stackitem.NewByteString([]byte(k)),
		stackitem.NewByteString(it.values[k]),
	}), true
}

// invokeResult is what runInvocation hands back to a method handler before
// JSON encoding.
type invokeResult struct {
	Script      []byte
	State       vm.State
	GasConsumed int64
	Exception   string
	Stack       []stackitem.Item
}

// runInvocation loads script as the entry context of a fresh Engine and
// executes it to completion ("constructs a short-lived
// Execution Engine over the current snapshot for invoke methods").
func runInvocation(snap chain.Snapshot, script []byte, signers []transaction.Signer, trig invokeTrigger) (invokeResult, error) {
	host := newInvokeHost(snap, signers, trig)
	s, err := vm.NewScript(script, true)
	if err != nil {
		return invokeResult{}, err
	}
	eng := vm.NewEngine(host, invokeGasLimit)
	if _, err := eng.LoadScript(s, -1, nil); err != nil {
		return invokeResult{}, err
	}
	state := eng.Execute()
	res := invokeResult{
		Script:      script,
		State:       state,
		GasConsumed: eng.GasConsumed,
	}
	if state == vm.StateFault {
		res.Exception = eng.FaultMessage()
	}
	res.Stack = eng.ResultStack().All()
	return res, nil
}
