// Package vm implements the deterministic stack-based execution engine
//: a fixed 256-entry opcode table dispatched through a jump
// table, reference-counted compound stack items, try/catch/finally
// exception handling modeled as an explicit pending-throw field rather than
// host-language exceptions, and a debugger contract for external step
// control.
package vm

import (
	"errors"
	"fmt"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

// State is the engine's run state.
type State int

const (
	StateNone State = iota
	StateHalt
	StateFault
	StateBreak
)

func (s State) String() string {
	switch s {
	case StateHalt:
		return "HALT"
	case StateFault:
		return "FAULT"
	case StateBreak:
		return "BREAK"
	default:
		return "NONE"
	}
}

// SyscallHandler executes one interop call. The handler is responsible for
// popping its own arguments from ctx.EvalStack and pushing its own result;
// the engine only resolves the token and charges gas.
type SyscallHandler func(e *Engine, ctx *ExecutionContext) error

// Host supplies everything the engine needs from outside its own
// deterministic core: syscall dispatch and per-opcode gas pricing. A nil
// Host is legal for pure stack-manipulation tests; SYSCALL then always
// faults with errNoSyscall.
type Host interface {
	Syscall(token uint32) (SyscallHandler, bool)
	OpcodePrice(op OpCode) int64
	SyscallPrice(token uint32) int64
}

// Engine runs one script to completion (or Fault/Break). It holds no
// knowledge of transactions, blocks, or the network — those live in
// pkg/verifier and pkg/rpc, which construct an Engine per invocation.
type Engine struct {
	invocation []*ExecutionContext
	result     *EvaluationStack
	refCounter *stackitem.ReferenceCounter

	state State

	// pendingThrow is the "dedicated pending_throw field" the VM design
	// notes call for, in place of host-language exceptions.
	pendingThrow stackitem.Item
	// UncaughtException is set once propagation walks off the entry
	// context without being caught; it is what the Fault state carries.
	UncaughtException stackitem.Item
	faultMessage      string

	host Host

	GasLimit    int64
	GasConsumed int64

	breakpoints map[breakpointKey]struct{}
	// resuming suppresses the pre-step breakpoint check for exactly one
	// step after Execute stopped at that breakpoint, so a second Execute
	// call moves past it instead of breaking in place forever. Breakpoints
	// never consume an instruction.
	resuming bool
}

type breakpointKey struct {
	script *Script
	offset int
}

// NewEngine constructs an Engine ready to load an entry script. gasLimit <=
// 0 means unlimited (used by the debugger and by unit tests of pure stack
// semantics that don't care about metering).
func NewEngine(host Host, gasLimit int64) *Engine {
	return &Engine{
		result:      &EvaluationStack{},
		refCounter:  stackitem.NewReferenceCounter(),
		host:        host,
		GasLimit:    gasLimit,
		breakpoints: make(map[breakpointKey]struct{}),
	}
}

func (e *Engine) State() State             { return e.state }
func (e *Engine) ResultStack() *EvaluationStack { return e.result }
func (e *Engine) FaultMessage() string     { return e.faultMessage }
func (e *Engine) CurrentContext() *ExecutionContext {
	if len(e.invocation) == 0 {
		return nil
	}
	return e.invocation[len(e.invocation)-1]
}
func (e *Engine) InvocationDepth() int { return len(e.invocation) }

// LoadScript pushes a fresh context for script as the new top of the
// invocation stack. rvcount == -1 means "the caller wants everything" (the
// convention RET uses for a bare entry-context return).
func (e *Engine) LoadScript(script *Script, rvcount int, callTable map[uint16]CallTableEntry) (*ExecutionContext, error) {
	if len(e.invocation) >= MaxInvocationStackSize {
		return nil, errInvocationOverflow
	}
	ctx := NewExecutionContext(script, rvcount, callTable)
	e.invocation = append(e.invocation, ctx)
	return ctx, nil
}

// Execute runs until Halt, Fault, or Break (a debugger's "execute"
// command). Calling Execute again after Break resumes past
// the breakpoint.
func (e *Engine) Execute() State {
	for e.state != StateHalt && e.state != StateFault {
		if e.atBreakpoint() && !e.resuming {
			e.resuming = true
			e.state = StateBreak
			return StateBreak
		}
		e.resuming = false
		e.state = e.stepOnce()
	}
	return e.state
}

// StepInto executes exactly one opcode.
func (e *Engine) StepInto() State {
	e.resuming = false
	e.state = e.stepOnce()
	return e.state
}

// StepOver executes until the invocation-stack depth returns to at most its
// pre-call value, or the engine halts/faults.
func (e *Engine) StepOver() State {
	e.resuming = false
	depth := len(e.invocation)
	for {
		e.state = e.stepOnce()
		if e.state == StateHalt || e.state == StateFault {
			return e.state
		}
		if len(e.invocation) <= depth {
			return e.state
		}
	}
}

// StepOut executes until the invocation-stack depth decreases by at least
// one relative to the call, or the engine halts/faults.
func (e *Engine) StepOut() State {
	e.resuming = false
	depth := len(e.invocation)
	for {
		e.state = e.stepOnce()
		if e.state == StateHalt || e.state == StateFault {
			return e.state
		}
		if len(e.invocation) < depth {
			return e.state
		}
	}
}

func (e *Engine) atBreakpoint() bool {
	ctx := e.CurrentContext()
	if ctx == nil {
		return false
	}
	_, ok := e.breakpoints[breakpointKey{ctx.Script, ctx.IP}]
	return ok
}

// AddBreakpoint installs a breakpoint at offset in script.
func (e *Engine) AddBreakpoint(script *Script, offset int) {
	e.breakpoints[breakpointKey{script, offset}] = struct{}{}
}

// RemoveBreakpoint removes a previously installed breakpoint.
func (e *Engine) RemoveBreakpoint(script *Script, offset int) {
	delete(e.breakpoints, breakpointKey{script, offset})
}

// stepOnce dispatches exactly one opcode and runs the post-step
// reference-counter/stack-size discipline. It never
// returns StateNone unless more opcodes remain to run.
func (e *Engine) stepOnce() State {
	ctx := e.CurrentContext()
	if ctx == nil {
		return StateHalt
	}

	instr, err := ctx.Script.InstructionAt(ctx.IP)
	if err != nil {
		return e.fault(err)
	}

	handler, ok := jumpTable[instr.Opcode]
	if !ok {
		return e.fault(fmt.Errorf("%w: %s", errInvalidOpcode, instr.Opcode))
	}

	if e.host != nil {
		e.GasConsumed += e.host.OpcodePrice(instr.Opcode)
		if e.GasLimit > 0 && e.GasConsumed > e.GasLimit {
			return e.fault(errGasLimitExceeded)
		}
	}

	ctx.IP = instr.NextOffset
	if err := handler(e, ctx, instr); err != nil {
		return e.fault(err)
	}

	if e.state == StateFault || e.state == StateHalt {
		return e.state
	}

	e.refCounter.CheckGarbage()
	if e.refCounter.Count() > MaxStackSize {
		return e.fault(errStackOverflow)
	}
	return StateNone
}

func (e *Engine) fault(err error) State {
	e.faultMessage = err.Error()
	if e.pendingThrow != nil {
		e.UncaughtException = e.pendingThrow
		e.pendingThrow = nil
	}
	e.state = StateFault
	return StateFault
}

var errGasLimitExceeded = errors.New("vm: gas limit exceeded")
var errUncatchableFault = errors.New("vm: uncatchable fault")

// Throw begins exception propagation with payload as the thrown value
//: walk the current context's try stack innermost-first —
// a record still in Try with a catch handler receives the value; a record
// whose finally has not run yet runs it first (ENDFINALLY resumes the
// propagation); an exhausted record is dropped. When the try stack is
// exhausted the context unloads and the walk continues in the caller. A
// throw that walks off the entry context faults the engine with the value
// recorded as UncaughtException.
//
// A new THROW while a finally is running simply replaces pendingThrow
// before re-entering this walk.
func (e *Engine) Throw(payload stackitem.Item) State {
	e.pendingThrow = payload
	return e.resumeThrow()
}

func (e *Engine) resumeThrow() State {
	for {
		ctx := e.CurrentContext()
		if ctx == nil {
			e.UncaughtException = e.pendingThrow
			e.pendingThrow = nil
			e.state = StateFault
			e.faultMessage = errUncaughtException.Error()
			return StateFault
		}
		for len(ctx.TryStack) > 0 {
			rec := ctx.TryStack[len(ctx.TryStack)-1]
			if rec.State == TryStateTry && rec.HasCatch {
				e.Push(ctx, e.pendingThrow)
				rec.State = TryStateCatch
				e.pendingThrow = nil
				ctx.IP = rec.CatchOffset
				e.state = StateNone
				return StateNone
			}
			if rec.HasFinally && rec.State != TryStateFinally {
				rec.State = TryStateFinally
				ctx.IP = rec.FinallyOffset
				e.state = StateNone
				return StateNone
			}
			ctx.TryStack = ctx.TryStack[:len(ctx.TryStack)-1]
		}
		e.unloadContext(ctx)
		e.invocation = e.invocation[:len(e.invocation)-1]
	}
}

// unloadContext releases every stack reference the context still holds:
// leftover evaluation-stack items, locals, arguments, and — only if this
// context allocated them — static fields (they are shared with callees, so
// a callee unload must not release the caller's).
func (e *Engine) unloadContext(ctx *ExecutionContext) {
	for _, it := range ctx.EvalStack.items {
		e.refCounter.Remove(it)
	}
	ctx.EvalStack.Clear()
	e.releaseSlot(ctx.LocalVars)
	e.releaseSlot(ctx.Arguments)
	if ctx.ownsStatics {
		e.releaseSlot(ctx.StaticFields)
	}
}

func (e *Engine) releaseSlot(v *slotVector) {
	if v == nil {
		return
	}
	for _, it := range v.items {
		e.refCounter.Remove(it)
	}
	v.items = nil
}

// ReturnFromContext implements RET: pop the current context, transferring
// its top RVCount items (or everything, if RVCount < 0) to the new top
// context's evaluation stack, or to the result stack if this was the
// entry context.
func (e *Engine) ReturnFromContext() State {
	ctx := e.invocation[len(e.invocation)-1]
	var transferCount int
	if ctx.RVCount < 0 {
		transferCount = ctx.EvalStack.Len()
	} else {
		transferCount = ctx.RVCount
		if transferCount > ctx.EvalStack.Len() {
			return e.fault(errOutOfRangeIndex)
		}
	}
	items := make([]stackitem.Item, transferCount)
	for i := 0; i < transferCount; i++ {
		// Pop from top so the relative order is preserved once pushed in
		// reverse onto the destination.
		it, err := ctx.EvalStack.Pop()
		if err != nil {
			return e.fault(err)
		}
		items[transferCount-1-i] = it
		e.refCounter.Remove(it)
	}

	e.unloadContext(ctx)
	e.invocation = e.invocation[:len(e.invocation)-1]

	var dest *EvaluationStack
	if len(e.invocation) == 0 {
		dest = e.result
	} else {
		dest = e.invocation[len(e.invocation)-1].EvalStack
	}
	for _, it := range items {
		dest.Push(it)
		e.refCounter.Add(it)
	}

	if len(e.invocation) == 0 {
		e.state = StateHalt
		return StateHalt
	}
	e.state = StateNone
	return StateNone
}

// Push tracks item in the reference counter as it lands in ctx's
// evaluation stack — every opcode handler that pushes a result must route
// through this instead of ctx.EvalStack.Push directly.
func (e *Engine) Push(ctx *ExecutionContext, item stackitem.Item) {
	ctx.EvalStack.Push(item)
	e.refCounter.Add(item)
}

// Pop removes and untracks the top item of ctx's evaluation stack.
func (e *Engine) Pop(ctx *ExecutionContext) (stackitem.Item, error) {
	item, err := ctx.EvalStack.Pop()
	if err != nil {
		return nil, err
	}
	e.refCounter.Remove(item)
	return item, nil
}

// RefCounter exposes the engine's reference counter, mainly for tests that
// want to assert on Count() directly.
func (e *Engine) RefCounter() *stackitem.ReferenceCounter { return e.refCounter }
