package vm

// opHandler is the signature every jump-table entry implements.
type opHandler func(e *Engine, ctx *ExecutionContext, instr Instruction) error

// jumpTable dispatches every recognised OpCode to its handler. Unassigned
// bytes are absent from opcodeNames and so never reach
// the table lookup in Engine.stepOnce.
var jumpTable = buildJumpTable()

func buildJumpTable() map[OpCode]opHandler {
	t := map[OpCode]opHandler{
		PUSHINT8:   opPushInt,
		PUSHINT16:  opPushInt,
		PUSHINT32:  opPushInt,
		PUSHINT64:  opPushInt,
		PUSHINT128: opPushInt,
		PUSHINT256: opPushInt,
		PUSHT:      opPushT,
		PUSHF:      opPushF,
		PUSHA:      opPushA,
		PUSHNULL:   opPushNull,
		PUSHDATA1:  opPushData,
		PUSHDATA2:  opPushData,
		PUSHDATA4:  opPushData,
		PUSHM1:     opPushM1,

		NOP: opNop,

		JMP:        makeJump(false, condAlways),
		JMP_L:      makeJump(true, condAlways),
		JMPIF:      makeJump(false, condIf(true)),
		JMPIF_L:    makeJump(true, condIf(true)),
		JMPIFNOT:   makeJump(false, condIf(false)),
		JMPIFNOT_L: makeJump(true, condIf(false)),
		JMPEQ:      makeJump(false, condCompareEq(true)),
		JMPEQ_L:    makeJump(true, condCompareEq(true)),
		JMPNE:      makeJump(false, condCompareEq(false)),
		JMPNE_L:    makeJump(true, condCompareEq(false)),
		JMPGT:      makeJump(false, condCompare(func(c int) bool { return c > 0 })),
		JMPGT_L:    makeJump(true, condCompare(func(c int) bool { return c > 0 })),
		JMPGE:      makeJump(false, condCompare(func(c int) bool { return c >= 0 })),
		JMPGE_L:    makeJump(true, condCompare(func(c int) bool { return c >= 0 })),
		JMPLT:      makeJump(false, condCompare(func(c int) bool { return c < 0 })),
		JMPLT_L:    makeJump(true, condCompare(func(c int) bool { return c < 0 })),
		JMPLE:      makeJump(false, condCompare(func(c int) bool { return c <= 0 })),
		JMPLE_L:    makeJump(true, condCompare(func(c int) bool { return c <= 0 })),

		CALL:   opCall(false),
		CALL_L: opCall(true),
		CALLA:  opCallA,
		CALLT:  opCallT,

		ABORT:      opAbort,
		ASSERT:     opAssert,
		ASSERTMSG:  opAssertMsg,
		ABORTMSG:   opAbortMsg,
		THROW:      opThrow,
		TRY:        opTry(false),
		TRY_L:      opTry(true),
		ENDTRY:     opEndTry(false),
		ENDTRY_L:   opEndTry(true),
		ENDFINALLY: opEndFinally,
		RET:        opRet,
		SYSCALL:    opSyscall,

		DEPTH: opDepth,
		DROP:  opDrop,
		NIP:   opNip,
		XDROP: opXDrop,
		CLEAR: opClear,
		DUP:   opDup,
		OVER:  opOver,
		PICK:  opPick,
		TUCK:  opTuck,
		SWAP:  opSwap,
		ROT:   opRot,
		ROLL:  opRoll,

		REVERSE3: opReverseN(3),
		REVERSE4: opReverseN(4),
		REVERSEN: opReverseN_,

		INITSSLOT: opInitSSlot,
		INITSLOT:  opInitSlot,

		LDSFLD:  loadSlotOperand(staticFields),
		STSFLD:  storeSlotOperand(staticFields),
		LDLOC:   loadSlotOperand(localVars),
		STLOC:   storeSlotOperand(localVars),
		LDARG:   loadSlotOperand(arguments),
		STARG:   storeSlotOperand(arguments),

		NEWBUFFER: opNewBuffer,
		MEMCPY:    opMemcpy,
		CAT:       opCat,
		SUBSTR:    opSubstr,
		LEFT:      opLeft,
		RIGHT:     opRight,

		INVERT:      opInvert,
		AND:         opAnd,
		OR:          opOr,
		XOR:         opXor,
		EQUAL:       opEqual,
		NOTEQUAL:    opNotEqual,
		SIGN:        opSign,
		ABS:         opAbs,
		NEGATE:      opNegate,
		INC:         opInc,
		DEC:         opDec,
		ADD:         opAdd,
		SUB:         opSub,
		MUL:         opMul,
		DIV:         opDiv,
		MOD:         opMod,
		POW:         opPow,
		SQRT:        opSqrt,
		MODMUL:      opModMul,
		MODPOW:      opModPow,
		SHL:         opShl,
		SHR:         opShr,
		NOT:         opNot,
		BOOLAND:     opBoolAnd,
		BOOLOR:      opBoolOr,
		NZ:          opNz,
		NUMEQUAL:    opNumEqual,
		NUMNOTEQUAL: opNumNotEqual,
		LT:          opLt,
		LE:          opLe,
		GT:          opGt,
		GE:          opGe,
		MIN:         opMin,
		MAX:         opMax,
		WITHIN:      opWithin,

		PACKMAP:      opPackMap,
		PACKSTRUCT:   opPackStruct,
		PACK:         opPack,
		UNPACK:       opUnpack,
		NEWARRAY0:    opNewArray0,
		NEWARRAY:     opNewArray,
		NEWARRAY_T:   opNewArrayT,
		NEWSTRUCT0:   opNewStruct0,
		NEWSTRUCT:    opNewStruct,
		NEWMAP:       opNewMap,
		SIZE:         opSize,
		HASKEY:       opHasKey,
		KEYS:         opKeys,
		VALUES:       opValues,
		PICKITEM:     opPickItem,
		APPEND:       opAppend,
		SETITEM:      opSetItem,
		REVERSEITEMS: opReverseItems,
		REMOVE:       opRemove,
		CLEARITEMS:   opClearItems,
		POPITEM:      opPopItem,

		ISNULL:  opIsNull,
		ISTYPE:  opIsType,
		CONVERT: opConvert,
	}

	for i := 0; i <= 16; i++ {
		t[pushSmallOpcode(i)] = makePushSmall(int64(i))
	}
	for i := 0; i <= 6; i++ {
		t[ldsfldFixed(i)] = loadSlot(staticFields)(i)
		t[stsfldFixed(i)] = storeSlot(staticFields)(i)
		t[ldlocFixed(i)] = loadSlot(localVars)(i)
		t[stlocFixed(i)] = storeSlot(localVars)(i)
		t[ldargFixed(i)] = loadSlot(arguments)(i)
		t[stargFixed(i)] = storeSlot(arguments)(i)
	}
	return t
}

func pushSmallOpcode(i int) OpCode {
	if i == 0 {
		return PUSH0
	}
	return OpCode(byte(PUSH0) + byte(i))
}

func ldsfldFixed(i int) OpCode { return OpCode(byte(LDSFLD0) + byte(i)) }
func stsfldFixed(i int) OpCode { return OpCode(byte(STSFLD0) + byte(i)) }
func ldlocFixed(i int) OpCode  { return OpCode(byte(LDLOC0) + byte(i)) }
func stlocFixed(i int) OpCode  { return OpCode(byte(STLOC0) + byte(i)) }
func ldargFixed(i int) OpCode  { return OpCode(byte(LDARG0) + byte(i)) }
func stargFixed(i int) OpCode  { return OpCode(byte(STARG0) + byte(i)) }
