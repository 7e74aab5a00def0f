package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
)

// fastScriptCacheThreshold is the script length above which Script backs its
// instruction-decode cache with fastcache instead of a plain Go map. Below
// it, a map's allocation pattern never fragments the heap enough to matter.
const fastScriptCacheThreshold = 16 * 1024

const fastCacheSizeBytes = 4 * 1024 * 1024

// Instruction is a single decoded opcode plus its operand slice, a view into
// the owning Script's byte slice (never copied).
type Instruction struct {
	Opcode     OpCode
	Operand    []byte
	Offset     int
	NextOffset int
}

// Script is an immutable bytecode sequence, decoded one instruction at a
// time. Validation mode governs how much NewScript checks up front: strict
// mode (used for all scripts the engine loads from persisted
// transactions/contracts) decodes every instruction, rejecting unknown
// opcodes, truncated or oversized operands, and out-of-script JMP/CALL/TRY
// targets; relaxed mode checks nothing until execution. PUSHA and ENDTRY
// targets are checked only at execution time in both modes.
type Script struct {
	bytes []byte
	// smallCache backs scripts below fastScriptCacheThreshold: offset ->
	// cached operand length (decode is otherwise just a slice op).
	smallCache map[int]int
	bigCache   *fastcache.Cache
}

// NewScript wraps raw as an executable Script and, in strict mode,
// validates it up front as described on Script.
func NewScript(raw []byte, strict bool) (*Script, error) {
	s := &Script{bytes: raw}
	if len(raw) > fastScriptCacheThreshold {
		s.bigCache = fastcache.New(fastCacheSizeBytes)
	} else {
		s.smallCache = make(map[int]int)
	}
	if strict {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Script) Len() int { return len(s.bytes) }

func (s *Script) Bytes() []byte { return s.bytes }

// validate walks every reachable-by-decoding instruction once, rejecting
// PUSHDATA operands that overrun the script and any TRY target outside its
// bounds (jump/call targets are checked lazily at execution time in
// relaxed mode but eagerly here since strict mode demands it up front).
func (s *Script) validate() error {
	pos := 0
	for pos < len(s.bytes) {
		instr, err := s.decodeAt(pos)
		if err != nil {
			return err
		}
		switch instr.Opcode {
		case TRY:
			if len(instr.Operand) != 2 {
				return fmt.Errorf("%w: TRY operand", errTruncatedOperand)
			}
			catchOff := int(int8(instr.Operand[0]))
			finallyOff := int(int8(instr.Operand[1]))
			if !s.inBounds(pos+catchOff) || !s.inBounds(pos+finallyOff) {
				return fmt.Errorf("%w: TRY target", errOutOfScriptJump)
			}
		case TRY_L:
			if len(instr.Operand) != 8 {
				return fmt.Errorf("%w: TRY_L operand", errTruncatedOperand)
			}
			catchOff := int(int32(binary.LittleEndian.Uint32(instr.Operand[0:4])))
			finallyOff := int(int32(binary.LittleEndian.Uint32(instr.Operand[4:8])))
			if !s.inBounds(pos+catchOff) || !s.inBounds(pos+finallyOff) {
				return fmt.Errorf("%w: TRY_L target", errOutOfScriptJump)
			}
		case JMP, JMPIF, JMPIFNOT, JMPEQ, JMPNE, JMPGT, JMPGE, JMPLT, JMPLE, CALL:
			off := int(int8(instr.Operand[0]))
			if !s.inBounds(pos + off) {
				return fmt.Errorf("%w: %s target", errOutOfScriptJump, instr.Opcode)
			}
		case JMP_L, JMPIF_L, JMPIFNOT_L, JMPEQ_L, JMPNE_L, JMPGT_L, JMPGE_L, JMPLT_L, JMPLE_L, CALL_L:
			off := int(int32(binary.LittleEndian.Uint32(instr.Operand)))
			if !s.inBounds(pos + off) {
				return fmt.Errorf("%w: %s target", errOutOfScriptJump, instr.Opcode)
			}
		}
		pos = instr.NextOffset
	}
	return nil
}

func (s *Script) inBounds(pos int) bool { return pos >= 0 && pos < len(s.bytes) }

// InstructionAt decodes (using the cache) the instruction at pos.
func (s *Script) InstructionAt(pos int) (Instruction, error) {
	return s.decodeAt(pos)
}

func (s *Script) decodeAt(pos int) (Instruction, error) {
	if pos < 0 || pos >= len(s.bytes) {
		return Instruction{}, fmt.Errorf("%w: offset %d", errOutOfScriptJump, pos)
	}
	op := OpCode(s.bytes[pos])
	if _, ok := opcodeNames[op]; !ok {
		return Instruction{}, fmt.Errorf("%w: 0x%02x at %d", errInvalidOpcode, byte(op), pos)
	}

	if opLen, ok := s.cacheGet(pos); ok {
		return s.buildInstruction(pos, op, opLen)
	}

	opLen, err := OperandSize(op, s.bytes, pos)
	if err != nil {
		return Instruction{}, err
	}
	if pos+1+opLen > len(s.bytes) {
		return Instruction{}, fmt.Errorf("%w: opcode %s at %d", errTruncatedOperand, op, pos)
	}
	var pushDataPrefixLen int
	switch op {
	case PUSHDATA1:
		pushDataPrefixLen = 1
	case PUSHDATA2:
		pushDataPrefixLen = 2
	case PUSHDATA4:
		pushDataPrefixLen = 4
	}
	if pushDataPrefixLen > 0 && opLen-pushDataPrefixLen > MaxItemSizeForPush {
		return Instruction{}, fmt.Errorf("%w: PUSHDATA operand", errItemTooBig)
	}
	s.cacheSet(pos, opLen)
	return s.buildInstruction(pos, op, opLen)
}

func (s *Script) buildInstruction(pos int, op OpCode, opLen int) (Instruction, error) {
	return Instruction{
		Opcode:     op,
		Operand:    s.bytes[pos+1 : pos+1+opLen],
		Offset:     pos,
		NextOffset: pos + 1 + opLen,
	}, nil
}

func (s *Script) cacheGet(pos int) (int, bool) {
	if s.smallCache != nil {
		n, ok := s.smallCache[pos]
		return n, ok
	}
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], uint64(pos))
	v := s.bigCache.Get(nil, key[:])
	if v == nil {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(v)), true
}

func (s *Script) cacheSet(pos, opLen int) {
	if s.smallCache != nil {
		s.smallCache[pos] = opLen
		return
	}
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], uint64(pos))
	var val [4]byte
	binary.LittleEndian.PutUint32(val[:], uint32(opLen))
	s.bigCache.Set(key[:], val[:])
}

// MaxItemSizeForPush mirrors stackitem.MaxItemSize without importing the
// stackitem package from the operand-size table, which must stay free of
// any dependency heavier than encoding/binary.
const MaxItemSizeForPush = 131070
