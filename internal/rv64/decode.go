package rv64

// handlerFunc executes one decoded instruction against h. It is
// responsible for advancing h.PC (by 4, or to a branch/jump target) and
// for returning a Trap on any architectural fault.
type handlerFunc func(h *Hart, raw uint32) error

// insnDesc is one entry of the decoder-as-data table: raw&mask == match
// identifies the instruction; handler implements it.
type insnDesc struct {
	mask     uint32
	match    uint32
	mnemonic string
	handler  handlerFunc
}

// decodeCacheLine is a one-entry decode cache keyed by the exact raw
// instruction word: tight loops re-fetch the same encoding
// repeatedly, so caching the table
// lookup avoids re-scanning insnTable on every fetch. The key must be
// the full raw word, not just opcode+funct3 — funct7/funct5-disjoint
// instructions (e.g. ADD vs MUL, SRLI vs SRAI) share those bits and a
// coarser key would dispatch the wrong handler on a hit.
type decodeCacheLine struct {
	valid bool
	raw   uint32
	desc  *insnDesc
}

// decodeAndExecute looks up raw in the decode cache (falling back to a
// linear scan of insnTable on a miss) and runs its handler.
func decodeAndExecute(h *Hart, raw uint32) error {
	if h.cache.valid && h.cache.raw == raw {
		return h.cache.desc.handler(h, raw)
	}
	for i := range insnTable {
		d := &insnTable[i]
		if raw&d.mask == d.match {
			h.cache = decodeCacheLine{valid: true, raw: raw, desc: d}
			return d.handler(h, raw)
		}
	}
	return exception(CauseIllegalInsn, uint64(raw))
}

// Field extraction, shared by every handler file.

func rd(raw uint32) uint32     { return (raw >> 7) & 0x1f }
func rs1(raw uint32) uint32    { return (raw >> 15) & 0x1f }
func rs2(raw uint32) uint32    { return (raw >> 20) & 0x1f }
func funct3(raw uint32) uint32 { return (raw >> 12) & 0x7 }
func funct7(raw uint32) uint32 { return (raw >> 25) & 0x7f }
func funct5(raw uint32) uint32 { return (raw >> 27) & 0x1f } // AMO/atomic opcode field
func aq(raw uint32) bool       { return raw&(1<<26) != 0 }
func rl(raw uint32) bool       { return raw&(1<<25) != 0 }

func signExtend(val uint64, bits uint) uint64 {
	shift := 64 - bits
	return uint64(int64(val<<shift) >> shift)
}

func immI(raw uint32) uint64 {
	return signExtend(uint64(raw)>>20, 12)
}

func immS(raw uint32) uint64 {
	v := ((raw >> 25) << 5) | ((raw >> 7) & 0x1f)
	return signExtend(uint64(v), 12)
}

func immB(raw uint32) uint64 {
	v := ((raw >> 31 & 1) << 12) | ((raw >> 7 & 1) << 11) |
		((raw >> 25 & 0x3f) << 5) | ((raw >> 8 & 0xf) << 1)
	return signExtend(uint64(v), 13)
}

func immU(raw uint32) uint64 {
	return uint64(raw) &^ 0xfff
}

func immJ(raw uint32) uint64 {
	v := ((raw >> 31 & 1) << 20) | ((raw >> 12 & 0xff) << 12) |
		((raw >> 20 & 1) << 11) | ((raw >> 21 & 0x3ff) << 1)
	return signExtend(uint64(v), 21)
}

func shamt6(raw uint32) uint32 { return (raw >> 20) & 0x3f }

// Opcode field values (bits [6:0]).
const (
	opLoad    = 0x03
	opMiscMem = 0x0f
	opOpImm   = 0x13
	opAuipc   = 0x17
	opOpImm32 = 0x1b
	opStore   = 0x23
	opAmo     = 0x2f
	opOp      = 0x33
	opLui     = 0x37
	opOp32    = 0x3b
	opBranch  = 0x63
	opJalr    = 0x67
	opJal     = 0x6f
	opSystem  = 0x73
)

// Mask/match builders, used by every instruction-family file to keep
// the table declarative instead of hand-computed hex.
func maskOp() uint32     { return 0x7f }
func maskOpF3() uint32   { return 0x707f }
func maskOpF3F7() uint32 { return 0xfe00707f }
func maskOpF3F6() uint32 { return 0xfc00707f } // RV64 shift-immediate: shamt is 6 bits, funct6 above it
func maskOpF3F5() uint32 { return 0xf800707f } // AMO: funct5 instead of funct7

func matchOp(op uint32) uint32             { return op }
func matchOpF3(op, f3 uint32) uint32       { return op | (f3 << 12) }
func matchOpF3F7(op, f3, f7 uint32) uint32 { return op | (f3 << 12) | (f7 << 25) }
func matchOpF3F6(op, f3, f6 uint32) uint32 { return op | (f3 << 12) | (f6 << 26) }
func matchOpF3F5(op, f3, f5 uint32) uint32 { return op | (f3 << 12) | (f5 << 27) }

// insnTable is populated by each instruction-family file's init, kept
// as one flat slice so the decode cache and the linear-scan fallback
// share a single source of truth.
var insnTable []insnDesc

func addInsn(mask, match uint32, mnemonic string, h handlerFunc) {
	insnTable = append(insnTable, insnDesc{mask: mask, match: match, mnemonic: mnemonic, handler: h})
}
