package rv64

// RV64I: the base integer instruction set (loads, stores, ALU, control
// transfer, LUI/AUIPC) plus the Zifencei FENCE.I instruction.

func init() {
	addInsn(maskOp(), matchOp(opLui), "lui", execLUI)
	addInsn(maskOp(), matchOp(opAuipc), "auipc", execAUIPC)
	addInsn(maskOp(), matchOp(opJal), "jal", execJAL)
	addInsn(maskOpF3(), matchOpF3(opJalr, 0), "jalr", execJALR)

	addInsn(maskOpF3(), matchOpF3(opBranch, 0), "beq", makeBranch(func(a, b uint64) bool { return a == b }))
	addInsn(maskOpF3(), matchOpF3(opBranch, 1), "bne", makeBranch(func(a, b uint64) bool { return a != b }))
	addInsn(maskOpF3(), matchOpF3(opBranch, 4), "blt", makeBranch(func(a, b uint64) bool { return int64(a) < int64(b) }))
	addInsn(maskOpF3(), matchOpF3(opBranch, 5), "bge", makeBranch(func(a, b uint64) bool { return int64(a) >= int64(b) }))
	addInsn(maskOpF3(), matchOpF3(opBranch, 6), "bltu", makeBranch(func(a, b uint64) bool { return a < b }))
	addInsn(maskOpF3(), matchOpF3(opBranch, 7), "bgeu", makeBranch(func(a, b uint64) bool { return a >= b }))

	addInsn(maskOpF3(), matchOpF3(opLoad, 0), "lb", makeLoad(1, true))
	addInsn(maskOpF3(), matchOpF3(opLoad, 1), "lh", makeLoad(2, true))
	addInsn(maskOpF3(), matchOpF3(opLoad, 2), "lw", makeLoad(4, true))
	addInsn(maskOpF3(), matchOpF3(opLoad, 3), "ld", makeLoad(8, true))
	addInsn(maskOpF3(), matchOpF3(opLoad, 4), "lbu", makeLoad(1, false))
	addInsn(maskOpF3(), matchOpF3(opLoad, 5), "lhu", makeLoad(2, false))
	addInsn(maskOpF3(), matchOpF3(opLoad, 6), "lwu", makeLoad(4, false))

	addInsn(maskOpF3(), matchOpF3(opStore, 0), "sb", makeStore(1))
	addInsn(maskOpF3(), matchOpF3(opStore, 1), "sh", makeStore(2))
	addInsn(maskOpF3(), matchOpF3(opStore, 2), "sw", makeStore(4))
	addInsn(maskOpF3(), matchOpF3(opStore, 3), "sd", makeStore(8))

	addInsn(maskOpF3(), matchOpF3(opOpImm, 0), "addi", makeOpImm(func(a, b uint64) uint64 { return a + b }))
	addInsn(maskOpF3(), matchOpF3(opOpImm, 2), "slti", makeOpImm(func(a, b uint64) uint64 { return boolU64(int64(a) < int64(b)) }))
	addInsn(maskOpF3(), matchOpF3(opOpImm, 3), "sltiu", makeOpImm(func(a, b uint64) uint64 { return boolU64(a < b) }))
	addInsn(maskOpF3(), matchOpF3(opOpImm, 4), "xori", makeOpImm(func(a, b uint64) uint64 { return a ^ b }))
	addInsn(maskOpF3(), matchOpF3(opOpImm, 6), "ori", makeOpImm(func(a, b uint64) uint64 { return a | b }))
	addInsn(maskOpF3(), matchOpF3(opOpImm, 7), "andi", makeOpImm(func(a, b uint64) uint64 { return a & b }))

	addInsn(maskOpF3F6(), matchOpF3F6(opOpImm, 1, 0), "slli", makeShiftImm(func(a uint64, s uint32) uint64 { return a << s }))
	addInsn(maskOpF3F6(), matchOpF3F6(opOpImm, 5, 0), "srli", makeShiftImm(func(a uint64, s uint32) uint64 { return a >> s }))
	addInsn(maskOpF3F6(), matchOpF3F6(opOpImm, 5, 0x10), "srai", makeShiftImm(func(a uint64, s uint32) uint64 { return uint64(int64(a) >> s) }))

	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 0, 0), "add", makeOp(func(a, b uint64) uint64 { return a + b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 0, 0x20), "sub", makeOp(func(a, b uint64) uint64 { return a - b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 1, 0), "sll", makeOp(func(a, b uint64) uint64 { return a << (b & 0x3f) }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 2, 0), "slt", makeOp(func(a, b uint64) uint64 { return boolU64(int64(a) < int64(b)) }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 3, 0), "sltu", makeOp(func(a, b uint64) uint64 { return boolU64(a < b) }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 4, 0), "xor", makeOp(func(a, b uint64) uint64 { return a ^ b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 5, 0), "srl", makeOp(func(a, b uint64) uint64 { return a >> (b & 0x3f) }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 5, 0x20), "sra", makeOp(func(a, b uint64) uint64 { return uint64(int64(a) >> (b & 0x3f)) }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 6, 0), "or", makeOp(func(a, b uint64) uint64 { return a | b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 7, 0), "and", makeOp(func(a, b uint64) uint64 { return a & b }))

	addInsn(maskOpF3(), matchOpF3(opOpImm32, 0), "addiw", makeOpImm32(func(a, b uint32) uint32 { return a + b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOpImm32, 1, 0), "slliw", makeShiftImm32(func(a uint32, s uint32) uint32 { return a << s }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOpImm32, 5, 0), "srliw", makeShiftImm32(func(a uint32, s uint32) uint32 { return a >> s }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOpImm32, 5, 0x20), "sraiw", makeShiftImm32(func(a uint32, s uint32) uint32 { return uint32(int32(a) >> s) }))

	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 0, 0), "addw", makeOp32(func(a, b uint32) uint32 { return a + b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 0, 0x20), "subw", makeOp32(func(a, b uint32) uint32 { return a - b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 1, 0), "sllw", makeOp32(func(a, b uint32) uint32 { return a << (b & 0x1f) }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 5, 0), "srlw", makeOp32(func(a, b uint32) uint32 { return a >> (b & 0x1f) }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 5, 0x20), "sraw", makeOp32(func(a, b uint32) uint32 { return uint32(int32(a) >> (b & 0x1f)) }))

	addInsn(maskOpF3(), matchOpF3(opMiscMem, 0), "fence", func(h *Hart, raw uint32) error { h.PC += 4; return nil })
	addInsn(maskOpF3(), matchOpF3(opMiscMem, 1), "fence.i", func(h *Hart, raw uint32) error {
		h.cache = decodeCacheLine{}
		h.PC += 4
		return nil
	})
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func execLUI(h *Hart, raw uint32) error {
	h.SetReg(rd(raw), immU(raw))
	h.PC += 4
	return nil
}

func execAUIPC(h *Hart, raw uint32) error {
	h.SetReg(rd(raw), h.PC+immU(raw))
	h.PC += 4
	return nil
}

func execJAL(h *Hart, raw uint32) error {
	target := h.PC + immJ(raw)
	if target%4 != 0 {
		return exception(CauseInsnAddrMisaligned, target)
	}
	h.SetReg(rd(raw), h.PC+4)
	h.PC = target
	return nil
}

func execJALR(h *Hart, raw uint32) error {
	target := (h.GetReg(rs1(raw)) + immI(raw)) &^ 1
	if target%4 != 0 {
		return exception(CauseInsnAddrMisaligned, target)
	}
	link := h.PC + 4
	h.SetReg(rd(raw), link)
	h.PC = target
	return nil
}

func makeBranch(cmp func(a, b uint64) bool) handlerFunc {
	return func(h *Hart, raw uint32) error {
		if cmp(h.GetReg(rs1(raw)), h.GetReg(rs2(raw))) {
			target := h.PC + immB(raw)
			if target%4 != 0 {
				return exception(CauseInsnAddrMisaligned, target)
			}
			h.PC = target
			return nil
		}
		h.PC += 4
		return nil
	}
}

func makeLoad(width int, signed bool) handlerFunc {
	return func(h *Hart, raw uint32) error {
		vaddr := h.GetReg(rs1(raw)) + immI(raw)
		v, err := h.MMU.Read(vaddr, width)
		if err != nil {
			return err
		}
		if signed {
			v = signExtend(v, uint(width*8))
		}
		h.SetReg(rd(raw), v)
		h.PC += 4
		return nil
	}
}

func makeStore(width int) handlerFunc {
	return func(h *Hart, raw uint32) error {
		vaddr := h.GetReg(rs1(raw)) + immS(raw)
		if err := h.MMU.Write(vaddr, h.GetReg(rs2(raw)), width); err != nil {
			return err
		}
		h.PC += 4
		return nil
	}
}

func makeOpImm(f func(a, b uint64) uint64) handlerFunc {
	return func(h *Hart, raw uint32) error {
		h.SetReg(rd(raw), f(h.GetReg(rs1(raw)), immI(raw)))
		h.PC += 4
		return nil
	}
}

func makeShiftImm(f func(a uint64, s uint32) uint64) handlerFunc {
	return func(h *Hart, raw uint32) error {
		h.SetReg(rd(raw), f(h.GetReg(rs1(raw)), shamt6(raw)))
		h.PC += 4
		return nil
	}
}

func makeOp(f func(a, b uint64) uint64) handlerFunc {
	return func(h *Hart, raw uint32) error {
		h.SetReg(rd(raw), f(h.GetReg(rs1(raw)), h.GetReg(rs2(raw))))
		h.PC += 4
		return nil
	}
}

func makeOpImm32(f func(a, b uint32) uint32) handlerFunc {
	return func(h *Hart, raw uint32) error {
		v := f(uint32(h.GetReg(rs1(raw))), uint32(immI(raw)))
		h.SetReg(rd(raw), signExtend(uint64(v), 32))
		h.PC += 4
		return nil
	}
}

func makeShiftImm32(f func(a uint32, s uint32) uint32) handlerFunc {
	return func(h *Hart, raw uint32) error {
		v := f(uint32(h.GetReg(rs1(raw))), rs2(raw))
		h.SetReg(rd(raw), signExtend(uint64(v), 32))
		h.PC += 4
		return nil
	}
}

func makeOp32(f func(a, b uint32) uint32) handlerFunc {
	return func(h *Hart, raw uint32) error {
		v := f(uint32(h.GetReg(rs1(raw))), uint32(h.GetReg(rs2(raw))))
		h.SetReg(rd(raw), signExtend(uint64(v), 32))
		h.PC += 4
		return nil
	}
}
