package rv64

import "testing"

// Minimal instruction encoders, used only by tests to assemble small
// programs without an external toolchain.

func encR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return (uint32(imm) << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>12)&1)<<31 | ((u>>5)&0x3f)<<25 | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) |
		((u>>1)&0xf)<<8 | ((u>>11)&1)<<7 | opcode
}

func encJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>20)&1)<<31 | ((u>>1)&0x3ff)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xff)<<12 | (rd << 7) | opcode
}

func encAmo(funct3, funct5, rd, rs1, rs2 uint32) uint32 {
	return (funct5 << 27) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opAmo
}

func loadProgram(t *testing.T, bus *Bus, pc uint64, insns []uint32) {
	t.Helper()
	for i, ins := range insns {
		if err := bus.Write32(pc+uint64(i*4), ins); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHartAddiAndAdd(t *testing.T) {
	h, bus := newTestHart(t)
	loadProgram(t, bus, h.PC, []uint32{
		encI(opOpImm, 0, 1, 0, 5),    // addi x1, x0, 5
		encI(opOpImm, 0, 2, 0, 7),    // addi x2, x0, 7
		encR(opOp, 0, 0, 3, 1, 2),    // add  x3, x1, x2
	})
	h.Execute(3)
	if got := h.GetReg(3); got != 12 {
		t.Fatalf("x3 = %d, want 12", got)
	}
	if h.State != StateRunning {
		t.Fatalf("state = %v, want Running", h.State)
	}
}

func TestHartJALSkipsAndLinks(t *testing.T) {
	h, bus := newTestHart(t)
	base := h.PC
	loadProgram(t, bus, base, []uint32{
		encJ(opJal, 1, 8),            // jal x1, +8
		encI(opOpImm, 0, 5, 0, 99),   // skipped
		encI(opOpImm, 0, 6, 0, 1),    // addi x6, x0, 1
	})
	h.Execute(2)
	if got := h.GetReg(1); got != base+4 {
		t.Fatalf("x1 (link) = %#x, want %#x", got, base+4)
	}
	if got := h.GetReg(5); got != 0 {
		t.Fatal("jal should have skipped the next instruction")
	}
	if got := h.GetReg(6); got != 1 {
		t.Fatalf("x6 = %d, want 1", got)
	}
}

func TestHartBranchTaken(t *testing.T) {
	h, bus := newTestHart(t)
	base := h.PC
	loadProgram(t, bus, base, []uint32{
		encB(opBranch, 0, 0, 0, 8),   // beq x0, x0, +8
		encI(opOpImm, 0, 5, 0, 99),   // skipped
		encI(opOpImm, 0, 6, 0, 1),    // addi x6, x0, 1
	})
	h.Execute(2)
	if got := h.GetReg(5); got != 0 {
		t.Fatal("branch should have been taken, skipping the next instruction")
	}
	if got := h.GetReg(6); got != 1 {
		t.Fatalf("x6 = %d, want 1", got)
	}
}

func TestHartLoadStoreRoundTrip(t *testing.T) {
	h, bus := newTestHart(t)
	base := h.PC
	const dataAddr = 0x100
	loadProgram(t, bus, base, []uint32{
		encI(opOpImm, 0, 1, 0, dataAddr), // addi x1, x0, dataAddr
		encI(opOpImm, 0, 2, 0, 123),      // addi x2, x0, 123
		encS(opStore, 2, 1, 2, 0),        // sw x2, 0(x1)
		encI(opLoad, 2, 3, 1, 0),         // lw x3, 0(x1)
	})
	h.Execute(4)
	if got := h.GetReg(3); got != 123 {
		t.Fatalf("x3 = %d, want 123", got)
	}
}

func encS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>5)&0x7f)<<25 | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (u&0x1f)<<7 | opcode
}

func TestHartLRSCSuccess(t *testing.T) {
	h, bus := newTestHart(t)
	base := h.PC
	const addr = 0x200
	if err := bus.Write32(addr, 0); err != nil {
		t.Fatal(err)
	}
	loadProgram(t, bus, base, []uint32{
		encI(opOpImm, 0, 1, 0, addr), // addi x1, x0, addr
		encI(opOpImm, 0, 4, 0, 77),   // addi x4, x0, 77
		encAmo(2, amoLR, 2, 1, 0),    // lr.w x2, (x1)
		encAmo(2, amoSC, 3, 1, 4),    // sc.w x3, x4, (x1)
	})
	h.Execute(4)
	if got := h.GetReg(3); got != 0 {
		t.Fatalf("sc.w result = %d, want 0 (success)", got)
	}
	v, err := bus.Read32(addr)
	if err != nil {
		t.Fatal(err)
	}
	if v != 77 {
		t.Fatalf("memory at addr = %d, want 77", v)
	}
}

func TestHartSCFailsWithoutReservation(t *testing.T) {
	h, bus := newTestHart(t)
	base := h.PC
	const addr = 0x200
	loadProgram(t, bus, base, []uint32{
		encI(opOpImm, 0, 1, 0, addr),
		encAmo(2, amoSC, 3, 1, 0), // sc.w without a prior lr.w
	})
	h.Execute(2)
	if got := h.GetReg(3); got != 1 {
		t.Fatalf("sc.w result = %d, want 1 (failure)", got)
	}
}
