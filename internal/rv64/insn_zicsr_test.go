package rv64

import "testing"

func encCSR(funct3, rd, rs1 uint32, csr uint16) uint32 {
	return (uint32(csr) << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opSystem
}

func TestCSRRWSwapsValue(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mscratch = 0x1111
	loadProgram(t, bus, h.PC, []uint32{
		encI(opOpImm, 0, 1, 0, 0x222),   // addi x1, x0, 0x222
		encCSR(1, 2, 1, csrMscratch),    // csrrw x2, mscratch, x1
	})
	h.Execute(2)
	if got := h.GetReg(2); got != 0x1111 {
		t.Fatalf("csrrw old value = %#x, want 0x1111", got)
	}
	if h.Mscratch != 0x222 {
		t.Fatalf("mscratch = %#x, want 0x222", h.Mscratch)
	}
}

func TestCSRRSWithX0ReadsWithoutWriting(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mscratch = 0xabcd
	loadProgram(t, bus, h.PC, []uint32{
		encCSR(2, 1, 0, csrMscratch), // csrrs x1, mscratch, x0
	})
	h.Execute(1)
	if got := h.GetReg(1); got != 0xabcd {
		t.Fatalf("csrrs read = %#x, want 0xabcd", got)
	}
	if h.Mscratch != 0xabcd {
		t.Fatalf("mscratch = %#x, want unchanged", h.Mscratch)
	}
}

func TestCSRRCClearsBits(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mscratch = 0xff
	loadProgram(t, bus, h.PC, []uint32{
		encI(opOpImm, 0, 1, 0, 0x0f),    // addi x1, x0, 0x0f
		encCSR(3, 2, 1, csrMscratch),    // csrrc x2, mscratch, x1
	})
	h.Execute(2)
	if got := h.GetReg(2); got != 0xff {
		t.Fatalf("csrrc old value = %#x, want 0xff", got)
	}
	if h.Mscratch != 0xf0 {
		t.Fatalf("mscratch = %#x, want 0xf0", h.Mscratch)
	}
}

func TestCSRRWIUsesZimm(t *testing.T) {
	h, bus := newTestHart(t)
	loadProgram(t, bus, h.PC, []uint32{
		encCSR(5, 0, 21, csrMscratch), // csrrwi x0, mscratch, 21
	})
	h.Execute(1)
	if h.Mscratch != 21 {
		t.Fatalf("mscratch = %d, want the 21 immediate", h.Mscratch)
	}
}

func TestCSRAccessFromUserModeFaults(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mtvec = 0x4000
	base := h.PC
	loadProgram(t, bus, base, []uint32{
		encCSR(2, 1, 0, csrMstatus), // csrrs x1, mstatus, x0 from U-mode
	})
	h.Priv = PrivUser
	h.Execute(1)
	if h.Mcause != CauseIllegalInsn {
		t.Fatalf("mcause = %#x, want IllegalInsn", h.Mcause)
	}
	if h.Mepc != base {
		t.Fatalf("mepc = %#x, want %#x", h.Mepc, base)
	}
}
