package rv64

import "testing"

func TestTrapECallFromMachineStaysInMachine(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mtvec = 0x4000
	base := h.PC
	loadProgram(t, bus, base, []uint32{
		insnECALL,
	})
	h.Execute(1)
	if h.Priv != PrivMachine {
		t.Fatalf("priv = %d, want Machine", h.Priv)
	}
	if h.Mcause != CauseEcallFromM {
		t.Fatalf("mcause = %#x, want EcallFromM", h.Mcause)
	}
	if h.Mepc != base {
		t.Fatalf("mepc = %#x, want %#x", h.Mepc, base)
	}
	if h.PC != h.Mtvec {
		t.Fatalf("pc = %#x, want mtvec %#x", h.PC, h.Mtvec)
	}
}

func TestTrapDelegatedECallFromUserGoesToSupervisor(t *testing.T) {
	h, bus := newTestHart(t)
	h.Priv = PrivUser
	h.Stvec = 0x5000
	h.Medeleg = uint64(1) << CauseEcallFromU
	base := h.PC
	loadProgram(t, bus, base, []uint32{insnECALL})

	h.Execute(1)
	if h.Priv != PrivSupervisor {
		t.Fatalf("priv = %d, want Supervisor", h.Priv)
	}
	if h.Scause != CauseEcallFromU {
		t.Fatalf("scause = %#x, want EcallFromU", h.Scause)
	}
	if h.Sepc != base {
		t.Fatalf("sepc = %#x, want %#x", h.Sepc, base)
	}
	if h.PC != h.Stvec {
		t.Fatalf("pc = %#x, want stvec %#x", h.PC, h.Stvec)
	}
	if h.Mstatus&MstatusSPP != 0 {
		t.Fatal("SPP should record the previous privilege (User == 0)")
	}
}

func TestTrapMRETRestoresPrivilegeAndPC(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mepc = 0x9000
	h.Mstatus |= MstatusMPIE
	h.Mstatus = (h.Mstatus &^ MstatusMPP) | (uint64(PrivUser) << mstatusMPPShift)
	loadProgram(t, bus, h.PC, []uint32{insnMRET})

	h.Execute(1)
	if h.Priv != PrivUser {
		t.Fatalf("priv = %d, want User", h.Priv)
	}
	if h.PC != 0x9000 {
		t.Fatalf("pc = %#x, want mepc 0x9000", h.PC)
	}
	if h.Mstatus&MstatusMIE == 0 {
		t.Fatal("MIE should be restored from MPIE")
	}
}

func TestTrapTimerInterruptDelivered(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mtvec = 0x6000
	h.Mie |= MipMTIP
	h.Mstatus |= MstatusMIE
	h.Mip |= MipMTIP
	loadProgram(t, bus, h.PC, []uint32{
		encI(opOpImm, 0, 1, 0, 1), // addi x1, x0, 1 (never reached before the trap)
	})

	h.Step()
	if h.Priv != PrivMachine {
		t.Fatalf("priv = %d, want Machine", h.Priv)
	}
	if h.Mcause != CauseMTimerInt {
		t.Fatalf("mcause = %#x, want MTimerInt", h.Mcause)
	}
	if h.PC != h.Mtvec {
		t.Fatalf("pc = %#x, want mtvec %#x", h.PC, h.Mtvec)
	}
	if h.GetReg(1) != 0 {
		t.Fatal("the pending interrupt should have preempted the instruction at pc")
	}
}

func TestTrapInterruptMaskedWhenMIEClear(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mie |= MipMTIP
	h.Mip |= MipMTIP
	h.Mstatus &^= MstatusMIE
	base := h.PC
	loadProgram(t, bus, base, []uint32{
		encI(opOpImm, 0, 1, 0, 1),
	})

	h.Step()
	if h.Priv != PrivMachine || h.PC == 0 {
		t.Fatal("unexpected trap taken")
	}
	if h.GetReg(1) != 1 {
		t.Fatal("instruction should have executed: interrupt is masked by mstatus.MIE")
	}
}

func TestTrapWFIIsNonBlockingHint(t *testing.T) {
	h, bus := newTestHart(t)
	base := h.PC
	loadProgram(t, bus, base, []uint32{
		insnWFI,
		encI(opOpImm, 0, 1, 0, 1), // addi x1, x0, 1
	})
	h.Execute(2)
	if !h.WFI {
		t.Fatal("WFI flag should be recorded")
	}
	if h.GetReg(1) != 1 {
		t.Fatal("execution should continue past WFI without blocking")
	}
}

func TestTrapIllegalInstructionFaults(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mtvec = 0x7000
	loadProgram(t, bus, h.PC, []uint32{0xffffffff}) // not a valid encoding
	h.Execute(1)
	if h.Mcause != CauseIllegalInsn {
		t.Fatalf("mcause = %#x, want IllegalInsn", h.Mcause)
	}
}

func TestTrapPageFaultViaFetch(t *testing.T) {
	h, _ := newTestHart(t)
	h.Priv = PrivSupervisor
	h.Mtvec = 0x7000
	// Enable Sv39 with an empty (all-zero) root table: every walk sees
	// an invalid root PTE and must fault before any instruction is read.
	h.Satp = uint64(satpModeSv39) << 60

	h.Step()
	if h.Priv != PrivMachine {
		t.Fatalf("priv = %d, want Machine (page faults are not delegated here)", h.Priv)
	}
	if h.Mcause != CauseInsnPageFault {
		t.Fatalf("mcause = %#x, want InsnPageFault", h.Mcause)
	}
	if h.Mtval != h.Mepc {
		t.Fatalf("mtval = %#x, want the faulting pc %#x", h.Mtval, h.Mepc)
	}
}

func TestTrapEBREAKStopsHart(t *testing.T) {
	h, bus := newTestHart(t)
	loadProgram(t, bus, h.PC, []uint32{insnEBREAK})
	h.Execute(5)
	if h.State != StateStopped {
		t.Fatalf("state = %v, want Stopped after ebreak", h.State)
	}
}

func TestTrapDelegatedTimerInterruptGoesToSupervisor(t *testing.T) {
	h, bus := newTestHart(t)
	h.Priv = PrivSupervisor
	h.Stvec = 0x5000
	h.Mideleg |= MipSTIP
	h.Mie |= MipSTIP
	h.Mip |= MipSTIP
	h.Mstatus |= MstatusSIE
	loadProgram(t, bus, h.PC, []uint32{encI(opOpImm, 0, 1, 0, 1)})

	h.Step()
	if h.Priv != PrivSupervisor {
		t.Fatalf("priv = %d, want Supervisor", h.Priv)
	}
	if h.Scause != CauseSTimerInt {
		t.Fatalf("scause = %#x, want STimerInt", h.Scause)
	}
	if h.Mstatus&MstatusSIE != 0 {
		t.Fatal("SIE must be cleared on trap entry")
	}
	if h.PC != h.Stvec {
		t.Fatalf("pc = %#x, want stvec %#x", h.PC, h.Stvec)
	}
}

func TestTrapVectoredModeOffsetsInterrupts(t *testing.T) {
	h, bus := newTestHart(t)
	h.Mtvec = 0x6000 | 1 // vectored
	h.Mie |= MipMTIP
	h.Mip |= MipMTIP
	h.Mstatus |= MstatusMIE
	loadProgram(t, bus, h.PC, []uint32{encI(opOpImm, 0, 1, 0, 1)})

	h.Step()
	if want := uint64(0x6000 + 4*7); h.PC != want { // machine timer = cause 7
		t.Fatalf("pc = %#x, want vectored entry %#x", h.PC, want)
	}
}

func TestTrapMachineInterruptWinsOverSupervisor(t *testing.T) {
	h, bus := newTestHart(t)
	h.Priv = PrivSupervisor
	h.Mtvec = 0x6000
	h.Stvec = 0x5000
	h.Mideleg |= MipSTIP
	h.Mie |= MipSTIP | MipMTIP
	h.Mip |= MipSTIP | MipMTIP
	h.Mstatus |= MstatusSIE
	loadProgram(t, bus, h.PC, []uint32{encI(opOpImm, 0, 1, 0, 1)})

	h.Step()
	if h.Priv != PrivMachine {
		t.Fatalf("priv = %d, want Machine: M-targeted interrupts take precedence", h.Priv)
	}
	if h.Mcause != CauseMTimerInt {
		t.Fatalf("mcause = %#x, want MTimerInt", h.Mcause)
	}
}
