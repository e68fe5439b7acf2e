package rv64

import "log/slog"

// RunState describes whether a hart's Execute loop should keep stepping.
type RunState int

const (
	StateRunning RunState = iota
	StateStopped
	StateAborted
)

// Hart is one RISC-V hardware thread: register file, CSRs, and the
// privilege/trap state machine, driven against a shared Bus. Multiple
// Harts may share one Bus/CLINT/PLIC (see Cluster).
type Hart struct {
	gpr gprFile
	PC  uint64

	HartID uint64
	Priv   uint8
	State  RunState

	Bus *Bus
	MMU *MMU

	Cycle   uint64
	Instret uint64
	Misa    uint64

	Mstatus    uint64
	Mip        uint64
	Mie        uint64
	Medeleg    uint64
	Mideleg    uint64
	Mtvec      uint64
	Mcounteren uint64
	Mscratch   uint64
	Mepc       uint64
	Mcause     uint64
	Mtval      uint64

	Stvec      uint64
	Scounteren uint64
	Sscratch   uint64
	Sepc       uint64
	Scause     uint64
	Stval      uint64
	Satp       uint64

	// WFI records that the hart last executed a WFI instruction; it is
	// informational only (WFI is a hint and never blocks Execute).
	WFI bool

	// Logger, if set, receives one trace record per fetch and per trap.
	Logger *slog.Logger

	cache decodeCacheLine
}

// HartOption configures a Hart at construction time.
type HartOption func(*Hart)

func WithHartID(id uint64) HartOption { return func(h *Hart) { h.HartID = id } }
func WithBootPC(pc uint64) HartOption { return func(h *Hart) { h.PC = pc } }
func WithLogger(l *slog.Logger) HartOption { return func(h *Hart) { h.Logger = l } }
func WithHardwareADUpdate(enabled bool) HartOption {
	return func(h *Hart) { h.MMU.HardwareADUpdate = enabled }
}

// NewHart creates a hart attached to bus, reset into Machine mode with
// its boot PC at zero unless overridden by WithBootPC.
func NewHart(bus *Bus, opts ...HartOption) *Hart {
	h := &Hart{
		Bus:   bus,
		Priv:  PrivMachine,
		Misa:  defaultMisa,
		State: StateRunning,
	}
	h.MMU = NewMMU(h)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Reset returns the hart to its post-reset architectural state without
// touching HartID, Misa, or the boot PC set at construction.
func (h *Hart) Reset() {
	h.gpr.reset()
	h.Priv = PrivMachine
	h.State = StateRunning
	h.WFI = false
	h.Mstatus = 0
	h.Mip, h.Mie = 0, 0
	h.Medeleg, h.Mideleg = 0, 0
	h.Mtvec, h.Mcounteren, h.Mscratch = 0, 0, 0
	h.Mepc, h.Mcause, h.Mtval = 0, 0, 0
	h.Stvec, h.Scounteren, h.Sscratch = 0, 0, 0
	h.Sepc, h.Scause, h.Stval, h.Satp = 0, 0, 0, 0
	h.MMU.FlushTLB()
}

func (h *Hart) GetReg(reg uint32) uint64      { return h.gpr.read(reg) }
func (h *Hart) SetReg(reg uint32, val uint64) { h.gpr.write(reg, val) }

// Execute steps the hart up to n times, stopping early if it leaves
// the Running state.
func (h *Hart) Execute(n int) {
	for i := 0; i < n && h.State == StateRunning; i++ {
		h.Step()
	}
}

// Step performs one hart iteration: check for a deliverable interrupt,
// then fetch-decode-execute one instruction, then advance the cycle
// counter.
func (h *Hart) Step() {
	if h.State != StateRunning {
		return
	}
	if h.deliverPendingInterrupt() {
		h.Cycle++
		return
	}

	pc := h.PC
	if err := h.executeOne(pc); err != nil {
		h.enterTrap(err, pc)
	} else {
		h.Instret++
	}
	h.Cycle++
}

func (h *Hart) executeOne(pc uint64) error {
	if pc%4 != 0 {
		return exception(CauseInsnAddrMisaligned, pc)
	}
	paddr, err := h.MMU.TranslateFetch(pc)
	if err != nil {
		return err
	}
	raw, err := h.Bus.fetch(paddr)
	if err != nil {
		return err
	}
	if h.Logger != nil {
		h.Logger.Debug("fetch", "pc", pc, "raw", raw, "priv", h.Priv)
	}
	return decodeAndExecute(h, raw)
}

// interruptOrder lists mip bits in the architectural priority order:
// M-external, M-software, M-timer, S-external, S-software, S-timer.
var interruptOrder = [...]uint64{MipMEIP, MipMSIP, MipMTIP, MipSEIP, MipSSIP, MipSTIP}

func interruptCauseForBit(bit uint64) uint64 {
	switch bit {
	case MipMEIP:
		return CauseMExternalInt
	case MipMSIP:
		return CauseMSoftwareInt
	case MipMTIP:
		return CauseMTimerInt
	case MipSEIP:
		return CauseSExternalInt
	case MipSSIP:
		return CauseSSoftwareInt
	default:
		return CauseSTimerInt
	}
}

func (h *Hart) interruptTarget(bit uint64) uint8 {
	if h.Mideleg&bit != 0 {
		return PrivSupervisor
	}
	return PrivMachine
}

func (h *Hart) interruptEnabledFor(target uint8) bool {
	switch {
	case h.Priv < target:
		return true
	case h.Priv == target:
		if target == PrivMachine {
			return h.Mstatus&MstatusMIE != 0
		}
		return h.Mstatus&MstatusSIE != 0
	default:
		return false
	}
}

// deliverPendingInterrupt checks mip&mie against the priority order and,
// if one is both pending and enabled for the current privilege, takes
// the trap immediately. Returns whether a trap was taken.
func (h *Hart) deliverPendingInterrupt() bool {
	pending := h.Mip & h.Mie
	if pending == 0 {
		return false
	}
	for _, bit := range interruptOrder {
		if pending&bit == 0 {
			continue
		}
		target := h.interruptTarget(bit)
		if !h.interruptEnabledFor(target) {
			continue
		}
		h.WFI = false
		h.enterTrap(Trap{Cause: interruptCauseForBit(bit)}, h.PC)
		return true
	}
	return false
}

// enterTrap performs the M/S trap-entry sequence: save cause/tval/epc,
// compute the new status bits, switch privilege, and jump to the
// vectored or direct trap handler.
func (h *Hart) enterTrap(err error, pc uint64) {
	t, ok := asTrap(err)
	if !ok {
		h.State = StateAborted
		return
	}
	h.Bus.ClearReservation()

	isInterrupt := t.IsInterrupt()
	num := t.Cause &^ causeInterruptBit

	var delegated bool
	if isInterrupt {
		delegated = h.Mideleg&(uint64(1)<<num) != 0
	} else {
		delegated = h.Medeleg&(uint64(1)<<num) != 0
	}

	targetPriv := PrivMachine
	if delegated && h.Priv != PrivMachine {
		targetPriv = PrivSupervisor
	}

	if h.Logger != nil {
		h.Logger.Debug("trap", "cause", t.Cause, "tval", t.Tval, "pc", pc, "target", targetPriv)
	}

	if targetPriv == PrivSupervisor {
		h.Scause = t.Cause
		h.Stval = t.Tval
		h.Sepc = pc
		if h.Priv == PrivSupervisor {
			h.Mstatus |= MstatusSPP
		} else {
			h.Mstatus &^= MstatusSPP
		}
		if h.Mstatus&MstatusSIE != 0 {
			h.Mstatus |= MstatusSPIE
		} else {
			h.Mstatus &^= MstatusSPIE
		}
		h.Mstatus &^= MstatusSIE
		h.Priv = PrivSupervisor
		h.PC = trapVector(h.Stvec, t.Cause, isInterrupt)
		return
	}

	h.Mcause = t.Cause
	h.Mtval = t.Tval
	h.Mepc = pc
	h.Mstatus = (h.Mstatus &^ MstatusMPP) | (uint64(h.Priv) << mstatusMPPShift)
	if h.Mstatus&MstatusMIE != 0 {
		h.Mstatus |= MstatusMPIE
	} else {
		h.Mstatus &^= MstatusMPIE
	}
	h.Mstatus &^= MstatusMIE
	h.Priv = PrivMachine
	h.PC = trapVector(h.Mtvec, t.Cause, isInterrupt)
}

// trapVector applies tvec's two-bit mode field: Direct (0) always jumps
// to base; Vectored (1) adds 4*cause for interrupts only.
func trapVector(tvec, cause uint64, isInterrupt bool) uint64 {
	base := tvec &^ 0x3
	mode := tvec & 0x3
	if mode == 1 && isInterrupt {
		return base + 4*(cause&^causeInterruptBit)
	}
	return base
}

// ECallCause picks the synchronous-exception cause for an ECALL
// executed at the hart's current privilege.
func (h *Hart) ECallCause() uint64 {
	switch h.Priv {
	case PrivUser:
		return CauseEcallFromU
	case PrivSupervisor:
		return CauseEcallFromS
	default:
		return CauseEcallFromM
	}
}

// MRET returns from a machine-mode trap handler.
func (h *Hart) MRET() error {
	if h.Priv != PrivMachine {
		return exception(CauseIllegalInsn, 0)
	}
	mpp := uint8((h.Mstatus & MstatusMPP) >> mstatusMPPShift)
	if h.Mstatus&MstatusMPIE != 0 {
		h.Mstatus |= MstatusMIE
	} else {
		h.Mstatus &^= MstatusMIE
	}
	h.Mstatus |= MstatusMPIE
	h.Mstatus = (h.Mstatus &^ MstatusMPP) | (uint64(PrivUser) << mstatusMPPShift)
	if mpp != PrivMachine {
		h.Mstatus &^= MstatusMPRV
	}
	h.Priv = mpp
	h.PC = h.Mepc
	h.Bus.ClearReservation()
	return nil
}

// SRET returns from a supervisor-mode trap handler.
func (h *Hart) SRET() error {
	if h.Priv == PrivUser {
		return exception(CauseIllegalInsn, 0)
	}
	if h.Priv == PrivSupervisor && h.Mstatus&MstatusTSR != 0 {
		return exception(CauseIllegalInsn, 0)
	}
	spp := uint8((h.Mstatus & MstatusSPP) >> mstatusSPPShift)
	if h.Mstatus&MstatusSPIE != 0 {
		h.Mstatus |= MstatusSIE
	} else {
		h.Mstatus &^= MstatusSIE
	}
	h.Mstatus |= MstatusSPIE
	h.Mstatus &^= MstatusSPP
	if spp != PrivMachine {
		h.Mstatus &^= MstatusMPRV
	}
	h.Priv = spp
	h.PC = h.Sepc
	h.Bus.ClearReservation()
	return nil
}

// WFINop implements WFI as a hint: it never stalls Execute, it only
// records that the hart asked to wait.
func (h *Hart) WFINop() error {
	h.WFI = true
	h.PC += 4
	return nil
}
