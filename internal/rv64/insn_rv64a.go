package rv64

// RV64A: load-reserved/store-conditional and the AMO read-modify-write
// family, backed by the single reservation the bus shares across all
// harts.

const (
	amoLR      = 0x02
	amoSC      = 0x03
	amoSwapOp  = 0x01
	amoAddOp   = 0x00
	amoXorOp   = 0x04
	amoAndOp   = 0x0c
	amoOrOp    = 0x08
	amoMinOp   = 0x10
	amoMaxOp   = 0x14
	amoMinuOp  = 0x18
	amoMaxuOp  = 0x1c
)

func init() {
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoLR), "lr.w", makeLR(4))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoLR), "lr.d", makeLR(8))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoSC), "sc.w", makeSC(4))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoSC), "sc.d", makeSC(8))

	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoSwapOp), "amoswap.w", makeAMO(4, amoSwap))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoSwapOp), "amoswap.d", makeAMO(8, amoSwap))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoAddOp), "amoadd.w", makeAMO(4, amoAdd))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoAddOp), "amoadd.d", makeAMO(8, amoAdd))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoXorOp), "amoxor.w", makeAMO(4, amoXor))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoXorOp), "amoxor.d", makeAMO(8, amoXor))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoAndOp), "amoand.w", makeAMO(4, amoAnd))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoAndOp), "amoand.d", makeAMO(8, amoAnd))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoOrOp), "amoor.w", makeAMO(4, amoOr))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoOrOp), "amoor.d", makeAMO(8, amoOr))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoMinOp), "amomin.w", makeAMO(4, amoMin))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoMinOp), "amomin.d", makeAMO(8, amoMin))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoMaxOp), "amomax.w", makeAMO(4, amoMax))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoMaxOp), "amomax.d", makeAMO(8, amoMax))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoMinuOp), "amominu.w", makeAMO(4, amoMinu))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoMinuOp), "amominu.d", makeAMO(8, amoMinu))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 2, amoMaxuOp), "amomaxu.w", makeAMO(4, amoMaxu))
	addInsn(maskOpF3F5(), matchOpF3F5(opAmo, 3, amoMaxuOp), "amomaxu.d", makeAMO(8, amoMaxu))
}

func makeLR(width int) handlerFunc {
	return func(h *Hart, raw uint32) error {
		vaddr := h.GetReg(rs1(raw))
		if vaddr&(uint64(width)-1) != 0 {
			return exception(CauseLoadAddrMisaligned, vaddr)
		}
		paddr, err := h.MMU.TranslateAMO(vaddr)
		if err != nil {
			return err
		}
		v, err := h.Bus.Read(paddr, width)
		if err != nil {
			return err
		}
		if width == 4 {
			v = signExtend(v, 32)
		}
		h.Bus.Reserve(paddr)
		h.SetReg(rd(raw), v)
		h.PC += 4
		return nil
	}
}

func makeSC(width int) handlerFunc {
	return func(h *Hart, raw uint32) error {
		vaddr := h.GetReg(rs1(raw))
		if vaddr&(uint64(width)-1) != 0 {
			return exception(CauseStoreAddrMisaligned, vaddr)
		}
		paddr, err := h.MMU.TranslateAMO(vaddr)
		if err != nil {
			return err
		}
		if h.Bus.CheckAndClearReservation(paddr) {
			if err := h.Bus.Write(paddr, h.GetReg(rs2(raw)), width); err != nil {
				return err
			}
			h.SetReg(rd(raw), 0)
		} else {
			h.SetReg(rd(raw), 1)
		}
		h.PC += 4
		return nil
	}
}

func makeAMO(width int, f func(old, val uint64, width int) uint64) handlerFunc {
	return func(h *Hart, raw uint32) error {
		vaddr := h.GetReg(rs1(raw))
		if vaddr&(uint64(width)-1) != 0 {
			return exception(CauseStoreAddrMisaligned, vaddr)
		}
		paddr, err := h.MMU.TranslateAMO(vaddr)
		if err != nil {
			return err
		}
		old, err := h.Bus.Read(paddr, width)
		if err != nil {
			// An AMO's read half faults as a store-class access.
			return exception(AccessAMO.accessFaultCause(), paddr)
		}
		if width == 4 {
			old = signExtend(old, 32)
		}
		val := h.GetReg(rs2(raw))
		newVal := f(old, val, width)
		if err := h.Bus.Write(paddr, newVal, width); err != nil {
			return err
		}
		h.SetReg(rd(raw), old)
		h.PC += 4
		return nil
	}
}

func amoSwap(old, val uint64, width int) uint64 { return val }
func amoAdd(old, val uint64, width int) uint64  { return old + val }
func amoXor(old, val uint64, width int) uint64  { return old ^ val }
func amoAnd(old, val uint64, width int) uint64  { return old & val }
func amoOr(old, val uint64, width int) uint64   { return old | val }

func amoMin(old, val uint64, width int) uint64 {
	if width == 4 {
		if int32(old) < int32(val) {
			return old
		}
		return val
	}
	if int64(old) < int64(val) {
		return old
	}
	return val
}

func amoMax(old, val uint64, width int) uint64 {
	if width == 4 {
		if int32(old) > int32(val) {
			return old
		}
		return val
	}
	if int64(old) > int64(val) {
		return old
	}
	return val
}

func amoMinu(old, val uint64, width int) uint64 {
	if width == 4 {
		if uint32(old) < uint32(val) {
			return old
		}
		return val
	}
	if old < val {
		return old
	}
	return val
}

func amoMaxu(old, val uint64, width int) uint64 {
	if width == 4 {
		if uint32(old) > uint32(val) {
			return old
		}
		return val
	}
	if old > val {
		return old
	}
	return val
}
