package rv64

// Privileged instructions: environment calls/breakpoints, the xRET
// forms, WFI, and SFENCE.VMA.

const (
	systemFullMask = 0xffffffff

	insnECALL  = 0x00000073
	insnEBREAK = 0x00100073
	insnSRET   = 0x10200073
	insnWFI    = 0x10500073
	insnMRET   = 0x30200073
)

func init() {
	addInsn(systemFullMask, insnECALL, "ecall", execECALL)
	addInsn(systemFullMask, insnEBREAK, "ebreak", execEBREAK)
	addInsn(systemFullMask, insnSRET, "sret", func(h *Hart, raw uint32) error { return h.SRET() })
	addInsn(systemFullMask, insnMRET, "mret", func(h *Hart, raw uint32) error { return h.MRET() })
	addInsn(systemFullMask, insnWFI, "wfi", func(h *Hart, raw uint32) error { return h.WFINop() })

	addInsn(0xfe007fff, matchOpF3F7(opSystem, 0, 0x09), "sfence.vma", execSFENCEVMA)
}

func execECALL(h *Hart, raw uint32) error {
	return exception(h.ECallCause(), 0)
}

// execEBREAK halts the hart rather than delivering a Breakpoint trap:
// with no debug module attached, an EBREAK is the guest asking the
// simulator to stop.
func execEBREAK(h *Hart, raw uint32) error {
	h.State = StateStopped
	h.PC += 4
	return nil
}

func execSFENCEVMA(h *Hart, raw uint32) error {
	if h.Priv == PrivSupervisor && h.Mstatus&MstatusTVM != 0 {
		return exception(CauseIllegalInsn, uint64(raw))
	}
	h.MMU.FlushTLB()
	h.PC += 4
	return nil
}
