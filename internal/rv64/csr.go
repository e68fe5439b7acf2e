package rv64

// csrDescriptor describes one CSR address: the privilege required to
// access it, the write mask (bits software may modify), and read/write
// side-effect hooks. Several addresses are views over another
// register's backing store — sstatus over mstatus, sip/sie over
// mip/mie — implemented by pointing their read/write hooks at the
// same Hart fields with a narrower mask.
type csrDescriptor struct {
	minPriv  uint8
	readOnly bool
	mask     uint64
	read     func(h *Hart) uint64
	write    func(h *Hart, raw uint64)
}

func direct(mask uint64, get func(h *Hart) *uint64) csrDescriptor {
	return csrDescriptor{
		mask: mask,
		read: func(h *Hart) uint64 { return *get(h) },
		write: func(h *Hart, raw uint64) {
			p := get(h)
			*p = (*p &^ mask) | (raw & mask)
		},
	}
}

func readOnlyCSR(read func(h *Hart) uint64) csrDescriptor {
	return csrDescriptor{readOnly: true, read: read}
}

// sstatusMask selects the subset of mstatus bits visible through sstatus.
const sstatusMask = MstatusSIE | MstatusSPIE | MstatusSPP | MstatusFS |
	MstatusSUM | MstatusMXR | MstatusSD

// mstatusWritable selects the bits mstatus itself accepts via csrWrite.
const mstatusWritable = MstatusSIE | MstatusMIE | MstatusSPIE | MstatusMPIE |
	MstatusSPP | MstatusMPP | MstatusFS | MstatusMPRV | MstatusSUM |
	MstatusMXR | MstatusTVM | MstatusTW | MstatusTSR

// sDelegatableMip selects the mip/mie bits visible through sip/sie:
// only the interrupts a hart can delegate to Supervisor mode.
const sDelegatableMip = MipSSIP | MipSTIP | MipSEIP

var csrTable = map[uint16]csrDescriptor{
	csrCycle:   readOnlyCSR(func(h *Hart) uint64 { return h.Cycle }),
	csrTime:    readOnlyCSR(func(h *Hart) uint64 { return h.Cycle }),
	csrInstret: readOnlyCSR(func(h *Hart) uint64 { return h.Instret }),
	csrMisa:    readOnlyCSR(func(h *Hart) uint64 { return h.Misa }),
	csrMhartid: readOnlyCSR(func(h *Hart) uint64 { return h.HartID }),

	csrSstatus: {
		mask: sstatusMask,
		read: func(h *Hart) uint64 { return h.Mstatus & sstatusMask },
		write: func(h *Hart, raw uint64) {
			h.Mstatus = (h.Mstatus &^ sstatusMask) | (raw & sstatusMask)
		},
	},
	csrSie: {
		mask: sDelegatableMip,
		read: func(h *Hart) uint64 { return h.Mie & h.Mideleg },
		write: func(h *Hart, raw uint64) {
			deleg := h.Mideleg & sDelegatableMip
			h.Mie = (h.Mie &^ deleg) | (raw & deleg)
		},
	},
	csrSip: {
		// Only SSIP is software-writable from sip; STIP is set through
		// mip and SEIP is owned by the PLIC.
		mask: MipSSIP,
		read: func(h *Hart) uint64 { return h.Mip & h.Mideleg },
		write: func(h *Hart, raw uint64) {
			h.Mip = (h.Mip &^ MipSSIP) | (raw & MipSSIP)
		},
	},
	csrStvec:      direct(^uint64(0), func(h *Hart) *uint64 { return &h.Stvec }),
	csrScounteren: direct(^uint64(0), func(h *Hart) *uint64 { return &h.Scounteren }),
	csrSscratch:   direct(^uint64(0), func(h *Hart) *uint64 { return &h.Sscratch }),
	csrSepc:       direct(^uint64(1), func(h *Hart) *uint64 { return &h.Sepc }),
	csrScause:     direct(^uint64(0), func(h *Hart) *uint64 { return &h.Scause }),
	csrStval:      direct(^uint64(0), func(h *Hart) *uint64 { return &h.Stval }),
	csrSatp: {
		mask: ^uint64(0),
		read: func(h *Hart) uint64 { return h.Satp },
		write: func(h *Hart, raw uint64) {
			mode := (raw >> 60) & 0xf
			if mode != satpModeBare && mode != satpModeSv39 {
				// WARL: unsupported mode is a no-op, old mode stands.
				return
			}
			h.Satp = raw
			h.MMU.FlushTLB()
		},
	},

	csrMstatus: {
		mask: mstatusWritable,
		read: func(h *Hart) uint64 { return h.Mstatus },
		write: func(h *Hart, raw uint64) {
			h.Mstatus = (h.Mstatus &^ mstatusWritable) | (raw & mstatusWritable)
			if h.Mstatus&MstatusFS == MstatusFS {
				h.Mstatus |= MstatusSD
			} else {
				h.Mstatus &^= MstatusSD
			}
		},
	},
	csrMedeleg:    direct(0xb3ff, func(h *Hart) *uint64 { return &h.Medeleg }),
	csrMideleg:    direct(sDelegatableMip, func(h *Hart) *uint64 { return &h.Mideleg }),
	csrMie:        direct(MipSSIP|MipMSIP|MipSTIP|MipMTIP|MipSEIP|MipMEIP, func(h *Hart) *uint64 { return &h.Mie }),
	csrMtvec:      direct(^uint64(0), func(h *Hart) *uint64 { return &h.Mtvec }),
	csrMcounteren: direct(^uint64(0), func(h *Hart) *uint64 { return &h.Mcounteren }),
	csrMscratch:   direct(^uint64(0), func(h *Hart) *uint64 { return &h.Mscratch }),
	csrMepc:       direct(^uint64(1), func(h *Hart) *uint64 { return &h.Mepc }),
	csrMcause:     direct(^uint64(0), func(h *Hart) *uint64 { return &h.Mcause }),
	csrMtval:      direct(^uint64(0), func(h *Hart) *uint64 { return &h.Mtval }),
	csrMip:        direct(MipSSIP|MipSTIP|MipSEIP, func(h *Hart) *uint64 { return &h.Mip }),
}

// csrRead implements the read half of the CSR access policy: reject on
// insufficient privilege, otherwise materialize the value.
func (h *Hart) csrRead(csr uint16) (uint64, error) {
	if uint16(h.Priv) < (csr>>8)&3 {
		return 0, exception(CauseIllegalInsn, uint64(csr))
	}
	d, ok := csrTable[csr]
	if !ok {
		// Unimplemented CSRs read as zero rather than faulting, so guest
		// software probing optional features degrades gracefully.
		return 0, nil
	}
	return d.read(h), nil
}

// csrWrite implements the write half: privilege and read-only checks,
// then new = (old &^ mask) | (val & mask) followed by the side effect.
func (h *Hart) csrWrite(csr uint16, val uint64) error {
	if uint16(h.Priv) < (csr>>8)&3 {
		return exception(CauseIllegalInsn, uint64(csr))
	}
	if (csr >> 10) == 3 {
		return exception(CauseIllegalInsn, uint64(csr))
	}
	d, ok := csrTable[csr]
	if !ok || d.readOnly || d.write == nil {
		if !ok {
			return nil // unimplemented CSR: writes are silently dropped
		}
		return exception(CauseIllegalInsn, uint64(csr))
	}
	d.write(h, val)
	return nil
}
