package rv64

// satp.MODE values this MMU accepts; anything else is a WARL no-op.
const (
	satpModeBare = 0
	satpModeSv39 = 8
)

// Page-table entry flags.
const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteG = 1 << 5
	pteA = 1 << 6
	pteD = 1 << 7
)

const (
	pageShift   = 12
	pageSize    = 1 << pageShift
	vpnBits     = 9
	vpnMask     = (1 << vpnBits) - 1
	sv39Levels  = 3
	ppnBits     = 44
	ppnMask     = (1 << ppnBits) - 1
	satpPPNMask = (1 << ppnBits) - 1
)

// AccessType distinguishes the kinds of MMU access; it selects both
// the permission bits required and the fault cause on failure.
type AccessType int

const (
	AccessLoad AccessType = iota
	AccessStore
	AccessFetch
	AccessAMO
)

func (a AccessType) pageFaultCause() uint64 {
	switch a {
	case AccessFetch:
		return CauseInsnPageFault
	case AccessStore, AccessAMO:
		return CauseStorePageFault
	default:
		return CauseLoadPageFault
	}
}

func (a AccessType) accessFaultCause() uint64 {
	switch a {
	case AccessFetch:
		return CauseInsnAccessFault
	case AccessStore, AccessAMO:
		return CauseStoreAccessFault
	default:
		return CauseLoadAccessFault
	}
}

// tlbEntry caches one completed translation, keyed by (vpn, privilege).
type tlbEntry struct {
	valid    bool
	vpn      uint64
	ppn      uint64
	flags    uint64
	pageSize uint64
	priv     uint8
}

const tlbSize = 256 // power of two, indexed by vpn & (tlbSize-1)

// MMU translates virtual to physical addresses: identity in Bare mode
// or for Machine-mode accesses, a 3-level Sv39 walk otherwise.
// HardwareADUpdate selects whether the A/D bits are patched into the
// PTE on first touch (the default) or cause a page fault; both are
// architecturally permitted.
type MMU struct {
	hart             *Hart
	tlb              [tlbSize]tlbEntry
	HardwareADUpdate bool
}

// NewMMU creates an MMU bound to hart.
func NewMMU(hart *Hart) *MMU {
	return &MMU{hart: hart, HardwareADUpdate: true}
}

// FlushTLB invalidates every cached translation — called on satp
// writes and SFENCE.VMA.
func (m *MMU) FlushTLB() {
	for i := range m.tlb {
		m.tlb[i].valid = false
	}
}

// effectivePrivilege applies the MPRV override for loads and stores;
// fetches always use the current privilege.
func (m *MMU) effectivePrivilege(access AccessType) uint8 {
	h := m.hart
	if access != AccessFetch && h.Priv == PrivMachine && h.Mstatus&MstatusMPRV != 0 {
		return uint8((h.Mstatus >> mstatusMPPShift) & 3)
	}
	return h.Priv
}

// Translate resolves vaddr to a physical address for the given access
// type, applying the Sv39 walk, permission checks, and A/D bookkeeping.
func (m *MMU) Translate(vaddr uint64, access AccessType) (uint64, error) {
	mode := (m.hart.Satp >> 60) & 0xf
	priv := m.effectivePrivilege(access)

	if mode == satpModeBare || priv == PrivMachine {
		return vaddr, nil
	}

	vpn := vaddr >> pageShift
	idx := vpn & (tlbSize - 1)
	if e := &m.tlb[idx]; e.valid && e.vpn == vpn && e.priv == priv {
		if err := m.checkPermissions(e.flags, access, priv, vaddr); err != nil {
			return 0, err
		}
		if _, satisfied := m.needsADUpdate(e.flags, access); satisfied {
			return (e.ppn << pageShift) | (vaddr & (e.pageSize - 1)), nil
		}
		// The cached flags predate the A/D state this access needs;
		// drop the entry and re-walk so the update (or fault, under the
		// software-managed policy) happens against the real PTE.
		e.valid = false
	}

	paddr, flags, sz, err := m.walk(vaddr, access, priv)
	if err != nil {
		return 0, err
	}

	m.tlb[idx] = tlbEntry{valid: true, vpn: vpn, ppn: paddr >> pageShift, flags: flags, pageSize: sz, priv: priv}
	return paddr, nil
}

// needsADUpdate reports (required, satisfied): whether A (and D, for
// writes) must be set, and whether the current flags already satisfy
// that. A false "satisfied" means the caller must re-walk (or fault,
// under the no-hardware-update policy).
func (m *MMU) needsADUpdate(flags uint64, access AccessType) (required, satisfied bool) {
	needsD := access == AccessStore || access == AccessAMO
	if flags&pteA == 0 || (needsD && flags&pteD == 0) {
		return true, false
	}
	return false, true
}

func (m *MMU) walk(vaddr uint64, access AccessType, priv uint8) (paddr, flags, pageSizeOut uint64, err error) {
	// Sv39 requires the high bits to be a sign-extension of bit 38.
	if vaddr >= (1<<38) && vaddr < ^uint64(0)-(1<<38)+1 {
		return 0, 0, 0, m.pageFault(access, vaddr)
	}

	tableAddr := (m.hart.Satp & satpPPNMask) << pageShift
	var pte uint64
	sz := uint64(pageSize)

	for level := sv39Levels - 1; level >= 0; level-- {
		shift := uint(pageShift + level*vpnBits)
		vpn := (vaddr >> shift) & vpnMask
		pteAddr := tableAddr + vpn*8

		pte, err = m.hart.Bus.Read64(pteAddr)
		if err != nil {
			return 0, 0, 0, m.pageFault(access, vaddr)
		}
		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			return 0, 0, 0, m.pageFault(access, vaddr)
		}

		if pte&(pteR|pteX) != 0 {
			// Leaf PTE.
			if level > 0 {
				mask := uint64((1 << (uint(level) * vpnBits)) - 1)
				if (pte>>10)&mask != 0 {
					return 0, 0, 0, m.pageFault(access, vaddr) // misaligned superpage
				}
				sz = 1 << shift
			}

			if err := m.checkPermissions(pte, access, priv, vaddr); err != nil {
				return 0, 0, 0, err
			}

			if required, satisfied := m.needsADUpdate(pte, access); required && !satisfied {
				if !m.HardwareADUpdate {
					return 0, 0, 0, m.pageFault(access, vaddr)
				}
				pte |= pteA
				if access == AccessStore || access == AccessAMO {
					pte |= pteD
				}
				if err := m.hart.Bus.Write64(pteAddr, pte); err != nil {
					return 0, 0, 0, m.pageFault(access, vaddr)
				}
			}

			ppn := (pte >> 10) & ppnMask
			if level > 0 {
				mask := uint64((1 << (uint(level) * vpnBits)) - 1)
				ppn = (ppn &^ mask) | ((vaddr >> pageShift) & mask)
			}
			return (ppn << pageShift) | (vaddr & (sz - 1)), pte, sz, nil
		}

		// Non-leaf: descend.
		tableAddr = ((pte >> 10) & ppnMask) << pageShift
	}

	return 0, 0, 0, m.pageFault(access, vaddr)
}

func (m *MMU) checkPermissions(pte uint64, access AccessType, priv uint8, vaddr uint64) error {
	h := m.hart
	if priv == PrivUser {
		if pte&pteU == 0 {
			return m.pageFault(access, vaddr)
		}
	} else if pte&pteU != 0 {
		// Supervisor touching a user page: never legal for fetch; for
		// data accesses only with mstatus.SUM set.
		if access == AccessFetch || h.Mstatus&MstatusSUM == 0 {
			return m.pageFault(access, vaddr)
		}
	}

	switch access {
	case AccessFetch:
		if pte&pteX == 0 {
			return m.pageFault(access, vaddr)
		}
	case AccessLoad:
		if pte&pteR == 0 && !(h.Mstatus&MstatusMXR != 0 && pte&pteX != 0) {
			return m.pageFault(access, vaddr)
		}
	case AccessStore, AccessAMO:
		if pte&pteW == 0 {
			return m.pageFault(access, vaddr)
		}
	}
	return nil
}

func (m *MMU) pageFault(access AccessType, vaddr uint64) error {
	return exception(access.pageFaultCause(), vaddr)
}

func (m *MMU) TranslateFetch(vaddr uint64) (uint64, error) { return m.Translate(vaddr, AccessFetch) }
func (m *MMU) TranslateAMO(vaddr uint64) (uint64, error)   { return m.Translate(vaddr, AccessAMO) }

// Read performs a length-byte load at vaddr: alignment check,
// translation, then the bus access. Accesses crossing a natural
// boundary are not emulated and fault.
func (m *MMU) Read(vaddr uint64, length int) (uint64, error) {
	if vaddr&(uint64(length)-1) != 0 {
		return 0, exception(CauseLoadAddrMisaligned, vaddr)
	}
	paddr, err := m.Translate(vaddr, AccessLoad)
	if err != nil {
		return 0, err
	}
	return m.hart.Bus.Read(paddr, length)
}

// Write is the store-side counterpart of Read.
func (m *MMU) Write(vaddr, value uint64, length int) error {
	if vaddr&(uint64(length)-1) != 0 {
		return exception(CauseStoreAddrMisaligned, vaddr)
	}
	paddr, err := m.Translate(vaddr, AccessStore)
	if err != nil {
		return err
	}
	return m.hart.Bus.Write(paddr, value, length)
}
