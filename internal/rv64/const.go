package rv64

// Privilege levels, ordered per the RISC-V privileged spec.
const (
	PrivUser       uint8 = 0
	PrivSupervisor uint8 = 1
	PrivMachine    uint8 = 3
)

// mstatus bits.
const (
	MstatusSIE  uint64 = 1 << 1
	MstatusMIE  uint64 = 1 << 3
	MstatusSPIE uint64 = 1 << 5
	MstatusMPIE uint64 = 1 << 7
	MstatusSPP  uint64 = 1 << 8
	MstatusMPP  uint64 = 3 << 11
	MstatusFS   uint64 = 3 << 13
	MstatusMPRV uint64 = 1 << 17
	MstatusSUM  uint64 = 1 << 18
	MstatusMXR  uint64 = 1 << 19
	MstatusTVM  uint64 = 1 << 20
	MstatusTW   uint64 = 1 << 21
	MstatusTSR  uint64 = 1 << 22
	MstatusSD   uint64 = 1 << 63
)

const (
	mstatusSPPShift = 8
	mstatusMPPShift = 11
)

// mip/mie bits.
const (
	MipSSIP uint64 = 1 << 1
	MipMSIP uint64 = 1 << 3
	MipSTIP uint64 = 1 << 5
	MipMTIP uint64 = 1 << 7
	MipSEIP uint64 = 1 << 9
	MipMEIP uint64 = 1 << 11
)

// Exception causes, mcause encoding per the privileged spec.
const (
	CauseInsnAddrMisaligned  uint64 = 0
	CauseInsnAccessFault     uint64 = 1
	CauseIllegalInsn         uint64 = 2
	CauseBreakpoint          uint64 = 3
	CauseLoadAddrMisaligned  uint64 = 4
	CauseLoadAccessFault     uint64 = 5
	CauseStoreAddrMisaligned uint64 = 6
	CauseStoreAccessFault    uint64 = 7
	CauseEcallFromU          uint64 = 8
	CauseEcallFromS          uint64 = 9
	CauseEcallFromM          uint64 = 11
	CauseInsnPageFault       uint64 = 12
	CauseLoadPageFault       uint64 = 13
	CauseStorePageFault      uint64 = 15
)

// causeInterruptBit marks the MSB that distinguishes interrupts from
// synchronous exceptions in mcause/scause.
const causeInterruptBit = uint64(1) << 63

// Interrupt causes, with the interrupt bit already set.
const (
	CauseSSoftwareInt uint64 = causeInterruptBit | 1
	CauseMSoftwareInt uint64 = causeInterruptBit | 3
	CauseSTimerInt    uint64 = causeInterruptBit | 5
	CauseMTimerInt    uint64 = causeInterruptBit | 7
	CauseSExternalInt uint64 = causeInterruptBit | 9
	CauseMExternalInt uint64 = causeInterruptBit | 11
)

// CSR addresses used by this subset.
const (
	csrCycle      uint16 = 0xC00
	csrTime       uint16 = 0xC01
	csrInstret    uint16 = 0xC02
	csrSstatus    uint16 = 0x100
	csrSie        uint16 = 0x104
	csrStvec      uint16 = 0x105
	csrScounteren uint16 = 0x106
	csrSscratch   uint16 = 0x140
	csrSepc       uint16 = 0x141
	csrScause     uint16 = 0x142
	csrStval      uint16 = 0x143
	csrSip        uint16 = 0x144
	csrSatp       uint16 = 0x180
	csrMstatus    uint16 = 0x300
	csrMisa       uint16 = 0x301
	csrMedeleg    uint16 = 0x302
	csrMideleg    uint16 = 0x303
	csrMie        uint16 = 0x304
	csrMtvec      uint16 = 0x305
	csrMcounteren uint16 = 0x306
	csrMscratch   uint16 = 0x340
	csrMepc       uint16 = 0x341
	csrMcause     uint16 = 0x342
	csrMtval      uint16 = 0x343
	csrMip        uint16 = 0x344
	csrMhartid    uint16 = 0xF14
)

// misa bits: RV64 with the I, M, A, S, U extensions (no F/D/C).
const (
	misaA   uint64 = 1 << 0
	misaI   uint64 = 1 << 8
	misaM   uint64 = 1 << 12
	misaS   uint64 = 1 << 18
	misaU   uint64 = 1 << 20
	mxl64   uint64 = 2
	mxlBits = 62
)

const defaultMisa = (mxl64 << mxlBits) | misaI | misaM | misaA | misaS | misaU
