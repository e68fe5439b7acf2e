// Package rv64 implements the core of a RISC-V RV64IMA software
// simulator: a hart execution loop, CSR file, instruction decoder, a
// Sv39-capable MMU, an address-routed device bus with an LR/SC
// reservation set, and the CLINT/PLIC interrupt controllers wired to
// the hart's pending-interrupt CSR bits.
//
// Floating point, compressed, and vector extensions are not decoded.
// Loading guest binaries, UART/RTC peripherals, and the outer run loop
// belong to a caller of this package, not to it.
package rv64
