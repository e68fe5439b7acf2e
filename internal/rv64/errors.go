package rv64

import "fmt"

// Trap represents a RISC-V exception or interrupt: the unified failure
// type every handler, the MMU, and the bus return instead of panicking.
// Cause follows the mcause/scause encoding (bit 63 set for interrupts);
// Tval carries the faulting address or, for an illegal instruction, the
// raw instruction bits.
type Trap struct {
	Cause uint64
	Tval  uint64
}

func (t Trap) Error() string {
	return fmt.Sprintf("trap: cause=0x%x tval=0x%x", t.Cause, t.Tval)
}

// IsInterrupt reports whether the trap is an asynchronous interrupt
// rather than a synchronous exception.
func (t Trap) IsInterrupt() bool {
	return t.Cause&causeInterruptBit != 0
}

// exception builds a synchronous-exception trap.
func exception(cause, tval uint64) error {
	return Trap{Cause: cause, Tval: tval}
}

// asTrap extracts a Trap from err, if it is one.
func asTrap(err error) (Trap, bool) {
	t, ok := err.(Trap)
	return t, ok
}
