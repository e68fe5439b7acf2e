package rv64

import "sync"

// PLIC register offsets, following the conventional SiFive layout.
const (
	plicPriorityBase  = 0x000000
	plicPendingBase   = 0x001000
	plicEnableBase    = 0x002000
	plicContextStride = 0x1000
	plicThresholdBase = 0x200000
)

// PLICMaxSources is the number of interrupt source IDs supported;
// source 0 is reserved ("no interrupt") per the PLIC spec.
const PLICMaxSources = 1024

// PLICSize is the span of the PLIC's memory-mapped register window.
const PLICSize = 0x4000000

// plicContext identifies a (hart, privilege) pair that can claim
// interrupts.
type plicContext struct {
	hart *Hart
	priv uint8 // PrivMachine or PrivSupervisor
}

// PLIC implements the platform-level interrupt controller: per-source
// priority and pending state, per-context enable bits and threshold,
// and claim/complete. Each context's MEIP/SEIP bit is recomputed on
// every state change and written into the owning hart's mip.
type PLIC struct {
	mu sync.Mutex

	contexts []plicContext

	priority  [PLICMaxSources]uint32
	pending   [PLICMaxSources/32 + 1]uint32
	enable    [][PLICMaxSources/32 + 1]uint32
	threshold []uint32
	claimed   []uint32
}

// NewPLIC creates a PLIC with one context per (hart, privilege) pair
// supplied. The canonical wiring is one machine-mode and one
// supervisor-mode context per hart.
func NewPLIC(contexts []struct {
	Hart *Hart
	Priv uint8
}) *PLIC {
	p := &PLIC{
		enable:    make([][PLICMaxSources/32 + 1]uint32, len(contexts)),
		threshold: make([]uint32, len(contexts)),
		claimed:   make([]uint32, len(contexts)),
	}
	for _, c := range contexts {
		p.contexts = append(p.contexts, plicContext{hart: c.Hart, priv: c.Priv})
	}
	return p
}

func (p *PLIC) Name() string { return "plic" }
func (p *PLIC) Size() uint64 { return PLICSize }

func (p *PLIC) Read(offset uint64, length int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case offset < plicPendingBase:
		source := offset / 4
		if source < PLICMaxSources {
			return uint64(p.priority[source]), nil
		}
	case offset >= plicPendingBase && offset < plicEnableBase:
		word := (offset - plicPendingBase) / 4
		if int(word) < len(p.pending) {
			return uint64(p.pending[word]), nil
		}
	case offset >= plicEnableBase && offset < plicThresholdBase:
		ctx, word, ok := p.enableLocation(offset)
		if ok {
			return uint64(p.enable[ctx][word]), nil
		}
	case offset >= plicThresholdBase:
		ctx := int((offset - plicThresholdBase) / plicContextStride)
		reg := (offset - plicThresholdBase) % plicContextStride
		if ctx < len(p.contexts) {
			switch reg {
			case 0:
				return uint64(p.threshold[ctx]), nil
			case 4:
				return uint64(p.claimLocked(ctx)), nil
			}
		}
	}
	return 0, nil
}

func (p *PLIC) Write(offset uint64, value uint64, length int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case offset < plicPendingBase:
		source := offset / 4
		if source > 0 && source < PLICMaxSources {
			p.priority[source] = uint32(value) & 7
		}
	case offset >= plicEnableBase && offset < plicThresholdBase:
		ctx, word, ok := p.enableLocation(offset)
		if ok {
			p.enable[ctx][word] = uint32(value)
		}
	case offset >= plicThresholdBase:
		ctx := int((offset - plicThresholdBase) / plicContextStride)
		reg := (offset - plicThresholdBase) % plicContextStride
		if ctx < len(p.contexts) {
			switch reg {
			case 0:
				p.threshold[ctx] = uint32(value) & 7
			case 4:
				p.completeLocked(ctx, uint32(value))
			}
		}
	}
	p.updatePendingLocked()
	return nil
}

func (p *PLIC) enableLocation(offset uint64) (ctx, word int, ok bool) {
	rel := offset - plicEnableBase
	const enableStride = 0x80 // 32 words of enable bits per context
	ctx = int(rel / enableStride)
	word = int((rel % enableStride) / 4)
	if ctx >= len(p.contexts) || word >= len(p.enable[0]) {
		return 0, 0, false
	}
	return ctx, word, true
}

func (p *PLIC) Update(uint64) {}

// SetPending raises or clears a source's pending bit (the device-side
// entry point an external peripheral would call).
func (p *PLIC) SetPending(source uint32, pending bool) {
	if source == 0 || source >= PLICMaxSources {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	word, bit := source/32, source%32
	if pending {
		p.pending[word] |= 1 << bit
	} else {
		p.pending[word] &^= 1 << bit
	}
	p.updatePendingLocked()
}

// claimLocked returns and clears the highest-priority pending+enabled
// source above the context's threshold.
func (p *PLIC) claimLocked(ctx int) uint32 {
	best, bestPriority := uint32(0), uint32(0)
	for source := uint32(1); source < PLICMaxSources; source++ {
		word, bit := source/32, source%32
		if p.pending[word]&(1<<bit) == 0 || p.enable[ctx][word]&(1<<bit) == 0 {
			continue
		}
		if pr := p.priority[source]; pr > p.threshold[ctx] && pr > bestPriority {
			bestPriority, best = pr, source
		}
	}
	if best != 0 {
		word, bit := best/32, best%32
		p.pending[word] &^= 1 << bit
		p.claimed[ctx] = best
	}
	p.updatePendingLocked()
	return best
}

func (p *PLIC) completeLocked(ctx int, source uint32) {
	if source == 0 || source >= PLICMaxSources || p.claimed[ctx] != source {
		return
	}
	p.claimed[ctx] = 0
	p.updatePendingLocked()
}

// updatePendingLocked recomputes each context's external-interrupt bit
// and writes it into the owning hart's mip: the PLIC owns MEIP/SEIP
// the way the CLINT owns MTIP/MSIP.
func (p *PLIC) updatePendingLocked() {
	for i, ctx := range p.contexts {
		pending := p.hasPendingAbove(i)
		bit := MipMEIP
		if ctx.priv == PrivSupervisor {
			bit = MipSEIP
		}
		if pending {
			ctx.hart.Mip |= bit
		} else {
			ctx.hart.Mip &^= bit
		}
	}
}

func (p *PLIC) hasPendingAbove(ctx int) bool {
	for source := uint32(1); source < PLICMaxSources; source++ {
		word, bit := source/32, source%32
		if p.pending[word]&(1<<bit) == 0 || p.enable[ctx][word]&(1<<bit) == 0 {
			continue
		}
		if p.priority[source] > p.threshold[ctx] {
			return true
		}
	}
	return false
}

var _ Device = (*PLIC)(nil)
