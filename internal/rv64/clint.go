package rv64

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// CLINT register offsets, following the conventional SiFive layout.
const (
	clintMsip     = 0x0000
	clintMtimecmp = 0x4000
	clintMtime    = 0xbff8
)

// CLINTSize is the span of the CLINT's memory-mapped register window.
const CLINTSize = 0xC000

// CLINT implements the core-local interruptor: per-hart msip and
// mtimecmp, plus a monotonic mtime shared by all harts. Tick raises
// each hart's mip.MTIP and msip writes set or clear its mip.MSIP
// directly: the CLINT owns those pending bits the way the PLIC owns
// MEIP/SEIP.
type CLINT struct {
	mu sync.Mutex

	harts    []*Hart
	msip     []uint32
	mtimecmp []uint64
	mtime    uint64

	// limiter, when non-nil, paces Tick against wall-clock time: each
	// call waits for its ticks' worth of time before advancing mtime.
	limiter *rate.Limiter
}

// NewCLINT creates a CLINT serving the given harts (index == hart id).
func NewCLINT(harts []*Hart) *CLINT {
	c := &CLINT{
		harts:    harts,
		msip:     make([]uint32, len(harts)),
		mtimecmp: make([]uint64, len(harts)),
	}
	for i := range c.mtimecmp {
		c.mtimecmp[i] = ^uint64(0)
	}
	return c
}

// SetTickRate configures Tick to block until the given number of
// ticks-per-second has elapsed, for deterministic timer-interrupt
// pacing in tests. A zero rate disables pacing (the default).
func (c *CLINT) SetTickRate(ticksPerSecond float64) {
	if ticksPerSecond <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(ticksPerSecond), 1)
}

func (c *CLINT) Name() string { return "clint" }
func (c *CLINT) Size() uint64 { return CLINTSize }

func (c *CLINT) Read(offset uint64, length int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case offset < clintMsip+4*uint64(len(c.msip)) && offset >= clintMsip:
		return uint64(atomic.LoadUint32(&c.msip[(offset-clintMsip)/4])), nil
	case offset >= clintMtimecmp && offset < clintMtimecmp+8*uint64(len(c.mtimecmp)):
		idx := (offset - clintMtimecmp) / 8
		return c.mtimecmp[idx], nil
	case offset >= clintMtime && offset < clintMtime+8:
		return c.mtime, nil
	}
	return 0, nil
}

func (c *CLINT) Write(offset uint64, value uint64, length int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case offset < clintMsip+4*uint64(len(c.msip)) && offset >= clintMsip:
		hart := (offset - clintMsip) / 4
		if value&1 != 0 {
			atomic.StoreUint32(&c.msip[hart], 1)
			c.harts[hart].Mip |= MipMSIP
		} else {
			atomic.StoreUint32(&c.msip[hart], 0)
			c.harts[hart].Mip &^= MipMSIP
		}
	case offset >= clintMtimecmp && offset < clintMtimecmp+8*uint64(len(c.mtimecmp)):
		idx := (offset - clintMtimecmp) / 8
		c.mtimecmp[idx] = value
		if c.mtimecmp[idx] > c.mtime {
			c.harts[idx].Mip &^= MipMTIP
		}
	}
	return nil
}

// Update implements Device; the bus calls this once per Bus.Update
// sweep. The CLINT additionally exposes Tick for a driving loop that
// wants to pace mtime independently of bus device ticks.
func (c *CLINT) Update(ticks uint64) {
	c.Tick(ticks)
}

// Tick advances mtime by ticks (or, with a configured rate, blocks
// until that many ticks' worth of wall-clock time has elapsed) and
// raises MTIP on every hart whose mtimecmp has been reached.
func (c *CLINT) Tick(ticks uint64) {
	if c.limiter != nil {
		for i := uint64(0); i < ticks; i++ {
			_ = c.limiter.Wait(context.Background()) // pacing is best-effort, never cancelled
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mtime += ticks
	for i, cmp := range c.mtimecmp {
		if c.mtime >= cmp {
			c.harts[i].Mip |= MipMTIP
		}
	}
}

// Mtime returns the current shared timer value.
func (c *CLINT) Mtime() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mtime
}

var _ Device = (*CLINT)(nil)
