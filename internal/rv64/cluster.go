package rv64

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Cluster is a set of harts sharing one Bus, CLINT, and PLIC. Each
// hart steps independently within a tick; errgroup.Group fans the work
// out across goroutines and joins on the first error.
type Cluster struct {
	Bus    *Bus
	Harts  []*Hart
	CLINT  *CLINT
	PLIC   *PLIC
	Config PlatformConfig

	tohostDone bool
	tohostCode uint64
}

// Tick steps every hart by instructionsPerHart instructions and then
// advances the shared devices by one tick: harts run, then device
// state catches up.
func (c *Cluster) Tick(ctx context.Context, instructionsPerHart int) error {
	g, _ := errgroup.WithContext(ctx)
	for _, h := range c.Harts {
		h := h
		g.Go(func() error {
			h.Execute(instructionsPerHart)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.Bus.Update(1)
	return c.pollTohost()
}

// Run calls Tick repeatedly until ctx is cancelled or every hart has
// left the Running state.
func (c *Cluster) Run(ctx context.Context, instructionsPerTick int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !c.anyRunning() {
			return nil
		}
		if err := c.Tick(ctx, instructionsPerTick); err != nil {
			return err
		}
	}
}

func (c *Cluster) anyRunning() bool {
	for _, h := range c.Harts {
		if h.State == StateRunning {
			return true
		}
	}
	return false
}

// pollTohost reads the riscv-tests-style tohost mailbox configured in
// PlatformConfig.TohostAddr and clears it after reading. A nonzero
// value with the low bit set is an exit syscall carrying (code << 1) | 1:
// code 0 stops every hart, anything else aborts them. Values with the
// low bit clear are character-device descriptors, which this core has
// no peripheral for; they are consumed and dropped.
func (c *Cluster) pollTohost() error {
	if c.Config.TohostAddr == 0 || c.tohostDone {
		return nil
	}
	v, err := c.Bus.Read64(c.Config.TohostAddr)
	if err != nil {
		return err
	}
	if v == 0 {
		return nil
	}
	if err := c.Bus.Write64(c.Config.TohostAddr, 0); err != nil {
		return err
	}
	if v&1 == 0 {
		return nil
	}
	c.tohostDone = true
	c.tohostCode = v >> 1
	state := StateStopped
	if c.tohostCode != 0 {
		state = StateAborted
	}
	for _, h := range c.Harts {
		h.State = state
	}
	return nil
}

// TohostStatus reports whether the guest has signalled completion via
// the tohost mailbox, and whether it reported a pass (exit code 0).
func (c *Cluster) TohostStatus() (done bool, passed bool, err error) {
	if err := c.pollTohost(); err != nil {
		return false, false, err
	}
	return c.tohostDone, c.tohostDone && c.tohostCode == 0, nil
}

// ExitCode returns the code the guest reported through tohost; zero
// when the guest passed or has not yet completed.
func (c *Cluster) ExitCode() uint64 { return c.tohostCode }
