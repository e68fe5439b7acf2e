package rv64

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// PlatformConfig describes the address map and boot parameters of a
// simulated machine, loadable from YAML.
type PlatformConfig struct {
	HartCount uint64 `yaml:"hart_count"`
	BootPC    uint64 `yaml:"boot_pc"`

	DRAMBase uint64 `yaml:"dram_base"`
	DRAMSize uint64 `yaml:"dram_size"`

	CLINTBase uint64 `yaml:"clint_base"`
	PLICBase  uint64 `yaml:"plic_base"`

	// TohostAddr, if non-zero, is the mailbox riscv-tests-style guest
	// images write to report pass/fail. The address is a test-harness
	// convention, not architecture, so it is a field rather than a
	// constant.
	TohostAddr uint64 `yaml:"tohost_addr"`

	// HardwareADUpdate selects the MMU's A/D-bit policy; see
	// MMU.HardwareADUpdate.
	HardwareADUpdate bool `yaml:"hardware_ad_update"`

	// TickRate, if non-zero, paces the CLINT's mtime to this many
	// wall-clock ticks per second: each CLINT tick waits for its share
	// of time before mtime advances.
	TickRate float64 `yaml:"tick_rate"`
}

// DefaultPlatformConfig returns the address map used when no YAML
// configuration is supplied: a single hart, 256MiB of DRAM at 0x8000_0000
// (the conventional RISC-V virt DRAM base), and the CLINT/PLIC mapped
// just below it.
func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		HartCount:        1,
		BootPC:           0x80000000,
		DRAMBase:         0x80000000,
		DRAMSize:         256 << 20,
		CLINTBase:        0x02000000,
		PLICBase:         0x0C000000,
		HardwareADUpdate: true,
	}
}

// LoadPlatformConfig parses a YAML platform description, starting from
// DefaultPlatformConfig so omitted fields keep their defaults.
func LoadPlatformConfig(data []byte) (PlatformConfig, error) {
	cfg := DefaultPlatformConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PlatformConfig{}, fmt.Errorf("rv64: parsing platform config: %w", err)
	}
	if cfg.HartCount == 0 {
		return PlatformConfig{}, fmt.Errorf("rv64: platform config: hart_count must be > 0")
	}
	return cfg, nil
}

// ClusterOption configures the outer Cluster/Machine builder.
type ClusterOption func(*clusterBuildState)

type clusterBuildState struct {
	logger *slog.Logger
}

// WithClusterLogger attaches a trace sink to every hart the builder creates.
func WithClusterLogger(l *slog.Logger) ClusterOption {
	return func(s *clusterBuildState) { s.logger = l }
}

// NewMachine builds a Bus with DRAM/CLINT/PLIC mapped per cfg, and a
// Cluster of cfg.HartCount harts sharing it.
func NewMachine(cfg PlatformConfig, opts ...ClusterOption) (*Cluster, error) {
	state := &clusterBuildState{}
	for _, opt := range opts {
		opt(state)
	}

	bus := NewBus()
	bus.Map(cfg.DRAMBase, cfg.DRAMSize, NewMemory("dram", cfg.DRAMSize))

	harts := make([]*Hart, cfg.HartCount)
	for i := range harts {
		hartOpts := []HartOption{
			WithHartID(uint64(i)),
			WithBootPC(cfg.BootPC),
			WithHardwareADUpdate(cfg.HardwareADUpdate),
		}
		if state.logger != nil {
			hartOpts = append(hartOpts, WithLogger(state.logger))
		}
		harts[i] = NewHart(bus, hartOpts...)
	}

	clint := NewCLINT(harts)
	if cfg.TickRate > 0 {
		clint.SetTickRate(cfg.TickRate)
	}
	bus.Map(cfg.CLINTBase, CLINTSize, clint)

	plicContexts := make([]struct {
		Hart *Hart
		Priv uint8
	}, 0, len(harts)*2)
	for _, h := range harts {
		plicContexts = append(plicContexts,
			struct {
				Hart *Hart
				Priv uint8
			}{h, PrivMachine},
			struct {
				Hart *Hart
				Priv uint8
			}{h, PrivSupervisor},
		)
	}
	plic := NewPLIC(plicContexts)
	bus.Map(cfg.PLICBase, PLICSize, plic)

	return &Cluster{Bus: bus, Harts: harts, CLINT: clint, PLIC: plic, Config: cfg}, nil
}
