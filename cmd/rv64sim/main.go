// Command rv64sim boots a raw guest image on the simulated harts of a
// platform configuration (a single hart by default) and reports its riscv-tests-style pass/fail status. It is a thin
// demonstration harness, not a general-purpose loader or CLI — ELF
// parsing, device trees, and peripheral wiring belong to a caller of
// package rv64.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/rv64sim/rv64sim/internal/rv64"
)

func main() {
	var (
		imagePath   = flag.String("image", "", "path to a raw guest binary to load at the boot PC")
		configPath  = flag.String("config", "", "optional YAML platform configuration")
		maxTicks    = flag.Int("max-ticks", 1_000_000, "stop after this many ticks if tohost never completes")
		perTick     = flag.Int("per-tick", 1000, "instructions executed per hart per tick")
		verbose     = flag.Bool("v", false, "enable instruction-level trace logging")
	)
	flag.Parse()

	if *imagePath == "" {
		slog.Error("missing -image")
		os.Exit(2)
	}

	cfg := rv64.DefaultPlatformConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			slog.Error("reading config", "error", err)
			os.Exit(1)
		}
		cfg, err = rv64.LoadPlatformConfig(data)
		if err != nil {
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
	}

	var opts []rv64.ClusterOption
	if *verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, rv64.WithClusterLogger(logger))
	}

	machine, err := rv64.NewMachine(cfg, opts...)
	if err != nil {
		slog.Error("building machine", "error", err)
		os.Exit(1)
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		slog.Error("reading image", "error", err)
		os.Exit(1)
	}
	if err := machine.Bus.LoadBytes(cfg.BootPC, image); err != nil {
		slog.Error("loading image", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	for tick := 0; tick < *maxTicks; tick++ {
		if err := machine.Tick(ctx, *perTick); err != nil {
			slog.Error("tick failed", "error", err)
			os.Exit(1)
		}
		if done, passed, err := machine.TohostStatus(); err == nil && done {
			if passed {
				slog.Info("guest reported pass")
				return
			}
			slog.Error("guest reported fail")
			os.Exit(1)
		}
		if !machineRunning(machine) {
			slog.Info("all harts halted")
			return
		}
	}
	slog.Warn("reached max-ticks without completion")
}

func machineRunning(m *rv64.Cluster) bool {
	for _, h := range m.Harts {
		if h.State == rv64.StateRunning {
			return true
		}
	}
	return false
}
