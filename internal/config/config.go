// Package config assembles a runnable Chip from topology and memory
// parameters, the Go-idiomatic analogue of zeonica/config.DeviceBuilder's
// mesh-width/height/memory-mode assembly (SPEC_FULL.md §2.1
// "Configuration").
package config

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/shiresim/internal/chip"
	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/mmu"
	"github.com/sarchlab/shiresim/internal/plic"
)

const (
	ioRegionFirst, ioRegionSize     = 0x00_0000_0000, 0x00_4000_0000
	spRegionFirst, spRegionSize     = 0x00_4000_0000, 0x00_4000_0000
	scratchFirst, scratchSize       = 0x00_8000_0000, 0x00_8000_0000
	esrFirst, esrSize               = 0x01_0000_0000, 0x01_0000_0000
	pcieFirst, pcieSize             = 0x40_0000_0000, 0x40_0000_0000
	dramFirst                       = 0x80_0000_0000

	plicFirst, plicSize = ioRegionFirst, 0x0020_0000
	bootROMFirst, bootROMSize = 0x0040_0000, 0x0004_0000
	sramFirst, sramSize       = spRegionFirst, 0x0010_0000
	spMiscFirst, spMiscSize   = spRegionFirst + 0x0010_0000, 0x0001_0000
	sysregFirst, sysregSize   = ioRegionFirst + 0x0020_0000, 0x0001_0000
)

// allowedDRAMGiB is the validated DRAM size set (spec §6 "-dram-size
// {8,16,24,32}"), mirroring zeonica/config.DeviceBuilder.WithMemoryMode's
// validate-or-panic style.
var allowedDRAMGiB = map[int]bool{8: true, 16: true, 24: true, 32: true}

// ChipBuilder assembles a Chip's fixed topology (shire/neighborhood/
// minion counts, DRAM size, which shire is the I/O shire) through a
// fluent value-receiver chain, mirroring zeonica/config.DeviceBuilder's
// WithWidth/WithHeight/WithMemoryMode (SPEC_FULL.md §2.1).
type ChipBuilder struct {
	engine  sim.Engine
	freq    sim.Freq
	log     *slog.Logger
	monitor Monitor

	numShires  int
	dramGiB    int
	ioShire    int
	memShires  []int
	bootImage  []byte
}

// Monitor is the subset of akita/v4/monitoring.Monitor the builder
// needs, kept narrow so this package doesn't import monitoring just to
// accept it (SPEC_FULL.md §2.1 "Monitoring/telemetry").
type Monitor interface {
	RegisterComponent(comp sim.Component)
}

func (b ChipBuilder) WithEngine(engine sim.Engine) ChipBuilder { b.engine = engine; return b }
func (b ChipBuilder) WithFreq(freq sim.Freq) ChipBuilder       { b.freq = freq; return b }
func (b ChipBuilder) WithLogger(log *slog.Logger) ChipBuilder  { b.log = log; return b }
func (b ChipBuilder) WithMonitor(m Monitor) ChipBuilder        { b.monitor = m; return b }
func (b ChipBuilder) WithBootImage(image []byte) ChipBuilder   { b.bootImage = image; return b }

// WithShires sets the shire count, which shire is the I/O shire, and
// which shires are memory shires (spec §1 "a fixed topology of shires
// ... one shire is an I/O shire ... a small number of memory shires").
func (b ChipBuilder) WithShires(numShires, ioShire int, memShires []int) ChipBuilder {
	if ioShire < 0 || ioShire >= numShires {
		panic(fmt.Sprintf("config: io shire %d out of range [0,%d)", ioShire, numShires))
	}
	b.numShires, b.ioShire, b.memShires = numShires, ioShire, memShires
	return b
}

// WithDRAMSize sets the installed DRAM size in GiB; only {8,16,24,32}
// are legal (spec §6 "-dram-size {8,16,24,32}"), panicking on any other
// value exactly as zeonica/config.DeviceBuilder.WithMemoryMode panics
// on an unrecognised mode string.
func (b ChipBuilder) WithDRAMSize(giB int) ChipBuilder {
	if !allowedDRAMGiB[giB] {
		panic(fmt.Sprintf("config: invalid dram size %dGiB, must be one of 8,16,24,32", giB))
	}
	b.dramGiB = giB
	return b
}

// Build assembles the Chip: physical-memory regions at their fixed
// addresses (spec §6 address map), the shire/minion/hart topology, and
// the PMA/ESR/PLIC/Debug wiring. Every hart except the I/O shire's
// service-processor hart starts Unavailable (spec §3 "reset-held"); the
// CLI's -enable-hart brings individual harts up.
func (b ChipBuilder) Build(name string) *chip.Chip {
	if b.numShires == 0 {
		panic("config: WithShires must be called before Build")
	}
	if b.dramGiB == 0 {
		panic("config: WithDRAMSize must be called before Build")
	}

	c := chip.New(name, b.engine, b.freq, b.log)

	dramSize := uint64(b.dramGiB) << 30
	mem := memregion.NewPhysicalMemory()

	p := plic.New("plic", plicFirst, plicSize)
	mem.AddRegion(p)
	mem.AddRegion(memregion.NewSysReg("sysreg", sysregFirst, sysregSize))
	mem.AddRegion(memregion.NewBootROM("bootrom", bootROMFirst, b.bootImage, bootROMSize))
	mem.AddRegion(memregion.NewSRAM("sram", sramFirst, sramSize))
	mem.AddRegion(memregion.NewSPMisc("sp-misc", spMiscFirst, spMiscSize))
	mem.AddRegion(memregion.NewPCIe("pcie", pcieFirst, pcieSize))
	mem.AddRegion(memregion.NewDRAM("dram", dramFirst, dramSize))
	mem.AddRegion(memregion.NewL2Scratchpad("l2-scratchpad", scratchFirst, scratchSize))

	c.Memory = mem
	c.PMA = &mmu.PMA{DRAMBase: dramFirst, DRAMSize: dramSize, MPROTOf: c.MPROTOf}
	c.PLIC = p // single chip-wide PLIC in this topology; see DESIGN.md

	b.buildTopology(c)

	mem.AddRegion(chip.NewESRRegion(c, esrFirst, esrSize))

	if b.monitor != nil {
		b.monitor.RegisterComponent(c)
	}

	return c
}

func (b ChipBuilder) buildTopology(c *chip.Chip) {
	memShireSet := map[int]bool{}
	for _, s := range b.memShires {
		memShireSet[s] = true
	}

	minionsPerShire := chip.NeighborhoodsPerShire * chip.MinionsPerNeighborhood
	totalMinions := core.ID(b.numShires * minionsPerShire)

	cores := make([]*core.Core, totalMinions)
	for i := range cores {
		cores[i] = core.New(core.ID(i))
	}

	harts := make([]*hart.Hart, totalMinions*2)
	for i := range harts {
		h := hart.New(hart.ID(i), cores[hart.ID(i).CoreID()])
		h.State = hart.StateUnavailable
		harts[i] = h
	}

	c.Cores = cores
	c.Harts = harts
	c.SetShires(b.numShires, b.ioShire, memShireSet, minionsPerShire)

	// The I/O shire's single hart (thread 0 of its first minion) is the
	// service processor and is the only hart enabled out of reset (spec
	// §1 "one shire is an I/O shire hosting a single-threaded service
	// processor"); the CLI's -enable-hart brings the rest up explicitly.
	spHartID := hart.ID(b.ioShire * minionsPerShire * 2)
	harts[spHartID].State = hart.StateRunning
	c.AddActive(spHartID)
}
