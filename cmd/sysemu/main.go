// Command sysemu drives the chip model from the command line: a single
// flag-based CLI in the teacher's own idiom (zeonica/samples/*/main.go
// style package-level flag vars), not Cobra. ELF loading, the GDB-stub
// wire protocol, and UART backing files are external collaborators
// (spec §1 "OUT OF SCOPE"); this binary accepts their flags and wires a
// narrow interface each would implement, but does not itself parse ELF
// or speak the gdbserver protocol.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/shiresim/internal/config"
	"github.com/sarchlab/shiresim/internal/debug"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/tebeka/atexit"
)

var (
	flagELF    = flag.String("elf", "", "ELF image to load (delegated to an external loader)")
	flagRaw    repeatedFlag
	flagPreload repeatedFlag
	flagEnable  repeatedFlag
	flagDisable repeatedFlag
	flagResetPC = flag.Uint64("reset-pc", 0, "override the reset PC of every hart")
	flagUART    repeatedFlag
	flagDump    = flag.String("dump", "", "address range start:end to dump on exit")
	flagGDB     = flag.Bool("gdb", false, "enable the GDB stub (external collaborator)")
	flagDumpHarts = flag.Bool("dump-harts", false, "print a hart-state table on exit")
	flagDumpRegs  repeatedFlag
	flagHaltHart  repeatedFlag

	flagCheckCoherency   = flag.Bool("check-coherency", false, "enable the coherency checker")
	flagCheckScratchpad  = flag.Bool("check-scratchpad", false, "enable the scratchpad checker")
	flagCheckTensorStore = flag.Bool("check-tensor-store", false, "enable the tensor-store checker")

	flagMaxCycles = flag.Uint64("max-cycles", 1_000_000, "cycle ceiling before a FAIL exit")
	flagDRAMSize  = flag.Int("dram-size", 8, "installed DRAM size in GiB, one of {8,16,24,32}")

	flagShires    = flag.Int("shires", 1, "number of shires")
	flagIOShire   = flag.Int("io-shire", 0, "index of the I/O shire")
	flagMemShires = flag.String("mem-shires", "", "comma-separated memory shire indices")

	flagConfig = flag.String("config", "", "chip.yaml topology/scenario file")
)

// repeatedFlag collects a flag.Value that may be given more than once
// (-enable-hart, -disable-hart, -raw, -preload, -uart), exactly as
// gmofishsauce-wut4/emul/emul.go's multi-valued flags accumulate.
type repeatedFlag []string

func (r *repeatedFlag) String() string { return strings.Join(*r, ",") }
func (r *repeatedFlag) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func init() {
	flag.Var(&flagRaw, "raw", "addr=path: load a raw file at a physical address (repeatable)")
	flag.Var(&flagPreload, "preload", "addr=word: preload a 64-bit word (repeatable)")
	flag.Var(&flagEnable, "enable-hart", "hart id to bring up out of reset (repeatable)")
	flag.Var(&flagDisable, "disable-hart", "hart id to park Unavailable (repeatable)")
	flag.Var(&flagUART, "uart", "n=path: back UART n with a file (repeatable, external collaborator)")
	flag.Var(&flagDumpRegs, "dump-regs", "hart id to print a register-file table for on exit (repeatable)")
	flag.Var(&flagHaltHart, "halt-hart", "hart id to debug-halt before running, via the dmctrl path (repeatable)")
}

// exitCode mirrors spec §6 "Exit codes: 0 on normal completion and no
// failure; nonzero on max-cycles, sleeping harts leftover at shutdown,
// or test FAIL."
const (
	exitOK               = 0
	exitMaxCycles        = 1
	exitHartsLeftSleeping = 2
	exitTestFail          = 3
)

func main() {
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	memShires := parseIntList(*flagMemShires)

	monitor := monitoring.NewMonitor()
	engine := sim.NewSerialEngine()
	monitor.RegisterEngine(engine)

	builder := config.ChipBuilder{}.
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithLogger(log).
		WithMonitor(monitor).
		WithShires(*flagShires, *flagIOShire, memShires).
		WithDRAMSize(*flagDRAMSize)

	if *flagConfig != "" {
		var err error
		builder, err = builder.LoadTopologyYAML(*flagConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: %v\n", err)
			atexit.Exit(exitTestFail)
		}
	}

	c := builder.Build("chip")

	c.MaxCycles = *flagMaxCycles
	c.CheckCoherency = *flagCheckCoherency
	c.CheckScratchpad = *flagCheckScratchpad
	c.CheckTensorStore = *flagCheckTensorStore

	if *flagResetPC != 0 {
		c.SetResetPC(*flagResetPC)
	}

	if *flagELF != "" {
		log.Warn("ELF loading is an external collaborator in this build; pass -raw/-preload instead", "path", *flagELF)
	}
	for _, spec := range flagRaw {
		addr, path, ok := splitKV(spec)
		if !ok {
			fmt.Fprintf(os.Stderr, "sysemu: malformed -raw %q, want addr=path\n", spec)
			atexit.Exit(exitTestFail)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: -raw %s: %v\n", path, err)
			atexit.Exit(exitTestFail)
		}
		a, err := strconv.ParseUint(addr, 0, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: -raw bad address %q: %v\n", addr, err)
			atexit.Exit(exitTestFail)
		}
		if err := c.Memory.Init(memregion.AgentLoader, a, len(data), data); err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: -raw load at %#x: %v\n", a, err)
			atexit.Exit(exitTestFail)
		}
	}
	for _, spec := range flagPreload {
		addr, word, ok := splitKV(spec)
		if !ok {
			fmt.Fprintf(os.Stderr, "sysemu: malformed -preload %q, want addr=word\n", spec)
			atexit.Exit(exitTestFail)
		}
		a, err1 := strconv.ParseUint(addr, 0, 64)
		w, err2 := strconv.ParseUint(word, 0, 64)
		if err1 != nil || err2 != nil {
			fmt.Fprintf(os.Stderr, "sysemu: -preload bad value %q\n", spec)
			atexit.Exit(exitTestFail)
		}
		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(w >> (8 * i))
		}
		if err := c.Memory.Init(memregion.AgentLoader, a, 8, buf); err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: -preload at %#x: %v\n", a, err)
			atexit.Exit(exitTestFail)
		}
	}

	for _, s := range flagEnable {
		id, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: bad -enable-hart %q: %v\n", s, err)
			atexit.Exit(exitTestFail)
		}
		c.EnableHart(hart.ID(id))
	}
	for _, s := range flagDisable {
		id, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: bad -disable-hart %q: %v\n", s, err)
			atexit.Exit(exitTestFail)
		}
		c.DisableHart(hart.ID(id))
	}

	for _, s := range flagHaltHart {
		id, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: bad -halt-hart %q: %v\n", s, err)
			atexit.Exit(exitTestFail)
		}
		c.Debug.SetSelection(debug.HartSel{HartSel: uint32(id)})
		c.Debug.Write(debug.WriteBits{DMActive: true, HaltReq: true})
	}

	for _, spec := range flagUART {
		n, path, ok := splitKV(spec)
		if !ok {
			fmt.Fprintf(os.Stderr, "sysemu: malformed -uart %q, want n=path\n", spec)
			atexit.Exit(exitTestFail)
		}
		log.Warn("UART backing files are an external collaborator in this build", "uart", n, "path", path)
	}
	if *flagGDB {
		log.Warn("the GDB stub is an external collaborator in this build; -gdb accepted but not served")
	}

	engine.Run()

	if *flagDump != "" {
		start, end, ok := splitKV(*flagDump)
		if ok {
			lo, err1 := strconv.ParseUint(start, 0, 64)
			hi, err2 := strconv.ParseUint(end, 0, 64)
			if err1 == nil && err2 == nil {
				fmt.Printf("%x\n", c.Memory.Dump(lo, hi))
			}
		}
	}

	if *flagDumpHarts {
		fmt.Println(c.HartStateDump())
	}
	for _, s := range flagDumpRegs {
		id, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sysemu: bad -dump-regs %q: %v\n", s, err)
			continue
		}
		fmt.Println(c.RegisterFileDump(hart.ID(id)))
	}

	switch {
	case c.Cycle >= c.MaxCycles && !c.EmuDone:
		fmt.Fprintln(os.Stderr, "sysemu: max-cycles exceeded")
		atexit.Exit(exitMaxCycles)
	case c.HasSleepingHarts():
		fmt.Fprintln(os.Stderr, "sysemu: harts left sleeping at shutdown")
		atexit.Exit(exitHartsLeftSleeping)
	case c.TestFailed():
		fmt.Fprintln(os.Stderr, "sysemu: test FAIL")
		atexit.Exit(exitTestFail)
	default:
		atexit.Exit(exitOK)
	}
}

func parseIntList(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}

func splitKV(s string) (k, v string, ok bool) {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
