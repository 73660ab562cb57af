// Package memregion implements the uniform MemoryRegion contract (spec
// §4.1) and the PhysicalMemory dispatcher that binary-searches a sorted
// set of address-disjoint regions.
//
// The teacher repo models each CGRA tile's local memory as a plain
// []uint32 behind the core's own accessors (zeonica/core.coreState.Memory);
// here the same "flat backing slice behind a small interface" idiom is
// generalized into a real polymorphic region hierarchy, per spec design
// note "Polymorphic memory regions".
package memregion

import (
	"fmt"
	"sort"

	"github.com/sarchlab/shiresim/internal/trapkind"
)

// Agent identifies who is performing an access, used only for logging and
// privilege context (spec §4.1). A Hart implements Agent through its own
// AgentName() method; non-hart agents are named constants.
type Agent interface {
	AgentName() string
}

// NamedAgent is a non-hart agent (debug module, DMA, service processor).
type NamedAgent string

func (n NamedAgent) AgentName() string { return string(n) }

const (
	AgentDebugModule NamedAgent = "dmctrl"
	AgentServiceProc NamedAgent = "sp"
	AgentLoader      NamedAgent = "loader"
)

// Region is the uniform contract every physical memory region satisfies.
type Region interface {
	// Name identifies the region in dumps and error messages.
	Name() string

	// First returns the lowest address owned by this region.
	First() uint64

	// Last returns the highest address (inclusive) owned by this region.
	Last() uint64

	// Read copies n bytes starting at offset (relative to First()) into buf.
	Read(agent Agent, offset uint64, n int, buf []byte) error

	// Write copies n bytes from buf into the region at offset.
	Write(agent Agent, offset uint64, n int, buf []byte) error

	// Init preloads n bytes at offset without going through write-side
	// effects (used by the ELF/raw loader, an external collaborator).
	Init(agent Agent, offset uint64, n int, buf []byte) error

	// Writable reports whether the region accepts stores at all.
	Writable() bool

	// Executable reports whether the region may be fetched from.
	Executable() bool

	// AllowedSize reports whether an access of n bytes is legal for this
	// region irrespective of alignment.
	AllowedSize(n int) bool
}

// PhysicalMemory is an ordered, address-disjoint set of memory regions.
// Lookups binary-search by base address and forbid an access from
// spanning two regions (spec §4.1).
type PhysicalMemory struct {
	regions []Region
}

// NewPhysicalMemory builds an (initially empty) physical memory dispatcher.
func NewPhysicalMemory() *PhysicalMemory {
	return &PhysicalMemory{}
}

// AddRegion inserts a region, keeping the internal slice sorted by First().
// It panics if the new region overlaps an existing one: the address map
// is fixed topology, assembled once at chip-build time, so an overlap is
// a configuration bug, not a runtime condition to recover from.
func (p *PhysicalMemory) AddRegion(r Region) {
	i := sort.Search(len(p.regions), func(i int) bool {
		return p.regions[i].First() > r.First()
	})
	if i > 0 && p.regions[i-1].Last() >= r.First() {
		panic(fmt.Sprintf("memregion: %s overlaps %s", r.Name(), p.regions[i-1].Name()))
	}
	if i < len(p.regions) && p.regions[i].First() <= r.Last() {
		panic(fmt.Sprintf("memregion: %s overlaps %s", r.Name(), p.regions[i].Name()))
	}
	p.regions = append(p.regions, nil)
	copy(p.regions[i+1:], p.regions[i:])
	p.regions[i] = r
}

// find binary-searches for the region covering addr, and validates that
// the [addr, addr+n) access does not straddle a region boundary.
func (p *PhysicalMemory) find(addr uint64, n int) (Region, error) {
	i := sort.Search(len(p.regions), func(i int) bool {
		return p.regions[i].Last() >= addr
	})
	if i == len(p.regions) || p.regions[i].First() > addr {
		return nil, trapkind.NewMemoryError(addr)
	}
	r := p.regions[i]
	if n > 0 && addr+uint64(n)-1 > r.Last() {
		return nil, trapkind.NewMemoryError(addr)
	}
	return r, nil
}

// Read dispatches a read to the owning region, rejecting spans crossing a
// region boundary (spec §4.1 "Dispatcher").
func (p *PhysicalMemory) Read(agent Agent, addr uint64, n int, buf []byte) error {
	r, err := p.find(addr, n)
	if err != nil {
		return err
	}
	if !r.AllowedSize(n) {
		return trapkind.NewMemoryError(addr)
	}
	return r.Read(agent, addr-r.First(), n, buf)
}

// Write dispatches a write to the owning region.
func (p *PhysicalMemory) Write(agent Agent, addr uint64, n int, buf []byte) error {
	r, err := p.find(addr, n)
	if err != nil {
		return err
	}
	if !r.Writable() || !r.AllowedSize(n) {
		return trapkind.NewMemoryError(addr)
	}
	return r.Write(agent, addr-r.First(), n, buf)
}

// Init preloads memory without requiring write permission (used by the
// ELF/raw file loader, spec §6 CLI surface, an external collaborator).
func (p *PhysicalMemory) Init(agent Agent, addr uint64, n int, buf []byte) error {
	r, err := p.find(addr, n)
	if err != nil {
		return err
	}
	return r.Init(agent, addr-r.First(), n, buf)
}

// RegionAt returns the region covering addr, for callers (PMA, ESR plane)
// that need region-class information without performing an access.
func (p *PhysicalMemory) RegionAt(addr uint64) (Region, bool) {
	r, err := p.find(addr, 0)
	if err != nil {
		return nil, false
	}
	return r, true
}

// Dump returns the raw bytes in [first, last] from whichever region(s)
// cover that span, for the CLI's -dump command (spec §6). Unlike Read, a
// dump may span multiple regions; gaps read as zero.
func (p *PhysicalMemory) Dump(first, last uint64) []byte {
	out := make([]byte, last-first+1)
	for _, r := range p.regions {
		lo := max64(first, r.First())
		hi := min64(last, r.Last())
		if lo > hi {
			continue
		}
		n := int(hi-lo) + 1
		tmp := make([]byte, n)
		_ = r.Read(NamedAgent("dump"), lo-r.First(), n, tmp)
		copy(out[lo-first:], tmp)
	}
	return out
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
