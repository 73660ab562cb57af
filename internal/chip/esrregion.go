package chip

import (
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/priv"
)

// esrRegion adapts esr.Plane's (addr, agentShire, hasContext, priv)
// contract to the memregion.Region interface so it can sit in
// PhysicalMemory at 0x01_0000_0000 like any other region (spec §4.1
// table, §6 address map). It lives in chip, not esr, because resolving
// an accessing hart's shire index needs Chip's topology table
// (hart.Hart itself carries no shire back-reference, spec §9
// "non-owning indices into Chip's arrays") and every memory access —
// ESR or otherwise — reaches this bus through the same uniform
// hart.Memory.Read/Write(h, addr, ...) call passing the raw *hart.Hart,
// never a pre-wrapped context agent.
type esrRegion struct {
	chip  *Chip
	first uint64
	size  uint64
}

// NewESRRegion builds the ESR plane's memregion.Region adapter, for the
// config package to install at 0x01_0000_0000 (spec §6 address map).
func NewESRRegion(c *Chip, first, size uint64) memregion.Region {
	return &esrRegion{chip: c, first: first, size: size}
}

func (r *esrRegion) Name() string          { return "esr" }
func (r *esrRegion) First() uint64         { return r.first }
func (r *esrRegion) Last() uint64          { return r.first + r.size - 1 }
func (r *esrRegion) Writable() bool        { return true }
func (r *esrRegion) Executable() bool      { return false }
func (r *esrRegion) AllowedSize(n int) bool { return n == 8 }

func (r *esrRegion) agentContext(agent memregion.Agent) (shire int, hasContext bool, p priv.Level) {
	h, ok := agent.(*hart.Hart)
	if !ok {
		return 0, false, priv.Machine
	}
	return r.chip.shireOf(h.ID), true, h.Priv
}

func (r *esrRegion) Read(agent memregion.Agent, offset uint64, n int, buf []byte) error {
	shire, hasCtx, p := r.agentContext(agent)
	v, err := r.chip.ESR.Read(r.first+offset, shire, hasCtx, p)
	if err != nil {
		return err
	}
	putUint64(buf, v)
	return nil
}

func (r *esrRegion) Write(agent memregion.Agent, offset uint64, n int, buf []byte) error {
	shire, hasCtx, p := r.agentContext(agent)
	return r.chip.ESR.Write(r.first+offset, getUint64(buf), shire, hasCtx, p)
}

// Init preloads an ESR field at reset time, bypassing privilege/side
// effect checks (used only by the config builder to seed e.g. dmctrl
// defaults).
func (r *esrRegion) Init(agent memregion.Agent, offset uint64, n int, buf []byte) error {
	return r.Write(agent, offset, n, buf)
}

func putUint64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

func getUint64(buf []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v
}
