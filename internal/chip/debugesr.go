package chip

import (
	"github.com/sarchlab/shiresim/internal/debug"
	"github.com/sarchlab/shiresim/internal/hart"
)

// SetDebugSelection implements esr.Hooks: applies a HACTRL hasel/hartsel
// write to the debug module's hart-selection mask, and mirrors the
// result onto each hart's own Selected bit (spec §4.6 "For the current
// hart-selection mask"; hart.Hart.Selected is otherwise unused, kept
// current here so HASTATUS0 and program-buffer dispatch can read it
// directly off the hart instead of re-evaluating sel.Selected per use).
func (c *Chip) SetDebugSelection(sel debug.HartSel) {
	c.Debug.SetSelection(sel)
	for _, h := range c.Harts {
		h.Selected = sel.Selected(uint32(h.ID))
	}
}

// WriteDmctrl implements esr.Hooks.
func (c *Chip) WriteDmctrl(w debug.WriteBits) {
	c.Debug.Write(w)
}

// ReadHAStatus0 implements esr.Hooks by computing the three-level
// AND/OR status tree (spec §4.6 "Level 0 ... Level 1 ... Level 2") and
// packing the chip-wide result into a flat bitset. The bit assignment
// below is this emulator's own (spec.md specifies the tree's reduction
// rules but not HASTATUS0's wire layout), recorded as an Open Question
// decision in DESIGN.md.
func (c *Chip) ReadHAStatus0() uint64 {
	return c.hastatus0()
}

func (c *Chip) hastatus0() uint64 {
	type neighKey struct{ shire, neigh int }
	perNeigh := map[neighKey][]debug.HAStatus0{}
	for _, h := range c.Harts {
		k := neighKey{c.shireOf(h.ID), c.neighborhoodOf(h.ID)}
		perNeigh[k] = append(perNeigh[k], debug.HAStatus0{
			Halted:      h.State == hart.StateHalted,
			Running:     h.State == hart.StateRunning,
			ResumeAck:   h.ResumeAck,
			HaveReset:   h.HaveReset,
			Unavailable: h.State == hart.StateUnavailable,
			Selected:    h.Selected,
		})
	}

	shireLevels := make([]debug.Level0, 0, len(c.shires))
	for s := range c.shires {
		neighLevels := make([]debug.Level0, 0, NeighborhoodsPerShire)
		for n := 0; n < NeighborhoodsPerShire; n++ {
			neighLevels = append(neighLevels, debug.ReduceLevel0(perNeigh[neighKey{s, n}]))
		}
		shireLevels = append(shireLevels, debug.ReduceHigherLevel(neighLevels))
	}
	chipLevel := debug.ReduceHigherLevel(shireLevels)

	var v uint64
	setBit := func(bit uint, b bool) {
		if b {
			v |= 1 << bit
		}
	}
	setBit(0, chipLevel.AnySelected)
	setBit(1, chipLevel.AnyHalted)
	setBit(2, chipLevel.AllHalted)
	setBit(3, chipLevel.AnyRunning)
	setBit(4, chipLevel.AllRunning)
	setBit(5, chipLevel.AnyResumeAck)
	setBit(6, chipLevel.AllResumeAck)
	setBit(7, chipLevel.AnyHaveReset)
	setBit(8, chipLevel.AllHaveReset)
	setBit(9, chipLevel.AnyUnavailable)
	setBit(10, chipLevel.AllUnavailable)
	return v
}

// RunAbstractCommand implements esr.Hooks: runs the NXPROGBUF0/1
// program against every hart the current selection mask targets that is
// also halted (spec §4.6 "Program buffer"; a selected-but-running hart
// is silently skipped rather than treated as an error, matching
// dmctrl.Write's own pattern of only acting on harts in the right
// state).
func (c *Chip) RunAbstractCommand(progbuf0, progbuf1 uint32) {
	for _, h := range c.Harts {
		if h.Selected && h.State == hart.StateHalted {
			debug.RunAbstractCommand(h, progbuf0, progbuf1)
		}
	}
}
