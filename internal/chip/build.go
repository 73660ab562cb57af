package chip

import (
	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/hart"
)

// SetShires installs the fixed shire topology the config package
// computed (spec §1 "a fixed topology of shires"). minionsPerShire is
// NeighborhoodsPerShire*MinionsPerNeighborhood.
func (c *Chip) SetShires(numShires, ioShire int, memShires map[int]bool, minionsPerShire int) {
	c.shires = make([]shireInfo, numShires)
	for s := range c.shires {
		c.shires[s] = shireInfo{
			firstCore: coreIDOf(s, minionsPerShire),
			isIO:      s == ioShire,
			isMemory:  memShires[s],
		}
	}
}

func coreIDOf(shire, minionsPerShire int) core.ID {
	return core.ID(shire * minionsPerShire)
}

// AddActive seeds the scheduler's active list with a hart brought up at
// build time (the service processor, spec §1).
func (c *Chip) AddActive(id hart.ID) {
	c.active = append(c.active, id)
}

// EnableHart implements the CLI's -enable-hart command (spec §6): moves
// a reset-held hart to Running and into the scheduler's active set.
func (c *Chip) EnableHart(id hart.ID) {
	h := c.hartByID(id)
	if h == nil || h.State != hart.StateUnavailable {
		return
	}
	h.State = hart.StateRunning
	c.AddActive(id)
}

// DisableHart implements the CLI's -disable-hart command (spec §6):
// parks a hart back to Unavailable and drops it from every scheduler
// list.
func (c *Chip) DisableHart(id hart.ID) {
	h := c.hartByID(id)
	if h == nil {
		return
	}
	h.State = hart.StateUnavailable
	c.active = removeID(c.active, id)
	c.sleeping = removeID(c.sleeping, id)
	c.awaking = removeID(c.awaking, id)
}

// SetResetPC overrides the reset PC every hart currently in the chip
// takes on, and the value WarmResetHart applies to a hart reset later
// (spec §6 "-reset-pc").
func (c *Chip) SetResetPC(pc uint64) {
	c.ResetPC = pc
	for _, h := range c.Harts {
		h.PC = pc
		h.NPC = pc
	}
}

// HasSleepingHarts reports whether any hart is parked Waiting at
// shutdown (spec §6 "nonzero on ... sleeping harts leftover at
// shutdown").
func (c *Chip) HasSleepingHarts() bool {
	return len(c.sleeping) > 0
}

// TestFailed reports whether a checker (-check-coherency etc) or the
// guest program itself flagged a FAIL (spec §6 "nonzero on ... test
// FAIL").
func (c *Chip) TestFailed() bool {
	return c.testFailed
}

// MarkTestFailed is called by the optional runtime checkers and by the
// service-processor FAIL convention (spec §8 testable properties) to
// surface a nonzero exit without panicking mid-run.
func (c *Chip) MarkTestFailed() {
	c.testFailed = true
}

func removeID(list []hart.ID, id hart.ID) []hart.ID {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
