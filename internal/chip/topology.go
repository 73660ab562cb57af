// Package chip assembles every other package into the running system:
// the fixed shire/neighborhood/minion topology, the cooperative
// scheduler (spec §4.7), the esr.Hooks/debug.HartOps/mmu.Translator
// implementations that let the leaf packages call back up, and the
// cross-cutting tables (cooperative tensor-load, PMU, broadcast data,
// warning sink) spec §2 assigns to the Chip.
package chip

import (
	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/tensor"
)

const (
	MinionsPerNeighborhood = 8
	NeighborhoodsPerShire  = 4
	HartsPerMinion         = 2
)

// Topology is the fixed shire layout (spec §1 "a fixed topology of
// shires ... one shire is an I/O shire ... a small number of memory
// shires").
type Topology struct {
	NumShires   int
	IOShire     int
	MemoryShires []int
}

// shireInfo is the per-shire bookkeeping the Chip keeps to resolve
// hart/minion/neighborhood membership without storing back-pointers on
// Hart itself (spec §9 "non-owning indices into Chip's arrays").
type shireInfo struct {
	firstCore core.ID // first minion id belonging to this shire
	isIO      bool
	isMemory  bool
	coopTables [NeighborhoodsPerShire]*tensor.CoopTable
}

func (c *Chip) shireOf(h hart.ID) int {
	coreID := h.CoreID()
	for s := len(c.shires) - 1; s >= 0; s-- {
		if coreID >= c.shires[s].firstCore {
			return s
		}
	}
	return 0
}

func (c *Chip) neighborhoodOf(h hart.ID) int {
	coreID := h.CoreID()
	within := int(coreID) - int(c.shires[c.shireOf(h)].firstCore)
	return within / MinionsPerNeighborhood % NeighborhoodsPerShire
}

// ShireCount implements esr.Hooks.ShireCount.
func (c *Chip) ShireCount() int { return len(c.shires) }

// HartCount implements debug.HartOps.HartCount.
func (c *Chip) HartCount() int { return len(c.Harts) }
