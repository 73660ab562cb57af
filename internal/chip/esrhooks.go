package chip

import (
	"errors"

	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/esr"
	"github.com/sarchlab/shiresim/internal/hart"
)

var _ esr.Hooks = (*Chip)(nil)

var (
	errCacheTargetGone       = errors.New("esr: cache-control target hart does not exist")
	errIllegalCacheTransition = errors.New("esr: illegal MCACHE_CONTROL/UCACHE_CONTROL transition")
)

// ResolveLocalShire implements esr.Hooks; accesses outside a hart
// context (hasContext false) are illegal (spec §4.2).
func (c *Chip) ResolveLocalShire(agentShire int, hasContext bool) (int, bool) {
	if !hasContext {
		return 0, false
	}
	return agentShire, true
}

// SetMinionFeature implements esr.Hooks. This emulator keeps
// thread1_disable as per-core state on the second thread of the minion
// (spec §4.4 "MINION_FEATURE... thread1_disable").
func (c *Chip) SetMinionFeature(shire, neigh, minion int, value uint32) {
	id := c.hartIDFor(shire, neigh, minion, 1)
	if h := c.hartByID(id); h != nil {
		if value&1 != 0 {
			h.State = hart.StateUnavailable
		} else if h.State == hart.StateUnavailable {
			h.State = hart.StateRunning
		}
	}
}

// RaiseIPI implements esr.Hooks: OR the machine-software-interrupt bit
// into mip for every hart mask selects within shire (spec §4.2).
func (c *Chip) RaiseIPI(shire int, hartMask uint32) {
	c.forEachMaskedHart(shire, hartMask, func(h *hart.Hart) {
		if h.RaiseInterrupt(1<<3, false) {
			c.WakeToAwaking(h.ID)
		}
	})
}

// ClearIPI implements esr.Hooks.
func (c *Chip) ClearIPI(shire int, hartMask uint32) {
	c.forEachMaskedHart(shire, hartMask, func(h *hart.Hart) {
		h.CSR.MIP &^= 1 << 3
	})
}

// IPIRedirect implements esr.Hooks.IPIRedirect (spec §4.2
// "IPI_REDIRECT_TRIGGER").
func (c *Chip) IPIRedirect(shire int, hartMask uint32, pc uint64) {
	const badIPIRedirectBit = 1 << 17
	c.forEachMaskedHart(shire, hartMask, func(h *hart.Hart) {
		if h.IsWaiting(hart.WaitInterrupt) && h.Priv == 0 {
			h.PC, h.NPC = pc, pc
			h.Fetch.Invalidate()
			if h.StopWaiting(hart.WaitInterrupt) {
				c.WakeToAwaking(h.ID)
			}
			return
		}
		h.RaiseInterrupt(badIPIRedirectBit, false)
	})
}

// CancelICachePrefetch implements esr.Hooks; this emulator has no
// separate prefetch queue to drain (the fetch buffer is synchronous),
// so clearing the Waiting(prefetch) bits is the whole effect (spec
// §4.2 "SHIRE_COOP_MODE = 0 cancels active icache prefetches").
func (c *Chip) CancelICachePrefetch(shire int) {
	for _, h := range c.Harts {
		if c.shireOf(h.ID) != shire {
			continue
		}
		if h.IsWaiting(hart.WaitPrefetch0) || h.IsWaiting(hart.WaitPrefetch1) {
			if h.StopWaiting(hart.WaitPrefetch0 | hart.WaitPrefetch1) {
				c.WakeToAwaking(h.ID)
			}
		}
	}
}

// SetCacheControl implements esr.Hooks, delegating to core's legal
// transition table (spec §4.2).
func (c *Chip) SetCacheControl(shire int, hartIdx int, value uint32, user bool) error {
	h := c.hartByID(hart.ID(hartIdx))
	if h == nil {
		return errCacheTargetGone
	}
	co := c.Cores[int(h.ID.CoreID())]
	from, to := co.MCacheControl, core.CacheMode(value)
	if user {
		from = co.UCacheControl
	}
	if !core.LegalCacheTransition(from, to) {
		return errIllegalCacheTransition
	}
	if user {
		co.UCacheControl = to
	} else {
		co.MCacheControl = to
	}
	if from&2 != 0 && to&2 == 0 {
		co.ClearAllScratchLocks()
	}
	return nil
}

// ReadResetCause implements esr.Hooks; this emulator surfaces the
// warm-reset bit only (cold-reset cause tracking is out of scope).
func (c *Chip) ReadResetCause(shire, hartIdx int) uint32 {
	h := c.hartByID(hart.ID(hartIdx))
	if h != nil && h.HaveReset {
		return 1
	}
	return 0
}

// ReadAndSetSpinLock implements esr.Hooks: a test-and-set field, one
// lock per (shire, entity) pair.
func (c *Chip) ReadAndSetSpinLock(shire, entity int) uint32 {
	key := spinlockKey{shire, entity}
	if c.spinlocks == nil {
		c.spinlocks = map[spinlockKey]bool{}
	}
	prev := c.spinlocks[key]
	c.spinlocks[key] = true
	if prev {
		return 1
	}
	return 0
}

// KickWatchdog implements esr.Hooks; the watchdog timer itself is an
// external collaborator (spec §1 "OUT OF SCOPE") and the chip keeps no
// watchdog state of its own, so a kick is a no-op.
func (c *Chip) KickWatchdog(shire int) {}

// ReadPMUCycles implements esr.Hooks.
func (c *Chip) ReadPMUCycles(shire, hartIdx int) uint64 {
	return c.pmuCycles[hart.ID(hartIdx)]
}

// ReadPMUInstRet implements esr.Hooks.
func (c *Chip) ReadPMUInstRet(shire, hartIdx int) uint64 {
	return c.pmuInstRet[hart.ID(hartIdx)]
}

// TakeLineLockEvents implements esr.Hooks: read-and-clear.
func (c *Chip) TakeLineLockEvents(shire int) uint32 {
	v := c.lineLockEvents[shire]
	c.lineLockEvents[shire] = 0
	return v
}

// forEachMaskedHart calls fn for every hart of shire whose bit is set in
// mask: bit i selects the shire's i-th hart, so only its first 32 harts
// are reachable through the mask.
func (c *Chip) forEachMaskedHart(shire int, mask uint32, fn func(*hart.Hart)) {
	for _, h := range c.Harts {
		if c.shireOf(h.ID) != shire {
			continue
		}
		idx := int(h.ID) - int(c.shires[shire].firstCore)*2
		if idx >= 32 || mask&(1<<uint(idx)) == 0 {
			continue
		}
		fn(h)
	}
}

func (c *Chip) hartIDFor(shire, neigh, minion, thread int) hart.ID {
	base := int(c.shires[shire].firstCore)
	coreIdx := base + neigh*MinionsPerNeighborhood + minion
	return hart.ID(coreIdx*2 + thread)
}

type spinlockKey struct {
	shire, entity int
}
