package chip

import (
	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/tensor"
)

// runChecks implements the CLI's optional runtime checkers (spec §6
// "-check-coherency", "-check-scratchpad", "-check-tensor-store"); each
// is a narrow, testable-properties-driven invariant scan over the
// state Tick just advanced, surfacing a violation as MarkTestFailed
// rather than a panic, so a failing run still exits cleanly with the
// nonzero "test FAIL" code (spec §6).
func (c *Chip) runChecks() {
	if c.CheckScratchpad {
		c.checkScratchpadLocks()
	}
	if c.CheckTensorStore {
		c.checkTensorStoreLegality()
	}
	if c.CheckCoherency {
		c.checkCacheCoherency()
	}
}

// checkScratchpadLocks flags a scratchpad row left locked while its
// core's L1 scratchpad has been disabled by MCACHE_CONTROL (spec §4.2
// "every L1 scratchpad row lock is cleared" on that transition).
func (c *Chip) checkScratchpadLocks() {
	for _, co := range c.Cores {
		if co.MCacheControl&2 != 0 && co.UCacheControl&2 != 0 {
			continue // L1 scratchpad enabled for both planes, locks are legal
		}
		for i := range co.Scratch {
			if co.Scratch[i].Locked {
				c.MarkTestFailed()
				return
			}
		}
	}
}

// checkTensorStoreLegality flags an in-flight TensorStore whose
// (cols,coop) combination is illegal (spec §5 "a cooperative tensor
// store involves 1, 2, or 4 minions per row; the legal (cols,coop)
// combinations are enumerated ... illegal combos set tensor_error[8]").
// original_source/ does not resolve the full enumerated table, so this
// checks the one unambiguous invariant it does state: StoreCoop must be
// one of {1,2,4} and must evenly divide StoreCols.
func (c *Chip) checkTensorStoreLegality() {
	for _, co := range c.Cores {
		op := co.Tensor.StoreOp
		if op == nil || op.Kind != tensor.KindStore {
			continue
		}
		if !legalStoreCoop(op.StoreCoop) || op.StoreCols%op.StoreCoop != 0 {
			c.MarkTestFailed()
			return
		}
	}
}

func legalStoreCoop(coop int) bool {
	return coop == 1 || coop == 2 || coop == 4
}

// checkCacheCoherency flags a core whose cache-mode planes have drifted
// out of the legal transition set (spec §4.2 "{0->{0,1}, 1->{1,3},
// 3->{1,3}}"); this catches state reached by anything other than
// SetCacheControl's own validated writes (e.g. a future bulk-reset bug).
func (c *Chip) checkCacheCoherency() {
	for _, co := range c.Cores {
		if !core.LegalCacheTransition(co.MCacheControl, co.MCacheControl) ||
			!core.LegalCacheTransition(co.UCacheControl, co.UCacheControl) {
			c.MarkTestFailed()
			return
		}
	}
}
