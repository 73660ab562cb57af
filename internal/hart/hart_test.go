package hart_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/priv"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

var _ = Describe("Hart", func() {
	var h *hart.Hart

	BeforeEach(func() {
		h = hart.New(hart.ID(2), core.New(core.ID(1)))
	})

	Describe("reset state", func() {
		It("starts Unavailable in machine mode", func() {
			Expect(h.State.String()).To(Equal("unavailable"))
			Expect(h.Priv).To(Equal(priv.Machine))
		})

		It("derives core id and thread index from the flat hart id", func() {
			Expect(h.ID.CoreID()).To(Equal(hart.CoreID(1)))
			Expect(h.ID.ThreadIndex()).To(Equal(0))
		})
	})

	Describe("wait/wake protocol", func() {
		It("reports IsWaiting only once the matching bit is set", func() {
			Expect(h.IsWaiting(hart.WaitInterrupt)).To(BeFalse())
			h.StartWaiting(hart.WaitInterrupt)
			Expect(h.IsWaiting(hart.WaitInterrupt)).To(BeTrue())
			Expect(h.IsWaiting(hart.WaitTensorFMA)).To(BeFalse())
		})

		It("keeps the hart Waiting until every OR'd bit is cleared", func() {
			h.StartWaiting(hart.WaitInterrupt)
			h.StartWaiting(hart.WaitTensorFMA)

			rejoin := h.StopWaiting(hart.WaitInterrupt)
			Expect(rejoin).To(BeFalse())
			Expect(h.IsWaiting(hart.WaitTensorFMA)).To(BeTrue())

			rejoin = h.StopWaiting(hart.WaitTensorFMA)
			Expect(rejoin).To(BeTrue())
			Expect(h.State.String()).To(Equal("running"))
		})

		It("is a no-op to stop waiting on a hart that isn't waiting", func() {
			Expect(h.StopWaiting(hart.WaitInterrupt)).To(BeFalse())
		})
	})

	Describe("interrupt delivery", func() {
		BeforeEach(func() {
			h.CSR.MStatus = 1 << 3 // mstatus.MIE
			h.CSR.MIE = 1 << 16
		})

		It("is pending only once mip, mie and mstatus.MIE all agree", func() {
			Expect(h.PendingInterrupt()).To(BeFalse())
			h.CSR.MIP = 1 << 16
			Expect(h.PendingInterrupt()).To(BeTrue())
		})

		It("ignores a delegated cause", func() {
			h.CSR.MIDeleg = 1 << 16
			h.CSR.MIP = 1 << 16
			Expect(h.PendingInterrupt()).To(BeFalse())
		})

		It("wakes a hart parked Waiting(interrupt) and ORs the bit into mip", func() {
			h.StartWaiting(hart.WaitInterrupt)
			woke := h.RaiseInterrupt(1<<16, false)
			Expect(woke).To(BeTrue())
			Expect(h.CSR.MIP & (1 << 16)).NotTo(BeZero())
			Expect(h.State.String()).To(Equal("running"))
		})

		It("routes an external cause into ext_seip instead of mip", func() {
			h.RaiseInterrupt(1<<17, true)
			Expect(h.ExtSEIP & (1 << 17)).NotTo(BeZero())
			Expect(h.CSR.MIP).To(BeZero())
		})

		It("does not wake a hart that wasn't waiting on interrupts", func() {
			h.StartWaiting(hart.WaitTensorFMA)
			woke := h.RaiseInterrupt(1<<16, false)
			Expect(woke).To(BeFalse())
			Expect(h.IsWaiting(hart.WaitTensorFMA)).To(BeTrue())
		})
	})

	Describe("trap delivery", func() {
		BeforeEach(func() {
			h.PC = 0x1000
			h.Priv = priv.Supervisor
			h.CSR.MStatus = 1 << 3 // mstatus.MIE set before the trap
		})

		It("latches mepc/mcause/mtval and switches to machine mode", func() {
			h.TakeTrap(trapkind.NewTrap(trapkind.CauseIllegalInstruction, 0xdead))

			Expect(h.CSR.MEPC).To(Equal(uint64(0x1000)))
			Expect(h.CSR.MCause).To(Equal(uint64(trapkind.CauseIllegalInstruction)))
			Expect(h.CSR.MTVal).To(Equal(uint64(0xdead)))
			Expect(h.Priv).To(Equal(priv.Machine))
		})

		It("stashes the previous privilege in MPP and MIE in MPIE", func() {
			h.TakeTrap(trapkind.NewTrap(trapkind.CauseBreakpoint, 0))

			mpp := (h.CSR.MStatus >> 11) & 0x3
			Expect(mpp).To(Equal(uint64(priv.Supervisor)))
			Expect(h.CSR.MStatus & (1 << 7)).NotTo(BeZero()) // MPIE
			Expect(h.CSR.MStatus & (1 << 3)).To(BeZero())    // MIE cleared
		})

		It("dispatches straight to mtvec base in direct mode", func() {
			h.CSR.MTVec = 0x8000_0000 // mode bits 0b00
			h.TakeTrap(trapkind.NewTrap(trapkind.CauseLoadAccessFault, 0))
			Expect(h.PC).To(Equal(uint64(0x8000_0000)))
			Expect(h.NPC).To(Equal(h.PC))
		})

		It("dispatches to base + 4*cause in vectored mode", func() {
			h.CSR.MTVec = 0x8000_0000 | 1
			h.TakeTrap(trapkind.NewTrap(trapkind.CauseStoreAccessFault, 0))
			Expect(h.PC).To(Equal(uint64(0x8000_0000) + 4*uint64(trapkind.CauseStoreAccessFault)))
		})

		It("invalidates the fetch buffer", func() {
			h.Fetch.Valid = true
			h.TakeTrap(trapkind.NewTrap(trapkind.CauseBreakpoint, 0))
			Expect(h.Fetch.Valid).To(BeFalse())
		})
	})

	Describe("HandleExecuteError", func() {
		It("takes an architectural trap", func() {
			h.PC = 0x2000
			h.HandleExecuteError(trapkind.NewTrap(trapkind.CauseIllegalInstruction, 0))
			Expect(h.CSR.MEPC).To(Equal(uint64(0x2000)))
		})

		It("enters debug mode on a DebugEntry", func() {
			h.PC = 0x3000
			h.HandleExecuteError(trapkind.NewDebugEntry(trapkind.DebugCauseBreakpoint))
			Expect(h.State.String()).To(Equal("halted"))
			Expect(h.Debug.DPC).To(Equal(uint64(0x3000)))
		})

		It("raises a bus-error interrupt on a MemoryError", func() {
			h.CSR.MStatus = 1 << 3
			h.CSR.MIE = 1 << 16
			h.HandleExecuteError(trapkind.NewMemoryError(0xbad))
			Expect(h.CSR.MIP & (1 << 16)).NotTo(BeZero())
		})

		It("re-fetches the same instruction on ErrRestart", func() {
			h.PC = 0x4000
			h.NPC = 0x4004
			h.HandleExecuteError(trapkind.ErrRestart)
			Expect(h.NPC).To(Equal(h.PC))
		})
	})

	Describe("exclusive mode blocking", func() {
		It("blocks the sibling thread but not the owner", func() {
			owner := core.ExclModeFor(0)
			Expect(h.ExclBlockedBy(owner)).To(BeFalse()) // thread 0 is h itself (ID 2 -> thread 0)

			sibling := hart.New(hart.ID(3), h.Core)
			Expect(sibling.ExclBlockedBy(owner)).To(BeTrue())
		})

		It("never blocks when no thread holds exclusive mode", func() {
			Expect(h.ExclBlockedBy(core.ExclNone)).To(BeFalse())
		})
	})
})
