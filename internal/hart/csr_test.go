package hart_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	gomock "github.com/golang/mock/gomock"

	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/mmu"
	"github.com/sarchlab/shiresim/internal/tensor"
)

var _ = Describe("vendor CSRs", func() {
	var (
		mockCtrl *gomock.Controller
		mem      *MockMemory
		tr       *MockTranslator
		h        *hart.Hart
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mem = NewMockMemory(mockCtrl)
		tr = NewMockTranslator(mockCtrl)
		h = hart.New(hart.ID(0), core.New(core.ID(0)))
		h.State = hart.StateRunning
		h.PC = 0x2000
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	// csrrw x0, 0x7C0, x0 (stall)
	const stallInstr = uint32(0x7C0<<20 | 1<<12 | 0x73)

	stepWith := func(raw uint32) {
		tr.EXPECT().
			Translate(mem, h, uint64(0x2000), 32, mmu.AccessFetch, h.MMUStatus()).
			Return(uint64(0x2000), nil)
		mem.EXPECT().
			Read(h, uint64(0x2000), 32, gomock.Any()).
			DoAndReturn(func(_ interface{}, _ uint64, _ int, buf []byte) error {
				buf[0] = byte(raw)
				buf[1] = byte(raw >> 8)
				buf[2] = byte(raw >> 16)
				buf[3] = byte(raw >> 24)
				return nil
			})
		h.Step(mem, tr)
	}

	Describe("stall", func() {
		It("parks the hart waiting on an interrupt when none is pending", func() {
			stepWith(stallInstr)
			Expect(h.IsWaiting(hart.WaitInterrupt)).To(BeTrue())
			Expect(h.PC).To(Equal(uint64(0x2004)), "stall resumes at the following instruction, not itself")
		})

		It("does not wait when an unmasked interrupt is already pending", func() {
			h.CSR.MIE = 1 << 3
			h.CSR.MIP = 1 << 3
			stepWith(stallInstr)
			Expect(h.IsWaiting(hart.WaitInterrupt)).To(BeFalse())
		})

		It("does not wait while the core holds exclusive mode", func() {
			h.Core.ExclMode = core.ExclModeFor(0)
			stepWith(stallInstr)
			Expect(h.IsWaiting(hart.WaitInterrupt)).To(BeFalse())
		})
	})

	Describe("tensor_load_start", func() {
		It("sets the sticky tensor_error instead of starting an op when L1+L2 scratchpad isn't enabled", func() {
			// csrrw x0, 0x7C1, x1 (tensor load start, control in x1)
			const loadInstr = uint32(0x7C1<<20 | 1<<15 | 1<<12 | 0x73)
			h.X[1] = 0
			stepWith(loadInstr)
			Expect(h.Core.Tensor.TakeError()).To(Equal(tensor.ErrorQuantSCPDisabled))
			Expect(h.Core.Tensor.Idle(tensor.KindLoad)).To(BeTrue())
		})

		It("enqueues a TLoad op once the scratchpad is enabled", func() {
			h.Core.MCacheControl = core.CacheModeL1AndL2
			const loadInstr = uint32(0x7C1<<20 | 1<<15 | 1<<12 | 0x73)
			h.X[1] = 0 // rows=1, addr=0, start=0, tenb=0, coop=0
			stepWith(loadInstr)
			Expect(h.Core.Tensor.Idle(tensor.KindLoad)).To(BeFalse())
			Expect(h.Core.Tensor.TakeError()).To(Equal(tensor.ErrorBits(0)))
		})
	})
})
