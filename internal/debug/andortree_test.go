package debug_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiresim/internal/debug"
)

var _ = Describe("ReduceLevel0", func() {
	It("zeros every all* bit when no hart in the neighborhood is selected", func() {
		r := debug.ReduceLevel0([]debug.HAStatus0{
			{Halted: true},
			{Halted: true},
		})
		Expect(r.AnySelected).To(BeFalse())
		Expect(r.AllHalted).To(BeFalse())
		Expect(r.AnyHalted).To(BeFalse())
	})

	It("ANDs/ORs only over the selected harts", func() {
		r := debug.ReduceLevel0([]debug.HAStatus0{
			{Selected: true, Halted: true, Running: false},
			{Selected: true, Halted: false, Running: true},
			{Selected: false, Halted: false, Running: false},
		})
		Expect(r.AnySelected).To(BeTrue())
		Expect(r.AnyHalted).To(BeTrue())
		Expect(r.AllHalted).To(BeFalse())
		Expect(r.AnyRunning).To(BeTrue())
		Expect(r.AllRunning).To(BeFalse())
	})

	It("sets an all* bit true when every selected hart agrees", func() {
		r := debug.ReduceLevel0([]debug.HAStatus0{
			{Selected: true, HaveReset: true},
			{Selected: true, HaveReset: true},
		})
		Expect(r.AllHaveReset).To(BeTrue())
	})
})

var _ = Describe("ReduceHigherLevel", func() {
	It("propagates selection upward across neighborhoods", func() {
		lower := []debug.Level0{
			debug.ReduceLevel0([]debug.HAStatus0{{Selected: true, Halted: true}}),
			debug.ReduceLevel0([]debug.HAStatus0{}),
		}
		r := debug.ReduceHigherLevel(lower)
		Expect(r.AnySelected).To(BeTrue())
		Expect(r.AnyHalted).To(BeTrue())
	})

	It("zeros all* bits when nothing anywhere below was selected", func() {
		lower := []debug.Level0{
			debug.ReduceLevel0(nil),
			debug.ReduceLevel0(nil),
		}
		r := debug.ReduceHigherLevel(lower)
		Expect(r.AnySelected).To(BeFalse())
		Expect(r.AllHalted).To(BeFalse())
	})
})
