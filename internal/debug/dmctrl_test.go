package debug_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiresim/internal/debug"
)

// fakeHartOps records which operations dmctrl invoked and against which
// hart, so a spec can assert on side effects without a real Chip.
type fakeHartOps struct {
	count int

	warmReset, endWarmReset, resume, clearResumeAck, haltReq, ackHaveReset []uint32
	resetHaltSet, resetHaltClear                                           []uint32
	fullDebugReset, warmResetAll                                           int
}

func (f *fakeHartOps) HartCount() int                { return f.count }
func (f *fakeHartOps) WarmResetHart(h uint32)         { f.warmReset = append(f.warmReset, h) }
func (f *fakeHartOps) EndWarmResetHart(h uint32)      { f.endWarmReset = append(f.endWarmReset, h) }
func (f *fakeHartOps) ResumeHart(h uint32)            { f.resume = append(f.resume, h) }
func (f *fakeHartOps) ClearResumeAck(h uint32)        { f.clearResumeAck = append(f.clearResumeAck, h) }
func (f *fakeHartOps) HaltReq(h uint32)               { f.haltReq = append(f.haltReq, h) }
func (f *fakeHartOps) AckHaveReset(h uint32)          { f.ackHaveReset = append(f.ackHaveReset, h) }
func (f *fakeHartOps) SetResetHalt(h uint32, set bool) {
	if set {
		f.resetHaltSet = append(f.resetHaltSet, h)
	} else {
		f.resetHaltClear = append(f.resetHaltClear, h)
	}
}
func (f *fakeHartOps) WarmResetAllCompute() { f.warmResetAll++ }
func (f *fakeHartOps) FullDebugReset()      { f.fullDebugReset++ }

var _ = Describe("Dmctrl", func() {
	var (
		ops *fakeHartOps
		d   *debug.Dmctrl
	)

	BeforeEach(func() {
		ops = &fakeHartOps{count: 4}
		d = debug.New(ops, nil)
		d.SetSelection(debug.HartSel{HartSel: 2})
	})

	It("only drives the hart named by the current selection", func() {
		d.Write(debug.WriteBits{HaltReq: true})
		Expect(ops.haltReq).To(Equal([]uint32{2}))
	})

	It("routes a resume request to the selected hart without clearing resumeack yet", func() {
		d.Write(debug.WriteBits{ResumeReq: true})
		Expect(ops.resume).To(Equal([]uint32{2}))
		Expect(ops.clearResumeAck).To(BeEmpty())
	})

	It("clears resumeack on every selected hart once resumereq is no longer set", func() {
		d.Write(debug.WriteBits{ResumeReq: true})
		d.Write(debug.WriteBits{})
		Expect(ops.clearResumeAck).To(Equal([]uint32{2}))
	})

	It("fires a full debug reset on the dmactive 1->0 transition", func() {
		d.Write(debug.WriteBits{DMActive: true})
		Expect(ops.fullDebugReset).To(Equal(0))

		d.Write(debug.WriteBits{DMActive: false})
		Expect(ops.fullDebugReset).To(Equal(1))
	})

	It("fires a warm reset of all compute on the ndmreset 0->1 transition", func() {
		d.Write(debug.WriteBits{NDMReset: true})
		Expect(ops.warmResetAll).To(Equal(1))

		d.Write(debug.WriteBits{NDMReset: true})
		Expect(ops.warmResetAll).To(Equal(1))
	})

	It("warm-resets the selected hart and tracks havereset until hartreset clears", func() {
		d.Write(debug.WriteBits{HartReset: true})
		Expect(ops.warmReset).To(Equal([]uint32{2}))
		Expect(d.HaveResetBits[2]).To(BeTrue())
		Expect(ops.endWarmReset).To(BeEmpty())

		d.Write(debug.WriteBits{})
		Expect(ops.endWarmReset).To(Equal([]uint32{2}))
	})

	It("sets and clears a hart's reset-halt request", func() {
		d.Write(debug.WriteBits{SetResetHaltReq: true})
		Expect(ops.resetHaltSet).To(Equal([]uint32{2}))
		Expect(d.ResetHalt[2]).To(BeTrue())

		d.Write(debug.WriteBits{ClrResetHaltReq: true})
		Expect(ops.resetHaltClear).To(Equal([]uint32{2}))
		Expect(d.ResetHalt[2]).To(BeFalse())
	})
})

var _ = Describe("HartSel", func() {
	It("selects a single hart when hasel is clear", func() {
		sel := debug.HartSel{HartSel: 5}
		Expect(sel.Selected(5)).To(BeTrue())
		Expect(sel.Selected(6)).To(BeFalse())
	})

	It("unions hawindow and hartmask when hasel is set", func() {
		sel := debug.HartSel{HASel: true, HAWindow: 1 << 3, HartMask: 1 << 20}
		Expect(sel.Selected(3)).To(BeTrue())
		Expect(sel.Selected(20)).To(BeTrue())
		Expect(sel.Selected(4)).To(BeFalse())
	})
})
