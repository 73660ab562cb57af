package esr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiresim/internal/debug"
	"github.com/sarchlab/shiresim/internal/esr"
	"github.com/sarchlab/shiresim/internal/priv"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

type ipiCall struct {
	shire int
	mask  uint32
}

type redirectCall struct {
	shire int
	mask  uint32
	pc    uint64
}

type cacheCtrlCall struct {
	shire, hart int
	value       uint32
	user        bool
}

type minionFeatureCall struct {
	shire, neigh, minion int
	value                uint32
}

type fakeHooks struct {
	localShire int
	hasLocal   bool
	shireCount int

	raiseIPI, clearIPI []ipiCall
	redirects          []redirectCall
	cacheCtrls         []cacheCtrlCall
	minionFeatures     []minionFeatureCall
	cancelledPrefetch  []int
	kicked             []int

	resetCause  uint32
	spinLock    uint32
	pmuCycles   uint64
	pmuInstRet  uint64
	lineLocks   uint32

	debugSelections []debug.HartSel
	dmctrlWrites    []debug.WriteBits
	haStatus0       uint64
	abstractCmds    []abstractCmdCall
}

type abstractCmdCall struct {
	progbuf0, progbuf1 uint32
}

func (f *fakeHooks) ResolveLocalShire(agentShire int, hasContext bool) (int, bool) {
	if !hasContext {
		return 0, false
	}
	return f.localShire, f.hasLocal
}
func (f *fakeHooks) SetMinionFeature(shire, neigh, minion int, value uint32) {
	f.minionFeatures = append(f.minionFeatures, minionFeatureCall{shire, neigh, minion, value})
}
func (f *fakeHooks) RaiseIPI(shire int, hartMask uint32) {
	f.raiseIPI = append(f.raiseIPI, ipiCall{shire, hartMask})
}
func (f *fakeHooks) ClearIPI(shire int, hartMask uint32) {
	f.clearIPI = append(f.clearIPI, ipiCall{shire, hartMask})
}
func (f *fakeHooks) IPIRedirect(shire int, hartMask uint32, pc uint64) {
	f.redirects = append(f.redirects, redirectCall{shire, hartMask, pc})
}
func (f *fakeHooks) CancelICachePrefetch(shire int) { f.cancelledPrefetch = append(f.cancelledPrefetch, shire) }
func (f *fakeHooks) SetCacheControl(shire, hart int, value uint32, user bool) error {
	f.cacheCtrls = append(f.cacheCtrls, cacheCtrlCall{shire, hart, value, user})
	return nil
}
func (f *fakeHooks) ReadResetCause(shire, hart int) uint32      { return f.resetCause }
func (f *fakeHooks) ReadAndSetSpinLock(shire, entity int) uint32 { return f.spinLock }
func (f *fakeHooks) KickWatchdog(shire int)                      { f.kicked = append(f.kicked, shire) }
func (f *fakeHooks) ReadPMUCycles(shire, hart int) uint64        { return f.pmuCycles }
func (f *fakeHooks) ReadPMUInstRet(shire, hart int) uint64       { return f.pmuInstRet }
func (f *fakeHooks) TakeLineLockEvents(shire int) uint32         { return f.lineLocks }
func (f *fakeHooks) ShireCount() int                             { return f.shireCount }
func (f *fakeHooks) SetDebugSelection(sel debug.HartSel) {
	f.debugSelections = append(f.debugSelections, sel)
}
func (f *fakeHooks) WriteDmctrl(w debug.WriteBits) {
	f.dmctrlWrites = append(f.dmctrlWrites, w)
}
func (f *fakeHooks) ReadHAStatus0() uint64 { return f.haStatus0 }
func (f *fakeHooks) RunAbstractCommand(progbuf0, progbuf1 uint32) {
	f.abstractCmds = append(f.abstractCmds, abstractCmdCall{progbuf0, progbuf1})
}

func hartAddr(sub esr.SubRegion, shire, entity uint32, field uint64) uint64 {
	off := uint64(shire)<<22 | uint64(sub)<<17 | uint64(entity)<<12 | field<<3
	return esr.Base + off
}

func neighAddr(shire, neigh uint32, field uint64) uint64 {
	off := uint64(shire)<<22 | uint64(esr.SubNeigh)<<17 | uint64(neigh)<<16 | field<<3
	return esr.Base + off
}

func shireOtherAddr(shire uint32, field uint64) uint64 {
	off := uint64(shire)<<22 | uint64(esr.SubShireOther)<<17 | field<<3
	return esr.Base + off
}

func debugAddr(field uint64) uint64 {
	off := uint64(esr.SubDebug)<<17 | field<<3
	return esr.Base + off
}

func broadcastAddr(level priv.Level) uint64 {
	off := uint64(esr.SubBroadcast)<<17 | uint64(level)<<3
	return esr.Base + off
}

var _ = Describe("Plane", func() {
	var (
		hooks *fakeHooks
		p     *esr.Plane
	)

	BeforeEach(func() {
		hooks = &fakeHooks{shireCount: 4}
		p = esr.NewPlane(hooks)
	})

	It("faults a read to an undefined field with a sysreg error", func() {
		_, err := p.Read(hartAddr(esr.SubHart, 0, 0, 0xFF), 0, true, priv.Machine)
		var sysErr *trapkind.SysregError
		Expect(err).To(BeAssignableToTypeOf(sysErr))
	})

	It("rejects an access whose encoded privilege exceeds the issuer's", func() {
		off := uint64(priv.Supervisor)<<30 | uint64(esr.SubHart)<<17 | esr.FieldResetCause<<3
		_, err := p.Read(esr.Base+off, 0, true, priv.User)
		Expect(err).To(HaveOccurred())
	})

	It("raises an IPI through the per-hart trigger field", func() {
		err := p.Write(hartAddr(esr.SubHart, 2, 0, esr.FieldIPITrigger), 0b101, 0, true, priv.Machine)
		Expect(err).NotTo(HaveOccurred())
		Expect(hooks.raiseIPI).To(ConsistOf(ipiCall{shire: 2, mask: 0b101}))
	})

	It("resolves LocalShire against the issuing hart's shire", func() {
		hooks.localShire, hooks.hasLocal = 3, true
		addr := esr.Base | (uint64(esr.LocalShire) << 22) | (uint64(esr.SubHart) << 17) | (esr.FieldIPITrigger << 3)
		Expect(p.Write(addr, 1, 0, true, priv.Machine)).To(Succeed())
		Expect(hooks.raiseIPI).To(ConsistOf(ipiCall{shire: 3, mask: 1}))
	})

	It("faults LocalShire resolution with no hart context", func() {
		addr := esr.Base | (uint64(esr.LocalShire) << 22) | (uint64(esr.SubHart) << 17) | (esr.FieldIPITrigger << 3)
		err := p.Write(addr, 1, 0, false, priv.Machine)
		Expect(err).To(HaveOccurred())
	})

	It("routes a per-hart MCACHE_CONTROL write through SetCacheControl", func() {
		err := p.Write(hartAddr(esr.SubHart, 1, 9, esr.FieldMCacheControl), 0x3, 0, true, priv.Machine)
		Expect(err).NotTo(HaveOccurred())
		Expect(hooks.cacheCtrls).To(ConsistOf(cacheCtrlCall{shire: 1, hart: 9, value: 0x3, user: false}))
	})

	It("reads PMU cycles from the hooks rather than local storage", func() {
		hooks.pmuCycles = 0xdeadbeef
		v, err := p.Read(hartAddr(esr.SubHart, 0, 5, esr.FieldPMUCycles), 0, true, priv.Machine)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint64(0xdeadbeef)))
	})

	It("fans a per-neighborhood broadcast write out across all four neighborhoods", func() {
		err := p.Write(neighAddr(0, esr.NeighBroadcast, esr.FieldMinionFeature), 0b0101, 0, true, priv.Machine)
		Expect(err).NotTo(HaveOccurred())
		Expect(hooks.minionFeatures).To(HaveLen(16)) // 4 neighborhoods x 4 minions

		neighs := map[int]bool{}
		for _, c := range hooks.minionFeatures {
			neighs[c.neigh] = true
		}
		Expect(neighs).To(HaveLen(4))
	})

	It("pets the watchdog only on the magic kick bit", func() {
		Expect(p.Write(shireOtherAddr(0, esr.FieldWatchdog), 0, 0, true, priv.Machine)).To(Succeed())
		Expect(hooks.kicked).To(BeEmpty())

		Expect(p.Write(shireOtherAddr(0, esr.FieldWatchdog), esr.WatchdogKickBit, 0, true, priv.Machine)).To(Succeed())
		Expect(hooks.kicked).To(Equal([]int{0}))
	})

	It("replicates the stashed BROADCAST_DATA payload to every shire selected by the mask", func() {
		Expect(p.Write(shireOtherAddr(0, esr.FieldBroadcastData), 0xCAFE, 0, true, priv.Machine)).To(Succeed())

		err := p.Write(broadcastAddr(priv.User), 0b0101, 0, true, priv.Machine)
		Expect(err).NotTo(HaveOccurred())

		Expect(hooks.redirects).To(ConsistOf(
			redirectCall{shire: 0, mask: 0xCAFE, pc: 0},
			redirectCall{shire: 2, mask: 0xCAFE, pc: 0},
		))
	})

	It("title-cases a registered field's name for dumps", func() {
		Expect(p.FieldName(esr.SubHart, esr.FieldMCacheControl)).To(Equal("Mcache Control"))
		Expect(p.FieldName(esr.SubShireOther, esr.FieldSPDMCtrl)).To(Equal("Spdmctrl"))
	})

	It("returns empty for an unregistered field id", func() {
		Expect(p.FieldName(esr.SubHart, 0xFF)).To(Equal(""))
	})

	It("decodes a HACTRL write into a hart-selection mask using the prior HAWINDOW/HARTMASK writes", func() {
		Expect(p.Write(debugAddr(esr.FieldHAWindow), 0xFF, 0, true, priv.Machine)).To(Succeed())
		Expect(p.Write(debugAddr(esr.FieldHartMask), 0xF0, 0, true, priv.Machine)).To(Succeed())
		Expect(p.Write(debugAddr(esr.FieldHACtrl), 0b11, 0, true, priv.Machine)).To(Succeed())

		Expect(hooks.debugSelections).To(ConsistOf(debug.HartSel{
			HASel:    true,
			HartSel:  1,
			HAWindow: 0xFF,
			HartMask: 0xF0,
		}))
	})

	It("decodes a DMCTRL write into dmcontrol's bit layout", func() {
		const haltreq, dmactive = 1 << 31, 1
		Expect(p.Write(debugAddr(esr.FieldDMCtrl), haltreq|dmactive, 0, true, priv.Machine)).To(Succeed())

		Expect(hooks.dmctrlWrites).To(ConsistOf(debug.WriteBits{
			HaltReq:  true,
			DMActive: true,
		}))
	})

	It("reads HASTATUS0 straight from the hooks", func() {
		hooks.haStatus0 = 0x7
		v, err := p.Read(debugAddr(esr.FieldHAStatus0), 0, true, priv.Machine)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint64(0x7)))
	})

	It("runs an abstract command against the stashed NXPROGBUF0/1 words", func() {
		Expect(p.Write(debugAddr(esr.FieldNXProgBuf0), 0x1111, 0, true, priv.Machine)).To(Succeed())
		Expect(p.Write(debugAddr(esr.FieldNXProgBuf1), 0x2222, 0, true, priv.Machine)).To(Succeed())
		Expect(p.Write(debugAddr(esr.FieldABSCmd), 0, 0, true, priv.Machine)).To(Succeed())

		Expect(hooks.abstractCmds).To(ConsistOf(abstractCmdCall{progbuf0: 0x1111, progbuf1: 0x2222}))
	})
})
