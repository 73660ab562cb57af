package esr

import (
	"github.com/sarchlab/shiresim/internal/debug"
	"github.com/sarchlab/shiresim/internal/priv"
)

// Field IDs are this emulator's own numbering within each sub-region's
// namespace; spec.md names the fields but leaves their field-offset
// encoding unspecified (an Open Question decision, see DESIGN.md).
const (
	// Per-hart fields (SubHart).
	FieldIPITrigger      uint64 = 0
	FieldIPITriggerClear uint64 = 1
	FieldResetCause      uint64 = 2
	FieldSpinLock        uint64 = 3
	FieldMCacheControl   uint64 = 4
	FieldPMUCycles       uint64 = 5
	FieldPMUInstRet      uint64 = 6

	// Per-neighborhood fields (SubNeigh).
	FieldMinionFeature uint64 = 0
	FieldUCacheControl uint64 = 1

	// Per-shire-other fields (SubShireOther).
	FieldIPIRedirectTrigger uint64 = 0
	FieldIPIRedirectPC      uint64 = 1
	FieldIPIRedirectFilter  uint64 = 2
	FieldShireCoopMode      uint64 = 3
	FieldBroadcastData      uint64 = 4
	FieldWatchdog           uint64 = 5
	FieldPMULineLockEvents  uint64 = 6
	FieldSPDMCtrl           uint64 = 7

	// Debug-module fields (SubDebug). HACTRL/HAWINDOW/HARTMASK carry the
	// hart-selection mask that a subsequent DMCTRL write applies against
	// (split across three fields rather than packed into one 64-bit
	// register, since debug.HartSel itself needs a 64-bit window plus a
	// 32-bit mask in addition to hasel/hartsel; this emulator's own
	// field split, see DESIGN.md).
	FieldHACtrl     uint64 = 0
	FieldHAWindow   uint64 = 1
	FieldHartMask   uint64 = 2
	FieldDMCtrl     uint64 = 3
	FieldHAStatus0  uint64 = 4
	FieldNXProgBuf0 uint64 = 5
	FieldNXProgBuf1 uint64 = 6
	FieldABSCmd     uint64 = 7
)

// WatchdogKickBit is the magic "kick" bit of the WATCHDOG field (spec
// §4.2 "WATCHDOG is a fixed zero on read; write with the magic 'kick'
// bit pets the watchdog").
const WatchdogKickBit = 1 << 31

func (p *Plane) registerFields() {
	p.define(SubHart, FieldIPITrigger, &field{
		name: "IPI_TRIGGER",
		mask: 0xFFFFFFFF,
		write: func(p *Plane, a Addr, v uint64) error {
			p.hooks.RaiseIPI(int(a.Shire), uint32(v))
			return nil
		},
	})
	p.define(SubHart, FieldIPITriggerClear, &field{
		name: "IPI_TRIGGER_CLEAR",
		mask: 0xFFFFFFFF,
		write: func(p *Plane, a Addr, v uint64) error {
			p.hooks.ClearIPI(int(a.Shire), uint32(v))
			return nil
		},
	})
	p.define(SubHart, FieldResetCause, &field{
		name: "RESET_CAUSE",
		mask: 0xFFFFFFFF,
		read: func(p *Plane, a Addr) (uint64, error) {
			return uint64(p.hooks.ReadResetCause(int(a.Shire), int(a.Entity))), nil
		},
	})
	p.define(SubHart, FieldSpinLock, &field{
		name: "SPIN_LOCK",
		mask: 0xFFFFFFFF,
		read: func(p *Plane, a Addr) (uint64, error) {
			return uint64(p.hooks.ReadAndSetSpinLock(int(a.Shire), int(a.Entity))), nil
		},
	})
	p.define(SubHart, FieldMCacheControl, &field{
		name: "MCACHE_CONTROL",
		mask: 0x3,
		write: func(p *Plane, a Addr, v uint64) error {
			return p.hooks.SetCacheControl(int(a.Shire), int(a.Entity), uint32(v), false)
		},
	})
	p.define(SubHart, FieldPMUCycles, &field{
		name: "PMU_CYCLES",
		mask: ^uint64(0),
		read: func(p *Plane, a Addr) (uint64, error) {
			return p.hooks.ReadPMUCycles(int(a.Shire), int(a.Entity)), nil
		},
	})
	p.define(SubHart, FieldPMUInstRet, &field{
		name: "PMU_INST_RET",
		mask: ^uint64(0),
		read: func(p *Plane, a Addr) (uint64, error) {
			return p.hooks.ReadPMUInstRet(int(a.Shire), int(a.Entity)), nil
		},
	})

	p.define(SubNeigh, FieldMinionFeature, &field{
		name: "MINION_FEATURE",
		mask: 0xFFFFFFFF,
		write: func(p *Plane, a Addr, v uint64) error {
			for minion := 0; minion < 4; minion++ {
				bit := (v >> uint(minion)) & 1
				p.hooks.SetMinionFeature(int(a.Shire), int(a.Entity), minion, uint32(bit))
			}
			p.storage[keyOf(a)] = v & 0xFFFFFFFF
			return nil
		},
	})
	p.define(SubNeigh, FieldUCacheControl, &field{
		name: "UCACHE_CONTROL",
		mask: 0x3,
		write: func(p *Plane, a Addr, v uint64) error {
			// Applies to every hart of the neighborhood uniformly.
			for minion := 0; minion < 8; minion++ {
				for thread := 0; thread < 2; thread++ {
					hart := int(a.Entity)*16 + minion*2 + thread
					if err := p.hooks.SetCacheControl(int(a.Shire), hart, uint32(v), true); err != nil {
						return err
					}
				}
			}
			return nil
		},
	})

	p.define(SubShireOther, FieldIPIRedirectTrigger, &field{
		name: "IPI_REDIRECT_TRIGGER",
		mask: 0xFFFFFFFF,
		write: func(p *Plane, a Addr, v uint64) error {
			pcKey := bankKey{sub: SubShireOther, shire: a.Shire, field: FieldIPIRedirectPC}
			pc := p.storage[pcKey]
			p.hooks.IPIRedirect(int(a.Shire), uint32(v), pc)
			return nil
		},
	})
	p.define(SubShireOther, FieldIPIRedirectPC, identity("IPI_REDIRECT_PC", ^uint64(0)))
	p.define(SubShireOther, FieldIPIRedirectFilter, identity("IPI_REDIRECT_FILTER", 0xFFFFFFFF))
	p.define(SubShireOther, FieldShireCoopMode, &field{
		name: "SHIRE_COOP_MODE",
		mask: 0xFFFFFFFF,
		write: func(p *Plane, a Addr, v uint64) error {
			p.storage[keyOf(a)] = v & 0xFFFFFFFF
			if v == 0 {
				p.hooks.CancelICachePrefetch(int(a.Shire))
			}
			return nil
		},
	})
	p.define(SubShireOther, FieldBroadcastData, &field{
		name: "BROADCAST_DATA",
		mask: ^uint64(0),
		write: func(p *Plane, a Addr, v uint64) error {
			p.broadcastData = v
			return nil
		},
		read: func(p *Plane, a Addr) (uint64, error) {
			return p.broadcastData, nil
		},
	})
	p.define(SubShireOther, FieldWatchdog, &field{
		name: "WATCHDOG",
		mask: 0xFFFFFFFF,
		read: func(p *Plane, a Addr) (uint64, error) {
			return 0, nil
		},
		write: func(p *Plane, a Addr, v uint64) error {
			if v&WatchdogKickBit != 0 {
				p.hooks.KickWatchdog(int(a.Shire))
			}
			return nil
		},
	})
	p.define(SubShireOther, FieldPMULineLockEvents, &field{
		name: "PMU_LINE_LOCK_EVENTS",
		mask: 0xFFFFFFFF,
		read: func(p *Plane, a Addr) (uint64, error) {
			return uint64(p.hooks.TakeLineLockEvents(int(a.Shire))), nil
		},
	})
	p.define(SubShireOther, FieldSPDMCtrl, &field{
		name: "SPDMCTRL",
		// Most bits are FIXME in the original implementation (spec §9
		// Open Questions); decode and store the bits it does define
		// (ndmreset at bit 1, the low nibble of request bits) and leave
		// the rest inert.
		mask: 0xF000000E,
		write: func(p *Plane, a Addr, v uint64) error {
			old := p.storage[keyOf(a)]
			newv := v & 0xF000000E
			p.storage[keyOf(a)] = newv
			const ndmresetBit = 1 << 1
			if old&ndmresetBit == 0 && newv&ndmresetBit != 0 {
				p.hooks.CancelICachePrefetch(int(a.Shire)) // placeholder reset kick, see DESIGN.md
			}
			return nil
		},
		read: func(p *Plane, a Addr) (uint64, error) {
			return p.storage[keyOf(a)] & 0x2FFFFFF3, nil
		},
	})

	p.define(SubDebug, FieldHAWindow, identity("HAWINDOW", ^uint64(0)))
	p.define(SubDebug, FieldHartMask, identity("HARTMASK", 0xFFFFFFFF))
	p.define(SubDebug, FieldHACtrl, &field{
		name: "HACTRL",
		// bit0 = hasel, bits[32:1] = hartsel; HAWINDOW/HARTMASK are
		// written separately beforehand and picked up here (spec §4.6
		// "For the current hart-selection mask").
		mask: 0x1FFFFFFFF,
		write: func(p *Plane, a Addr, v uint64) error {
			p.storage[keyOf(a)] = v & 0x1FFFFFFFF
			sel := debug.HartSel{
				HASel:    v&1 != 0,
				HartSel:  uint32((v >> 1) & 0xFFFFFFFF),
				HAWindow: p.storage[bankKey{sub: SubDebug, field: FieldHAWindow}],
				HartMask: uint32(p.storage[bankKey{sub: SubDebug, field: FieldHartMask}]),
			}
			p.hooks.SetDebugSelection(sel)
			return nil
		},
	})
	p.define(SubDebug, FieldDMCtrl, &field{
		name: "DMCTRL",
		// dmcontrol bit layout (RISC-V debug spec 1.0 §3.14): haltreq@31,
		// resumereq@30, hartreset@29, ackhavereset@28, setresethaltreq@3,
		// clrresethaltreq@2, ndmreset@1, dmactive@0. hasel/hartsello live
		// in HACTRL instead (see above), so they're not decoded here.
		mask: 0xFFFFFFFF,
		write: func(p *Plane, a Addr, v uint64) error {
			p.storage[keyOf(a)] = v & 0xFFFFFFFF
			p.hooks.WriteDmctrl(debug.WriteBits{
				HaltReq:         v&(1<<31) != 0,
				ResumeReq:       v&(1<<30) != 0,
				HartReset:       v&(1<<29) != 0,
				AckHaveReset:    v&(1<<28) != 0,
				SetResetHaltReq: v&(1<<3) != 0,
				ClrResetHaltReq: v&(1<<2) != 0,
				NDMReset:        v&(1<<1) != 0,
				DMActive:        v&1 != 0,
			})
			return nil
		},
		read: func(p *Plane, a Addr) (uint64, error) {
			return p.storage[keyOf(a)], nil
		},
	})
	p.define(SubDebug, FieldHAStatus0, &field{
		name: "HASTATUS0",
		mask: ^uint64(0),
		read: func(p *Plane, a Addr) (uint64, error) {
			return p.hooks.ReadHAStatus0(), nil
		},
	})
	p.define(SubDebug, FieldNXProgBuf0, identity("NXPROGBUF0", 0xFFFFFFFF))
	p.define(SubDebug, FieldNXProgBuf1, identity("NXPROGBUF1", 0xFFFFFFFF))
	p.define(SubDebug, FieldABSCmd, &field{
		name: "ABSCMD",
		mask: 0xFFFFFFFF,
		write: func(p *Plane, a Addr, v uint64) error {
			pb0 := uint32(p.storage[bankKey{sub: SubDebug, field: FieldNXProgBuf0}])
			pb1 := uint32(p.storage[bankKey{sub: SubDebug, field: FieldNXProgBuf1}])
			p.hooks.RunAbstractCommand(pb0, pb1)
			return nil
		},
	})

	// Broadcast sub-region: {U,S,M}BROADCAST fields. Each privilege gets
	// its own field id equal to the privilege, so the written mask always
	// reaches writeBroadcastReplica before any per-field lookup of the
	// *target* register (which is resolved against SubShireOther inside
	// writeBroadcastReplica, not here).
	for level := priv.User; level <= priv.Machine; level++ {
		p.define(SubBroadcast, uint64(level), &field{name: level.String() + "BROADCAST", mask: ^uint64(0)})
	}
}
