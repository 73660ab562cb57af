package esr

import (
	"github.com/sarchlab/shiresim/internal/debug"
	"github.com/sarchlab/shiresim/internal/priv"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

// Hooks is the chip-level contract the ESR plane calls into for
// side-effecting fields (spec §4.2 "Behavior"). It is satisfied by
// internal/chip.Chip; the esr package never imports chip, keeping the
// dependency direction leaf-ward per spec §3 "Ownership".
type Hooks interface {
	// ResolveLocalShire returns the shire index of the issuing agent, or
	// false if the access has no hart context (spec §4.2: "made illegal
	// if no hart context").
	ResolveLocalShire(agentShire int, hasContext bool) (int, bool)

	// SetMinionFeature re-evaluates thread1_disable for the given
	// neighborhood/minion after a MINION_FEATURE write (spec §4.4).
	SetMinionFeature(shire, neigh, minion int, value uint32)

	// RaiseIPI/ClearIPI set or clear the machine-software interrupt
	// (mip.MSIP) on the harts selected by mask within shire.
	RaiseIPI(shire int, hartMask uint32)
	ClearIPI(shire int, hartMask uint32)

	// IPIRedirect implements IPI_REDIRECT_TRIGGER: for each hart selected
	// by mask that is Waiting(interrupt) in user mode, jump its pc to pc
	// and wake it; any other hart state raises a "bad IPI redirect"
	// interrupt on that hart instead (spec §4.2).
	IPIRedirect(shire int, hartMask uint32, pc uint64)

	// CancelICachePrefetch cancels active icache prefetches for a shire
	// (SHIRE_COOP_MODE = 0, spec §4.2).
	CancelICachePrefetch(shire int)

	// SetCacheControl applies the MCACHE_CONTROL/UCACHE_CONTROL mode
	// transition rules for the addressed hart (spec §4.2).
	SetCacheControl(shire int, hart int, value uint32, user bool) error

	// ReadResetCause/SpinLock implement read-with-side-effect fields.
	ReadResetCause(shire, hart int) uint32
	ReadAndSetSpinLock(shire, entity int) uint32

	// KickWatchdog pets the shire's watchdog on a magic-bit write.
	KickWatchdog(shire int)

	// PMU counters, read-only except the sticky lock-event counter.
	ReadPMUCycles(shire, hart int) uint64
	ReadPMUInstRet(shire, hart int) uint64
	TakeLineLockEvents(shire int) uint32

	// ShireCount reports the chip's total shire count, for broadcast
	// bitmask validation.
	ShireCount() int

	// SetDebugSelection applies a HACTRL hasel/hartsel write to the
	// debug module's current hart-selection mask (spec §4.6).
	SetDebugSelection(sel debug.HartSel)

	// WriteDmctrl applies a decoded DMCTRL write (spec §4.6).
	WriteDmctrl(w debug.WriteBits)

	// ReadHAStatus0 computes the chip-wide AND/OR status tree over the
	// current hart selection (spec §4.6).
	ReadHAStatus0() uint64

	// RunAbstractCommand executes the NXPROGBUF0/1 program against every
	// currently-selected, halted hart (spec §4.6).
	RunAbstractCommand(progbuf0, progbuf1 uint32)
}

// field is one defined ESR register: its read/write side effects and
// writable-bit mask (spec §4.2 "Behavior": "Each known field has
// (read-effect, write-effect, writable-bit-mask)").
type field struct {
	name  string
	mask  uint64
	read  func(p *Plane, a Addr) (uint64, error)
	write func(p *Plane, a Addr, v uint64) error
}

// bankKey identifies one register instance: which sub-region, which
// shire, which entity within the shire, and which field.
type bankKey struct {
	sub    SubRegion
	shire  uint32
	entity uint32
	field  uint64
}

// Plane is the ESR register bus overlay (spec §4.2).
type Plane struct {
	hooks   Hooks
	fields  map[fieldKey]*field
	storage map[bankKey]uint64

	// broadcastData stashes the payload of the most recent BROADCAST_DATA
	// write, replicated by a subsequent {U,S,M}BROADCAST write (spec
	// §4.2).
	broadcastData uint64
}

type fieldKey struct {
	sub   SubRegion
	field uint64
}

// NewPlane builds an ESR plane wired to the given chip hooks.
func NewPlane(hooks Hooks) *Plane {
	p := &Plane{
		hooks:   hooks,
		fields:  map[fieldKey]*field{},
		storage: map[bankKey]uint64{},
	}
	p.registerFields()
	return p
}

func (p *Plane) define(sub SubRegion, id uint64, f *field) {
	p.fields[fieldKey{sub, id}] = f
}

// identity is the default read-write field behavior: write stores masked
// bits, read returns the stored value (spec §8 "ESR decoder consistency":
// "identity for read-write").
func identity(name string, mask uint64) *field {
	return &field{
		name: name,
		mask: mask,
		read: func(p *Plane, a Addr) (uint64, error) {
			return p.storage[keyOf(a)], nil
		},
		write: func(p *Plane, a Addr, v uint64) error {
			p.storage[keyOf(a)] = v & mask
			return nil
		},
	}
}

func keyOf(a Addr) bankKey {
	return bankKey{sub: a.Sub, shire: a.Shire, entity: a.Entity, field: a.Field}
}

// resolve finishes address decode given the issuing context: turns a
// LocalShire sentinel into a concrete shire index, faulting if there is
// no hart context to resolve against (spec §4.2).
func (p *Plane) resolve(a Addr, agentShire int, hasContext bool) (Addr, error) {
	if a.Shire == LocalShire {
		shire, ok := p.hooks.ResolveLocalShire(agentShire, hasContext)
		if !ok {
			return a, trapkind.NewMemoryError(a.Raw)
		}
		a.Shire = uint32(shire)
	}
	return a, nil
}

// Read performs an ESR read (spec §4.2). agentShire/hasContext describe
// the issuing agent for local-shire resolution; currentPriv is the
// issuing privilege level for the PP access check.
func (p *Plane) Read(addr uint64, agentShire int, hasContext bool, currentPriv priv.Level) (uint64, error) {
	a := Decode(addr)
	if a.Priv > currentPriv {
		return 0, trapkind.NewMemoryError(addr)
	}
	a, err := p.resolve(a, agentShire, hasContext)
	if err != nil {
		return 0, err
	}
	f, ok := p.fields[fieldKey{a.Sub, a.Field}]
	if !ok {
		return 0, trapkind.NewSysregError(addr)
	}
	if f.read == nil {
		return p.storage[keyOf(a)], nil
	}
	return f.read(p, a)
}

// Write performs an ESR write (spec §4.2), including BROADCAST fan-out
// (spec §4.2 "Behavior"): writes to neigh=BROADCAST fan out across the
// four neighborhoods of the target shire, and writes to a *BROADCAST
// address replicate the stashed BROADCAST_DATA payload across every
// shire whose bit is set in the low 40 bits of the written value.
func (p *Plane) Write(addr uint64, value uint64, agentShire int, hasContext bool, currentPriv priv.Level) error {
	a := Decode(addr)
	if a.Priv > currentPriv {
		return trapkind.NewMemoryError(addr)
	}
	a, err := p.resolve(a, agentShire, hasContext)
	if err != nil {
		return err
	}

	if a.Sub == SubBroadcast {
		return p.writeBroadcastReplica(a, value)
	}

	if a.Sub == SubNeigh && a.Entity == NeighBroadcast {
		for neigh := 0; neigh < 4; neigh++ {
			na := a
			na.Entity = uint32(neigh)
			if err := p.writeOne(na, value); err != nil {
				return err
			}
		}
		return nil
	}

	return p.writeOne(a, value)
}

func (p *Plane) writeOne(a Addr, value uint64) error {
	f, ok := p.fields[fieldKey{a.Sub, a.Field}]
	if !ok {
		return trapkind.NewSysregError(a.Raw)
	}
	if f.write == nil {
		p.storage[keyOf(a)] = value & f.mask
		return nil
	}
	return f.write(p, a, value)
}

// writeBroadcastReplica implements {U,S,M}BROADCAST: the payload word
// previously stashed by BROADCAST_DATA is replicated to the decoded
// target ESR address on every shire whose bit is set in the low 40 bits
// of the value written here (spec §4.2, §8 "Broadcast ESR").
func (p *Plane) writeBroadcastReplica(a Addr, mask64 uint64) error {
	mask := mask64 & ((1 << 40) - 1)
	payload := p.broadcastData
	n := p.hooks.ShireCount()
	for shire := 0; shire < n && shire < 40; shire++ {
		if mask&(1<<uint(shire)) == 0 {
			continue
		}
		ta := a
		ta.Shire = uint32(shire)
		ta.Sub = SubShireOther
		if err := p.writeOne(ta, payload); err != nil {
			return err
		}
	}
	return nil
}
