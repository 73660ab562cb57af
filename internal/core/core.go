// Package core implements the per-minion shared state: the two harts of
// one minion share SATP/MATP, the L1 scratchpad, the cache-mode byte and
// the tensor coprocessor FSMs through the core's tqueue (spec §3 "Core").
package core

import (
	"github.com/sarchlab/shiresim/internal/tensor"
)

// ScratchpadRows is the architectural L1 scratchpad row count: 32 data
// rows plus the TenB shadow rows (spec §3 "Core": "32 + TenB shadow
// rows").
const ScratchpadRows = 32 + 32

// VLenBytes is the width in bytes of one scratchpad row / vector
// register (spec §3 "32 + TenB shadow rows of VLEN bytes").
const VLenBytes = 64

// CacheMode is the value of mcache_control / ucache_control (spec §4.2
// "MCACHE_CONTROL/UCACHE_CONTROL").
type CacheMode byte

const (
	CacheModeDisabled CacheMode = 0
	CacheModeL1Only   CacheMode = 1
	CacheModeL1AndL2  CacheMode = 3
)

// legalCacheTransitions encodes the mode transition rules of spec §4.2:
// "{0→{0,1}, 1→{1,3}, 3→{1,3}}".
var legalCacheTransitions = map[CacheMode]map[CacheMode]bool{
	CacheModeDisabled: {CacheModeDisabled: true, CacheModeL1Only: true},
	CacheModeL1Only:    {CacheModeL1Only: true, CacheModeL1AndL2: true},
	CacheModeL1AndL2:   {CacheModeL1Only: true, CacheModeL1AndL2: true},
}

// LegalCacheTransition reports whether from->to is an allowed
// MCACHE_CONTROL/UCACHE_CONTROL transition.
func LegalCacheTransition(from, to CacheMode) bool {
	allowed, ok := legalCacheTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// ExclMode encodes which thread of the minion, if any, holds exclusive
// mode (spec §4.4 "Exclusive mode"): 0 = none, else
// 1 + ((hartid&1)<<1), i.e. 1 for thread 0 owning, 3 for thread 1 owning.
type ExclMode uint8

const (
	ExclNone    ExclMode = 0
	ExclThread0 ExclMode = 1
	ExclThread1 ExclMode = 3
)

// OwnerThread returns which thread index owns exclusive mode, or -1 if
// none does.
func (e ExclMode) OwnerThread() int {
	switch e {
	case ExclThread0:
		return 0
	case ExclThread1:
		return 1
	default:
		return -1
	}
}

// ExclModeFor computes the core's excl_mode value when thread hartThread
// (0 or 1) writes EXCL_MODE=1 (spec §4.4: "excl_mode = 1 +
// ((hartid&1)<<1)").
func ExclModeFor(hartThread int) ExclMode {
	return ExclMode(1 + ((hartThread & 1) << 1))
}

// ScratchRow is one L1 scratchpad row: VLEN bytes of data plus its lock
// bit and the physical address it is locked to (spec §3 "Core": "the
// per-row lock bit and locked PA").
type ScratchRow struct {
	Data   [VLenBytes]byte
	Locked bool
	LockPA uint64
}

// Core is the per-minion shared state of the two harts it owns (spec §3
// "Core").
type Core struct {
	ID ID

	SATP uint64
	MATP uint64

	Scratch [ScratchpadRows]ScratchRow

	MCacheControl CacheMode
	UCacheControl CacheMode

	ExclMode ExclMode

	Tensor tensor.FSMs
}

// ID identifies a minion (core.ID == hart.CoreID, kept distinct to avoid
// a package-level dependency from core on hart, spec §9 "non-owning
// indices into Chip's arrays").
type ID uint32

// New builds a fresh core in its reset state.
func New(id ID) *Core {
	return &Core{ID: id}
}

// ClearAllScratchLocks clears every row lock, performed when
// MCACHE_CONTROL disables the L1 scratchpad (bit 1 clears, spec §4.2).
func (c *Core) ClearAllScratchLocks() {
	for i := range c.Scratch {
		c.Scratch[i].Locked = false
	}
}

// Row returns the scratchpad row at index modulo ScratchpadRows (spec
// §4.5 "rows [start..start+rows) modulo 32" — the modulus for the
// combined data+TenB row space is ScratchpadRows).
func (c *Core) Row(index int) *ScratchRow {
	n := len(c.Scratch)
	return &c.Scratch[((index%n)+n)%n]
}
