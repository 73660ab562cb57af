// Package plic implements a platform-level interrupt controller: per
// interrupt source priority and pending state, per-context (hart)
// enable bits and priority threshold, and edge-triggered claim/complete
// (spec §2, §6 "PLIC").
package plic

import (
	"encoding/binary"
	"sync"

	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

const (
	maxSources = 64
	maxContexts = 256

	regPriorityBase = 0x000000
	regPendingBase  = 0x001000
	regEnableBase   = 0x002000
	regEnableStride = 0x80
	regContextBase  = 0x200000
	regContextStride = 0x1000
	regThresholdOff = 0
	regClaimOff     = 4
)

// PLIC is a platform-level interrupt controller.
type PLIC struct {
	mu sync.Mutex

	priority  [maxSources]uint32
	pending   [maxSources]bool
	claimed   [maxSources]bool
	enable    [maxContexts][maxSources]bool
	threshold [maxContexts]uint32

	name  string
	first uint64
	size  uint64
}

// New builds a PLIC region spanning [first, first+size).
func New(name string, first, size uint64) *PLIC {
	return &PLIC{name: name, first: first, size: size}
}

// Raise marks source as pending (an external device asserting its line).
func (p *PLIC) Raise(source int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if source >= 0 && source < maxSources {
		p.pending[source] = true
	}
}

// Clear marks source as no longer asserted.
func (p *PLIC) Clear(source int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if source >= 0 && source < maxSources {
		p.pending[source] = false
	}
}

// Pending reports whether context (hart) has a claimable, enabled
// interrupt above its threshold — the condition the scheduler checks
// each tick to feed the external-interrupt pending bit (spec §4.4 step
// 3, ext_seip).
func (p *PLIC) Pending(context int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highestPendingLocked(context) >= 0
}

func (p *PLIC) highestPendingLocked(context int) int {
	best := -1
	bestPrio := p.threshold[context]
	for s := 0; s < maxSources; s++ {
		if !p.pending[s] || p.claimed[s] || !p.enable[context][s] {
			continue
		}
		if p.priority[s] > bestPrio {
			bestPrio = p.priority[s]
			best = s
		}
	}
	return best
}

func (p *PLIC) Name() string      { return p.name }
func (p *PLIC) First() uint64     { return p.first }
func (p *PLIC) Last() uint64      { return p.first + p.size - 1 }
func (p *PLIC) Writable() bool    { return true }
func (p *PLIC) Executable() bool  { return false }
func (p *PLIC) AllowedSize(n int) bool { return n == 4 }

func (p *PLIC) Read(_ memregion.Agent, offset uint64, n int, buf []byte) error {
	if n != 4 {
		return trapkind.NewMemoryError(p.first + offset)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var v uint32
	switch {
	case offset < regPendingBase && int(offset/4) < maxSources:
		v = p.priority[offset/4]
	case offset >= regPendingBase && offset < regEnableBase:
		word := int((offset - regPendingBase) / 4)
		for i := 0; i < 32; i++ {
			s := word*32 + i
			if s < maxSources && p.pending[s] {
				v |= 1 << uint(i)
			}
		}
	case offset >= regEnableBase && offset < regContextBase:
		rel := offset - regEnableBase
		ctx := int(rel / regEnableStride)
		word := int((rel % regEnableStride) / 4)
		if ctx < maxContexts {
			for i := 0; i < 32; i++ {
				s := word*32 + i
				if s < maxSources && p.enable[ctx][s] {
					v |= 1 << uint(i)
				}
			}
		}
	case offset >= regContextBase:
		rel := offset - regContextBase
		ctx := int(rel / regContextStride)
		reg := rel % regContextStride
		if ctx < maxContexts {
			switch reg {
			case regThresholdOff:
				v = p.threshold[ctx]
			case regClaimOff:
				v = uint32(p.claimLocked(ctx))
			default:
				return trapkind.NewMemoryError(p.first + offset)
			}
		}
	default:
		return trapkind.NewMemoryError(p.first + offset)
	}

	binary.LittleEndian.PutUint32(buf[:4], v)
	return nil
}

func (p *PLIC) claimLocked(ctx int) int {
	s := p.highestPendingLocked(ctx)
	if s < 0 {
		return 0
	}
	p.claimed[s] = true
	return s
}

func (p *PLIC) Write(_ memregion.Agent, offset uint64, n int, buf []byte) error {
	if n != 4 {
		return trapkind.NewMemoryError(p.first + offset)
	}
	v := binary.LittleEndian.Uint32(buf[:4])

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case offset < regPendingBase && int(offset/4) < maxSources:
		p.priority[offset/4] = v
	case offset >= regEnableBase && offset < regContextBase:
		rel := offset - regEnableBase
		ctx := int(rel / regEnableStride)
		word := int((rel % regEnableStride) / 4)
		if ctx < maxContexts {
			for i := 0; i < 32; i++ {
				s := word*32 + i
				if s < maxSources {
					p.enable[ctx][s] = v&(1<<uint(i)) != 0
				}
			}
		}
	case offset >= regContextBase:
		rel := offset - regContextBase
		ctx := int(rel / regContextStride)
		reg := rel % regContextStride
		if ctx < maxContexts {
			switch reg {
			case regThresholdOff:
				p.threshold[ctx] = v
			case regClaimOff:
				// complete: clear pending+claimed for the completed source.
				s := int(v)
				if s >= 0 && s < maxSources {
					p.pending[s] = false
					p.claimed[s] = false
				}
			default:
				return trapkind.NewMemoryError(p.first + offset)
			}
		}
	default:
		return trapkind.NewMemoryError(p.first + offset)
	}
	return nil
}

func (p *PLIC) Init(agent memregion.Agent, offset uint64, n int, buf []byte) error {
	return p.Write(agent, offset, n, buf)
}
