package memregion

import (
	"encoding/binary"

	"github.com/sarchlab/shiresim/internal/trapkind"
)

// SysReg is the system-register MMIO region (spec §4.1 table): plain
// read/write registers addressed as 4- or 8-byte words, no side effects
// beyond storage (PLL "locked" status and similar are modeled as fixed
// preloaded values via Init, spec §1 Non-goals).
type SysReg struct {
	name    string
	first   uint64
	size    uint64
	storage map[uint64]uint64
}

// NewSysReg builds a SysReg region spanning [first, first+size).
func NewSysReg(name string, first, size uint64) *SysReg {
	return &SysReg{name: name, first: first, size: size, storage: map[uint64]uint64{}}
}

func (s *SysReg) Name() string      { return s.name }
func (s *SysReg) First() uint64     { return s.first }
func (s *SysReg) Last() uint64      { return s.first + s.size - 1 }
func (s *SysReg) Writable() bool    { return true }
func (s *SysReg) Executable() bool  { return false }
func (s *SysReg) AllowedSize(n int) bool { return n == 4 || n == 8 }

func (s *SysReg) Read(_ Agent, offset uint64, n int, buf []byte) error {
	v := s.storage[offset]
	switch n {
	case 4:
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf[:8], v)
	default:
		return trapkind.NewMemoryError(s.first + offset)
	}
	return nil
}

func (s *SysReg) Write(_ Agent, offset uint64, n int, buf []byte) error {
	switch n {
	case 4:
		s.storage[offset] = uint64(binary.LittleEndian.Uint32(buf[:4]))
	case 8:
		s.storage[offset] = binary.LittleEndian.Uint64(buf[:8])
	default:
		return trapkind.NewMemoryError(s.first + offset)
	}
	return nil
}

func (s *SysReg) Init(agent Agent, offset uint64, n int, buf []byte) error {
	return s.Write(agent, offset, n, buf)
}
