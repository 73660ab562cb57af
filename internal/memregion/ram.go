package memregion

import "github.com/sarchlab/shiresim/internal/trapkind"

// ramLike is shared by DRAM, SRAM and boot ROM: a flat byte-addressable
// backing store with per-kind write/exec permission and size acceptance
// (spec §4.1 table). It mirrors the teacher corpus's flat-array memory
// idiom (gmofishsauce-wut4/emul's `physmem [PhysMemSize]word`) rather than
// an akita message-passing memory controller: the MMU/PMA/execute path
// needs a synchronous byte store, see SPEC_FULL.md §2.2.
type ramLike struct {
	name       string
	first      uint64
	bytes      []byte
	writable   bool
	executable bool
	lineSize   int // 0 means "no upper size limit beyond len(buf)"
}

func (r *ramLike) Name() string  { return r.name }
func (r *ramLike) First() uint64 { return r.first }
func (r *ramLike) Last() uint64  { return r.first + uint64(len(r.bytes)) - 1 }
func (r *ramLike) Writable() bool   { return r.writable }
func (r *ramLike) Executable() bool { return r.executable }

func (r *ramLike) AllowedSize(n int) bool {
	if n <= 0 {
		return false
	}
	if r.lineSize > 0 && n > r.lineSize {
		return false
	}
	return true
}

func (r *ramLike) Read(_ Agent, offset uint64, n int, buf []byte) error {
	if offset+uint64(n) > uint64(len(r.bytes)) {
		return trapkind.NewMemoryError(r.first + offset)
	}
	copy(buf[:n], r.bytes[offset:offset+uint64(n)])
	return nil
}

func (r *ramLike) Write(_ Agent, offset uint64, n int, buf []byte) error {
	if !r.writable {
		return trapkind.NewMemoryError(r.first + offset)
	}
	if offset+uint64(n) > uint64(len(r.bytes)) {
		return trapkind.NewMemoryError(r.first + offset)
	}
	copy(r.bytes[offset:offset+uint64(n)], buf[:n])
	return nil
}

func (r *ramLike) Init(_ Agent, offset uint64, n int, buf []byte) error {
	if offset+uint64(n) > uint64(len(r.bytes)) {
		return trapkind.NewMemoryError(r.first + offset)
	}
	copy(r.bytes[offset:offset+uint64(n)], buf[:n])
	return nil
}

// DRAMLineBytes is the cache-line size used to cap a single scalar DRAM
// access; larger transfers (tensor load/store) are split by the caller
// (spec §4.1, §4.3 "Line-crossing accesses").
const DRAMLineBytes = 64

// NewDRAM builds a DRAM region of the given size in bytes, starting at
// first. DRAM accepts any access size up to one cache line and permits
// both data and instruction (SP boot-from-DRAM) access.
func NewDRAM(name string, first, size uint64) Region {
	return &ramLike{
		name: name, first: first, bytes: make([]byte, size),
		writable: true, executable: true, lineSize: DRAMLineBytes,
	}
}

// NewBootROM builds a read-only, executable boot ROM region.
func NewBootROM(name string, first uint64, image []byte, size uint64) Region {
	bytes := make([]byte, size)
	copy(bytes, image)
	return &ramLike{
		name: name, first: first, bytes: bytes,
		writable: false, executable: true,
	}
}

// NewSRAM builds a read/write/execute SRAM region (service-processor
// scratch memory, spec §6 address map).
func NewSRAM(name string, first, size uint64) Region {
	return &ramLike{
		name: name, first: first, bytes: make([]byte, size),
		writable: true, executable: true,
	}
}

// NewPCIe builds the PCIe host-bridge window: any size, read/write, never
// faults, no side effects (spec §4.1 supplement, SPEC_FULL.md §4.1).
func NewPCIe(name string, first, size uint64) Region {
	return &ramLike{
		name: name, first: first, bytes: make([]byte, size),
		writable: true, executable: false,
	}
}

// NewSPMisc builds the service-processor misc I/O region: 4-byte
// word-granular, read/write, no exec (SPEC_FULL.md §4.1 supplement).
func NewSPMisc(name string, first, size uint64) Region {
	return &spMisc{ramLike{
		name: name, first: first, bytes: make([]byte, size),
		writable: true, executable: false,
	}}
}

type spMisc struct{ ramLike }

func (r *spMisc) AllowedSize(n int) bool { return n == 4 }

// NewL2Scratchpad builds the L2 scratchpad region (spec §6 address map,
// §4.1 "Addresses in {DRAM, scratchpad, ESR, PCIe, bootrom, SRAM, SP
// misc} disjointly partition the 40-bit PA space"). TensorLoadL2SCP
// streams rows directly into this region at L2_SCP_BASE +
// shire*L2_SCP_OFFSET (spec §5 op semantics); it is otherwise a plain
// read/write, non-executable byte store reachable by ordinary scalar
// loads and stores like any other region in the dispatcher.
func NewL2Scratchpad(name string, first, size uint64) Region {
	return &ramLike{
		name: name, first: first, bytes: make([]byte, size),
		writable: true, executable: false,
	}
}
