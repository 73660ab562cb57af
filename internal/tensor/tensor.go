// Package tensor implements the per-core tensor coprocessor finite state
// machines (TLoad, TMul/TFMA, TStore, TQuant, TReduce) and the
// cooperative tensor-load table (spec §3 "Tensor FSMs", §4.5).
package tensor

// Kind identifies which tensor coprocessor FSM an operation targets.
type Kind int

const (
	KindLoad Kind = iota
	KindMul
	KindStore
	KindQuant
	KindReduce
)

// LoadState is TLoad.state (spec §3).
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadWaitingCoop
	LoadReady
	LoadLoading
)

// MulState is TMul.state.
type MulState int

const (
	MulIdle MulState = iota
	MulWaitingTenB
	MulReady
)

// StoreState is TStore.state.
type StoreState int

const (
	StoreIdle StoreState = iota
	StoreReady
)

// QuantState is TQuant.state.
type QuantState int

const (
	QuantIdle QuantState = iota
	QuantReady
)

// ReduceState is TReduce.state.
type ReduceState int

const (
	ReduceIdle ReduceState = iota
	ReduceWaitingToSend
	ReduceWaitingToReceive
	ReduceReadyToSend
	ReduceReadyToReceive
)

// LoadMode enumerates TensorLoad's supported memory layouts (spec §4.5).
type LoadMode int

const (
	LoadRaw LoadMode = iota
	LoadInterleave8
	LoadInterleave16
	LoadTranspose8
	LoadTranspose16
	LoadTranspose32
)

// FMAType enumerates TensorFMA operand types (spec §4.5).
type FMAType int

const (
	FMAFp32 FMAType = iota
	FMAFp16AccFp32
	FMAInt8AccInt32
)

// QuantOp is one of the up to ten chained TensorQuant transforms (spec
// §4.5).
type QuantOp int

const (
	QuantIntToFP QuantOp = iota
	QuantFPToInt
	QuantReLU
	QuantAddRowSCP
	QuantAddColSCP
	QuantMulRowSCP
	QuantMulColSCP
	QuantSatInt8
	QuantSatUint8
	QuantPack128
)

// ReduceOp is the pairwise operator TensorReduce applies (spec §4.5).
type ReduceOp int

const (
	ReduceMove ReduceOp = iota
	ReduceAdd
	ReduceFAdd
	ReduceMin
	ReduceMax
	ReduceFMin
	ReduceFMax
)

// Op is a decoded, queued tensor operation shared by every FSM kind
// (spec §3 "Each FSM retains the encoded operation parameters, a UUID
// ... and for cooperative operations the cooperating-minion mask").
type Op struct {
	Kind  Kind
	UUID  uint64
	// DisplayID is a globally-unique, human-legible identifier for dumps
	// and logs (spec §3 "a UUID assigned from a per-core monotonic
	// counter"); UUID stays the ordering key since display IDs across
	// cores carry no comparable order.
	DisplayID string
	Mask      uint16 // tensor_mask: 16-bit row-gating mask (spec glossary)
	TCoop     uint32 // cooperating-minion encoding (neigh/minion mask/group)
	Coop      bool

	// Load-specific.
	LoadMode   LoadMode
	LoadAddr   uint64
	LoadRows   int
	LoadStart  int
	LoadTenB   bool
	LoadL2SCP  bool

	// FMA-specific.
	FMAType     FMAType
	FMAACols    int
	FMAARows    int
	FMABCols    int
	FMAFirstPass bool

	// Quant-specific.
	QuantOps []QuantOp
	QuantRow, QuantCol, QuantRows, QuantCols int

	// Store-specific.
	StoreAddr   uint64
	StoreStride int64
	StoreRows, StoreCols int
	StoreFromSCP bool
	StoreCoop    int // 1, 2 or 4 cooperating minions per row

	// Reduce-specific.
	ReduceOp      ReduceOp
	ReducePartner uint32 // HartId of the reduce partner
	ReduceCount   int
	ReduceHeight  int
}

// ErrorBits mirrors the tensor_error sticky-fault bitfield (spec §4.5):
// bit 4 SCP-disabled-for-quant-transform, bit 6 TFMA pairing mismatch,
// bit 7 fault during a TensorLoad row, bit 8 illegal TensorStore
// (cols,coop) combination, bit 9 TensorReduce self-target.
type ErrorBits uint32

const (
	ErrorQuantSCPDisabled ErrorBits = 1 << 4
	ErrorFMAPairMismatch  ErrorBits = 1 << 6
	ErrorLoadFault        ErrorBits = 1 << 7
	ErrorStoreIllegalCoop ErrorBits = 1 << 8
	ErrorReduceSelfTarget ErrorBits = 1 << 9
)

// FSMs holds the five per-core finite state machines and their queued
// operations, plus the monotonic UUID counter (spec §3 "Core").
type FSMs struct {
	Load   LoadState
	Mul    MulState
	Store  StoreState
	Quant  QuantState
	Reduce ReduceState

	LoadOp   *Op
	MulOp    *Op
	StoreOp  *Op
	QuantOp_ *Op
	ReduceOp_ *Op

	nextUUID uint64

	// Queue is the FIFO of in-flight tensor op kinds; only the head may
	// issue memory in a given tick (spec §3, §4.5 step 5).
	Queue []Kind

	// Error is the sticky tensor_error bitfield a completed op may set
	// (spec §4.5); cleared only by an explicit read-and-clear, mirroring
	// PMU_LINE_LOCK_EVENTS' read-and-clear convention.
	Error ErrorBits
}

// TakeError reads and clears the sticky tensor_error bitfield.
func (f *FSMs) TakeError() ErrorBits {
	e := f.Error
	f.Error = 0
	return e
}

// NextUUID returns the next UUID from this core's monotonic counter
// (spec §3 "a UUID assigned from a per-core monotonic counter"); the
// display-facing Op.DisplayID is minted separately by the caller that
// attaches the op to its FSM, see DESIGN.md.
func (f *FSMs) NextUUID() uint64 {
	f.nextUUID++
	return f.nextUUID
}

// Idle reports whether the given kind's FSM is idle (spec §4.5 step 2).
func (f *FSMs) Idle(k Kind) bool {
	switch k {
	case KindLoad:
		return f.Load == LoadIdle
	case KindMul:
		return f.Mul == MulIdle
	case KindStore:
		return f.Store == StoreIdle
	case KindQuant:
		return f.Quant == QuantIdle
	case KindReduce:
		return f.Reduce == ReduceIdle
	}
	return true
}

// Enqueue pushes op's kind onto the tqueue (spec §4.5 step 5).
func (f *FSMs) Enqueue(k Kind) {
	f.Queue = append(f.Queue, k)
}

// HeadIs reports whether k is the head of the tqueue and therefore the
// only FSM allowed to issue memory this tick (spec §4.5 step 5).
func (f *FSMs) HeadIs(k Kind) bool {
	return len(f.Queue) > 0 && f.Queue[0] == k
}

// Dequeue pops the head of the tqueue (called when that op completes).
func (f *FSMs) Dequeue() {
	if len(f.Queue) > 0 {
		f.Queue = f.Queue[1:]
	}
}

// CoopTLoadState is one entry of the per-neighborhood cooperative
// tensor-load table (spec §3 "Cooperative tensor-load table").
type CoopTLoadState struct {
	All     uint32 // all cooperating harts' bitmask
	Pending uint32 // harts that have not yet arrived
}

// CoopGroup selects one of {a0,a1,b} x 32 groups within a neighborhood.
type CoopGroup struct {
	Operand int // 0=a0, 1=a1, 2=b
	Group   int // 0..31
}

// CoopTable is the per-neighborhood cooperative tensor-load table.
type CoopTable struct {
	entries map[CoopGroup]*CoopTLoadState
}

// NewCoopTable builds an empty cooperative tensor-load table.
func NewCoopTable() *CoopTable {
	return &CoopTable{entries: map[CoopGroup]*CoopTLoadState{}}
}

// Install creates or replaces the entry for g with the given
// cooperating-hart bitmask, setting pending to the same value (spec §4.5
// step 4: "installs a Coop_tload_state entry in every cooperating
// neighborhood's table").
func (t *CoopTable) Install(g CoopGroup, allMask uint32) {
	t.entries[g] = &CoopTLoadState{All: allMask, Pending: allMask}
}

// Arrive clears hartBit in g's pending mask and reports whether the
// group has now fully drained (spec §3 "Cooperative tensor-load table":
// "when arrives... clears its bit in the leader's pending; when
// pending==0 all cooperating harts are released").
func (t *CoopTable) Arrive(g CoopGroup, hartBit uint32) (drained bool, ok bool) {
	e, found := t.entries[g]
	if !found {
		return false, false
	}
	e.Pending &^= hartBit
	return e.Pending == 0, true
}

// Get returns the entry for g, if any.
func (t *CoopTable) Get(g CoopGroup) (*CoopTLoadState, bool) {
	e, ok := t.entries[g]
	return e, ok
}
