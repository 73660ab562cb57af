package hart

import (
	"github.com/rs/xid"

	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/mmu"
	"github.com/sarchlab/shiresim/internal/priv"
	"github.com/sarchlab/shiresim/internal/tensor"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

// FetchBuffer is the 32-byte buffer keyed by aligned pc (spec §4.3
// "Fetch cache").
type FetchBuffer struct {
	Valid bool
	Key   uint64 // pc & ^31
	Data  [32]byte
}

func (b *FetchBuffer) Invalidate() { b.Valid = false }

// DebugRegs holds the RISC-V debug-mode CSRs (spec §3 "debug-mode
// registers (dcsr, dpc, ddata0, tdata1/2)").
type DebugRegs struct {
	DCSR   uint64
	DPC    uint64
	DData0 uint64
	TData1 uint64
	TData2 uint64
}

// CSR is a reduced set of the machine/supervisor CSRs the hart keeps as
// named fields rather than a generic map, mirroring the spec's "Registers
// (31 integer, ... CSRs)" as concrete Go state instead of an indexable
// bank — the ISA subset this emulator decodes (see DESIGN.md) never
// needs arbitrary CSR addressing beyond these.
type CSR struct {
	MStatus uint64
	MIE     uint64
	MIP     uint64
	MTVec   uint64
	MEPC    uint64
	MCause  uint64
	MTVal   uint64
	MScratch uint64
	MIDeleg uint64
	MEDeleg uint64

	SATP uint64 // mirrors core.SATP/MATP for the active VM mode
}

const (
	mstatusMIE  = 1 << 3
	mstatusMPIE = 1 << 7
	mstatusMPPShift = 11
	mstatusMPPMask  = 0x3
	mstatusSUM  = 1 << 18
	mstatusMXR  = 1 << 19
	mstatusMPRV = 1 << 17
)

// Hart is the per-thread architectural state (spec §3 "Hart").
type Hart struct {
	ID     ID
	Core   *core.Core // non-owning back-reference, spec §3 "Ownership"

	X  [32]uint64 // x0 hardwired zero, x1..x31 general purpose
	PC uint64
	NPC uint64

	Priv priv.Level

	CSR   CSR
	Debug DebugRegs

	Fetch FetchBuffer

	State State
	Wait  WaitKind

	// InProgBuf is set while a halted hart is executing its 3
	// program-buffer instructions (spec §4.6 "Program buffer").
	InProgBuf  bool
	ProgBuf    [2]uint32
	ProgBufErr uint32

	// ResumeAck/HaveReset mirror the per-hart HASTATUS0 bits the debug
	// module's AND/OR tree reduces over (spec §4.6).
	ResumeAck bool
	HaveReset bool
	Selected  bool

	// ExtSEIP is the external supervisor-interrupt-pending wire, ORed
	// into the interrupt-pending test alongside mip (spec §3 invariant
	// "(mip|ext_seip) & mie").
	ExtSEIP uint64
}

// New builds a hart in its reset (Unavailable) state, owned by core c.
func New(id ID, c *core.Core) *Hart {
	return &Hart{ID: id, Core: c, State: StateUnavailable, Priv: priv.Machine}
}

// AgentName implements memregion.Agent.
func (h *Hart) AgentName() string { return h.ID.String() }

// String gives a short "shireN.hartM"-free identifier; shire-qualified
// naming is the Chip's job (it knows topology), so this just prints the
// flat index.
func (id ID) String() string {
	return "hart" + itoa(uint32(id))
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// mstatusMPP returns the privilege mstatus.MPP encodes.
func (h *Hart) mstatusMPP() priv.Level {
	return priv.Level((h.CSR.MStatus >> mstatusMPPShift) & mstatusMPPMask)
}

func (h *Hart) mprvActive() bool { return h.CSR.MStatus&mstatusMPRV != 0 }

// MMUStatus builds the mmu.Status the translation/PMA layer needs from
// the hart's current mstatus (spec §4.3 "Permission matrix honours
// MSTATUS.SUM, MSTATUS.MXR").
func (h *Hart) MMUStatus() mmu.Status {
	return mmu.Status{
		SUM:  h.CSR.MStatus&mstatusSUM != 0,
		MXR:  h.CSR.MStatus&mstatusMXR != 0,
		MPRV: h.mprvActive(),
		MPP:  h.mstatusMPP(),
	}
}

// IsWaiting reports whether the hart is parked on at least the given
// kind (spec §3 "Waiting(mask)").
func (h *Hart) IsWaiting(kind WaitKind) bool {
	return h.State == StateWaiting && h.Wait&kind != 0
}

// StartWaiting ORs kind into the wait mask and marks the hart Waiting;
// the scheduler is responsible for the active->sleeping list move (spec
// §4.4 "start_waiting(kind) moves the hart from active to sleeping").
func (h *Hart) StartWaiting(kind WaitKind) {
	h.State = StateWaiting
	h.Wait |= kind
}

// StopWaiting clears kind from the wait mask and reports whether the
// hart should now rejoin active (mask became zero, spec §4.4
// "stop_waiting(kind) clears kind; if the waiting mask becomes zero the
// hart is moved from sleeping to awaking").
func (h *Hart) StopWaiting(kind WaitKind) (rejoin bool) {
	if h.State != StateWaiting {
		return false
	}
	h.Wait &^= kind
	if h.Wait == 0 {
		h.State = StateRunning
		return true
	}
	return false
}

// PendingInterrupt reports whether any enabled, non-delegated interrupt
// is pending (spec §3 invariant, §4.4 step 3 "check_pending_interrupts").
func (h *Hart) PendingInterrupt() bool {
	pending := (h.CSR.MIP | h.ExtSEIP) &^ h.CSR.MIDeleg
	return pending&h.CSR.MIE != 0 && h.CSR.MStatus&mstatusMIE != 0
}

// RaiseInterrupt ORs cause's bit into mip (or ext_seip) and wakes the
// hart if it was Waiting(interrupt) (spec §4.4 "raise_interrupt(cause,
// payload) updates mip/ext_seip and, if the hart is Waiting(interrupt),
// wakes it").
func (h *Hart) RaiseInterrupt(bit uint64, external bool) (woke bool) {
	if external {
		h.ExtSEIP |= bit
	} else {
		h.CSR.MIP |= bit
	}
	if h.IsWaiting(WaitInterrupt) {
		return h.StopWaiting(WaitInterrupt)
	}
	return false
}

// TakeTrap implements take_trap: latches mepc/mcause/mtval, switches to
// M-mode, and dispatches pc to mtvec direct or vectored (spec §4.4 step
// 5 "Trap invokes take_trap").
func (h *Hart) TakeTrap(t *trapkind.Trap) {
	h.CSR.MEPC = h.PC
	h.CSR.MCause = uint64(t.Cause)
	h.CSR.MTVal = t.Tval

	mpp := uint64(h.Priv) & mstatusMPPMask
	mpie := uint64(0)
	if h.CSR.MStatus&mstatusMIE != 0 {
		mpie = mstatusMPIE
	}
	h.CSR.MStatus = (h.CSR.MStatus &^ (mstatusMPPMask << mstatusMPPShift) &^ mstatusMPIE &^ mstatusMIE) |
		(mpp << mstatusMPPShift) | mpie
	h.Priv = priv.Machine

	base := h.CSR.MTVec &^ 0x3
	mode := h.CSR.MTVec & 0x3
	if mode == 1 {
		h.NPC = base + 4*uint64(t.Cause)
	} else {
		h.NPC = base
	}
	h.PC = h.NPC
	h.Fetch.Invalidate()
}

// busErrorInterruptBit is a vendor-extension interrupt line used to
// report a memory_error that doesn't map to an architectural trap (spec
// §4.4 step 5 "memory_error raises a bus-error interrupt").
const busErrorInterruptBit = 1 << 16

// HandleExecuteError dispatches the four outcomes execute() may signal
// (spec §4.4 step 5, §9 "Err(Trap|Restart|Bus|Debug) bubbling from
// MMU/PMA/execute").
func (h *Hart) HandleExecuteError(err error) {
	switch e := err.(type) {
	case *trapkind.Trap:
		h.TakeTrap(e)
	case *trapkind.DebugEntry:
		h.EnterDebug(e.Cause)
	case *trapkind.MemoryError:
		h.RaiseInterrupt(busErrorInterruptBit, false)
	default:
		if err == trapkind.ErrRestart {
			h.NPC = h.PC
		}
	}
}

// EnterDebug puts the hart under debug control (spec §4.6, §4.4 step 5
// "Debug_entry enters debug mode").
func (h *Hart) EnterDebug(cause trapkind.DebugCause) {
	h.Debug.DPC = h.PC
	h.Debug.DCSR = (h.Debug.DCSR &^ 0x1C0) | (uint64(cause) << 6)
	h.State = StateHalted
}

// ExclBlockedBy reports whether h must be Blocked because the sibling
// hart of the same minion holds exclusive mode (spec §4.4 "Exclusive
// mode": "the sibling hart becomes Blocked at its next fetch attempt").
func (h *Hart) ExclBlockedBy(mode core.ExclMode) bool {
	owner := mode.OwnerThread()
	return owner >= 0 && owner != h.ID.ThreadIndex()
}

// StartTensorOp implements the shared tensor-CSR start routine (spec
// §4.5 "All tensor CSR writes go through a start routine"). featureOK is
// the caller's MINION_FEATURE check result (step 1); idle/kind identify
// the target FSM; build runs step 3's parameter stash, returning the
// built *tensor.Op. It returns trapkind.ErrRestart if the FSM is busy
// (step 2), or an illegal-instruction trap if the feature is disabled.
func (h *Hart) StartTensorOp(encoded uint32, featureOK bool, kind tensor.Kind, build func(uuid uint64) *tensor.Op) error {
	if !featureOK {
		return trapkind.IllegalInstruction(encoded)
	}
	fsms := &h.Core.Tensor
	if !fsms.Idle(kind) {
		h.StartWaiting(waitKindFor(kind))
		h.NPC = h.PC
		return trapkind.ErrRestart
	}
	op := build(fsms.NextUUID())
	attachOp(fsms, kind, op)
	fsms.Enqueue(kind)
	return nil
}

func waitKindFor(k tensor.Kind) WaitKind {
	switch k {
	case tensor.KindLoad:
		return WaitTensorLoad0
	case tensor.KindMul:
		return WaitTensorFMA
	case tensor.KindStore:
		return WaitTensorStore
	case tensor.KindQuant:
		return WaitTensorQuant
	case tensor.KindReduce:
		return WaitTensorReduce
	default:
		return 0
	}
}

func attachOp(f *tensor.FSMs, k tensor.Kind, op *tensor.Op) {
	op.DisplayID = xid.New().String()
	switch k {
	case tensor.KindLoad:
		f.LoadOp = op
		if op.Coop {
			f.Load = tensor.LoadWaitingCoop
		} else {
			f.Load = tensor.LoadReady
		}
	case tensor.KindMul:
		f.MulOp = op
		f.Mul = tensor.MulReady
	case tensor.KindStore:
		f.StoreOp = op
		f.Store = tensor.StoreReady
	case tensor.KindQuant:
		f.QuantOp_ = op
		f.Quant = tensor.QuantReady
	case tensor.KindReduce:
		f.ReduceOp_ = op
		f.Reduce = tensor.ReduceWaitingToSend
	}
}

// TensorWait implements TensorWait: a no-op if the target FSM is
// already idle, else parks the hart Waiting(event) (spec §4.5
// "TensorWait serialises against a chosen event").
func (h *Hart) TensorWait(kind tensor.Kind) {
	if h.Core.Tensor.Idle(kind) {
		return
	}
	h.StartWaiting(waitKindFor(kind))
	h.NPC = h.PC
}
