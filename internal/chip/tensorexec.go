package chip

import (
	"encoding/binary"

	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/mmu"
	"github.com/sarchlab/shiresim/internal/tensor"
)

// execTensorLoad advances TLoad: resolves a cooperative load's
// rendezvous, then performs the byte movement once it is this core's
// turn at the head of the tqueue (spec §4.5 steps 4-5).
func (c *Chip) execTensorLoad(h *hart.Hart, fsms *tensor.FSMs) {
	if fsms.Load == tensor.LoadWaitingCoop {
		if !c.resolveCoopLoad(h, fsms.LoadOp) {
			return
		}
		fsms.Load = tensor.LoadReady
	}
	if !fsms.HeadIs(tensor.KindLoad) || fsms.Load != tensor.LoadReady {
		return
	}
	fsms.Load = tensor.LoadLoading
	c.doTensorLoad(h, fsms.LoadOp)
	fsms.Load = tensor.LoadIdle
	fsms.Dequeue()
	c.removeFromActiveIfWaiting(h)
}

// resolveCoopLoad registers h's arrival in its neighborhood's
// cooperative tensor-load table and reports whether every cooperating
// hart has now arrived (spec §3 "Cooperative tensor-load table").
func (c *Chip) resolveCoopLoad(h *hart.Hart, op *tensor.Op) bool {
	g, allMask := decodeCoopGroup(op.TCoop)
	tbl := c.coopTableFor(h.ID)
	if _, ok := tbl.Get(g); !ok {
		tbl.Install(g, allMask)
	}
	tbl.Arrive(g, c.neighborhoodLocalBit(h.ID))
	entry, _ := tbl.Get(g)
	return entry.Pending == 0
}

// decodeCoopGroup unpacks the coop descriptor a cooperative
// TensorLoad carries in GPR x31 (this emulator's own encoding, see
// DESIGN.md): allMask@15:0, group@20:16, operand@22:21.
func decodeCoopGroup(tcoop uint32) (tensor.CoopGroup, uint32) {
	allMask := tcoop & 0xFFFF
	group := int((tcoop >> 16) & 0x1F)
	operand := int((tcoop >> 21) & 0x3)
	return tensor.CoopGroup{Operand: operand, Group: group}, allMask
}

func (c *Chip) coopTableFor(id hart.ID) *tensor.CoopTable {
	shire := c.shireOf(id)
	neigh := c.neighborhoodOf(id)
	t := c.shires[shire].coopTables[neigh]
	if t == nil {
		t = tensor.NewCoopTable()
		c.shires[shire].coopTables[neigh] = t
	}
	return t
}

// neighborhoodLocalBit is h's bit position within its neighborhood's
// 16-hart (8 minions x 2 threads) cooperating-hart mask.
func (c *Chip) neighborhoodLocalBit(id hart.ID) uint32 {
	coreID := id.CoreID()
	shire := c.shireOf(id)
	withinShire := int(coreID) - int(c.shires[shire].firstCore)
	localCore := withinShire % MinionsPerNeighborhood
	return 1 << uint(localCore*HartsPerMinion+id.ThreadIndex())
}

// doTensorLoad performs the actual DRAM->scratchpad byte movement:
// LoadRows consecutive VLenBytes rows starting at LoadStart (mod
// ScratchpadRows), each read from LoadAddr + row*stride. A
// non-cooperative load's stride is GPR x31; a cooperative load uses
// x31 to carry the coop descriptor instead, so rows are assumed
// contiguous (spec §4.5 TensorLoad). The load-mode transform
// (interleave/transpose) is not reproduced byte-for-byte here — every
// mode performs the same raw row copy, a documented simplification
// (see DESIGN.md).
func (c *Chip) doTensorLoad(h *hart.Hart, op *tensor.Op) {
	stride := int64(core.VLenBytes)
	if !op.Coop {
		stride = int64(h.X[31])
	}
	tr := c.TranslatorFor(h)
	for row := 0; row < op.LoadRows; row++ {
		addr := uint64(int64(op.LoadAddr) + int64(row)*stride)
		dst := h.Core.Row(op.LoadStart + row)
		pa, err := tr.Translate(c.Memory, h, addr, core.VLenBytes, mmu.AccessLoad, h.MMUStatus())
		if err != nil {
			h.Core.Tensor.Error |= tensor.ErrorLoadFault
			return
		}
		if err := c.Memory.Read(h, pa, core.VLenBytes, dst.Data[:]); err != nil {
			h.Core.Tensor.Error |= tensor.ErrorLoadFault
			return
		}
	}
}

// execTensorFMA advances TMul: a matrix-multiply-accumulate of the
// scratchpad's data rows into its TenB shadow rows (spec §4.5
// TensorFMA).
func (c *Chip) execTensorFMA(h *hart.Hart, fsms *tensor.FSMs) {
	if !fsms.HeadIs(tensor.KindMul) || fsms.Mul != tensor.MulReady {
		return
	}
	c.doTensorFMA(h, fsms.MulOp)
	fsms.Mul = tensor.MulIdle
	fsms.Dequeue()
	c.removeFromActiveIfWaiting(h)
}

// doTensorFMA multiplies the A operand (data rows 0..ARows) against the
// B operand (TenB shadow rows, laid down by a prior tenb=true
// TensorLoad) and accumulates int32 products into the TenB shadow rows
// starting at row 32 (this build's only register-file-shaped storage,
// see DESIGN.md open-question note on "FREGs"). Only the int8-
// accumulate-int32 type does real fixed-point arithmetic; the fp
// variants fall back to the same integer path since ScratchRow carries
// no floating-point lane.
func (c *Chip) doTensorFMA(h *hart.Hart, op *tensor.Op) {
	co := h.Core
	for r := 0; r < op.FMAARows; r++ {
		aRow := co.Row(r)
		for col := 0; col < op.FMABCols; col++ {
			acc := int32(0)
			if !op.FMAFirstPass {
				acc = readInt32(co.Row(32+r), col*4)
			}
			for k := 0; k < op.FMAACols; k++ {
				bRow := co.Row(32 + k)
				acc += int32(int8(aRow.Data[k%core.VLenBytes])) * int32(int8(bRow.Data[col%core.VLenBytes]))
			}
			writeInt32(co.Row(32+r), col*4, acc)
		}
	}
}

func readInt32(row *core.ScratchRow, off int) int32 {
	if off < 0 || off+4 > core.VLenBytes {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(row.Data[off : off+4]))
}

func writeInt32(row *core.ScratchRow, off int, v int32) {
	if off < 0 || off+4 > core.VLenBytes {
		return
	}
	binary.LittleEndian.PutUint32(row.Data[off:off+4], uint32(v))
}

// execTensorStore advances TStore: the scratchpad write-back (spec
// §4.5 TensorStore).
func (c *Chip) execTensorStore(h *hart.Hart, fsms *tensor.FSMs) {
	if !fsms.HeadIs(tensor.KindStore) || fsms.Store != tensor.StoreReady {
		return
	}
	c.doTensorStore(h, fsms.StoreOp)
	fsms.Store = tensor.StoreIdle
	fsms.Dequeue()
	c.removeFromActiveIfWaiting(h)
}

func (c *Chip) doTensorStore(h *hart.Hart, op *tensor.Op) {
	tr := c.TranslatorFor(h)
	base := 0
	if op.StoreFromSCP {
		base = 32
	}
	n := op.StoreCols
	if n <= 0 || n > core.VLenBytes {
		n = core.VLenBytes
	}
	for row := 0; row < op.StoreRows; row++ {
		addr := uint64(int64(op.StoreAddr) + int64(row)*op.StoreStride)
		src := h.Core.Row(base + row)
		pa, err := tr.Translate(c.Memory, h, addr, n, mmu.AccessStore, h.MMUStatus())
		if err != nil {
			return
		}
		_ = c.Memory.Write(h, pa, n, src.Data[:n])
	}
}

// execTensorQuant advances TQuant: the chained-transform pass over a
// block of scratchpad rows (spec §4.5 TensorQuant).
func (c *Chip) execTensorQuant(h *hart.Hart, fsms *tensor.FSMs) {
	if !fsms.HeadIs(tensor.KindQuant) || fsms.Quant != tensor.QuantReady {
		return
	}
	c.doTensorQuant(h, fsms.QuantOp_)
	fsms.Quant = tensor.QuantIdle
	fsms.Dequeue()
	c.removeFromActiveIfWaiting(h)
}

func (c *Chip) doTensorQuant(h *hart.Hart, op *tensor.Op) {
	co := h.Core
	for r := 0; r < op.QuantRows; r++ {
		row := co.Row(op.QuantRow + r)
		for _, qop := range op.QuantOps {
			applyQuantOp(qop, row, op.QuantCol, op.QuantCols)
		}
	}
}

// applyQuantOp implements the byte-lane transforms that make sense
// against this build's integer-only ScratchRow. IntToFP/FPToInt and the
// SCP row/col add/mul transforms need a floating-point scratchpad lane
// this build doesn't model and pass through unchanged (see DESIGN.md).
func applyQuantOp(op tensor.QuantOp, row *core.ScratchRow, col, cols int) {
	end := col + cols
	if end > core.VLenBytes {
		end = core.VLenBytes
	}
	switch op {
	case tensor.QuantReLU:
		for i := col; i < end; i++ {
			if int8(row.Data[i]) < 0 {
				row.Data[i] = 0
			}
		}
	case tensor.QuantSatInt8:
		for i := col; i < end; i++ {
			row.Data[i] = byte(saturate8(int32(int8(row.Data[i]))))
		}
	case tensor.QuantSatUint8:
		for i := col; i < end; i++ {
			v := int32(row.Data[i])
			switch {
			case v < 0:
				v = 0
			case v > 255:
				v = 255
			}
			row.Data[i] = byte(v)
		}
	}
}

func saturate8(v int32) int8 {
	switch {
	case v > 127:
		return 127
	case v < -128:
		return -128
	default:
		return int8(v)
	}
}

// execTensorReduce advances TReduce: a pairwise row-reduce with a named
// partner hart (spec §4.5 TensorReduce). Both sides must have issued
// their own TensorReduce naming each other before either completes; the
// lower-numbered hart performs the actual combine so the pair merges
// exactly once.
func (c *Chip) execTensorReduce(h *hart.Hart, fsms *tensor.FSMs) {
	if !fsms.HeadIs(tensor.KindReduce) {
		return
	}
	op := fsms.ReduceOp_
	if op == nil {
		return
	}
	partner := c.hartByID(hart.ID(op.ReducePartner))
	if partner == nil {
		fsms.Reduce = tensor.ReduceIdle
		fsms.Dequeue()
		return
	}
	pfsms := &partner.Core.Tensor
	pop := pfsms.ReduceOp_
	if pop == nil || pop.ReducePartner != uint32(h.ID) || !pfsms.HeadIs(tensor.KindReduce) {
		fsms.Reduce = tensor.ReduceWaitingToReceive
		return
	}

	if h.ID < partner.ID {
		c.doTensorReduce(h, partner, op)
	} else {
		c.doTensorReduce(partner, h, pop)
	}
	fsms.Reduce = tensor.ReduceIdle
	fsms.Dequeue()
	pfsms.Reduce = tensor.ReduceIdle
	pfsms.Dequeue()
	c.removeFromActiveIfWaiting(h)
	c.removeFromActiveIfWaiting(partner)
}

func (c *Chip) doTensorReduce(h, partner *hart.Hart, op *tensor.Op) {
	for row := 0; row < op.ReduceCount; row++ {
		dst := h.Core.Row(op.ReduceHeight + row)
		src := partner.Core.Row(op.ReduceHeight + row)
		reduceRow(op.ReduceOp, dst, src)
	}
}

func reduceRow(op tensor.ReduceOp, dst, src *core.ScratchRow) {
	for i := 0; i < core.VLenBytes; i++ {
		a, b := int8(dst.Data[i]), int8(src.Data[i])
		switch op {
		case tensor.ReduceMove:
			dst.Data[i] = src.Data[i]
		case tensor.ReduceAdd, tensor.ReduceFAdd:
			dst.Data[i] = byte(saturate8(int32(a) + int32(b)))
		case tensor.ReduceMin, tensor.ReduceFMin:
			if b < a {
				dst.Data[i] = src.Data[i]
			}
		case tensor.ReduceMax, tensor.ReduceFMax:
			if b > a {
				dst.Data[i] = src.Data[i]
			}
		}
	}
}
