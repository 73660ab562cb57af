package hart

import (
	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/tensor"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

// isTensorCSR reports whether addr names one of the vendor tensor
// coprocessor start/wait CSRs (spec §4.5 "All tensor CSR writes go
// through a start routine").
func isTensorCSR(addr uint32) bool {
	switch addr {
	case csrTensorLoad, csrTensorFMA, csrTensorStore, csrTensorQuant, csrTensorReduce,
		csrTensorWaitLoad, csrTensorWaitFMA, csrTensorWaitStore, csrTensorWaitQuant, csrTensorWaitReduce:
		return true
	}
	return false
}

// execTensorCSR dispatches one CSRRW of control to the named tensor
// start routine, or to TensorWait for a *_WAIT CSR.
func (h *Hart) execTensorCSR(addr uint32, control uint64) error {
	switch addr {
	case csrTensorLoad:
		return h.startTensorLoad(control)
	case csrTensorFMA:
		return h.startTensorFMA(control)
	case csrTensorStore:
		return h.startTensorStore(control)
	case csrTensorQuant:
		return h.startTensorQuant(control)
	case csrTensorReduce:
		return h.startTensorReduce(control)
	case csrTensorWaitLoad:
		h.TensorWait(tensor.KindLoad)
	case csrTensorWaitFMA:
		h.TensorWait(tensor.KindMul)
	case csrTensorWaitStore:
		h.TensorWait(tensor.KindStore)
	case csrTensorWaitQuant:
		h.TensorWait(tensor.KindQuant)
	case csrTensorWaitReduce:
		h.TensorWait(tensor.KindReduce)
	}
	return nil
}

// tensorFeatureOK mirrors MINION_FEATURE's gate on tensor CSR access:
// the tensor coprocessor only accepts new ops while its minion's L1
// scratchpad is actually enabled (original_source/sw-sysemu/insns/
// tensors.cpp requires mcache_control==0x3, else sets tensor_error[4]
// rather than starting the op outright; StartTensorOp's caller-supplied
// featureOK only models the simpler "feature disabled" illegal-
// instruction case, so the mcache_control==3 requirement is checked
// here and reported via tensor_error instead, see DESIGN.md).
func (h *Hart) tensorFeatureOK() bool {
	return h.Core.MCacheControl == core.CacheModeL1AndL2
}

// startTensorLoad decodes a CSR_TENSOR_LOAD_START control word and
// starts TLoad (spec §4.5; bit layout grounded on
// original_source/sw-sysemu/insns/tensors.cpp tensor_load_start: msk@63,
// coop@62, cmd@61:59, start@58:53, tenb@52, addr@47:6 (sign-extended),
// rows@3:0+1; l2scp is this emulator's own extension at bit 51 since the
// filtered source only resolves the bits above, see DESIGN.md). Row
// stride comes from X31, matching the original's separate-GPR operand.
func (h *Hart) startTensorLoad(control uint64) error {
	if !h.tensorFeatureOK() {
		h.Core.Tensor.Error |= tensor.ErrorQuantSCPDisabled
		return nil
	}
	coop := (control>>62)&1 != 0
	cmdBits := (control >> 59) & 0x7
	if cmdBits > uint64(tensor.LoadTranspose32) {
		return trapkind.IllegalInstruction(uint32(control >> 32))
	}
	mode := tensor.LoadMode(cmdBits)
	start := int((control >> 53) & 0x3F)
	tenb := (control>>52)&1 != 0
	l2scp := (control>>51)&1 != 0
	addr := signExtend(control&0xFFFFFFFFFFC0, 47)
	rows := int(control&0xF) + 1
	tcoop := uint32(h.X[31])

	return h.StartTensorOp(uint32(control), true, tensor.KindLoad, func(uuid uint64) *tensor.Op {
		return &tensor.Op{
			Kind:      tensor.KindLoad,
			UUID:      uuid,
			Coop:      coop,
			TCoop:     tcoop,
			LoadMode:  mode,
			LoadAddr:  addr,
			LoadRows:  rows,
			LoadStart: start,
			LoadTenB:  tenb,
			LoadL2SCP: l2scp,
		}
	})
}

// startTensorFMA decodes a CSR_TENSOR_FMA_START control word (this
// emulator's own encoding: the filtered original_source never resolves
// tensor_fma_start's bit layout, see DESIGN.md): firstPass@63,
// fmaType@61:60, aRows@23:16, aCols@15:8, bCols@7:0.
func (h *Hart) startTensorFMA(control uint64) error {
	if !h.tensorFeatureOK() {
		h.Core.Tensor.Error |= tensor.ErrorQuantSCPDisabled
		return nil
	}
	firstPass := (control>>63)&1 != 0
	fmaType := tensor.FMAType((control >> 60) & 0x3)
	if fmaType > tensor.FMAInt8AccInt32 {
		return trapkind.IllegalInstruction(uint32(control >> 32))
	}
	aRows := int((control >> 16) & 0xFF)
	aCols := int((control >> 8) & 0xFF)
	bCols := int(control & 0xFF)

	return h.StartTensorOp(uint32(control), true, tensor.KindMul, func(uuid uint64) *tensor.Op {
		return &tensor.Op{
			Kind:         tensor.KindMul,
			UUID:         uuid,
			FMAType:      fmaType,
			FMAFirstPass: firstPass,
			FMAARows:     aRows,
			FMAACols:     aCols,
			FMABCols:     bCols,
		}
	})
}

// startTensorStore decodes a CSR_TENSOR_STORE_START control word (this
// emulator's own encoding, mirroring startTensorLoad's memory-operand
// layout): fromSCP@63, coop@61:60 (0,1,2 -> 1,2,4 cooperating minions),
// addr@47:6 sign-extended, rows@3:0+1, cols from X30's low byte. Row
// stride again comes from X31.
func (h *Hart) startTensorStore(control uint64) error {
	if !h.tensorFeatureOK() {
		h.Core.Tensor.Error |= tensor.ErrorQuantSCPDisabled
		return nil
	}
	fromSCP := (control>>63)&1 != 0
	coopBits := (control >> 60) & 0x3
	coop := 1 << coopBits
	addr := signExtend(control&0xFFFFFFFFFFC0, 47)
	rows := int(control&0xF) + 1
	cols := int(h.X[30] & 0xFF)

	return h.StartTensorOp(uint32(control), true, tensor.KindStore, func(uuid uint64) *tensor.Op {
		return &tensor.Op{
			Kind:         tensor.KindStore,
			UUID:         uuid,
			StoreAddr:    addr,
			StoreStride:  int64(h.X[31]),
			StoreRows:    rows,
			StoreCols:    cols,
			StoreFromSCP: fromSCP,
			StoreCoop:    coop,
		}
	})
}

// startTensorQuant decodes a CSR_TENSOR_QUANT_START control word (this
// emulator's own encoding): row@63:58, col@57:52, rows@51:46, cols@45:40,
// then up to ten 4-bit transform codes packed in bits 39:0, terminated
// by the first nibble equal to 0xF (spec §4.5 "up to ten chained
// transforms").
func (h *Hart) startTensorQuant(control uint64) error {
	if !h.tensorFeatureOK() {
		h.Core.Tensor.Error |= tensor.ErrorQuantSCPDisabled
		return nil
	}
	row := int((control >> 58) & 0x3F)
	col := int((control >> 52) & 0x3F)
	rows := int((control>>46)&0x3F) + 1
	cols := int((control>>40)&0x3F) + 1

	var ops []tensor.QuantOp
	for i := 0; i < 10; i++ {
		nibble := (control >> uint(4*(9-i))) & 0xF
		if nibble == 0xF {
			break
		}
		if nibble > uint64(tensor.QuantPack128) {
			return trapkind.IllegalInstruction(uint32(control >> 32))
		}
		ops = append(ops, tensor.QuantOp(nibble))
	}

	return h.StartTensorOp(uint32(control), true, tensor.KindQuant, func(uuid uint64) *tensor.Op {
		return &tensor.Op{
			Kind:      tensor.KindQuant,
			UUID:      uuid,
			QuantRow:  row,
			QuantCol:  col,
			QuantRows: rows,
			QuantCols: cols,
			QuantOps:  ops,
		}
	})
}

// startTensorReduce decodes a CSR_TENSOR_REDUCE_START control word
// (this emulator's own encoding): partner hart id@63:48, op@47:40,
// height@23:8, count@7:0 + 1 (spec §4.5 "TensorReduce exchanges rows
// with a named partner hart").
func (h *Hart) startTensorReduce(control uint64) error {
	if !h.tensorFeatureOK() {
		h.Core.Tensor.Error |= tensor.ErrorQuantSCPDisabled
		return nil
	}
	partner := uint32((control >> 48) & 0xFFFF)
	op := tensor.ReduceOp((control >> 40) & 0xFF)
	if op > tensor.ReduceFMax {
		return trapkind.IllegalInstruction(uint32(control >> 32))
	}
	height := int((control >> 8) & 0xFFFF)
	count := int(control&0xFF) + 1

	if partner == uint32(h.ID) {
		h.Core.Tensor.Error |= tensor.ErrorReduceSelfTarget
		return nil
	}

	return h.StartTensorOp(uint32(control), true, tensor.KindReduce, func(uuid uint64) *tensor.Op {
		return &tensor.Op{
			Kind:          tensor.KindReduce,
			UUID:          uuid,
			ReduceOp:      op,
			ReducePartner: partner,
			ReduceHeight:  height,
			ReduceCount:   count,
		}
	})
}
