package chip_test

import (
	"encoding/binary"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/shiresim/internal/chip"
	"github.com/sarchlab/shiresim/internal/config"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

// codeBase is the DRAM address every test in this file uses as the
// reset PC: 32-byte aligned, so a single fetch-buffer refill covers it.
const codeBase = 0x80_0000_0000

func buildChip() *chip.Chip {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := sim.NewSerialEngine()
	return config.ChipBuilder{}.
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithLogger(log).
		WithShires(1, 0, nil).
		WithDRAMSize(8).
		Build("test-chip")
}

func preload(c *chip.Chip, addr uint64, word uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, word)
	Expect(c.Memory.Init(memregion.AgentLoader, addr, 4, buf)).To(Succeed())
}

// encodeIType builds an I-type instruction (ADDI's format covers LOAD,
// OP-IMM and JALR alike).
func encodeIType(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

var _ = Describe("Chip", func() {
	var c *chip.Chip

	BeforeEach(func() {
		c = buildChip()
		c.SetResetPC(codeBase)
	})

	It("steps the service processor hart through one ADDI and advances its pc", func() {
		preload(c, codeBase, encodeIType(0x13, 1, 0, 0, 5)) // addi x1, x0, 5

		progressed := c.Tick(0)

		Expect(progressed).To(BeTrue())
		Expect(c.Harts[0].X[1]).To(Equal(uint64(5)))
		Expect(c.Harts[0].PC).To(Equal(uint64(codeBase + 4)))
		Expect(c.Cycle).To(Equal(uint64(1)))
	})

	It("redirects an illegal instruction to mtvec in direct mode", func() {
		preload(c, codeBase, 0) // opcode 0 decodes to nothing valid

		const mtvecBase = 0x80_0000_1000
		c.Harts[0].CSR.MTVec = mtvecBase // mode bits clear -> direct

		Expect(c.Tick(0)).To(BeTrue())

		h := c.Harts[0]
		Expect(h.PC).To(Equal(uint64(mtvecBase)))
		Expect(h.CSR.MCause).To(Equal(uint64(trapkind.CauseIllegalInstruction)))
		Expect(h.CSR.MEPC).To(Equal(uint64(codeBase)))
	})

	It("dispatches through mtvec's vectored table when mode bit 0 is set", func() {
		preload(c, codeBase, 0)

		const mtvecBase = 0x80_0000_2000
		c.Harts[0].CSR.MTVec = mtvecBase | 1 // vectored

		Expect(c.Tick(0)).To(BeTrue())

		want := mtvecBase + 4*uint64(trapkind.CauseIllegalInstruction)
		Expect(c.Harts[0].PC).To(Equal(want))
	})

	It("brings an enabled hart into the active set and steps it alongside the service processor", func() {
		const second = hart.ID(2) // core 1, thread 0: a distinct minion's hart

		preload(c, codeBase, encodeIType(0x13, 2, 0, 0, 7)) // addi x2, x0, 7
		c.EnableHart(second)

		Expect(c.Tick(0)).To(BeTrue())

		Expect(c.Harts[second].X[2]).To(Equal(uint64(7)))
		Expect(c.Harts[second].State).To(Equal(hart.StateRunning))
	})

	It("drops a disabled hart back to Unavailable and out of scheduling", func() {
		const second = hart.ID(2)
		c.EnableHart(second)
		c.DisableHart(second)

		preload(c, codeBase, encodeIType(0x13, 2, 0, 0, 7))
		c.Tick(0)

		Expect(c.Harts[second].State).To(Equal(hart.StateUnavailable))
		Expect(c.Harts[second].X[2]).To(BeZero())
	})

	It("reports no progress once the cycle ceiling is reached", func() {
		c.MaxCycles = 0
		preload(c, codeBase, encodeIType(0x13, 1, 0, 0, 5))

		Expect(c.Tick(0)).To(BeFalse())
		Expect(c.Cycle).To(BeZero())
	})

	It("renders hart state and register tables for debug dumps", func() {
		preload(c, codeBase, encodeIType(0x13, 3, 0, 0, 9)) // addi x3, x0, 9
		Expect(c.Tick(0)).To(BeTrue())

		stateDump := c.HartStateDump()
		Expect(stateDump).To(ContainSubstring("Hart State"))
		Expect(stateDump).To(ContainSubstring(c.Harts[0].ID.String()))

		regDump := c.RegisterFileDump(0)
		Expect(regDump).To(ContainSubstring("0x9"))
	})
})
