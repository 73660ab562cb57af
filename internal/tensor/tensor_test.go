package tensor_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiresim/internal/tensor"
)

var _ = Describe("FSMs", func() {
	var f *tensor.FSMs

	BeforeEach(func() {
		f = &tensor.FSMs{}
	})

	Describe("UUID allocation", func() {
		It("hands out a monotonically increasing, per-core UUID", func() {
			first := f.NextUUID()
			second := f.NextUUID()
			Expect(second).To(Equal(first + 1))
		})
	})

	Describe("per-kind idleness", func() {
		It("treats every FSM as idle at reset", func() {
			Expect(f.Idle(tensor.KindLoad)).To(BeTrue())
			Expect(f.Idle(tensor.KindMul)).To(BeTrue())
			Expect(f.Idle(tensor.KindStore)).To(BeTrue())
			Expect(f.Idle(tensor.KindQuant)).To(BeTrue())
			Expect(f.Idle(tensor.KindReduce)).To(BeTrue())
		})

		It("reports a kind busy once its state leaves Idle", func() {
			f.Store = tensor.StoreReady
			Expect(f.Idle(tensor.KindStore)).To(BeFalse())
			Expect(f.Idle(tensor.KindLoad)).To(BeTrue())
		})
	})

	Describe("tqueue ordering", func() {
		It("serves kinds FIFO and only lets the head claim the slot", func() {
			f.Enqueue(tensor.KindLoad)
			f.Enqueue(tensor.KindStore)

			Expect(f.HeadIs(tensor.KindLoad)).To(BeTrue())
			Expect(f.HeadIs(tensor.KindStore)).To(BeFalse())

			f.Dequeue()
			Expect(f.HeadIs(tensor.KindStore)).To(BeTrue())

			f.Dequeue()
			Expect(f.HeadIs(tensor.KindStore)).To(BeFalse())
		})

		It("is a no-op to dequeue an empty queue", func() {
			Expect(func() { f.Dequeue() }).NotTo(Panic())
			Expect(f.HeadIs(tensor.KindLoad)).To(BeFalse())
		})
	})
})

var _ = Describe("CoopTable", func() {
	var table *tensor.CoopTable
	group := tensor.CoopGroup{Operand: 0, Group: 3}

	BeforeEach(func() {
		table = tensor.NewCoopTable()
	})

	It("returns not-found for a group that was never installed", func() {
		_, ok := table.Get(group)
		Expect(ok).To(BeFalse())
	})

	It("drains only once every cooperating hart has arrived", func() {
		table.Install(group, 0b0111)

		drained, ok := table.Arrive(group, 0b0001)
		Expect(ok).To(BeTrue())
		Expect(drained).To(BeFalse())

		drained, ok = table.Arrive(group, 0b0010)
		Expect(ok).To(BeTrue())
		Expect(drained).To(BeFalse())

		drained, ok = table.Arrive(group, 0b0100)
		Expect(ok).To(BeTrue())
		Expect(drained).To(BeTrue())

		entry, ok := table.Get(group)
		Expect(ok).To(BeTrue())
		Expect(entry.Pending).To(BeZero())
		Expect(entry.All).To(Equal(uint32(0b0111)))
	})

	It("reports not-ok arriving against an uninstalled group", func() {
		_, ok := table.Arrive(group, 0b1)
		Expect(ok).To(BeFalse())
	})

	It("reinstalling a group resets its pending mask", func() {
		table.Install(group, 0b11)
		table.Arrive(group, 0b01)

		table.Install(group, 0b11)
		entry, _ := table.Get(group)
		Expect(entry.Pending).To(Equal(uint32(0b11)))
	})
})
