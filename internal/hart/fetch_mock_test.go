package hart_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	gomock "github.com/golang/mock/gomock"

	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/mmu"
)

var _ = Describe("Fetch", func() {
	var (
		mockCtrl *gomock.Controller
		mem      *MockMemory
		tr       *MockTranslator
		h        *hart.Hart
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mem = NewMockMemory(mockCtrl)
		tr = NewMockTranslator(mockCtrl)
		h = hart.New(hart.ID(0), core.New(core.ID(0)))
		h.PC = 0x1000
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("translates and refills the buffer on a miss, then serves a same-line fetch from cache", func() {
		tr.EXPECT().
			Translate(mem, h, uint64(0x1000), 32, mmu.AccessFetch, h.MMUStatus()).
			Return(uint64(0x1000), nil).
			Times(1)
		mem.EXPECT().
			Read(h, uint64(0x1000), 32, gomock.Any()).
			DoAndReturn(func(_ interface{}, _ uint64, _ int, buf []byte) error {
				buf[0] = 0x13 // addi x0, x0, 0 low byte, just needs to decode as 4 bytes
				return nil
			}).
			Times(1)

		_, err := h.Fetch(mem, tr)
		Expect(err).NotTo(HaveOccurred())

		h.PC = 0x1004 // still inside the same 32-byte aligned block
		_, err = h.Fetch(mem, tr)
		Expect(err).NotTo(HaveOccurred())
	})

	It("propagates a translation fault without touching memory", func() {
		tr.EXPECT().
			Translate(mem, h, uint64(0x1000), 32, mmu.AccessFetch, h.MMUStatus()).
			Return(uint64(0), hartFetchFault{}).
			Times(1)

		_, err := h.Fetch(mem, tr)
		Expect(err).To(Equal(hartFetchFault{}))
	})
})

type hartFetchFault struct{}

func (hartFetchFault) Error() string { return "fetch fault" }
