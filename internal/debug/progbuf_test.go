package debug_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiresim/internal/debug"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

type fakeAbsCmdHart struct {
	loaded    [2]uint32
	runErr    error
	errorCode uint32
}

func (f *fakeAbsCmdHart) LoadProgBuf(instr0, instr1 uint32) { f.loaded = [2]uint32{instr0, instr1} }
func (f *fakeAbsCmdHart) RunProgBuf() error                 { return f.runErr }
func (f *fakeAbsCmdHart) SetHAStatus1Error(code uint32)     { f.errorCode = code }

var _ = Describe("RunAbstractCommand", func() {
	It("loads the program buffer and leaves no error on a clean run", func() {
		h := &fakeAbsCmdHart{}
		debug.RunAbstractCommand(h, 0x1111, 0x2222)

		Expect(h.loaded).To(Equal([2]uint32{0x1111, 0x2222}))
		Expect(h.errorCode).To(BeZero())
	})

	It("latches the exception error code when a progbuf instruction traps", func() {
		h := &fakeAbsCmdHart{runErr: trapkind.NewTrap(trapkind.CauseIllegalInstruction, 0)}
		debug.RunAbstractCommand(h, 0, 0)

		Expect(h.errorCode).To(Equal(debug.ErrCodeException))
	})

	It("ignores a non-trap error from RunProgBuf", func() {
		h := &fakeAbsCmdHart{runErr: trapkind.ErrRestart}
		debug.RunAbstractCommand(h, 0, 0)

		Expect(h.errorCode).To(BeZero())
	})
})
