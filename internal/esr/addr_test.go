package esr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiresim/internal/esr"
	"github.com/sarchlab/shiresim/internal/priv"
)

var _ = Describe("Decode", func() {
	It("recovers privilege, shire, sub-region and field from a per-hart address", func() {
		off := uint64(priv.Supervisor)<<30 | uint64(7)<<22 | uint64(esr.SubHart)<<17 | uint64(9)<<12 | uint64(3)<<3
		a := esr.Decode(esr.Base + off)

		Expect(a.Priv).To(Equal(priv.Supervisor))
		Expect(a.Shire).To(Equal(uint32(7)))
		Expect(a.Sub).To(Equal(esr.SubHart))
		Expect(a.Entity).To(Equal(uint32(9)))
		Expect(a.Field).To(Equal(uint64(3)))
	})

	It("decodes the neighborhood selector for a per-neigh address", func() {
		off := uint64(esr.SubNeigh)<<17 | uint64(esr.NeighBroadcast)<<16
		a := esr.Decode(esr.Base + off)

		Expect(a.Sub).To(Equal(esr.SubNeigh))
		Expect(a.Entity).To(Equal(uint32(esr.NeighBroadcast)))
	})

	It("decodes the bank selector for a per-cache-bank address", func() {
		off := uint64(esr.SubCacheBank)<<17 | uint64(5)<<13
		a := esr.Decode(esr.Base + off)

		Expect(a.Sub).To(Equal(esr.SubCacheBank))
		Expect(a.Entity).To(Equal(uint32(5)))
	})

	It("leaves the shire sentinel as LocalShire when the address encodes it", func() {
		off := uint64(esr.LocalShire) << 22
		a := esr.Decode(esr.Base + off)
		Expect(a.Shire).To(Equal(uint32(esr.LocalShire)))
	})
})
