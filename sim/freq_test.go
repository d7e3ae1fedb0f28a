package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should calculate the period", func() {
		f := 1 * GHz
		Expect(f.Period()).To(BeNumerically("~", 1e-9, 1e-15))
	})

	It("should convert a time to a cycle count", func() {
		f := 100 * MHz
		Expect(f.Cycle(0)).To(Equal(uint64(0)))
		Expect(f.Cycle(1e-8)).To(Equal(uint64(1)))
		Expect(f.Cycle(1.05e-6)).To(Equal(uint64(105)))
	})

	It("should find this tick", func() {
		f := 1 * GHz
		Expect(f.ThisTick(1.0000000015)).To(
			BeNumerically("~", 1.000000002, 1e-12))
		Expect(f.ThisTick(1.000000002)).To(
			BeNumerically("~", 1.000000002, 1e-12))
	})

	It("should find the next tick", func() {
		f := 1 * GHz
		Expect(f.NextTick(1.0000000015)).To(
			BeNumerically("~", 1.000000002, 1e-12))
		Expect(f.NextTick(1.000000002)).To(
			BeNumerically("~", 1.000000003, 1e-12))
	})

	It("should find the tick n cycles later", func() {
		f := 1 * GHz
		Expect(f.NCyclesLater(12, 1.000000002)).To(
			BeNumerically("~", 1.000000014, 1e-12))
	})

	It("should panic on a zero frequency period", func() {
		Expect(func() { Freq(0).Period() }).To(Panic())
	})
})
