package addressing

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Codec", func() {
	var cfg Config

	BeforeEach(func() {
		cfg = MustPreset(Bit64)
	})

	It("should extract the offset and every level", func() {
		raw := uint64(3)<<39 | uint64(2)<<30 | uint64(1)<<21 |
			uint64(7)<<12 | 0xabc

		d := Decompose(raw, cfg)

		Expect(d.Offset).To(Equal(uint64(0xabc)))
		Expect(d.Levels[0]).To(Equal(Level(7)))
		Expect(d.Levels[1]).To(Equal(Level(1)))
		Expect(d.Levels[2]).To(Equal(Level(2)))
		Expect(d.Levels[3]).To(Equal(Level(3)))
	})

	It("should leave disabled levels absent", func() {
		cfg = MustPreset(Bit16)

		d := Decompose(uint64(5)<<21|uint64(4)<<12|1, cfg)

		Expect(d.Levels[0]).To(Equal(Level(4)))
		Expect(d.Levels[1]).To(Equal(Level(5)))
		Expect(d.Levels[2].Present).To(BeFalse())
		Expect(d.Levels[3].Present).To(BeFalse())
	})

	It("should discard bits above the translated width", func() {
		raw := uint64(0xffff)<<48 | 0x123

		d := Decompose(raw, cfg)

		Expect(Compose(d, cfg)).To(Equal(uint64(0x123)))
		Expect(Truncate(raw, cfg)).To(Equal(uint64(0x123)))
	})

	It("should round-trip addresses with clear high bits", func() {
		r := rand.New(rand.NewSource(1))

		for _, m := range BitModes {
			c := MustPreset(m)
			for i := 0; i < 1000; i++ {
				x := Truncate(r.Uint64(), c)
				Expect(Compose(Decompose(x, c), c)).To(Equal(x))
			}
		}
	})

	It("should skip absent levels when composing", func() {
		d := Decomposed{Offset: 1}
		d.Levels[1] = Level(1)

		Expect(Compose(d, cfg)).To(Equal(uint64(1)<<21 | 1))
	})

	It("should tell canonical addresses", func() {
		Expect(Canonical(0x0000_7fff_ffff_ffff, cfg)).To(BeTrue())
		Expect(Canonical(0xffff_8000_0000_0000, cfg)).To(BeTrue())
		Expect(Canonical(0x0001_0000_0000_0000, cfg)).To(BeFalse())
		Expect(Canonical(0xffff_0000_0000_0000, cfg)).To(BeFalse())
	})

	It("should tag addresses with their space", func() {
		Expect(Virt(16).IsVirtual()).To(BeTrue())
		Expect(Phys(16).IsVirtual()).To(BeFalse())
		Expect(Virt(16).String()).To(Equal("v0x10"))
		Expect(Phys(16).String()).To(Equal("0x10"))
	})
})
