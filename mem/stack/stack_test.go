package stack

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/mem/fault"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
)

var _ = Describe("Stack", func() {
	var (
		mockCtrl *gomock.Controller
		storage  *MockStorage
		s        *Stack
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		storage = NewMockStorage(mockCtrl)

		cfg := addressing.MakeConfigBuilder().
			WithBitMode(addressing.Bit8).
			WithStack(4096, 2).
			MustBuild()
		s = New(cfg, storage)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start empty", func() {
		Expect(s.SP()).To(Equal(uint64(4096)))
		Expect(s.Base()).To(Equal(uint64(4096)))
		Expect(s.Size()).To(Equal(uint64(0)))
		Expect(s.Cap()).To(Equal(uint64(2)))
	})

	It("should overflow after cap pushes", func() {
		storage.EXPECT().Write(uint64(4096), []byte{1}).Return(1, nil)
		storage.EXPECT().Write(uint64(4097), []byte{2}).Return(1, nil)

		Expect(s.Push(1)).To(Succeed())
		Expect(s.Push(2)).To(Succeed())

		err := s.Push(3)
		Expect(fault.Is(err, fault.StackOverflow)).To(BeTrue())

		f, _ := fault.As(err)
		Expect(f.Address).To(Equal(uint64(4098)))
		Expect(s.SP()).To(Equal(uint64(4098)))
	})

	It("should pop in reverse order", func() {
		gomock.InOrder(
			storage.EXPECT().Write(uint64(4096), []byte{7}).Return(1, nil),
			storage.EXPECT().Read(uint64(4096)).Return(byte(7), nil),
		)

		Expect(s.Push(7)).To(Succeed())

		b, err := s.Pop()
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(byte(7)))
		Expect(s.Size()).To(Equal(uint64(0)))
	})

	It("should refuse to pop an empty stack", func() {
		_, err := s.Pop()
		Expect(fault.Is(err, fault.Unrecoverable)).To(BeTrue())
	})

	It("should keep the pointer when storage fails", func() {
		storage.EXPECT().
			Write(uint64(4096), gomock.Any()).
			Return(0, fault.NewAddrOutOfRange(4096))

		err := s.Push(1)
		Expect(fault.Is(err, fault.AddrOutOfRange)).To(BeTrue())
		Expect(s.SP()).To(Equal(uint64(4096)))
	})

	It("should fail when storage drops the byte", func() {
		storage.EXPECT().Write(uint64(4096), []byte{1}).Return(0, nil)

		err := s.Push(1)

		Expect(fault.Is(err, fault.AddrOutOfRange)).To(BeTrue())
		Expect(s.SP()).To(Equal(uint64(4096)))
	})

	It("should classify its own range", func() {
		Expect(s.Classify(4095)).To(Equal(mmu.SegmentNeutral))
		Expect(s.Classify(4096)).To(Equal(mmu.SegmentStack))
		Expect(s.Classify(4097)).To(Equal(mmu.SegmentStack))
		Expect(s.Classify(4098)).To(Equal(mmu.SegmentNeutral))
	})
})

var _ = Describe("Stack over an MMU", func() {
	It("should accept exactly cap pushes", func() {
		cfg := addressing.MustPreset(addressing.Bit32)
		m := mmu.MakeBuilder().WithConfig(cfg).Build("MMU")
		s := New(cfg, m)

		for i := uint64(0); i < s.Cap(); i++ {
			Expect(s.Push(byte(i))).To(Succeed())
		}

		Expect(fault.Is(s.Push(0), fault.StackOverflow)).To(BeTrue())

		for i := s.Cap(); i > 0; i-- {
			b, err := s.Pop()
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(byte(i - 1)))
		}

		_, err := s.Pop()
		Expect(fault.Is(err, fault.Unrecoverable)).To(BeTrue())
	})

	It("should keep its bytes in the first frame", func() {
		cfg := addressing.MakeConfigBuilder().
			WithBitMode(addressing.Bit8).
			WithStack(0, 16).
			MustBuild()
		m := mmu.MakeBuilder().WithConfig(cfg).Build("MMU")
		s := New(cfg, m)

		Expect(s.Push(7)).To(Succeed())

		b, err := s.Pop()
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(byte(7)))
	})
})
