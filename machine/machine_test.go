package machine

import (
	"github.com/pkg/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/mem/fault"
	"github.com/sarchlab/mmusim/mem/vm"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
)

func phys(raw uint64) *Ref {
	r := At(addressing.Phys(raw))
	return &r
}

var _ = Describe("Machine", func() {
	var (
		m   *Machine
		pid vm.PID
	)

	BeforeEach(func() {
		m = MakeBuilder().
			WithConfig(addressing.MustPreset(addressing.Bit8)).
			Build("Machine")
		pid = m.Spawn()
	})

	It("should build its memory", func() {
		Expect(m.Name()).To(Equal("Machine"))
		Expect(m.MMU().Name()).To(Equal("Machine.MMU"))
		Expect(m.Stack().Base()).To(Equal(uint64(511 * 4096)))
		Expect(m.Processes()).To(Equal([]vm.PID{1}))
	})

	It("should allocate, write and read at the null address", func() {
		res, err := m.Exec(pid, Alloc{Bytes: []int8{24}, At: phys(0)})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Signal).To(Equal(SignalAlloc))
		Expect(res.Outcome.Applied).To(BeTrue())

		res, err = m.Exec(pid, Write{At: *phys(0), Value: 42})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Signal).To(Equal(SignalWrite))
		Expect(res.Outcome.Applied).To(BeTrue())

		res, err = m.Exec(pid, Read{At: *phys(0)})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Signal).To(Equal(SignalRead))
		Expect(res.Value).To(Equal(int8(42)))
	})

	It("should store the allocated bytes", func() {
		_, err := m.Exec(pid, Alloc{Bytes: []int8{24, 35, -64}, At: phys(4096)})
		Expect(err).NotTo(HaveOccurred())

		res, err := m.Exec(pid, Read{At: *phys(4098)})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Value).To(Equal(int8(-64)))
	})

	It("should pick a free range without address", func() {
		res, err := m.Exec(pid, Alloc{Bytes: []int8{1, 2}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Address).To(Equal(addressing.Phys(4096)))

		res, err = m.Exec(pid, Alloc{Bytes: []int8{3}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Address).To(Equal(addressing.Phys(4098)))
	})

	It("should leave unallocated memory alone", func() {
		res, err := m.Exec(pid, Write{At: *phys(4096), Value: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(mmu.Rejected(mmu.ReasonNotAllocated)))
		Expect(m.MMU().FrameAt(1).Data[0]).To(Equal(byte(0)))
	})

	Context("virtual addresses", func() {
		It("should back a virtual allocation with a free frame", func() {
			at := At(addressing.Virt(0x1010))
			res, err := m.Exec(pid, Alloc{Bytes: []int8{7}, At: &at})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome.Applied).To(BeTrue())
			Expect(res.Address).To(Equal(addressing.Phys(4096 + 0x10)))

			res, err = m.Exec(pid, Read{At: at})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Value).To(Equal(int8(7)))
		})

		It("should translate through explicit mappings", func() {
			Expect(m.Map(pid, 0x3000, 5)).To(Succeed())

			_, _ = m.Exec(pid, Alloc{Bytes: []int8{9}, At: phys(5*4096 + 4)})

			res, err := m.Exec(pid, Read{At: At(addressing.Virt(0x3004))})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Value).To(Equal(int8(9)))
		})

		It("should fault on unmapped reads", func() {
			_, err := m.Exec(pid, Read{At: At(addressing.Virt(0x5000))})
			Expect(fault.Is(err, fault.AddrOutOfRange)).To(BeTrue())
		})

		It("should keep address spaces apart", func() {
			other := m.Spawn()
			at := At(addressing.Virt(0x1000))
			_, _ = m.Exec(pid, Alloc{Bytes: []int8{1}, At: &at})

			_, err := m.Exec(other, Read{At: at})
			Expect(fault.Is(err, fault.AddrOutOfRange)).To(BeTrue())
		})

		It("should refuse frames outside memory", func() {
			err := m.Map(pid, 0, 512)
			Expect(fault.Is(err, fault.AddrOutOfRange)).To(BeTrue())
		})
	})

	Context("with several page-table levels", func() {
		BeforeEach(func() {
			m = MakeBuilder().
				WithConfig(addressing.MustPreset(addressing.Bit16)).
				Build("Machine")
			pid = m.Spawn()
		})

		It("should keep pages with the same low index apart", func() {
			low := At(addressing.Virt(0x0))
			high := At(addressing.Virt(0x200000))

			res, err := m.Exec(pid, Alloc{Bytes: []int8{11}, At: &low})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Address).To(Equal(addressing.Phys(0x1000)))

			res, err = m.Exec(pid, Alloc{Bytes: []int8{22}, At: &high})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Address).To(Equal(addressing.Phys(0x2000)))

			res, err = m.Exec(pid, Read{At: low})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome.Applied).To(BeTrue())
			Expect(res.Address).To(Equal(addressing.Phys(0x1000)))
			Expect(res.Value).To(Equal(int8(11)))

			res, err = m.Exec(pid, Read{At: high})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Value).To(Equal(int8(22)))

			Expect(m.Snapshot().Processes[0].MappedFrames).
				To(Equal([]int{1, 2}))
		})

		It("should release the frame of a remapped page", func() {
			Expect(m.Map(pid, 0x3000, 5)).To(Succeed())
			Expect(m.Map(pid, 0x3000, 6)).To(Succeed())

			Expect(m.Snapshot().Processes[0].MappedFrames).To(Equal([]int{6}))
		})
	})

	Context("labels", func() {
		It("should resolve labels", func() {
			_, err := m.Exec(pid, Alloc{Bytes: []int8{1, 2}, Label: "a"})
			Expect(err).NotTo(HaveOccurred())

			addr, found := m.Lookup("a")
			Expect(found).To(BeTrue())
			Expect(addr).To(Equal(addressing.Phys(4096)))

			res, err := m.Exec(pid, Read{At: Labeled("a")})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Value).To(Equal(int8(1)))

			res, err = m.Exec(pid, Dealloc{At: Labeled("a")})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome.Applied).To(BeTrue())

			_, found = m.Lookup("a")
			Expect(found).To(BeFalse())
		})

		It("should refuse unknown and reused labels", func() {
			_, err := m.Exec(pid, Read{At: Labeled("nope")})
			Expect(errors.Is(err, ErrUnknownLabel)).To(BeTrue())

			_, _ = m.Exec(pid, Alloc{Bytes: []int8{1}, Label: "a"})
			_, err = m.Exec(pid, Alloc{Bytes: []int8{1}, Label: "a"})
			Expect(errors.Is(err, ErrLabelInUse)).To(BeTrue())
		})
	})

	It("should only let owners deallocate", func() {
		other := m.Spawn()
		_, _ = m.Exec(pid, Alloc{Bytes: []int8{1}, At: phys(4096)})

		res, err := m.Exec(other, Dealloc{At: *phys(4096)})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Signal).To(Equal(SignalDealloc))
		Expect(res.Outcome.Reason).To(Equal(mmu.ReasonNotOwner))
	})

	Context("stack", func() {
		It("should push and pop", func() {
			res, err := m.Exec(pid, Push{Value: -5})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Signal).To(Equal(SignalWrite))

			res, err = m.Exec(pid, Pop{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Signal).To(Equal(SignalRead))
			Expect(res.Value).To(Equal(int8(-5)))
		})

		It("should fault on an empty pop", func() {
			_, err := m.Exec(pid, Pop{})
			Expect(fault.Is(err, fault.Unrecoverable)).To(BeTrue())
		})

		It("should keep allocations out of the stack", func() {
			res, err := m.Exec(pid, Alloc{Bytes: []int8{1}, At: phys(511 * 4096)})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome.Reason).To(Equal(mmu.ReasonStack))
		})
	})

	It("should release everything on exit", func() {
		_, _ = m.Exec(pid, Alloc{Bytes: []int8{1}, Label: "a"})
		at := At(addressing.Virt(0x2000))
		_, _ = m.Exec(pid, Alloc{Bytes: []int8{1}, At: &at})

		res, err := m.Exec(pid, Exit{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Signal).To(Equal(SignalExit))

		Expect(m.MMU().Allocations()).To(BeEmpty())
		Expect(m.Frames()).To(HaveLen(1))
		_, found := m.Lookup("a")
		Expect(found).To(BeFalse())

		_, err = m.Exec(pid, Debug{})
		Expect(errors.Is(err, ErrNoProcess)).To(BeTrue())
	})

	It("should describe itself", func() {
		_, _ = m.Exec(pid, Alloc{Bytes: []int8{1}, Label: "a"})
		Expect(m.Map(pid, 0x4000, 7)).To(Succeed())
		_, _ = m.Exec(pid, Push{Value: 1})

		s := m.Snapshot()
		Expect(s.BitMode).To(Equal("Bit8"))
		Expect(s.Stack.SP).To(Equal(uint64(511*4096 + 1)))
		Expect(s.Allocations).To(HaveLen(1))
		Expect(s.Processes).To(Equal([]ProcessSnapshot{
			{PID: pid, MappedFrames: []int{7}},
		}))
		Expect(s.Labels).To(Equal([]LabelSnapshot{{Name: "a", Address: "0x1000"}}))

		frames := m.Frames()
		Expect(frames).To(HaveLen(3))
		Expect(frames[0].Index).To(Equal(1))
		Expect(frames[0].Owners).To(Equal([]vm.PID{pid}))
		Expect(frames[1].Mapped).To(BeTrue())
		Expect(frames[2].Stack).To(BeTrue())
	})

	Context("hooks", func() {
		var (
			mockCtrl *gomock.Controller
			hook     *MockHook
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			hook = NewMockHook(mockCtrl)
			m.AcceptHook(hook)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should report every request", func() {
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Domain).To(BeIdenticalTo(m))
				Expect(ctx.Pos).To(Equal(HookPosRequest))

				record := ctx.Item.(Record)
				Expect(record.PID).To(Equal(pid))
				Expect(record.Request).To(Equal(Debug{}))
				Expect(record.Result.Signal).To(Equal(SignalDebug))
			})

			_, err := m.Exec(pid, Debug{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should report faults", func() {
			gomock.InOrder(
				hook.EXPECT().Func(gomock.Any()),
				hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Pos).To(Equal(HookPosFault))
					Expect(ctx.Item.(*fault.Fault).Kind).
						To(Equal(fault.Unrecoverable))
					Expect(ctx.Detail).To(Equal(Pop{}))
				}),
			)

			_, _ = m.Exec(pid, Pop{})
		})
	})
})
