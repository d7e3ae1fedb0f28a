package acceptance

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/emusim/spiflashsim/arbiter"
	"github.com/emusim/spiflashsim/chip"
	"github.com/emusim/spiflashsim/host"
	"github.com/emusim/spiflashsim/maint"
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/system"
)

// lockCounter tallies grant transitions at the arbiter.
type lockCounter struct {
	acquires int
	releases int
}

func (h *lockCounter) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case arbiter.HookPosLockAcquire:
		h.acquires++
	case arbiter.HookPosLockRelease:
		h.releases++
	}
}

var _ = Describe("The emulated flash chip", func() {
	It("should serve a streaming read", func() {
		image := make([]byte, 0x1004)
		copy(image[0x1000:], []byte{0xDE, 0xAD, 0xBE, 0xEF})

		p := system.MakeBuilder().
			WithImage(image).
			WithTransfers(host.Transfer{
				Opcode:    chip.OpcodeRead,
				Address:   0x001000,
				ReadBytes: 4,
			}).
			Build("Platform")

		Expect(p.Run()).To(Succeed())

		Expect(p.Host.Results()[0]).To(Equal([]byte{0xDE, 0xAD, 0xBE, 0xEF}))

		c := p.Chip.Counters()
		Expect(c.Transactions).To(Equal(uint64(1)))
		Expect(c.ReadTransactions).To(Equal(uint64(1)))
		Expect(c.PlaceholderBytes).To(BeZero())

		// The completed read shows up on the maintenance link as one log
		// record: marker, 24-bit address, length.
		Expect(p.Maint.Sent()).To(Equal([]byte{
			maint.MarkerLogEntry, 0x00, 0x10, 0x00, 0x04,
		}))
	})

	It("should ignore an unrecognized opcode and return to idle", func() {
		p := system.MakeBuilder().
			WithTransfers(host.Transfer{
				Opcode:  0x9F,
				Address: 0,
				Payload: []byte{0x00},
			}).
			Build("Platform")

		locks := &lockCounter{}
		p.Arbiter.AcceptHook(locks)

		Expect(p.Run()).To(Succeed())

		Expect(p.Host.Results()[0]).To(BeEmpty())

		c := p.Chip.Counters()
		Expect(c.Transactions).To(Equal(uint64(1)))
		Expect(c.ReadTransactions).To(BeZero())

		// No memory access happened, but the grant was still taken and
		// released around the transaction.
		Expect(p.Arbiter.Counters().FlashReads).To(BeZero())
		Expect(locks.acquires).To(Equal(1))
		Expect(locks.releases).To(Equal(1))
		Expect(p.Arbiter.Locked()).To(BeFalse())

		Expect(p.Maint.Sent()).To(BeEmpty())
	})

	It("should wrap streaming reads at the capacity boundary", func() {
		p := system.MakeBuilder().
			WithTransfers(host.Transfer{
				Opcode:    chip.OpcodeRead,
				Address:   0xFFFFFE,
				ReadBytes: 4,
			}).
			Build("Platform")

		Expect(p.Storage.Write(0xFFFFFE, []byte{0x11, 0x22})).To(Succeed())
		Expect(p.Storage.Write(0, []byte{0x33, 0x44})).To(Succeed())

		Expect(p.Run()).To(Succeed())

		Expect(p.Host.Results()[0]).To(Equal([]byte{0x11, 0x22, 0x33, 0x44}))
	})

	It("should serve back-to-back transactions", func() {
		image := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

		p := system.MakeBuilder().
			WithImage(image).
			WithTransfers(
				host.Transfer{
					Opcode:    chip.OpcodeRead,
					Address:   0,
					ReadBytes: 8,
				},
				host.Transfer{
					Opcode:    chip.OpcodeRead,
					Address:   8,
					ReadBytes: 8,
				},
			).
			Build("Platform")

		locks := &lockCounter{}
		p.Arbiter.AcceptHook(locks)

		Expect(p.Run()).To(Succeed())

		Expect(p.Host.Results()[0]).To(Equal(image[:8]))
		Expect(p.Host.Results()[1]).To(Equal(image[8:]))
		Expect(p.Chip.Counters().PlaceholderBytes).To(BeZero())
		Expect(locks.acquires).To(Equal(2))
		Expect(locks.releases).To(Equal(2))
	})

	It("should complete a maintenance poke that straddles a transaction",
		func() {
			image := make([]byte, 16)
			for i := range image {
				image[i] = byte(0xF0 + i)
			}

			p := system.MakeBuilder().
				WithImage(image).
				WithTransfers(host.Transfer{
					Opcode:    chip.OpcodeRead,
					Address:   0,
					ReadBytes: 16,
				}).
				Build("Platform")

			poke := []byte{1, 2, 3, 4, 5, 6, 7, 8}
			p.Maint.QueuePoke(0x2000, poke)

			Expect(p.Run()).To(Succeed())

			// The read stream is undisturbed.
			Expect(p.Host.Results()[0]).To(Equal(image))
			Expect(p.Chip.Counters().PlaceholderBytes).To(BeZero())

			// The poke was stalled by the grant, then finished without
			// corruption.
			Expect(p.Maint.Counters().PokesCompleted).To(Equal(uint64(1)))
			Expect(p.Arbiter.Counters().MaintWrites).To(Equal(uint64(8)))

			data, err := p.Storage.Read(0x2000, 8)
			Expect(err).ToNot(HaveOccurred())
			Expect(data).To(Equal(poke))
		})

	It("should abort cleanly on a mid-byte chip-select deassert", func() {
		image := []byte{0xCA, 0xFE, 0xBA, 0xBE}

		p := system.MakeBuilder().
			WithImage(image).
			WithTransfers(
				host.Transfer{
					Opcode:         chip.OpcodeRead,
					Address:        0,
					ReadBytes:      4,
					AbortAfterBits: 20,
				},
				host.Transfer{
					Opcode:    chip.OpcodeRead,
					Address:   0,
					ReadBytes: 4,
				},
			).
			Build("Platform")

		Expect(p.Run()).To(Succeed())

		Expect(p.Host.Results()[0]).To(BeEmpty())
		Expect(p.Host.Results()[1]).To(Equal(image))

		c := p.Chip.Counters()
		Expect(c.Transactions).To(Equal(uint64(2)))
		Expect(c.ReadTransactions).To(Equal(uint64(1)))
		Expect(p.Arbiter.Locked()).To(BeFalse())
	})

	It("should peek memory over the maintenance channel", func() {
		image := []byte{0xDE, 0xAD, 0xBE, 0xEF}

		p := system.MakeBuilder().
			WithImage(image).
			Build("Platform")

		p.Maint.QueuePeek(0, 4)

		Expect(p.Run()).To(Succeed())

		Expect(p.Maint.Sent()).To(Equal(image))
		Expect(p.Maint.Counters().PeeksCompleted).To(Equal(uint64(1)))
		Expect(p.Arbiter.Counters().MaintReads).To(Equal(uint64(4)))

		// The counters record follows on demand.
		p.Maint.QueueCounters()
		Expect(p.Engine.Run()).To(Succeed())

		Expect(p.Maint.Sent()[4:]).To(Equal([]byte{
			maint.MarkerCounters, 0, 0, 0, 0,
		}))
	})
})
