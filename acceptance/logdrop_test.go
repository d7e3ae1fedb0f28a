package acceptance

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/emusim/spiflashsim/arbiter"
	"github.com/emusim/spiflashsim/chip"
	"github.com/emusim/spiflashsim/host"
	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/spibus"
	"github.com/emusim/spiflashsim/translog"
)

// This scenario wires the device without a maintenance channel, so nothing
// drains the transaction log and a one-slot queue overflows on the second
// completed read.
var _ = Describe("Transaction log overflow", func() {
	It("should drop the entry, count once, and leave the stream intact",
		func() {
			engine := sim.NewSerialEngine()
			wire := spibus.NewWire()
			logger := translog.NewLogger(1)
			storage := memsys.NewStorage(1 * memsys.MB)

			image := []byte{0xA0, 0xA1, 0xA2, 0xA3, 0xB0, 0xB1, 0xB2, 0xB3}
			Expect(storage.Write(0, image)).To(Succeed())

			arb := arbiter.MakeBuilder().
				WithEngine(engine).
				WithStorage(storage).
				Build("Arbiter")

			flash := chip.MakeBuilder().
				WithEngine(engine).
				WithWire(wire).
				WithCapacity(1 * memsys.MB).
				WithLogger(logger).
				Build("Chip")

			hst := host.MakeBuilder().
				WithEngine(engine).
				WithWire(wire).
				WithTransfers(
					host.Transfer{
						Opcode:    chip.OpcodeRead,
						Address:   0,
						ReadBytes: 4,
					},
					host.Transfer{
						Opcode:    chip.OpcodeRead,
						Address:   4,
						ReadBytes: 4,
					},
				).
				Build("Host")

			conn := sim.NewDirectConnection("Conn", engine, 100*sim.MHz)
			conn.PlugIn(flash.MemPort())
			conn.PlugIn(arb.FlashPort())
			conn.PlugIn(arb.MaintPort())
			conn.PlugIn(arb.CtrlPort())

			flash.MemRemote = arb.FlashPort().AsRemote()
			flash.CtrlRemote = arb.CtrlPort().AsRemote()

			hst.TickLater()
			Expect(engine.Run()).To(Succeed())

			// Both reads streamed correct data regardless of the overflow.
			Expect(hst.Results()[0]).To(Equal(image[:4]))
			Expect(hst.Results()[1]).To(Equal(image[4:]))

			// The first entry survived; the second was dropped and counted
			// exactly once.
			Expect(logger.Pending()).To(Equal(1))
			Expect(logger.Overruns()).To(Equal(uint64(1)))

			entry, ok := logger.Poll()
			Expect(ok).To(BeTrue())
			Expect(entry).To(Equal(translog.Entry{Address: 0, Length: 4}))
		})
})
