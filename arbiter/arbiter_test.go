package arbiter

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/sim"
)

// agent queues messages out of one port and collects everything that comes
// back.
type agent struct {
	*sim.TickingComponent

	port     sim.Port
	toSend   []sim.Msg
	received []sim.Msg
}

func newAgent(name string, engine sim.Engine, freq sim.Freq) *agent {
	a := &agent{}
	a.TickingComponent = sim.NewTickingComponent(name, engine, freq, a)
	a.port = sim.NewPort(a, 4, 4, name+".Port")
	a.AddPort("Port", a.port)

	return a
}

func (a *agent) Tick() bool {
	madeProgress := false

	if msg := a.port.RetrieveIncoming(); msg != nil {
		a.received = append(a.received, msg)
		madeProgress = true
	}

	if len(a.toSend) > 0 {
		if a.port.Send(a.toSend[0]) == nil {
			a.toSend = a.toSend[1:]
			madeProgress = true
		}
	}

	return madeProgress
}

func (a *agent) send(msg sim.Msg) {
	a.toSend = append(a.toSend, msg)
	a.TickLater()
}

var _ = Describe("Arbiter", func() {
	var (
		engine     *sim.SerialEngine
		arb        *Comp
		flashAgent *agent
		maintAgent *agent
	)

	buildWith := func(agentFreq sim.Freq, refreshInterval uint64) {
		engine = sim.NewSerialEngine()

		arb = MakeBuilder().
			WithEngine(engine).
			WithFreq(100 * sim.MHz).
			WithStorage(memsys.NewStorage(1 * memsys.MB)).
			WithRefreshInterval(refreshInterval).
			Build("Arbiter")

		flashAgent = newAgent("FlashAgent", engine, agentFreq)
		maintAgent = newAgent("MaintAgent", engine, agentFreq)

		conn := sim.NewDirectConnection("Conn", engine, 100*sim.MHz)
		conn.PlugIn(arb.FlashPort())
		conn.PlugIn(arb.MaintPort())
		conn.PlugIn(arb.CtrlPort())
		conn.PlugIn(flashAgent.port)
		conn.PlugIn(maintAgent.port)
	}

	lockMsg := func(lock bool) *memsys.LockMsg {
		b := memsys.LockMsgBuilder{}.
			WithSrc(flashAgent.port.AsRemote()).
			WithDst(arb.CtrlPort().AsRemote())
		if lock {
			b = b.ToLock()
		} else {
			b = b.ToRelease()
		}

		return b.Build()
	}

	BeforeEach(func() {
		buildWith(100*sim.MHz, 780)
	})

	It("should serve a flash read", func() {
		Expect(arb.Storage().Write(0x40, []byte{0xAB})).To(Succeed())

		flashAgent.send(lockMsg(true))
		flashAgent.send(memsys.ReadReqBuilder{}.
			WithSrc(flashAgent.port.AsRemote()).
			WithDst(arb.FlashPort().AsRemote()).
			WithAddress(0x40).
			WithByteSize(1).
			Build())

		Expect(engine.Run()).To(Succeed())

		Expect(flashAgent.received).To(HaveLen(1))
		rsp := flashAgent.received[0].(*memsys.DataReadyRsp)
		Expect(rsp.Data).To(Equal([]byte{0xAB}))
		Expect(arb.Counters().FlashReads).To(Equal(uint64(1)))
	})

	It("should serve maintenance reads and writes when unlocked", func() {
		maintAgent.send(memsys.WriteReqBuilder{}.
			WithSrc(maintAgent.port.AsRemote()).
			WithDst(arb.MaintPort().AsRemote()).
			WithAddress(0x80).
			WithData([]byte{0x5A}).
			Build())

		Expect(engine.Run()).To(Succeed())

		Expect(maintAgent.received).To(HaveLen(1))
		Expect(maintAgent.received[0]).To(BeAssignableToTypeOf(
			&memsys.WriteDoneRsp{}))

		data, err := arb.Storage().Read(0x80, 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte{0x5A}))
		Expect(arb.Counters().MaintWrites).To(Equal(uint64(1)))
	})

	It("should hold maintenance operations while locked", func() {
		flashAgent.send(lockMsg(true))
		Expect(engine.Run()).To(Succeed())
		Expect(arb.Locked()).To(BeTrue())

		maintAgent.send(memsys.WriteReqBuilder{}.
			WithSrc(maintAgent.port.AsRemote()).
			WithDst(arb.MaintPort().AsRemote()).
			WithAddress(0x10).
			WithData([]byte{0x77}).
			Build())

		Expect(engine.Run()).To(Succeed())

		// The request sits at the arbiter, unserved, and the memory is
		// untouched.
		Expect(maintAgent.received).To(BeEmpty())
		data, err := arb.Storage().Read(0x10, 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte{0x00}))

		flashAgent.send(lockMsg(false))
		Expect(engine.Run()).To(Succeed())

		Expect(maintAgent.received).To(HaveLen(1))
		data, err = arb.Storage().Read(0x10, 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte{0x77}))
	})

	It("should defer refreshes while locked and repay them after", func() {
		// Slow agents spread the lock, access, and release microseconds
		// apart so refreshes fall due inside the locked window.
		buildWith(1*sim.MHz, 10)

		flashAgent.send(lockMsg(true))
		flashAgent.send(memsys.ReadReqBuilder{}.
			WithSrc(flashAgent.port.AsRemote()).
			WithDst(arb.FlashPort().AsRemote()).
			WithAddress(0).
			WithByteSize(1).
			Build())
		flashAgent.send(lockMsg(false))

		Expect(engine.Run()).To(Succeed())

		Expect(flashAgent.received).To(HaveLen(1))
		c := arb.Counters()
		Expect(c.InhibitedRefreshes).To(BeNumerically(">=", 1))
		Expect(c.Refreshes).To(BeNumerically(">=", c.InhibitedRefreshes))
		Expect(arb.Locked()).To(BeFalse())
	})

	It("should panic on a flash-side write", func() {
		flashAgent.send(memsys.WriteReqBuilder{}.
			WithSrc(flashAgent.port.AsRemote()).
			WithDst(arb.FlashPort().AsRemote()).
			WithAddress(0).
			WithData([]byte{1}).
			Build())

		Expect(func() { _ = engine.Run() }).To(Panic())
	})
})
