package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type tickingPingMsg struct {
	MsgMeta

	seq int
}

func (m *tickingPingMsg) Meta() *MsgMeta {
	return &m.MsgMeta
}

type tickingPingAgent struct {
	*TickingComponent

	port           Port
	peer           RemotePort
	numPingsToSend int
	nextSeq        int
	received       []int
}

func newTickingPingAgent(
	name string,
	engine Engine,
	freq Freq,
) *tickingPingAgent {
	a := &tickingPingAgent{}
	a.TickingComponent = NewTickingComponent(name, engine, freq, a)
	a.port = NewPort(a, 2, 2, name+".Port")
	a.AddPort("Port", a.port)

	return a
}

func (a *tickingPingAgent) Tick() bool {
	madeProgress := false

	if msg := a.port.RetrieveIncoming(); msg != nil {
		a.received = append(a.received, msg.(*tickingPingMsg).seq)
		madeProgress = true
	}

	if a.numPingsToSend > 0 {
		ping := &tickingPingMsg{seq: a.nextSeq}
		ping.ID = GetIDGenerator().Generate()
		ping.Src = a.port.AsRemote()
		ping.Dst = a.peer

		if a.port.Send(ping) == nil {
			a.numPingsToSend--
			a.nextSeq++
			madeProgress = true
		}
	}

	return madeProgress
}

var _ = Describe("Ticking ping", func() {
	It("should deliver all pings in order", func() {
		engine := NewSerialEngine()

		sender := newTickingPingAgent("Sender", engine, 1*GHz)
		receiver := newTickingPingAgent("Receiver", engine, 1*GHz)

		conn := NewDirectConnection("Conn", engine, 1*GHz)
		conn.PlugIn(sender.port)
		conn.PlugIn(receiver.port)

		sender.peer = receiver.port.AsRemote()
		sender.numPingsToSend = 10

		sender.TickLater()

		Expect(engine.Run()).To(Succeed())
		Expect(receiver.received).To(HaveLen(10))
		for i, seq := range receiver.received {
			Expect(seq).To(Equal(i))
		}
	})
})
