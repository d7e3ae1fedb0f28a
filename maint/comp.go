// Package maint implements the maintenance channel, the low-priority
// operator interface of the device. It peeks and pokes the shared backing
// store one byte at a time through the arbiter, drains transaction log
// entries, and trickles everything out over a slow serial link.
package maint

import (
	"log"
	"reflect"

	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/translog"
)

// Record markers on the serial stream. Peek data is raw; structured
// records carry a marker byte so the stream stays parseable.
const (
	MarkerLogEntry = 0xA5
	MarkerCounters = 0xC1
)

type opKind int

const (
	opPeek opKind = iota
	opPoke
)

type op struct {
	kind opKind
	addr uint64
	n    int
	data []byte
	idx  int
}

// Counters holds the diagnostic counters of the maintenance channel.
type Counters struct {
	PeeksCompleted uint64
	PokesCompleted uint64
	LogRecordsSent uint64
	ControlDropped uint64
}

// Comp is the maintenance channel component. Memory operations are
// strictly best effort: a request sits queued at the arbiter for as long
// as the flash side holds the grant, and the channel simply keeps ticking
// until service resumes.
type Comp struct {
	*sim.TickingComponent

	memPort sim.Port

	// MemRemote names the arbiter's maintenance port. Set during system
	// wiring.
	MemRemote sim.RemotePort

	logger *translog.Logger

	ops     []op
	current *op
	waiting bool
	pending sim.Msg

	// Output byte queue. Peek data always fits eventually because the
	// issuing side stalls on a full queue; structured control records in
	// addition require headroom free slots so a slow serial consumer is
	// never overrun by telemetry.
	outQueue []byte
	outCap   int
	headroom int

	serialEvery int
	serialCount int
	sent        []byte

	counters Counters
}

// MemPort returns the port the channel accesses memory through.
func (c *Comp) MemPort() sim.Port {
	return c.memPort
}

// Sent returns the bytes transmitted on the serial link so far.
func (c *Comp) Sent() []byte {
	return c.sent
}

// Busy reports whether the channel still has work in flight: queued
// operations, an unfinished operation, or undrained output.
func (c *Comp) Busy() bool {
	return c.current != nil || len(c.ops) > 0 || len(c.outQueue) > 0
}

// Counters returns a snapshot of the diagnostic counters.
func (c *Comp) Counters() Counters {
	return c.counters
}

// QueuePeek requests a read of n bytes starting at addr. The bytes appear
// on the serial stream in order.
func (c *Comp) QueuePeek(addr uint64, n int) {
	c.ops = append(c.ops, op{kind: opPeek, addr: addr, n: n})
	c.TickLater()
}

// QueuePoke requests a write of data starting at addr.
func (c *Comp) QueuePoke(addr uint64, data []byte) {
	c.ops = append(c.ops, op{kind: opPoke, addr: addr, n: len(data), data: data})
	c.TickLater()
}

// QueueCounters emits a counters record on the serial stream: the marker
// byte followed by the log overrun count, big endian. The record is
// control data and is dropped, counted, when the queue lacks headroom.
func (c *Comp) QueueCounters() {
	overruns := c.logger.Overruns()
	rec := []byte{
		MarkerCounters,
		byte(overruns >> 24),
		byte(overruns >> 16),
		byte(overruns >> 8),
		byte(overruns),
	}

	if !c.enqueueControl(rec) {
		c.counters.ControlDropped++
	}
	c.TickLater()
}

// Tick advances the channel by one cycle.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.processRsp() || madeProgress
	madeProgress = c.sendPending() || madeProgress
	madeProgress = c.issue() || madeProgress
	madeProgress = c.drainLog() || madeProgress
	madeProgress = c.drainSerial() || madeProgress

	return madeProgress || c.Busy() || c.waiting
}

func (c *Comp) processRsp() bool {
	msg := c.memPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	switch rsp := msg.(type) {
	case *memsys.DataReadyRsp:
		c.outQueue = append(c.outQueue, rsp.Data[0])
	case *memsys.WriteDoneRsp:
	default:
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(msg))
	}

	c.waiting = false
	c.current.idx++
	if c.current.idx >= c.current.n {
		switch c.current.kind {
		case opPeek:
			c.counters.PeeksCompleted++
		case opPoke:
			c.counters.PokesCompleted++
		}
		c.current = nil
	}

	return true
}

func (c *Comp) sendPending() bool {
	if c.pending == nil {
		return false
	}

	if err := c.memPort.Send(c.pending); err != nil {
		return false
	}

	c.pending = nil
	c.waiting = true

	return true
}

// issue sends the next byte-sized request of the current operation. Peeks
// hold off while the output queue is full, so a stalled serial link
// backpressures all the way to the memory side instead of losing data.
func (c *Comp) issue() bool {
	if c.waiting || c.pending != nil {
		return false
	}

	if c.current == nil {
		if len(c.ops) == 0 {
			return false
		}
		c.current = &c.ops[0]
		c.ops = c.ops[1:]
	}

	var req sim.Msg

	switch c.current.kind {
	case opPeek:
		if len(c.outQueue) >= c.outCap {
			return false
		}
		req = memsys.ReadReqBuilder{}.
			WithSrc(c.memPort.AsRemote()).
			WithDst(c.MemRemote).
			WithAddress(c.current.addr + uint64(c.current.idx)).
			WithByteSize(1).
			Build()
	case opPoke:
		req = memsys.WriteReqBuilder{}.
			WithSrc(c.memPort.AsRemote()).
			WithDst(c.MemRemote).
			WithAddress(c.current.addr + uint64(c.current.idx)).
			WithData([]byte{c.current.data[c.current.idx]}).
			Build()
	}

	if err := c.memPort.Send(req); err != nil {
		c.pending = req
		return true
	}

	c.waiting = true

	return true
}

// drainLog moves one pending transaction log entry onto the serial stream
// as a marker byte plus the 4-byte encoded entry.
func (c *Comp) drainLog() bool {
	if c.logger.Pending() == 0 {
		return false
	}

	entry, ok := c.logger.Peek()
	if !ok {
		return false
	}

	enc := entry.Encode()
	rec := append([]byte{MarkerLogEntry}, enc[:]...)
	if !c.enqueueControl(rec) {
		return false
	}

	c.logger.Poll()
	c.counters.LogRecordsSent++

	return true
}

// drainSerial moves one byte to the transmit log every serialEvery ticks,
// modeling the slow serial link.
func (c *Comp) drainSerial() bool {
	if len(c.outQueue) == 0 {
		c.serialCount = 0
		return false
	}

	c.serialCount++
	if c.serialCount < c.serialEvery {
		return true
	}
	c.serialCount = 0

	c.sent = append(c.sent, c.outQueue[0])
	c.outQueue = c.outQueue[1:]

	return true
}

func (c *Comp) enqueueControl(rec []byte) bool {
	if c.outCap-len(c.outQueue) < c.headroom+len(rec) {
		return false
	}

	c.outQueue = append(c.outQueue, rec...)

	return true
}
