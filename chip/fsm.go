package chip

import (
	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/translog"
)

// OpcodeRead is the only opcode the chip serves ("read data", 0x03).
// Every other opcode is accepted on the bus and ignored, matching the
// behavior of low-cost flash parts that signal no error.
const OpcodeRead = 0x03

// PlaceholderByte is emitted when a response byte is due but the memory
// data has not arrived. Reaching this path means the memory latency budget
// was violated; the stream stays well-formed and a counter records the
// incident.
const PlaceholderByte = 0xFF

type fsmState int

const (
	stateIdle fsmState = iota
	stateCmd
	stateAddr1
	stateAddr2
	stateAddr3
	stateReadStream
	stateWriteIgnore
)

// fsm interprets assembled bytes as flash commands and drives the response
// path. It owns the whole transaction state; nothing else mutates it.
type fsm struct {
	*Comp

	state  fsmState
	opcode byte
	isRead bool

	addr     uint32
	nextAddr uint64
	start    sim.VTimeInSec

	bytesStreamed int
	outShift      byte
	outBitsLeft   int

	// One byte of look-ahead: dataByte holds the prefetched response byte,
	// reqInFlight tracks the single outstanding memory read, and the
	// pending latch holds at most one deferred fetch address.
	dataByte     byte
	dataValid    bool
	reqInFlight  bool
	pendingAddr  uint64
	pendingValid bool

	discardNextRsp bool
	needLock       bool
	needRelease    bool
}

// startTransaction runs on chip-select assertion. The memory lock is
// requested for every transaction, recognized opcode or not, so the host
// can never observe contention mid-transaction.
func (f *fsm) startTransaction() {
	f.state = stateCmd
	f.isRead = false
	f.addr = 0
	f.bytesStreamed = 0
	f.outBitsLeft = 0
	f.dataValid = false
	f.pendingValid = false
	f.start = f.CurrentTime()
	f.needLock = true
}

// endTransaction runs on chip-select deassertion, from any state. All
// accumulation state is discarded and the lock is released. A completed
// read additionally produces one log entry, dropped silently if the log
// queue is full.
func (f *fsm) endTransaction() {
	finished := f.state != stateIdle && f.state != stateCmd

	if f.state == stateReadStream {
		f.counters.ReadTransactions++
		f.logger.Offer(translog.Entry{
			Address: f.addr & 0xFFFFFF,
			Length:  uint8(f.bytesStreamed),
		})
	}

	if finished {
		f.InvokeHook(sim.HookCtx{
			Domain: f.Comp,
			Pos:    HookPosTransactionDone,
			Item: Transaction{
				Opcode:  f.opcode,
				Address: f.addr,
				Read:    f.isRead,
				Length:  f.bytesStreamed,
				Start:   f.start,
				End:     f.CurrentTime(),
			},
		})
	}

	if f.reqInFlight {
		f.discardNextRsp = true
	}

	f.state = stateIdle
	f.dataValid = false
	f.pendingValid = false

	if f.needLock {
		// The lock request never made it out, so there is nothing to
		// release.
		f.needLock = false
	} else {
		f.needRelease = true
	}
}

// onByte consumes one assembled byte.
func (f *fsm) onByte(b byte) {
	switch f.state {
	case stateCmd:
		f.opcode = b
		f.isRead = b == OpcodeRead
		f.state = stateAddr1
	case stateAddr1:
		f.addr = uint32(b) << 16
		f.state = stateAddr2
	case stateAddr2:
		f.addr |= uint32(b) << 8
		f.state = stateAddr3
	case stateAddr3:
		f.addr |= uint32(b)

		if f.isRead {
			f.nextAddr = uint64(f.addr)
			f.issueRead()
			f.state = stateReadStream
		} else {
			f.state = stateWriteIgnore
		}
	case stateReadStream, stateWriteIgnore:
		// Inbound bytes carry no information past the address phase.
	case stateIdle:
	}
}

// onOutputEdge runs on every synchronized SCK falling edge while streaming.
// It keeps the response line a full bit ahead of the host's sampling edge.
func (f *fsm) onOutputEdge() {
	if f.state != stateReadStream {
		return
	}

	if f.outBitsLeft == 0 {
		f.loadOutputByte()
	}

	f.wire.DriveMISO(f.outShift&0x80 != 0)
	f.outShift <<= 1
	f.outBitsLeft--
}

// loadOutputByte moves the prefetched byte into the output shift register
// and immediately starts the fetch of the byte after it.
func (f *fsm) loadOutputByte() {
	if f.dataValid {
		f.outShift = f.dataByte
		f.dataValid = false
		f.issueRead()
	} else {
		f.outShift = PlaceholderByte
		f.counters.PlaceholderBytes++
	}

	f.outBitsLeft = 8
	f.bytesStreamed++
}

// issueRead fetches the next response byte. With a request already
// outstanding, or the port momentarily full, the address parks in the
// single-slot pending latch and is issued as soon as possible.
func (f *fsm) issueRead() {
	addr := f.nextAddr
	f.nextAddr = (f.nextAddr + 1) % f.capacity

	if f.reqInFlight {
		f.pendingAddr = addr
		f.pendingValid = true
		return
	}

	f.sendRead(addr)
}

func (f *fsm) sendRead(addr uint64) {
	req := memsys.ReadReqBuilder{}.
		WithSrc(f.memPort.AsRemote()).
		WithDst(f.MemRemote).
		WithAddress(addr).
		WithByteSize(1).
		Build()

	if err := f.memPort.Send(req); err != nil {
		f.pendingAddr = addr
		f.pendingValid = true
		return
	}

	f.reqInFlight = true
}

// onDataReady consumes a memory response.
func (f *fsm) onDataReady(rsp *memsys.DataReadyRsp) {
	f.reqInFlight = false

	if f.discardNextRsp {
		f.discardNextRsp = false
	} else {
		f.dataByte = rsp.Data[0]
		f.dataValid = true
	}

	if f.pendingValid {
		f.pendingValid = false
		f.sendRead(f.pendingAddr)
	}
}

// tickLock pushes out any pending lock or release message. Both target the
// arbiter's control port and take effect in the same chip cycle they are
// sent.
func (f *fsm) tickLock() bool {
	if !f.needLock && !f.needRelease {
		return false
	}

	b := memsys.LockMsgBuilder{}.
		WithSrc(f.memPort.AsRemote()).
		WithDst(f.CtrlRemote)
	if f.needLock {
		b = b.ToLock()
	} else {
		b = b.ToRelease()
	}

	if err := f.memPort.Send(b.Build()); err != nil {
		return false
	}

	f.needLock = false
	f.needRelease = false

	return true
}
