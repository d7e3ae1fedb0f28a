// Package chip implements the emulated SPI NOR flash device: line
// synchronization, byte assembly, and the flash command state machine.
package chip

import (
	"log"
	"reflect"

	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/spibus"
	"github.com/emusim/spiflashsim/translog"
)

// HookPosTransactionDone triggers when a transaction completes, i.e. when
// chip select deasserts after at least a command byte was received. The
// hook item is a Transaction.
var HookPosTransactionDone = &sim.HookPos{Name: "Transaction Done"}

// A Transaction summarizes one chip-select-asserted interval.
type Transaction struct {
	Opcode  byte
	Address uint32
	Read    bool
	Length  int
	Start   sim.VTimeInSec
	End     sim.VTimeInSec
}

// Counters holds the diagnostic counters of the chip. They are observable
// over the maintenance channel and the monitor; they never affect the bus.
type Counters struct {
	Transactions     uint64
	ReadTransactions uint64
	PlaceholderBytes uint64
}

// Comp is the emulated flash chip. It ticks in its own clock domain,
// samples the SPI wire through a two-stage synchronizer, and talks to the
// memory arbiter over its memory port.
type Comp struct {
	*sim.TickingComponent
	sim.HookableBase

	memPort sim.Port

	// MemRemote and CtrlRemote name the arbiter's flash-side data and
	// control ports. Set during system wiring.
	MemRemote  sim.RemotePort
	CtrlRemote sim.RemotePort

	wire     *spibus.Wire
	capacity uint64
	logger   *translog.Logger

	sampler   sampler
	assembler assembler
	engine    fsm

	counters Counters
}

// MemPort returns the port the chip accesses memory through.
func (c *Comp) MemPort() sim.Port {
	return c.memPort
}

// Logger returns the transaction log queue fed by the chip.
func (c *Comp) Logger() *translog.Logger {
	return c.logger
}

// Counters returns a snapshot of the diagnostic counters.
func (c *Comp) Counters() Counters {
	return c.counters
}

// Tick advances the chip by one cycle of its local clock. While chip select
// is asserted the chip keeps ticking every cycle, exactly like the
// free-running hardware it models; once the lines settle and nothing is in
// flight it goes quiet until the wire wakes it again.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.processMemRsp() || madeProgress
	madeProgress = c.engine.tickLock() || madeProgress

	st := c.sampler.capture(c.wire.Sample())

	if st.csAsserted {
		c.assembler.reset()
		c.engine.startTransaction()
		c.counters.Transactions++
		madeProgress = true
	}

	if st.csDeasserted {
		c.engine.endTransaction()
		madeProgress = true
	}

	if st.csLevel {
		if st.sckRose {
			if b, _, ok := c.assembler.shiftIn(st.mosi); ok {
				c.engine.onByte(b)
			}
		}

		if st.sckFell {
			c.engine.onOutputEdge()
		}
	}

	busy := st.csLevel ||
		!c.sampler.settled() ||
		c.engine.reqInFlight ||
		c.engine.needLock || c.engine.needRelease

	return madeProgress || busy
}

func (c *Comp) processMemRsp() bool {
	msg := c.memPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	switch rsp := msg.(type) {
	case *memsys.DataReadyRsp:
		c.engine.onDataReady(rsp)
	default:
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(msg))
	}

	return true
}
