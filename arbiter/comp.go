// Package arbiter implements the shared-memory arbiter. It exposes one
// logical memory port to two clients with radically different timing
// requirements: the flash engine, which owns the port unconditionally for
// the duration of a chip-select assertion, and the best-effort maintenance
// channel, which is held off whenever the flash side holds the lock.
package arbiter

import (
	"log"
	"reflect"

	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/sim"
)

// HookPosLockAcquire triggers when the flash engine takes the memory port.
var HookPosLockAcquire = &sim.HookPos{Name: "Lock Acquire"}

// HookPosLockRelease triggers when the flash engine releases the memory
// port.
var HookPosLockRelease = &sim.HookPos{Name: "Lock Release"}

// Counters holds the diagnostic counters of the arbiter.
type Counters struct {
	FlashReads         uint64
	MaintReads         uint64
	MaintWrites        uint64
	Refreshes          uint64
	InhibitedRefreshes uint64
}

type operation struct {
	req        memsys.AccessReq
	port       sim.Port
	cyclesLeft int
}

// Comp is the memory arbiter component.
type Comp struct {
	*sim.TickingComponent
	sim.HookableBase

	flashPort sim.Port
	maintPort sim.Port
	ctrlPort  sim.Port

	storage *memsys.Storage
	latency int

	// Refresh bookkeeping. Refreshes are due every refreshInterval cycles
	// and each occupies refreshCycles cycles of the port. While the lock is
	// held, due refreshes are deferred and accumulate as debt; the debt is
	// repaid, ahead of any maintenance traffic, once the lock releases.
	refreshInterval   uint64
	refreshCycles     int
	refreshDebt       int
	nextRefreshCycle  uint64
	refreshCyclesLeft int

	locked     bool
	inflight   *operation
	pendingRsp sim.Msg
	pendingDst sim.Port

	counters Counters
}

// FlashPort returns the port serving the flash engine.
func (c *Comp) FlashPort() sim.Port {
	return c.flashPort
}

// MaintPort returns the port serving the maintenance channel.
func (c *Comp) MaintPort() sim.Port {
	return c.maintPort
}

// CtrlPort returns the port receiving lock messages.
func (c *Comp) CtrlPort() sim.Port {
	return c.ctrlPort
}

// Storage returns the backing store.
func (c *Comp) Storage() *memsys.Storage {
	return c.storage
}

// Locked reports whether the flash engine currently owns the memory port.
func (c *Comp) Locked() bool {
	return c.locked
}

// Busy reports whether the memory port can accept a new operation right
// now. The maintenance channel sees busy for the whole locked window.
func (c *Comp) Busy() bool {
	return c.locked || c.inflight != nil || c.refreshCyclesLeft > 0
}

// Counters returns a snapshot of the diagnostic counters.
func (c *Comp) Counters() Counters {
	return c.counters
}

// Tick advances the arbiter by one cycle.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.processCtrl() || madeProgress
	madeProgress = c.sendPendingRsp() || madeProgress
	madeProgress = c.advance() || madeProgress
	madeProgress = c.startFlashOp() || madeProgress

	if c.locked {
		c.accrueRefreshDebt()
	} else {
		madeProgress = c.startRefresh() || madeProgress
		madeProgress = c.startMaintOp() || madeProgress
	}

	busy := c.inflight != nil || c.refreshCyclesLeft > 0 || c.pendingRsp != nil

	return madeProgress || busy
}

// processCtrl applies lock and release messages from the flash engine.
func (c *Comp) processCtrl() bool {
	msg := c.ctrlPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	lockMsg, ok := msg.(*memsys.LockMsg)
	if !ok {
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(msg))
	}

	if lockMsg.Lock == c.locked {
		return true
	}

	if c.locked {
		// Catch up on refreshes that fell due while the lock was held and the
		// arbiter slept, so they still count as inhibited.
		c.accrueRefreshDebt()
	}

	c.locked = lockMsg.Lock

	pos := HookPosLockRelease
	if c.locked {
		pos = HookPosLockAcquire

		// Refreshes that fell due while the port sat idle were simply never
		// performed. Only refreshes due inside the locked window count as
		// inhibited.
		now := c.cycleNow()
		for now >= c.nextRefreshCycle {
			c.nextRefreshCycle += c.refreshInterval
		}
	}
	c.InvokeHook(sim.HookCtx{Domain: c, Pos: pos, Item: lockMsg})

	return true
}

func (c *Comp) sendPendingRsp() bool {
	if c.pendingRsp == nil {
		return false
	}

	if err := c.pendingDst.Send(c.pendingRsp); err != nil {
		return false
	}

	c.pendingRsp = nil
	c.pendingDst = nil

	return true
}

// advance moves the in-progress refresh or memory operation forward by one
// cycle and completes it when its latency has elapsed.
func (c *Comp) advance() bool {
	if c.refreshCyclesLeft > 0 {
		c.refreshCyclesLeft--
		if c.refreshCyclesLeft == 0 {
			c.counters.Refreshes++
		}
		return true
	}

	if c.inflight == nil {
		return false
	}

	c.inflight.cyclesLeft--
	if c.inflight.cyclesLeft > 0 {
		return true
	}

	c.complete(c.inflight)
	c.inflight = nil

	return true
}

func (c *Comp) complete(op *operation) {
	var rsp sim.Msg

	switch req := op.req.(type) {
	case *memsys.ReadReq:
		data, err := c.storage.Read(req.Address, req.AccessByteSize)
		if err != nil {
			log.Panic(err)
		}

		rsp = memsys.DataReadyRspBuilder{}.
			WithSrc(op.port.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithData(data).
			Build()
	case *memsys.WriteReq:
		if err := c.storage.Write(req.Address, req.Data); err != nil {
			log.Panic(err)
		}

		rsp = memsys.WriteDoneRspBuilder{}.
			WithSrc(op.port.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			Build()
	default:
		log.Panicf("cannot handle request of type %s", reflect.TypeOf(op.req))
	}

	if err := op.port.Send(rsp); err != nil {
		c.pendingRsp = rsp
		c.pendingDst = op.port
	}
}

// startFlashOp begins a flash-side read. The flash side never writes.
func (c *Comp) startFlashOp() bool {
	if c.inflight != nil || c.refreshCyclesLeft > 0 {
		return false
	}

	msg := c.flashPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(*memsys.ReadReq)
	if !ok {
		log.Panicf("flash side issued %s, only reads are allowed",
			reflect.TypeOf(msg))
	}

	c.counters.FlashReads++
	c.inflight = &operation{
		req:        req,
		port:       c.flashPort,
		cyclesLeft: c.latency,
	}

	return true
}

// startMaintOp begins a maintenance-side operation, but only when the port
// is unlocked and no refresh is due.
func (c *Comp) startMaintOp() bool {
	if c.inflight != nil || c.refreshCyclesLeft > 0 {
		return false
	}

	if c.refreshDebt > 0 || c.cycleNow() >= c.nextRefreshCycle {
		return false
	}

	msg := c.maintPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(memsys.AccessReq)
	if !ok {
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(msg))
	}

	switch req.(type) {
	case *memsys.ReadReq:
		c.counters.MaintReads++
	case *memsys.WriteReq:
		c.counters.MaintWrites++
	}

	c.inflight = &operation{
		req:        req,
		port:       c.maintPort,
		cyclesLeft: c.latency,
	}

	return true
}

// startRefresh begins a refresh cycle when one is due or owed.
func (c *Comp) startRefresh() bool {
	if c.inflight != nil || c.refreshCyclesLeft > 0 {
		return false
	}

	if c.refreshDebt > 0 {
		c.refreshDebt--
		c.refreshCyclesLeft = c.refreshCycles
		return true
	}

	if c.cycleNow() >= c.nextRefreshCycle {
		c.nextRefreshCycle += c.refreshInterval
		c.refreshCyclesLeft = c.refreshCycles
		return true
	}

	return false
}

// accrueRefreshDebt converts refreshes that fall due inside the locked
// window into debt, so that refresh jitter is never observable as flash
// response latency.
func (c *Comp) accrueRefreshDebt() {
	now := c.cycleNow()
	for now >= c.nextRefreshCycle {
		c.refreshDebt++
		c.counters.InhibitedRefreshes++
		c.nextRefreshCycle += c.refreshInterval
	}
}

func (c *Comp) cycleNow() uint64 {
	return c.Freq.Cycle(c.CurrentTime())
}
