// Package system wires the full device: SPI wire, host master, flash
// chip, memory arbiter, and maintenance channel, all on one event engine.
package system

import (
	"github.com/emusim/spiflashsim/arbiter"
	"github.com/emusim/spiflashsim/chip"
	"github.com/emusim/spiflashsim/host"
	"github.com/emusim/spiflashsim/maint"
	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/spibus"
	"github.com/emusim/spiflashsim/translog"
)

// A Platform is a fully wired device instance.
type Platform struct {
	Engine  sim.Engine
	Wire    *spibus.Wire
	Host    *host.Comp
	Chip    *chip.Comp
	Arbiter *arbiter.Comp
	Maint   *maint.Comp
	Logger  *translog.Logger
	Storage *memsys.Storage
}

// Run plays the host script to completion and drains all resulting
// activity.
func (p *Platform) Run() error {
	p.Host.TickLater()
	return p.Engine.Run()
}

// Builder builds platforms.
type Builder struct {
	chipFreq        sim.Freq
	spiFreq         sim.Freq
	capacity        uint64
	latency         int
	refreshInterval uint64
	refreshCycles   int
	logCapacity     int
	maintEvery      int
	image           []byte
	transfers       []host.Transfer
}

// MakeBuilder returns a Builder with the default device parameters: a
// 100 MHz chip clock, a 1 MHz SPI clock, and 16 MiB of memory behind a
// 4-cycle arbiter.
func MakeBuilder() Builder {
	return Builder{
		chipFreq:        100 * sim.MHz,
		spiFreq:         1 * sim.MHz,
		capacity:        16 * memsys.MB,
		latency:         4,
		refreshInterval: 780,
		refreshCycles:   2,
		logCapacity:     16,
		maintEvery:      16,
	}
}

// WithChipFreq sets the chip and arbiter clock frequency.
func (b Builder) WithChipFreq(freq sim.Freq) Builder {
	b.chipFreq = freq
	return b
}

// WithSPIFreq sets the SPI bit rate.
func (b Builder) WithSPIFreq(freq sim.Freq) Builder {
	b.spiFreq = freq
	return b
}

// WithCapacity sets the backing store size in bytes.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithLatency sets the arbiter access latency in cycles.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithRefreshInterval sets the refresh period in chip cycles.
func (b Builder) WithRefreshInterval(cycles uint64) Builder {
	b.refreshInterval = cycles
	return b
}

// WithRefreshCycles sets the duration of one refresh in chip cycles.
func (b Builder) WithRefreshCycles(cycles int) Builder {
	b.refreshCycles = cycles
	return b
}

// WithLogCapacity sets the transaction log queue depth.
func (b Builder) WithLogCapacity(capacity int) Builder {
	b.logCapacity = capacity
	return b
}

// WithMaintSerialEvery sets the maintenance serial link divider.
func (b Builder) WithMaintSerialEvery(ticks int) Builder {
	b.maintEvery = ticks
	return b
}

// WithImage preloads the backing store with data starting at address 0.
func (b Builder) WithImage(image []byte) Builder {
	b.image = image
	return b
}

// WithTransfers sets the host script.
func (b Builder) WithTransfers(transfers ...host.Transfer) Builder {
	b.transfers = append(b.transfers, transfers...)
	return b
}

// Build wires the platform.
func (b Builder) Build(name string) *Platform {
	engine := sim.NewSerialEngine()
	wire := spibus.NewWire()
	logger := translog.NewLogger(b.logCapacity)
	storage := memsys.NewStorage(b.capacity)

	if len(b.image) > 0 {
		if err := storage.Write(0, b.image); err != nil {
			panic(err)
		}
	}

	arb := arbiter.MakeBuilder().
		WithEngine(engine).
		WithFreq(b.chipFreq).
		WithStorage(storage).
		WithLatency(b.latency).
		WithRefreshInterval(b.refreshInterval).
		WithRefreshCycles(b.refreshCycles).
		Build(name + ".Arbiter")

	flash := chip.MakeBuilder().
		WithEngine(engine).
		WithFreq(b.chipFreq).
		WithWire(wire).
		WithCapacity(b.capacity).
		WithLogger(logger).
		Build(name + ".Chip")

	mnt := maint.MakeBuilder().
		WithEngine(engine).
		WithLogger(logger).
		WithSerialEvery(b.maintEvery).
		Build(name + ".Maint")

	hst := host.MakeBuilder().
		WithEngine(engine).
		WithFreq(2 * b.spiFreq).
		WithWire(wire).
		WithTransfers(b.transfers...).
		Build(name + ".Host")

	conn := sim.NewDirectConnection(name+".Conn", engine, b.chipFreq)
	conn.PlugIn(flash.MemPort())
	conn.PlugIn(mnt.MemPort())
	conn.PlugIn(arb.FlashPort())
	conn.PlugIn(arb.MaintPort())
	conn.PlugIn(arb.CtrlPort())

	flash.MemRemote = arb.FlashPort().AsRemote()
	flash.CtrlRemote = arb.CtrlPort().AsRemote()
	mnt.MemRemote = arb.MaintPort().AsRemote()

	return &Platform{
		Engine:  engine,
		Wire:    wire,
		Host:    hst,
		Chip:    flash,
		Arbiter: arb,
		Maint:   mnt,
		Logger:  logger,
		Storage: storage,
	}
}
