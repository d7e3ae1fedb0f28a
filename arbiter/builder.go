package arbiter

import (
	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/sim"
)

// Builder builds memory arbiters.
type Builder struct {
	engine          sim.Engine
	freq            sim.Freq
	storage         *memsys.Storage
	latency         int
	refreshInterval uint64
	refreshCycles   int
	bufSize         int
}

// MakeBuilder returns a Builder with default parameters: a 100 MHz clock, a
// 4-cycle access latency, and a refresh due every 780 cycles taking 2
// cycles each.
func MakeBuilder() Builder {
	return Builder{
		freq:            100 * sim.MHz,
		latency:         4,
		refreshInterval: 780,
		refreshCycles:   2,
		bufSize:         4,
	}
}

// WithEngine sets the event engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the arbiter clock frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithStorage sets the backing store. Without one, a 16 MiB store is
// created.
func (b Builder) WithStorage(storage *memsys.Storage) Builder {
	b.storage = storage
	return b
}

// WithLatency sets the access latency of the backing store, in cycles.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithRefreshInterval sets the number of cycles between refreshes.
func (b Builder) WithRefreshInterval(cycles uint64) Builder {
	b.refreshInterval = cycles
	return b
}

// WithRefreshCycles sets the number of cycles one refresh occupies.
func (b Builder) WithRefreshCycles(cycles int) Builder {
	b.refreshCycles = cycles
	return b
}

// Build creates the arbiter component.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		storage:         b.storage,
		latency:         b.latency,
		refreshInterval: b.refreshInterval,
		refreshCycles:   b.refreshCycles,
	}

	if c.storage == nil {
		c.storage = memsys.NewStorage(16 * memsys.MB)
	}

	c.nextRefreshCycle = c.refreshInterval

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.flashPort = sim.NewPort(c, b.bufSize, b.bufSize, name+".FlashPort")
	c.maintPort = sim.NewPort(c, b.bufSize, b.bufSize, name+".MaintPort")
	c.ctrlPort = sim.NewPort(c, b.bufSize, b.bufSize, name+".CtrlPort")

	c.AddPort("Flash", c.flashPort)
	c.AddPort("Maint", c.maintPort)
	c.AddPort("Ctrl", c.ctrlPort)

	return c
}
