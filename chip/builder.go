package chip

import (
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/spibus"
	"github.com/emusim/spiflashsim/translog"
)

// Builder builds flash chip components.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	wire        *spibus.Wire
	capacity    uint64
	logger      *translog.Logger
	memBufSize  int
	logCapacity int
}

// MakeBuilder returns a Builder with sensible defaults: a 100 MHz local
// clock and a 16 MiB address space.
func MakeBuilder() Builder {
	return Builder{
		freq:        100 * sim.MHz,
		capacity:    16 << 20,
		memBufSize:  4,
		logCapacity: 16,
	}
}

// WithEngine sets the event engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the chip's local clock frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithWire attaches the SPI wire the chip listens on.
func (b Builder) WithWire(wire *spibus.Wire) Builder {
	b.wire = wire
	return b
}

// WithCapacity sets the size of the addressable space in bytes. Streaming
// reads wrap at this boundary.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithLogger sets the transaction log queue. Without one, a queue of the
// default capacity is created.
func (b Builder) WithLogger(logger *translog.Logger) Builder {
	b.logger = logger
	return b
}

// WithLogCapacity sets the capacity of the default log queue.
func (b Builder) WithLogCapacity(capacity int) Builder {
	b.logCapacity = capacity
	return b
}

// Build creates the chip component.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		wire:     b.wire,
		capacity: b.capacity,
		logger:   b.logger,
	}

	if c.logger == nil {
		c.logger = translog.NewLogger(b.logCapacity)
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.engine.Comp = c

	c.memPort = sim.NewPort(c, b.memBufSize, b.memBufSize, name+".MemPort")
	c.AddPort("Mem", c.memPort)

	b.wire.PlugSlave(c)

	return c
}
