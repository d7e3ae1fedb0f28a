package maint

import (
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/translog"
)

// Builder builds maintenance channel components.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	logger      *translog.Logger
	outCap      int
	headroom    int
	serialEvery int
	bufSize     int
}

// MakeBuilder returns a Builder with default parameters: a 10 MHz tick
// clock, a 64-byte output queue with 8 bytes of headroom, and one serial
// byte every 16 ticks.
func MakeBuilder() Builder {
	return Builder{
		freq:        10 * sim.MHz,
		outCap:      64,
		headroom:    8,
		serialEvery: 16,
		bufSize:     4,
	}
}

// WithEngine sets the event engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency of the channel.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLogger attaches the transaction log queue to drain.
func (b Builder) WithLogger(logger *translog.Logger) Builder {
	b.logger = logger
	return b
}

// WithOutQueueCapacity sets the capacity of the output byte queue.
func (b Builder) WithOutQueueCapacity(capacity int) Builder {
	b.outCap = capacity
	return b
}

// WithHeadroom sets the free space a control record must leave behind in
// the output queue.
func (b Builder) WithHeadroom(headroom int) Builder {
	b.headroom = headroom
	return b
}

// WithSerialEvery sets the number of ticks between serial bytes.
func (b Builder) WithSerialEvery(ticks int) Builder {
	b.serialEvery = ticks
	return b
}

// Build creates the maintenance channel component.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		logger:      b.logger,
		outCap:      b.outCap,
		headroom:    b.headroom,
		serialEvery: b.serialEvery,
	}

	if c.logger == nil {
		c.logger = translog.NewLogger(16)
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.logger.WakeOn(c)

	c.memPort = sim.NewPort(c, b.bufSize, b.bufSize, name+".MemPort")
	c.AddPort("Mem", c.memPort)

	return c
}
