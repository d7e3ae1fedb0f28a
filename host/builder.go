package host

import (
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/spibus"
)

// Builder builds host components.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	wire      *spibus.Wire
	transfers []Transfer
}

// MakeBuilder returns a Builder with a default tick rate of 2 MHz, i.e. a
// 1 MHz SPI clock.
func MakeBuilder() Builder {
	return Builder{
		freq: 2 * sim.MHz,
	}
}

// WithEngine sets the event engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency. Each tick is half an SCK period, so
// the SPI bit rate is half this frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithWire attaches the SPI wire the host drives.
func (b Builder) WithWire(wire *spibus.Wire) Builder {
	b.wire = wire
	return b
}

// WithTransfers sets the script to run.
func (b Builder) WithTransfers(transfers ...Transfer) Builder {
	b.transfers = append(b.transfers, transfers...)
	return b
}

// Build creates the host component.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		wire:    b.wire,
		steps:   compile(b.transfers),
		results: make([][]byte, len(b.transfers)),
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	return c
}
