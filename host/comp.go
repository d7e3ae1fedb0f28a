// Package host implements a scripted SPI mode-0 master. It drives the wire
// one half clock period per tick, following a precompiled list of line
// operations, and collects the bytes sampled back on MISO.
package host

import (
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/spibus"
)

// A Transfer describes one chip-select-asserted bus transaction.
type Transfer struct {
	// Opcode and Address form the 4-byte header shifted out first.
	Opcode  byte
	Address uint32

	// ReadBytes is the number of response bytes to clock in after the
	// header. MOSI is held low during this phase.
	ReadBytes int

	// Payload holds extra MOSI bytes shifted out after the header, for
	// transactions that are not reads.
	Payload []byte

	// AbortAfterBits, when positive, deasserts chip select after this many
	// SCK rising edges, cutting the transfer short wherever that lands.
	AbortAfterBits int

	// GapCycles is the number of idle half periods inserted after the
	// transfer. Zero means the default gap.
	GapCycles int
}

const defaultGapCycles = 4

type stepKind int

const (
	stepCS stepKind = iota
	stepClockLow
	stepClockHigh
	stepIdle
)

type step struct {
	kind   stepKind
	cs     bool
	mosi   bool
	sample bool
	txn    int
}

// Comp is the host component. Each tick executes one precompiled line
// operation, so the tick frequency is twice the SPI bit rate.
type Comp struct {
	*sim.TickingComponent

	wire  *spibus.Wire
	steps []step
	pc    int

	results  [][]byte
	shift    byte
	bitCount int
}

// Results returns the bytes sampled on MISO, one slice per transfer.
// Transfers with no read phase yield an empty slice.
func (c *Comp) Results() [][]byte {
	return c.results
}

// Done reports whether the script has run to completion.
func (c *Comp) Done() bool {
	return c.pc >= len(c.steps)
}

// Tick executes the next line operation.
func (c *Comp) Tick() bool {
	if c.pc >= len(c.steps) {
		return false
	}

	s := c.steps[c.pc]
	c.pc++

	switch s.kind {
	case stepCS:
		c.wire.SetCS(s.cs)
		if !s.cs {
			// A partial byte at abort time is discarded, the chip does the
			// same on its side.
			c.shift = 0
			c.bitCount = 0
		}
	case stepClockLow:
		c.wire.ClockLow(s.mosi)
	case stepClockHigh:
		c.wire.ClockHigh()
		if s.sample {
			c.sampleBit(s.txn)
		}
	case stepIdle:
	}

	return true
}

func (c *Comp) sampleBit(txn int) {
	c.shift <<= 1
	if c.wire.MISO() {
		c.shift |= 1
	}

	c.bitCount++
	if c.bitCount < 8 {
		return
	}

	c.results[txn] = append(c.results[txn], c.shift)
	c.shift = 0
	c.bitCount = 0
}

// compile flattens the transfer list into line operations. Chip select is
// always deasserted while SCK is high and SCK returns low afterwards, the
// standard mode-0 idle state.
func compile(transfers []Transfer) []step {
	var steps []step

	for txn, t := range transfers {
		header := []byte{
			t.Opcode,
			byte(t.Address >> 16),
			byte(t.Address >> 8),
			byte(t.Address),
		}
		out := append(header, t.Payload...)

		steps = append(steps, step{kind: stepCS, cs: true})

		edges := 0
		aborted := false

	bits:
		for _, b := range out {
			for i := 7; i >= 0; i-- {
				if t.AbortAfterBits > 0 && edges >= t.AbortAfterBits {
					aborted = true
					break bits
				}
				mosi := b&(1<<uint(i)) != 0
				steps = append(steps,
					step{kind: stepClockLow, mosi: mosi},
					step{kind: stepClockHigh})
				edges++
			}
		}

		if !aborted {
			for i := 0; i < t.ReadBytes*8; i++ {
				if t.AbortAfterBits > 0 && edges >= t.AbortAfterBits {
					break
				}
				steps = append(steps,
					step{kind: stepClockLow},
					step{kind: stepClockHigh, sample: true, txn: txn})
				edges++
			}
		}

		steps = append(steps,
			step{kind: stepCS, cs: false},
			step{kind: stepClockLow})

		gap := t.GapCycles
		if gap == 0 {
			gap = defaultGapCycles
		}
		for i := 0; i < gap; i++ {
			steps = append(steps, step{kind: stepIdle})
		}
	}

	return steps
}
