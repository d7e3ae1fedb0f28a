// Package spibus models the four physical SPI lines shared between the host
// master and the emulated flash chip.
//
// The two sides run in unrelated clock domains, so the wire is a plain
// handoff cell: the master mutates the line levels at its own pace, the
// slave re-samples them through its synchronizer at its own pace. The wire
// itself adds no timing; it only wakes the slave so the slave's clock
// domain gets a chance to observe the new levels.
package spibus

// Levels is a snapshot of the master-driven lines. CS is active low.
type Levels struct {
	CS   bool // true = asserted (line low)
	SCK  bool
	MOSI bool
}

// A Waker is woken whenever a line level changes. The chip's tick scheduler
// satisfies this interface.
type Waker interface {
	TickLater()
}

// Wire holds the current line levels.
type Wire struct {
	levels Levels
	miso   bool

	slave Waker
}

// NewWire creates an idle wire: CS deasserted, clock low.
func NewWire() *Wire {
	return &Wire{}
}

// PlugSlave attaches the chip side so it is woken on line changes.
func (w *Wire) PlugSlave(s Waker) {
	w.slave = s
}

// SetCS drives the chip-select line. asserted=true pulls the line low.
func (w *Wire) SetCS(asserted bool) {
	w.levels.CS = asserted
	w.wake()
}

// ClockLow drives SCK low and places the next MOSI bit on the data line.
// In SPI mode 0 the master shifts on the falling edge.
func (w *Wire) ClockLow(mosi bool) {
	w.levels.SCK = false
	w.levels.MOSI = mosi
	w.wake()
}

// ClockHigh drives SCK high. In SPI mode 0 both sides sample on the rising
// edge.
func (w *Wire) ClockHigh() {
	w.levels.SCK = true
	w.wake()
}

// Sample returns the current master-driven line levels. Called from the
// slave clock domain; the value is raw and must pass through the slave's
// synchronizer before being trusted.
func (w *Wire) Sample() Levels {
	return w.levels
}

// DriveMISO sets the slave-driven response line.
func (w *Wire) DriveMISO(level bool) {
	w.miso = level
}

// MISO returns the current level of the response line, as seen by the
// master.
func (w *Wire) MISO() bool {
	return w.miso
}

func (w *Wire) wake() {
	if w.slave != nil {
		w.slave.TickLater()
	}
}
