// Package translog collects records of completed read transactions for
// best-effort reporting over the maintenance channel.
package translog

// An Entry describes one completed read transaction. The address is 24 bits
// wide on the wire; Length wraps at 256 the way the hardware counter would.
type Entry struct {
	Address uint32
	Length  uint8
}

// EntryByteSize is the serialized size of an Entry.
const EntryByteSize = 4

// Encode serializes the entry big-endian: address high to low, then length.
func (e Entry) Encode() [EntryByteSize]byte {
	return [EntryByteSize]byte{
		byte(e.Address >> 16),
		byte(e.Address >> 8),
		byte(e.Address),
		e.Length,
	}
}

// A Waker is woken when a new entry becomes available. The maintenance
// channel's tick scheduler satisfies this interface.
type Waker interface {
	TickLater()
}

// A Logger is a bounded queue of log entries. The producer side never
// blocks: when the queue is full the entry is dropped and the overrun
// counter increments. Entries are delivered at most once.
type Logger struct {
	entries  []Entry
	capacity int
	overruns uint64

	waker Waker
}

// NewLogger creates a Logger holding at most capacity entries.
func NewLogger(capacity int) *Logger {
	return &Logger{capacity: capacity}
}

// WakeOn attaches the consumer side so it is woken on new entries.
func (l *Logger) WakeOn(w Waker) {
	l.waker = w
}

// Offer attempts to enqueue an entry. It returns false, and counts one
// overrun, if the queue has no free slot.
func (l *Logger) Offer(e Entry) bool {
	if len(l.entries) >= l.capacity {
		l.overruns++
		return false
	}

	l.entries = append(l.entries, e)

	if l.waker != nil {
		l.waker.TickLater()
	}

	return true
}

// Poll removes and returns the oldest entry.
func (l *Logger) Poll() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}

	e := l.entries[0]
	l.entries = l.entries[1:]

	return e, true
}

// Peek returns the oldest entry without removing it.
func (l *Logger) Peek() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}

	return l.entries[0], true
}

// Pending returns the number of queued entries.
func (l *Logger) Pending() int {
	return len(l.entries)
}

// Capacity returns the maximum number of queued entries.
func (l *Logger) Capacity() int {
	return l.capacity
}

// Overruns returns the number of entries dropped because the queue was
// full.
func (l *Logger) Overruns() uint64 {
	return l.overruns
}
