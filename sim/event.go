// Package sim provides the discrete-event substrate that the flash emulator
// is built on: virtual time, events, ticking components, ports, and
// connections.
package sim

// VTimeInSec is a time in the simulated space, in seconds.
type VTimeInSec float64

// An Event is something that happens at a point in virtual time.
type Event interface {
	// Time returns the time at which the event takes place.
	Time() VTimeInSec

	// Handler returns the handler that processes the event.
	Handler() Handler

	// IsSecondary marks events that are handled only after all same-time
	// primary events are handled.
	IsSecondary() bool
}

// A Handler processes events. An event is always scheduled by and handled by
// the same component, which keeps all state mutation single-owner.
type Handler interface {
	Handle(e Event) error
}

// EventBase carries the fields common to all events.
type EventBase struct {
	ID        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// NewEventBase creates an EventBase happening at time t.
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	return &EventBase{
		ID:      GetIDGenerator().Generate(),
		time:    t,
		handler: handler,
	}
}

// Time returns the time at which the event takes place.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler that processes the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event runs after same-time primary events.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}
