package sim

import "log"

// A Connection transfers messages between the ports plugged into it.
type Connection interface {
	Named

	PlugIn(port Port)
	NotifyAvailable(port Port)
	NotifySend()
}

// DirectConnection transfers messages between its ports with one cycle of
// latency and no bandwidth limit.
type DirectConnection struct {
	*TickingComponent

	ports      map[RemotePort]Port
	portList   []Port
	nextPortID int
}

// NewDirectConnection creates a DirectConnection ticking at the given
// frequency.
func NewDirectConnection(
	name string,
	engine Engine,
	freq Freq,
) *DirectConnection {
	c := &DirectConnection{
		ports: make(map[RemotePort]Port),
	}
	c.TickingComponent = NewTickingComponent(name, engine, freq, c)

	return c
}

// PlugIn connects a port to this connection.
func (c *DirectConnection) PlugIn(port Port) {
	if _, found := c.ports[port.AsRemote()]; found {
		log.Panicf("port %s already plugged in", port.Name())
	}

	c.ports[port.AsRemote()] = port
	c.portList = append(c.portList, port)
	port.SetConnection(c)
}

// NotifyAvailable is called by a port when its incoming buffer frees up, so
// that senders blocked on it can retry.
func (c *DirectConnection) NotifyAvailable(p Port) {
	for _, port := range c.portList {
		if port == p {
			continue
		}

		port.NotifyAvailable()
	}

	c.TickNow()
}

// NotifySend is called by a port when it queues an outgoing message.
func (c *DirectConnection) NotifySend() {
	c.TickNow()
}

// Tick moves messages from outgoing buffers to destination ports.
func (c *DirectConnection) Tick() bool {
	madeProgress := false

	for i := 0; i < len(c.portList); i++ {
		portID := (i + c.nextPortID) % len(c.portList)
		port := c.portList[portID]
		madeProgress = c.forwardMany(port) || madeProgress
	}

	c.nextPortID = (c.nextPortID + 1) % len(c.portList)

	return madeProgress
}

func (c *DirectConnection) forwardMany(port Port) bool {
	madeProgress := false

	for {
		head := port.PeekOutgoing()
		if head == nil {
			break
		}

		dst, found := c.ports[head.Meta().Dst]
		if !found {
			log.Panicf("destination %s is not plugged in", head.Meta().Dst)
		}

		if err := dst.Deliver(head); err != nil {
			break
		}

		port.RetrieveOutgoing()
		madeProgress = true
	}

	return madeProgress
}
