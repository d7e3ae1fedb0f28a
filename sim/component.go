package sim

import (
	"fmt"
	"os"
	"sort"
)

// A Named object has a name. Names are hierarchical, dot-separated.
type Named interface {
	Name() string
}

// A Component is an element being simulated. It communicates with other
// components through ports and reacts to events.
type Component interface {
	Named
	Handler

	AddPort(name string, port Port)
	GetPortByName(name string) Port
	Ports() []Port
	NotifyRecv(port Port)
	NotifyPortFree(port Port)
}

// ComponentBase provides the name and port bookkeeping shared by all
// components.
type ComponentBase struct {
	name  string
	ports map[string]Port
}

// NewComponentBase creates a ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	return &ComponentBase{
		name:  name,
		ports: make(map[string]Port),
	}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}

// AddPort registers a port under a local name.
func (c *ComponentBase) AddPort(name string, port Port) {
	if _, found := c.ports[name]; found {
		panic("port already exists")
	}

	c.ports[name] = port
}

// GetPortByName returns the port registered under the local name. It panics
// if no such port exists.
func (c *ComponentBase) GetPortByName(name string) Port {
	port, found := c.ports[name]
	if !found {
		errMsg := fmt.Sprintf(
			"Port %s is not available on component %s.\n", name, c.name)
		errMsg += "Available ports include:\n"
		for n := range c.ports {
			errMsg += fmt.Sprintf("\t%s\n", n)
		}
		fmt.Fprint(os.Stderr, errMsg)

		panic("port not found")
	}

	return port
}

// Ports returns all the ports of the component, sorted by name.
func (c *ComponentBase) Ports() []Port {
	names := make([]string, 0, len(c.ports))
	for n := range c.ports {
		names = append(names, n)
	}

	sort.Strings(names)

	list := make([]Port, 0, len(names))
	for _, n := range names {
		list = append(list, c.ports[n])
	}

	return list
}
