package model

import (
	"fmt"
)

// Node aggregates the physical devices of one simulated platform: exactly one
// processor, one memory, one battery, and any number of named peripherals.
// All device power draws on a node are attributed to its battery.
type Node struct {
	name        string
	processor   *Processor
	memory      *Memory
	battery     *Battery
	peripherals map[string]Peripheral
	order       []string
}

// NewNode constructs a node from its mandatory devices.
func NewNode(name string, processor *Processor, memory *Memory, battery *Battery) (*Node, error) {
	if processor == nil || memory == nil || battery == nil {
		return nil, fmt.Errorf("node %s: processor, memory and battery are required", name)
	}
	return &Node{
		name:        name,
		processor:   processor,
		memory:      memory,
		battery:     battery,
		peripherals: make(map[string]Peripheral),
	}, nil
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Processor returns the node's processor.
func (n *Node) Processor() *Processor { return n.processor }

// Memory returns the node's memory.
func (n *Node) Memory() *Memory { return n.memory }

// Battery returns the node's battery.
func (n *Node) Battery() *Battery { return n.battery }

// AddPeripheral registers a named peripheral. Duplicate names are a
// configuration error.
func (n *Node) AddPeripheral(p Peripheral) error {
	if p == nil {
		return fmt.Errorf("node %s: nil peripheral", n.name)
	}
	if _, exists := n.peripherals[p.Name()]; exists {
		return fmt.Errorf("node %s: duplicate peripheral %q", n.name, p.Name())
	}
	n.peripherals[p.Name()] = p
	n.order = append(n.order, p.Name())
	return nil
}

// Peripheral returns the named peripheral, or nil.
func (n *Node) Peripheral(name string) Peripheral {
	return n.peripherals[name]
}

// CommDevice returns the named peripheral as a communication device, or an
// error if absent or of a different kind.
func (n *Node) CommDevice(name string) (*CommunicationDevice, error) {
	p, ok := n.peripherals[name]
	if !ok {
		return nil, fmt.Errorf("node %s: no peripheral %q", n.name, name)
	}
	cd, ok := p.(*CommunicationDevice)
	if !ok {
		return nil, fmt.Errorf("node %s: peripheral %q is not a communication device", n.name, name)
	}
	return cd, nil
}

// Devices returns every power-drawing device on the node, processor and
// memory included, in stable order. The power meter iterates this set.
func (n *Node) Devices() []Peripheral {
	devs := []Peripheral{n.processor, n.memory}
	for _, name := range n.order {
		devs = append(devs, n.peripherals[name])
	}
	return devs
}
