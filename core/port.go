package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/sensornet-simulator/model"
	"github.com/signalsfoundry/sensornet-simulator/timectrl"
)

// ErrUnboundPort is returned when a send is attempted on an output port that
// has no communication device bound, or a delivery targets an input port
// whose device wiring is incomplete. These are configuration errors surfaced
// at send time, never silent data loss.
var ErrUnboundPort = errors.New("port not bound to a device")

// OutputPort is a named, directional endpoint a task sends messages through.
// It must be bound to a communication device before the first send.
type OutputPort struct {
	name      string
	task      *Task
	device    *model.CommunicationDevice
	observers []func(Message)
}

// Name returns the port name.
func (p *OutputPort) Name() string { return p.name }

// Bind attaches the communication device that will carry this port's
// messages.
func (p *OutputPort) Bind(dev *model.CommunicationDevice) { p.device = dev }

// Send hands a message to the bound device for transmission. The device
// enters its transmit mode for the transfer duration and the channel's
// listening peer receives the message after the bandwidth-derived delay.
func (p *OutputPort) Send(cal *timectrl.Calendar, msg Message) error {
	if p.device == nil {
		return fmt.Errorf("output port %q: %w", p.name, ErrUnboundPort)
	}
	if err := p.device.Transmit(cal, msg); err != nil {
		return fmt.Errorf("output port %q: %w", p.name, err)
	}
	for _, fn := range p.observers {
		fn(msg)
	}
	return nil
}

// AddObserver registers a callback invoked for every successfully sent
// message.
func (p *OutputPort) AddObserver(fn func(Message)) {
	p.observers = append(p.observers, fn)
}

// InputPort is a named endpoint a task receives messages on. Delivered
// messages queue in arrival order and are consumed FIFO. Because delivery
// events are scheduled independently per send, a smaller message sent later
// can overtake a larger one on the same channel; order is preserved whenever
// per-message delays do not reorder arrivals.
type InputPort struct {
	name  string
	task  *Task
	queue []Message

	waiter    func()
	observers []func(Message)
}

// Name returns the port name.
func (p *InputPort) Name() string { return p.name }

// Bind attaches this port as the delivery target of a communication device.
func (p *InputPort) Bind(dev *model.CommunicationDevice) { dev.BindInbox(p) }

// Accept enqueues a delivered payload and wakes a pending blocked receive.
// Satisfies model.Inbox. Non-message payloads indicate a wiring error across
// models and are dropped with no way to report; the type switch below keeps
// that impossible within this module since only Messages are ever sent.
func (p *InputPort) Accept(payload model.Payload) {
	msg, ok := payload.(Message)
	if !ok {
		return
	}
	p.queue = append(p.queue, msg)
	for _, fn := range p.observers {
		fn(msg)
	}
	if w := p.waiter; w != nil {
		p.waiter = nil
		w()
	}
}

// Receive dequeues the oldest queued message, if any.
func (p *InputPort) Receive() (Message, bool) {
	if len(p.queue) == 0 {
		return Message{}, false
	}
	msg := p.queue[0]
	p.queue = p.queue[1:]
	return msg, true
}

// Pending returns the number of queued messages.
func (p *InputPort) Pending() int { return len(p.queue) }

// AwaitDelivery registers a one-shot callback fired on the next delivery.
// Used by blocking receive segments to suspend until a message arrives. Only
// one waiter can be armed at a time; chains execute sequentially so this
// never contends.
func (p *InputPort) AwaitDelivery(fn func()) { p.waiter = fn }

// AddObserver registers a callback invoked for every delivered message, in
// delivery order. Message-count loggers and metrics hang off this.
func (p *InputPort) AddObserver(fn func(Message)) {
	p.observers = append(p.observers, fn)
}
