// Package model holds the physical view of a simulated system: devices with
// power-relevant operating modes, batteries, channels, and the nodes that
// aggregate them. Power accounting is mode based: a device is in exactly one
// named mode at any instant, each mode has a fixed draw in watts, and a
// NodePowerMeter integrates draw over simulated time against the node's
// battery.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/sensornet-simulator/timectrl"
)

// ErrUnknownMode is returned when a mode name is absent from a device's mode
// table. Mode tables are fixed at construction, so hitting this at run time
// means the model was authored incorrectly.
var ErrUnknownMode = errors.New("unknown device mode")

// Default mode names shared by the stock device constructors. Devices built
// directly via NewDevice may use any names they like.
const (
	ModeIdle = "IDLE"
	ModeBusy = "BUSY"
	ModeTx   = "TX"
	ModeRx   = "RX"
)

// Device is a peripheral with mutually exclusive named operating modes, each
// mapped to a power draw in watts. The current mode is always a key of the
// mode table; this is enforced at construction and on every SetMode.
type Device struct {
	name  string
	modes map[string]float64
	mode  string

	listeners []func(prev, next string)
}

// NewDevice constructs a device from a mode table and an initial mode. The
// table must be non-empty and must contain the initial mode.
func NewDevice(name string, modes map[string]float64, initial string) (*Device, error) {
	if len(modes) == 0 {
		return nil, fmt.Errorf("device %s: empty mode table", name)
	}
	if _, ok := modes[initial]; !ok {
		return nil, fmt.Errorf("device %s: initial mode %q: %w", name, initial, ErrUnknownMode)
	}
	copied := make(map[string]float64, len(modes))
	for k, v := range modes {
		copied[k] = v
	}
	return &Device{name: name, modes: copied, mode: initial}, nil
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Mode returns the current mode name.
func (d *Device) Mode() string { return d.mode }

// PowerDraw returns the draw of the current mode in watts.
func (d *Device) PowerDraw() float64 { return d.modes[d.mode] }

// ModePower returns the draw of the named mode in watts.
func (d *Device) ModePower(name string) (float64, error) {
	p, ok := d.modes[name]
	if !ok {
		return 0, fmt.Errorf("device %s: mode %q: %w", d.name, name, ErrUnknownMode)
	}
	return p, nil
}

// SetMode switches the device to the named mode. The switch is unconditional
// and immediate; any transition cost must be modelled explicitly by the
// caller. Registered mode listeners fire after the switch with the previous
// and new mode names.
func (d *Device) SetMode(name string) error {
	if _, ok := d.modes[name]; !ok {
		return fmt.Errorf("device %s: set mode %q: %w", d.name, name, ErrUnknownMode)
	}
	prev := d.mode
	d.mode = name
	if prev != name {
		for _, fn := range d.listeners {
			fn(prev, name)
		}
	}
	return nil
}

// AddModeListener registers a callback invoked on every effective mode change.
// The power meter uses this to integrate energy exactly at transition points.
func (d *Device) AddModeListener(fn func(prev, next string)) {
	d.listeners = append(d.listeners, fn)
}

// Peripheral is the device surface a Node aggregates and a NodePowerMeter
// samples. *Device and every type embedding it satisfy this.
type Peripheral interface {
	Name() string
	Mode() string
	PowerDraw() float64
	ModePower(name string) (float64, error)
	AddModeListener(fn func(prev, next string))
}

// Processor is a device with a computation throughput. Calculate segments
// convert operation counts into simulated durations through it; this is the
// only mechanism by which algorithmic cost becomes elapsed simulated time.
type Processor struct {
	*Device
	iopsPerSecond  float64
	flopsPerSecond float64
}

// NewProcessor constructs a processor with the given integer and floating
// point throughputs in operations per second.
func NewProcessor(name string, iopsPerSecond, flopsPerSecond float64, modes map[string]float64, initial string) (*Processor, error) {
	if iopsPerSecond <= 0 || flopsPerSecond <= 0 {
		return nil, fmt.Errorf("processor %s: throughput must be positive", name)
	}
	dev, err := NewDevice(name, modes, initial)
	if err != nil {
		return nil, err
	}
	return &Processor{Device: dev, iopsPerSecond: iopsPerSecond, flopsPerSecond: flopsPerSecond}, nil
}

// CalcDuration returns the simulated time needed to execute the given number
// of floating point and integer operations.
func (p *Processor) CalcDuration(flops, iops float64) time.Duration {
	if flops < 0 {
		flops = 0
	}
	if iops < 0 {
		iops = 0
	}
	seconds := flops/p.flopsPerSecond + iops/p.iopsPerSecond
	return time.Duration(seconds * float64(time.Second))
}

// Memory is a placeholder peripheral. It draws no power; it exists so nodes
// carry the full processor/memory/battery complement and so future models can
// attach capacity or cache behaviour to it.
type Memory struct {
	*Device
}

// NewMemory constructs a zero-draw memory device.
func NewMemory(name string) *Memory {
	dev, _ := NewDevice(name, map[string]float64{ModeIdle: 0}, ModeIdle)
	return &Memory{Device: dev}
}

// Payload is anything a channel can carry; the size drives both transmission
// delay and, indirectly, transmit-mode energy.
type Payload interface {
	SizeBytes() float64
}

// Inbox accepts payloads delivered on behalf of a bound input port. The
// functional layer's input ports implement this.
type Inbox interface {
	Accept(p Payload)
}

// Errors surfaced by the transmit path. These are configuration errors: a
// correctly wired model never hits them at steady state.
var (
	ErrNoChannel = errors.New("communication device has no channel")
	ErrNoInbox   = errors.New("receiving device has no bound inbox")
)

// CommunicationDevice is a radio-like peripheral. It is bound to a shared
// Channel; transmitting holds the device in its TX mode for the transfer
// duration, and delivery switches the listening peer into its RX mode.
type CommunicationDevice struct {
	*Device
	txMode   string
	rxMode   string
	idleMode string

	channel   *Channel
	inbox     Inbox
	listening bool
	inflight  int
}

// NewCommunicationDevice constructs a communication device using the default
// TX/RX/IDLE mode names, all of which must be present in the mode table.
func NewCommunicationDevice(name string, modes map[string]float64, initial string) (*CommunicationDevice, error) {
	dev, err := NewDevice(name, modes, initial)
	if err != nil {
		return nil, err
	}
	for _, m := range []string{ModeTx, ModeRx, ModeIdle} {
		if _, ok := modes[m]; !ok {
			return nil, fmt.Errorf("communication device %s: mode %q: %w", name, m, ErrUnknownMode)
		}
	}
	return &CommunicationDevice{
		Device:   dev,
		txMode:   ModeTx,
		rxMode:   ModeRx,
		idleMode: ModeIdle,
	}, nil
}

// SetChannel binds the device to a channel. Channels are shared: the sender
// and the receiver of a link bind to the same one.
func (d *CommunicationDevice) SetChannel(ch *Channel) { d.channel = ch }

// Channel returns the bound channel, or nil.
func (d *CommunicationDevice) Channel() *Channel { return d.channel }

// BindInbox binds the destination for payloads delivered to this device.
func (d *CommunicationDevice) BindInbox(in Inbox) { d.inbox = in }

// Listen registers the device as the receiver on its channel and parks it in
// receive mode until told otherwise.
func (d *CommunicationDevice) Listen() error {
	if d.channel == nil {
		return fmt.Errorf("device %s: listen: %w", d.name, ErrNoChannel)
	}
	d.channel.setListener(d)
	d.listening = true
	return d.SetMode(d.rxMode)
}

// Transmit sends a payload to the channel's listening peer. The device enters
// its TX mode for the transfer duration computed by the channel; a delivery
// event scheduled on the calendar hands the payload to the peer's inbox and
// switches the peer to RX. Wiring errors (no channel, no listener, no inbox)
// surface here, at send time.
func (d *CommunicationDevice) Transmit(cal *timectrl.Calendar, p Payload) error {
	if d.channel == nil {
		return fmt.Errorf("device %s: transmit: %w", d.name, ErrNoChannel)
	}
	peer := d.channel.listener
	if peer == nil || peer == d {
		return fmt.Errorf("device %s: transmit: no listening peer on channel", d.name)
	}
	if peer.inbox == nil {
		return fmt.Errorf("device %s: transmit to %s: %w", d.name, peer.name, ErrNoInbox)
	}

	delay := d.channel.Delay(p)
	if err := d.beginTransmit(); err != nil {
		return err
	}
	cal.ScheduleAfter(delay, func() {
		d.endTransmit()
		peer.receive(p)
	})
	return nil
}

func (d *CommunicationDevice) beginTransmit() error {
	d.inflight++
	return d.SetMode(d.txMode)
}

func (d *CommunicationDevice) endTransmit() {
	d.inflight--
	if d.inflight > 0 {
		return
	}
	if d.listening {
		_ = d.SetMode(d.rxMode)
		return
	}
	_ = d.SetMode(d.idleMode)
}

// receive switches the device into RX and hands the payload to the inbox.
// Mode table membership of rxMode was checked at construction, so SetMode
// cannot fail here.
func (d *CommunicationDevice) receive(p Payload) {
	_ = d.SetMode(d.rxMode)
	d.inbox.Accept(p)
}
