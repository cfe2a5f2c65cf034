package model

import (
	"context"
	"time"

	"github.com/signalsfoundry/sensornet-simulator/internal/logging"
	"github.com/signalsfoundry/sensornet-simulator/timectrl"
)

// PowerSample is one point of a node's power log: the instant, the total draw
// across the node's devices at that instant, the cumulative energy drawn
// since the meter started, and the battery charge remaining.
type PowerSample struct {
	At     time.Time
	Power  float64 // watts
	Energy float64 // joules, cumulative
	Charge float64 // coulombs remaining
}

// NodePowerMeter integrates the power drawn by a node's devices over
// simulated time and debits the node's battery. Power is assumed constant
// between mode changes, so the energy of an interval is exactly
// power(mode) x duration: the meter accrues on every device mode change and
// additionally on a fixed sampling cadence, recording a PowerSample each
// cadence tick.
type NodePowerMeter struct {
	node *Node
	cal  *timectrl.Calendar
	log  logging.Logger

	interval time.Duration
	acc      map[string]*accrual
	energy   float64
	samples  []PowerSample
	onSample func(PowerSample)

	depletionSeen bool
	stopped       bool
	tickID        string
}

type accrual struct {
	dev   Peripheral
	mode  string
	since time.Time
}

// NewNodePowerMeter attaches a meter to every device of the node and begins
// sampling on the given cadence. A non-positive cadence disables periodic
// sampling; mode-change integration still happens.
func NewNodePowerMeter(cal *timectrl.Calendar, node *Node, interval time.Duration, log logging.Logger) *NodePowerMeter {
	if log == nil {
		log = logging.Noop()
	}
	m := &NodePowerMeter{
		node:     node,
		cal:      cal,
		log:      log,
		interval: interval,
		acc:      make(map[string]*accrual),
	}
	now := cal.Now()
	for _, dev := range node.Devices() {
		dev := dev
		m.acc[dev.Name()] = &accrual{dev: dev, mode: dev.Mode(), since: now}
		dev.AddModeListener(func(prev, next string) {
			m.accrue(dev.Name())
		})
	}
	if interval > 0 {
		m.tickID = cal.ScheduleAfter(interval, m.tick)
	}
	return m
}

// OnSample registers a callback invoked for every recorded sample. Used to
// feed metrics and the run recorder.
func (m *NodePowerMeter) OnSample(fn func(PowerSample)) { m.onSample = fn }

// accrue integrates the energy drawn by one device since its last accrual
// point, using the mode it was in over that interval, and debits the battery.
func (m *NodePowerMeter) accrue(name string) {
	a := m.acc[name]
	if a == nil {
		return
	}
	now := m.cal.Now()
	dt := now.Sub(a.since).Seconds()
	if dt > 0 {
		power, err := a.dev.ModePower(a.mode)
		if err == nil && power > 0 {
			e := power * dt
			m.energy += e
			m.node.Battery().Drain(e)
		}
	}
	a.mode = a.dev.Mode()
	a.since = now
}

func (m *NodePowerMeter) accrueAll() {
	for _, dev := range m.node.Devices() {
		m.accrue(dev.Name())
	}
}

func (m *NodePowerMeter) tick() {
	if m.stopped {
		return
	}
	m.accrueAll()
	m.record()
	m.tickID = m.cal.ScheduleAfter(m.interval, m.tick)
}

func (m *NodePowerMeter) record() {
	s := PowerSample{
		At:     m.cal.Now(),
		Power:  m.currentPower(),
		Energy: m.energy,
		Charge: m.node.Battery().Charge(),
	}
	m.samples = append(m.samples, s)
	if m.onSample != nil {
		m.onSample(s)
	}
	if m.node.Battery().Depleted() && !m.depletionSeen {
		m.depletionSeen = true
		m.log.Warn(context.Background(), "battery depleted",
			logging.String("node", m.node.Name()),
			logging.Any("at", s.At))
	}
}

func (m *NodePowerMeter) currentPower() float64 {
	var p float64
	for _, dev := range m.node.Devices() {
		p += dev.PowerDraw()
	}
	return p
}

// Flush integrates all devices up to the current instant and records a final
// sample. Call once after the simulation run completes.
func (m *NodePowerMeter) Flush() {
	m.accrueAll()
	m.record()
}

// Stop halts periodic sampling. Mode-change integration continues, since the
// listeners stay registered for the life of the devices.
func (m *NodePowerMeter) Stop() {
	if m.stopped {
		return
	}
	m.stopped = true
	if m.tickID != "" {
		m.cal.Cancel(m.tickID)
	}
}

// TotalEnergy returns the cumulative energy drawn in joules, up to the last
// accrual point.
func (m *NodePowerMeter) TotalEnergy() float64 { return m.energy }

// Samples returns the recorded power log.
func (m *NodePowerMeter) Samples() []PowerSample { return m.samples }
