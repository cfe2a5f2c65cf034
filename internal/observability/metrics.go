package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for a simulation run and provides
// a ready-to-serve /metrics handler. Gauges mirror live model state (battery
// charge, simulated time); counters accumulate over the run (energy drawn,
// messages moved, calendar events fired).
type SimCollector struct {
	gatherer prometheus.Gatherer

	BatteryCharge     *prometheus.GaugeVec
	EnergyConsumed    *prometheus.CounterVec
	MessagesSent      *prometheus.CounterVec
	MessagesDelivered *prometheus.CounterVec
	EventsExecuted    prometheus.Counter
	SimTimeSeconds    prometheus.Gauge
}

// NewSimCollector registers simulation Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	charge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_battery_charge_coulombs",
		Help: "Remaining battery charge per node, in coulombs.",
	}, []string{"node"})
	charge, err := registerGaugeVec(reg, charge, "sim_battery_charge_coulombs")
	if err != nil {
		return nil, err
	}

	energy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_energy_joules_total",
		Help: "Cumulative energy drawn per node, in joules.",
	}, []string{"node"})
	energy, err = registerCounterVec(reg, energy, "sim_energy_joules_total")
	if err != nil {
		return nil, err
	}

	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_messages_sent_total",
		Help: "Messages handed to a channel, labeled by output port.",
	}, []string{"port"})
	sent, err = registerCounterVec(reg, sent, "sim_messages_sent_total")
	if err != nil {
		return nil, err
	}

	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_messages_delivered_total",
		Help: "Messages delivered to an input port queue, labeled by port.",
	}, []string{"port"})
	delivered, err = registerCounterVec(reg, delivered, "sim_messages_delivered_total")
	if err != nil {
		return nil, err
	}

	events, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_calendar_events_total",
		Help: "Calendar events fired during the run.",
	}), "sim_calendar_events_total")
	if err != nil {
		return nil, err
	}

	simTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_time_seconds",
		Help: "Simulated time elapsed since the run epoch, in seconds.",
	}), "sim_time_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		BatteryCharge:     charge,
		EnergyConsumed:    energy,
		MessagesSent:      sent,
		MessagesDelivered: delivered,
		EventsExecuted:    events,
		SimTimeSeconds:    simTime,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordPowerSample feeds one node power sample into the charge gauge and
// the energy counter. energyDelta is the energy accrued since the previous
// sample for the node.
func (c *SimCollector) RecordPowerSample(node string, charge, energyDelta float64) {
	if c == nil {
		return
	}
	if c.BatteryCharge != nil {
		c.BatteryCharge.WithLabelValues(node).Set(charge)
	}
	if c.EnergyConsumed != nil && energyDelta > 0 {
		c.EnergyConsumed.WithLabelValues(node).Add(energyDelta)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
