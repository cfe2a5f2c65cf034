package model

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/sensornet-simulator/timectrl"
)

var meterEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func meterNode(t *testing.T, chargeCoulombs float64) *Node {
	t.Helper()
	proc, err := NewProcessor("PROCESSOR", 4.0323e6, 16.129e6,
		map[string]float64{ModeIdle: 1.5e-6, ModeBusy: 1.2e-3}, ModeIdle)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	node, err := NewNode("SensorNode", proc, NewMemory("MEMORY"), NewBattery("BATTERY", 3.0, chargeCoulombs))
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	return node
}

func TestNodePowerMeter_IntegratesModeIntervals(t *testing.T) {
	cal := timectrl.NewCalendar(meterEpoch)
	node := meterNode(t, 7200.0)
	meter := NewNodePowerMeter(cal, node, 0, nil)

	// BUSY at 1.2 mW for five seconds draws 6 mJ and debits 2 mC at 3 V.
	if err := node.Processor().SetMode(ModeBusy); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	cal.Schedule(meterEpoch.Add(5*time.Second), func() {
		if err := node.Processor().SetMode(ModeIdle); err != nil {
			t.Fatalf("SetMode: %v", err)
		}
	})
	cal.Run(meterEpoch.Add(5 * time.Second))

	if got := meter.TotalEnergy(); math.Abs(got-6.0e-3) > 1e-12 {
		t.Fatalf("TotalEnergy = %v J, want 6.0e-3", got)
	}
	wantCharge := 7200.0 - 2.0e-3
	if got := node.Battery().Charge(); math.Abs(got-wantCharge) > 1e-9 {
		t.Fatalf("battery charge = %v C, want %v", got, wantCharge)
	}
}

func TestNodePowerMeter_FlushIntegratesOpenInterval(t *testing.T) {
	cal := timectrl.NewCalendar(meterEpoch)
	node := meterNode(t, 7200.0)
	meter := NewNodePowerMeter(cal, node, 0, nil)

	if err := node.Processor().SetMode(ModeBusy); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	// No mode change ends the interval; Flush must close it.
	cal.Run(meterEpoch.Add(2 * time.Second))
	meter.Flush()

	if got := meter.TotalEnergy(); math.Abs(got-2.4e-3) > 1e-12 {
		t.Fatalf("TotalEnergy after flush = %v J, want 2.4e-3", got)
	}
	samples := meter.Samples()
	if len(samples) != 1 {
		t.Fatalf("Samples = %d, want the single flush sample", len(samples))
	}
	if !samples[0].At.Equal(meterEpoch.Add(2 * time.Second)) {
		t.Fatalf("sample instant = %v, want flush time", samples[0].At)
	}
}

func TestNodePowerMeter_SamplingCadence(t *testing.T) {
	cal := timectrl.NewCalendar(meterEpoch)
	node := meterNode(t, 7200.0)
	meter := NewNodePowerMeter(cal, node, time.Second, nil)

	var observed int
	meter.OnSample(func(PowerSample) { observed++ })

	cal.Run(meterEpoch.Add(3500 * time.Millisecond))
	if got := len(meter.Samples()); got != 3 {
		t.Fatalf("samples after 3.5s at 1s cadence = %d, want 3", got)
	}
	if observed != 3 {
		t.Fatalf("OnSample fired %d times, want 3", observed)
	}

	meter.Stop()
	cal.RunFor(5 * time.Second)
	if got := len(meter.Samples()); got != 3 {
		t.Fatalf("samples after Stop = %d, want no new ticks", got)
	}
}

func TestNodePowerMeter_SampleChargeDecreasesMonotonically(t *testing.T) {
	cal := timectrl.NewCalendar(meterEpoch)
	node := meterNode(t, 7200.0)
	meter := NewNodePowerMeter(cal, node, time.Second, nil)

	if err := node.Processor().SetMode(ModeBusy); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	cal.Run(meterEpoch.Add(5 * time.Second))
	meter.Flush()

	samples := meter.Samples()
	if len(samples) < 2 {
		t.Fatalf("too few samples to check monotonicity: %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Charge > samples[i-1].Charge {
			t.Fatalf("charge increased between samples: %v then %v",
				samples[i-1].Charge, samples[i].Charge)
		}
		if samples[i].Energy < samples[i-1].Energy {
			t.Fatalf("cumulative energy decreased: %v then %v",
				samples[i-1].Energy, samples[i].Energy)
		}
	}
}

func TestNodePowerMeter_DepletionIsObservableNotFatal(t *testing.T) {
	cal := timectrl.NewCalendar(meterEpoch)
	node := meterNode(t, 1e-9)
	meter := NewNodePowerMeter(cal, node, time.Second, nil)

	if err := node.Processor().SetMode(ModeBusy); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	cal.Run(meterEpoch.Add(10 * time.Second))
	meter.Flush()

	if !node.Battery().Depleted() {
		t.Fatalf("battery not depleted under sustained load")
	}
	if node.Battery().Charge() != 0 {
		t.Fatalf("charge = %v, want clamp at 0", node.Battery().Charge())
	}
	// Energy accounting keeps running past depletion.
	if meter.TotalEnergy() <= 0 {
		t.Fatalf("TotalEnergy = %v, want positive", meter.TotalEnergy())
	}
}
