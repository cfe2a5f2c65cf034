package sensing

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/sensornet-simulator/core"
	"github.com/signalsfoundry/sensornet-simulator/scenario"
	"github.com/signalsfoundry/sensornet-simulator/timectrl"
)

var simEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func runScenario(t *testing.T, cfg scenario.Config) (*Simulation, []float64) {
	t.Helper()
	cal := timectrl.NewCalendar(simEpoch)
	sim, err := Build(cal, cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var sizes []float64
	sim.SinkTask.InputPort(SinkInPort).AddObserver(func(msg core.Message) {
		sizes = append(sizes, msg.SizeBytes())
	})

	sim.Run(cfg.Run.Duration.Std())
	return sim, sizes
}

func TestSimulation_CompressAndSendEndToEnd(t *testing.T) {
	cfg := scenario.Default()
	cfg.Run.Duration = scenario.Duration(30 * time.Second)

	sim, sizes := runScenario(t, cfg)

	// One 5 s sampling cycle plus compute and transfer time yields a message
	// roughly every 5.3 s; 30 s must move several end to end.
	if got := sim.MessagesReceived(); got < 3 || got > 10 {
		t.Fatalf("MessagesReceived = %d, want a handful within 30s", got)
	}
	if len(sizes) != sim.MessagesReceived() {
		t.Fatalf("observer saw %d messages, counter says %d", len(sizes), sim.MessagesReceived())
	}
	for _, size := range sizes {
		if size != cfg.Sensor.AveragePackageSize {
			t.Fatalf("uncompressed message size = %v, want %v", size, cfg.Sensor.AveragePackageSize)
		}
	}

	// The meter drew real energy and debited exactly its charge equivalent.
	energy := sim.SensorMeter.Meter.TotalEnergy()
	if energy <= 0 {
		t.Fatalf("TotalEnergy = %v, want positive", energy)
	}
	battery := sim.SensorNode.Battery()
	drawn := (cfg.Sensor.Hardware.BatteryChargeCoulombs - battery.Charge()) * cfg.Sensor.Hardware.BatteryPotentialVolts
	if math.Abs(drawn-energy) > 1e-6 {
		t.Fatalf("battery drain %v J does not match metered energy %v J", drawn, energy)
	}
	if battery.Depleted() {
		t.Fatalf("battery depleted after a 30s run on a 7200 C pack")
	}
}

func TestSimulation_EqualSeedsGiveEqualRuns(t *testing.T) {
	cfg := scenario.Default()
	cfg.Run.Duration = scenario.Duration(20 * time.Second)
	cfg.Sensor.SdeviationPackageSize = 1 << 20
	cfg.Run.Seed = 42

	sim1, sizes1 := runScenario(t, cfg)
	sim2, sizes2 := runScenario(t, cfg)

	if sim1.MessagesReceived() != sim2.MessagesReceived() {
		t.Fatalf("message counts diverged: %d vs %d",
			sim1.MessagesReceived(), sim2.MessagesReceived())
	}
	for i := range sizes1 {
		if sizes1[i] != sizes2[i] {
			t.Fatalf("message %d sizes diverged: %v vs %v", i, sizes1[i], sizes2[i])
		}
	}
	e1 := sim1.SensorMeter.Meter.TotalEnergy()
	e2 := sim2.SensorMeter.Meter.TotalEnergy()
	if math.Abs(e1-e2) > 1e-12 {
		t.Fatalf("energy diverged: %v vs %v", e1, e2)
	}
}

func TestSimulation_ZipShrinksMessages(t *testing.T) {
	base := scenario.Default()
	base.Run.Duration = scenario.Duration(15 * time.Second)
	// Small packets keep the per-byte compression cost (~1e3 flops/byte)
	// well inside the horizon on the stock 16 Mflops/s processor.
	base.Sensor.AveragePackageSize = 1000

	zipped := base
	zipped.Sensor.CompressionAlgorithm = AlgorithmZip
	zipped.Sensor.CompressionPercentage = 20

	_, plainSizes := runScenario(t, base)
	_, zipSizes := runScenario(t, zipped)

	if len(plainSizes) == 0 || len(zipSizes) == 0 {
		t.Fatalf("no messages delivered: plain %d, zip %d", len(plainSizes), len(zipSizes))
	}
	want := zipSize(20) * base.Sensor.AveragePackageSize
	for _, size := range zipSizes {
		if !closeTo(size, want, 1e-9) {
			t.Fatalf("zipped size = %v, want %v", size, want)
		}
		if size >= plainSizes[0] {
			t.Fatalf("compression did not shrink the message: %v vs %v", size, plainSizes[0])
		}
	}
}

func TestSimulation_UnknownAlgorithmBehavesLikeNone(t *testing.T) {
	base := scenario.Default()
	base.Run.Duration = scenario.Duration(15 * time.Second)

	unknown := base
	unknown.Sensor.CompressionAlgorithm = "GZIP"

	simPlain, plainSizes := runScenario(t, base)
	simUnknown, unknownSizes := runScenario(t, unknown)

	if simPlain.MessagesReceived() != simUnknown.MessagesReceived() {
		t.Fatalf("message counts diverged: %d vs %d",
			simPlain.MessagesReceived(), simUnknown.MessagesReceived())
	}
	for i := range plainSizes {
		if plainSizes[i] != unknownSizes[i] {
			t.Fatalf("message %d sizes diverged: %v vs %v", i, plainSizes[i], unknownSizes[i])
		}
	}
}

func TestNewNode_BuildsFullHardwareComplement(t *testing.T) {
	cfg := scenario.Default()
	node, err := NewNode("TestNode", cfg.Sensor.Hardware)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if node.Processor() == nil || node.Memory() == nil || node.Battery() == nil {
		t.Fatalf("node missing a mandatory device")
	}
	if _, err := node.CommDevice(CommDeviceName); err != nil {
		t.Fatalf("CommDevice: %v", err)
	}
	if got := node.Battery().Charge(); got != cfg.Sensor.Hardware.BatteryChargeCoulombs {
		t.Fatalf("battery charge = %v, want %v", got, cfg.Sensor.Hardware.BatteryChargeCoulombs)
	}
}

func TestNewSampleAndCompressTask_ChainValidates(t *testing.T) {
	cfg := scenario.Default()
	task, err := NewSampleAndCompressTask(cfg.Sensor, nil, nil)
	if err != nil {
		t.Fatalf("NewSampleAndCompressTask: %v", err)
	}
	if task.OutputPort(SensorOutPort) == nil {
		t.Fatalf("sensor task missing its output port")
	}
	if !task.Chain().Looping() {
		t.Fatalf("sensor chain must loop")
	}

	sink, err := NewSinkTask(cfg.Sink, nil)
	if err != nil {
		t.Fatalf("NewSinkTask: %v", err)
	}
	if sink.InputPort(SinkInPort) == nil {
		t.Fatalf("sink task missing its input port")
	}
}
