package sensing

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/signalsfoundry/sensornet-simulator/core"
	"github.com/signalsfoundry/sensornet-simulator/internal/logging"
	"github.com/signalsfoundry/sensornet-simulator/scenario"
)

// Task property keys recognised by the sensor task. They mirror the scenario
// configuration so individual tasks can still be tweaked programmatically
// after construction.
const (
	PropAveragePackageSize    = "AVERAGE_PACKAGE_SIZE"
	PropSdeviationPackageSize = "SDEVIATION_PACKAGE_SIZE"
	PropCompressionAlgorithm  = "COMPRESSION_ALGORITHM"
	PropCompressionPercentage = "COMPRESSION_PERCENTAGE"
)

// Port names used by the stock tasks.
const (
	SensorOutPort = "OUTPORT"
	SinkInPort    = "INPORT"
)

// NewSampleAndCompressTask builds the sensor task: wait one sample interval,
// synthesise a data packet, pay its sampling cost, compress it, pay the
// compression cost, and send the result. The chain loops forever.
//
// rng drives the gaussian packet-size distribution; passing a seeded source
// makes runs reproducible.
func NewSampleAndCompressTask(cfg scenario.SensorConfig, rng *rand.Rand, log logging.Logger) (*core.Task, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if log == nil {
		log = logging.Noop()
	}

	chain := core.NewBehaviorChain()
	task := core.NewTask("sample-and-compress", chain, log)
	outPort := task.AddOutputPort(SensorOutPort)

	task.SetProperty(PropAveragePackageSize, cfg.AveragePackageSize)
	task.SetProperty(PropSdeviationPackageSize, cfg.SdeviationPackageSize)
	task.SetProperty(PropCompressionAlgorithm, cfg.CompressionAlgorithm)
	task.SetProperty(PropCompressionPercentage, cfg.CompressionPercentage)

	sense := core.NewFuncSegment("sense", func(act *core.Activation) (core.StepResult, error) {
		mu := act.Task.PropertyFloat(PropAveragePackageSize, 0)
		sigma := act.Task.PropertyFloat(PropSdeviationPackageSize, 0)

		dataSize := mu + sigma*rng.NormFloat64()
		if dataSize < 0 {
			dataSize = 0
		}

		// Sampling cost: one floating point operation per byte sampled.
		act.Context.Put(core.FlopsKey, dataSize)
		act.Context.Put(core.IopsKey, 0.0)
		act.Context.Put(SensorDataKey, dataSize)
		return core.Done(core.OutcomeSuccess), nil
	}).DeclareKeys(nil, []string{core.FlopsKey, core.IopsKey, SensorDataKey})

	compress := core.NewFuncSegment("compress", func(act *core.Activation) (core.StepResult, error) {
		algorithm := act.Task.PropertyString(PropCompressionAlgorithm, AlgorithmNone)
		percentage := act.Task.PropertyFloat(PropCompressionPercentage, 0)

		dataSize, err := act.Context.GetFloat(CompressDataKey)
		if err != nil {
			return core.StepResult{}, fmt.Errorf("compress: %w", err)
		}

		sizeFactor, flopsFactor := compressionCost(algorithm, percentage, act.Log)
		packetSize := sizeFactor * dataSize

		act.Context.Put(core.FlopsKey, flopsFactor*dataSize)
		act.Context.Put(core.IopsKey, 0.0)
		act.Context.Put(CompressDataKey, core.NewMessage(packetSize, nil))
		return core.Done(core.OutcomeSuccess), nil
	}).DeclareKeys([]string{CompressDataKey}, []string{core.FlopsKey, core.IopsKey, CompressDataKey})

	chain.SetLooping(true)
	chain.MustAppend(core.NewDelaySegment("sample-interval", cfg.SampleInterval.Std()))
	chain.MustAppend(sense)
	chain.MustAppend(core.NewCalculateSegment("sampling-cost"))
	chain.MustAppend(core.NewCopySegment("sense-to-compress", SensorDataKey, CompressDataKey))
	chain.MustAppend(compress)
	chain.MustAppend(core.NewCalculateSegment("compression-cost"))
	chain.MustAppend(core.NewCopySegment("compress-to-send", CompressDataKey, core.MessageSendKey))
	chain.MustAppend(core.NewSendSegment("send", outPort, ""))

	if err := chain.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// NewSinkTask builds the receiver task: block until a message arrives, log
// it, pause briefly, repeat.
func NewSinkTask(cfg scenario.SinkConfig, log logging.Logger) (*core.Task, error) {
	if log == nil {
		log = logging.Noop()
	}

	chain := core.NewBehaviorChain()
	task := core.NewTask("sink", chain, log)
	inPort := task.AddInputPort(SinkInPort)

	report := core.NewFuncSegment("report", func(act *core.Activation) (core.StepResult, error) {
		msg, err := act.Context.GetMessage(core.MessageReceivedKey)
		if err != nil {
			return core.StepResult{}, fmt.Errorf("report: %w", err)
		}
		act.Log.Info(context.Background(), "message received",
			logging.Any("at", act.Cal.Now()),
			logging.Any("size_bytes", msg.SizeBytes()))
		return core.Done(core.OutcomeSuccess), nil
	}).DeclareKeys([]string{core.MessageReceivedKey}, nil)

	chain.SetLooping(true)
	chain.MustAppend(core.NewReceiveSegment("receive", inPort, true, ""))
	chain.MustAppend(report)
	chain.MustAppend(core.NewDelaySegment("drain-interval", cfg.DrainInterval.Std()))

	if err := chain.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}
