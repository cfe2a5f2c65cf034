package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/signalsfoundry/sensornet-simulator/core"
	"github.com/signalsfoundry/sensornet-simulator/internal/logging"
	"github.com/signalsfoundry/sensornet-simulator/internal/observability"
	"github.com/signalsfoundry/sensornet-simulator/internal/recorder"
	"github.com/signalsfoundry/sensornet-simulator/model"
	"github.com/signalsfoundry/sensornet-simulator/scenario"
	"github.com/signalsfoundry/sensornet-simulator/sensing"
	"github.com/signalsfoundry/sensornet-simulator/timectrl"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a YAML scenario file (defaults to the stock compress-and-send scenario)")
	duration := flag.Duration("duration", 0, "simulated horizon; overrides the scenario when positive")
	algorithm := flag.String("algorithm", "", "compression algorithm (NONE, ZIP, RAR); overrides the scenario when set")
	percentage := flag.Float64("percentage", -1, "target compression percentage [0,100]; overrides the scenario when non-negative")
	bandwidth := flag.Float64("bandwidth", 0, "channel bandwidth in bytes/second; overrides the scenario when positive")
	seed := flag.Int64("seed", 0, "random seed for the packet size distribution; overrides the scenario when non-zero")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090); disabled when empty")
	recordPath := flag.String("record", "", "persist power samples and message receptions to this SQLite file; disabled when empty")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx, log := logging.WithRunLogger(context.Background(), log)

	cfg := scenario.Default()
	if *scenarioPath != "" {
		loaded, err := scenario.LoadFile(*scenarioPath)
		if err != nil {
			log.Error(ctx, "failed to load scenario", logging.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}
	if *duration > 0 {
		cfg.Run.Duration = scenario.Duration(*duration)
	}
	if *algorithm != "" {
		cfg.Sensor.CompressionAlgorithm = *algorithm
	}
	if *percentage >= 0 {
		cfg.Sensor.CompressionPercentage = *percentage
	}
	if *bandwidth > 0 {
		cfg.Channel.BandwidthBytesPerSec = *bandwidth
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid scenario", logging.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to register metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "serving metrics", logging.String("addr", *metricsAddr))
	}

	var rec *recorder.Recorder
	if *recordPath != "" {
		rec, err = recorder.Open(*recordPath)
		if err != nil {
			log.Error(ctx, "failed to open recorder", logging.String("error", err.Error()))
			os.Exit(1)
		}
		defer rec.Close()
		log.Info(ctx, "recording run", logging.String("db", *recordPath), logging.String("recorder_run_id", rec.RunID()))
	}

	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cal := timectrl.NewCalendar(epoch)
	cal.AddListener(func(at time.Time) {
		collector.EventsExecuted.Inc()
		collector.SimTimeSeconds.Set(at.Sub(epoch).Seconds())
	})

	sim, err := sensing.Build(cal, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build simulation", logging.String("error", err.Error()))
		os.Exit(1)
	}

	var lastEnergy float64
	sim.SensorMeter.Meter.OnSample(func(s model.PowerSample) {
		collector.RecordPowerSample(sim.SensorNode.Name(), s.Charge, s.Energy-lastEnergy)
		lastEnergy = s.Energy
		if rec != nil {
			if err := rec.RecordPowerSample(sim.SensorNode.Name(), s.At, s.Power, s.Energy, s.Charge); err != nil {
				log.Warn(ctx, "recorder write failed", logging.String("error", err.Error()))
			}
		}
	})
	sim.SensorTask.OutputPort(sensing.SensorOutPort).AddObserver(func(core.Message) {
		collector.MessagesSent.WithLabelValues(sensing.SensorOutPort).Inc()
	})
	sim.SinkTask.InputPort(sensing.SinkInPort).AddObserver(func(msg core.Message) {
		collector.MessagesDelivered.WithLabelValues(sensing.SinkInPort).Inc()
		if rec != nil {
			if err := rec.RecordMessage(sensing.SinkInPort, cal.Now(), msg.SizeBytes()); err != nil {
				log.Warn(ctx, "recorder write failed", logging.String("error", err.Error()))
			}
		}
	})

	tracer := otel.Tracer("sensornet-simulator")
	runCtx, span := tracer.Start(ctx, "simulation.run")

	log.Info(runCtx, "starting run",
		logging.Any("duration", cfg.Run.Duration.Std()),
		logging.String("algorithm", cfg.Sensor.CompressionAlgorithm),
		logging.Any("percentage", cfg.Sensor.CompressionPercentage))

	started := time.Now()
	fired := sim.Run(cfg.Run.Duration.Std())
	span.End()

	battery := sim.SensorNode.Battery()
	log.Info(runCtx, "run complete",
		logging.Int("events", fired),
		logging.Int("messages_received", sim.MessagesReceived()),
		logging.Any("energy_joules", sim.SensorMeter.Meter.TotalEnergy()),
		logging.Any("battery_charge_coulombs", battery.Charge()),
		logging.Any("wall_time", time.Since(started)))

	fmt.Printf("Total number of messages received: %d\n", sim.MessagesReceived())
	fmt.Printf("Sensor node energy drawn: %.6g J, battery charge remaining: %.6g C (depleted: %v)\n",
		sim.SensorMeter.Meter.TotalEnergy(), battery.Charge(), battery.Depleted())
}
