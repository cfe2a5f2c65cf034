// Package scenario defines the YAML-configurable surface of a simulation
// run: node hardware (mode/power tables, throughputs, battery), the channel
// bandwidth, and the sensing task parameters. The zero value is unusable;
// start from Default and override.
package scenario

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML either as a string
// accepted by time.ParseDuration ("5s", "100ms") or as a bare integer of
// nanoseconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("scenario: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("scenario: invalid duration node: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is a fully-described simulation scenario.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Channel ChannelConfig `yaml:"channel"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Sink    SinkConfig    `yaml:"sink"`
}

// RunConfig controls the run itself.
type RunConfig struct {
	// Duration is the simulated horizon.
	Duration Duration `yaml:"duration"`
	// Seed feeds the packet-size distribution; equal seeds give equal runs.
	Seed int64 `yaml:"seed"`
	// PowerSampleInterval is the power meter cadence.
	PowerSampleInterval Duration `yaml:"power_sample_interval"`
}

// ChannelConfig describes the shared radio channel.
type ChannelConfig struct {
	BandwidthBytesPerSec float64 `yaml:"bandwidth_bytes_per_sec"`
}

// NodeHardware describes one node's devices.
type NodeHardware struct {
	ProcessorModes map[string]float64 `yaml:"processor_modes"` // watts
	IopsPerSecond  float64            `yaml:"iops_per_second"`
	FlopsPerSecond float64            `yaml:"flops_per_second"`

	BatteryPotentialVolts float64            `yaml:"battery_potential_volts"`
	BatteryChargeCoulombs float64            `yaml:"battery_charge_coulombs"`
	CommunicationModes    map[string]float64 `yaml:"communication_modes"` // watts
}

// SensorConfig parameterises the sample-and-compress task and its node.
type SensorConfig struct {
	Hardware NodeHardware `yaml:"hardware"`

	SampleInterval        Duration `yaml:"sample_interval"`
	AveragePackageSize    float64  `yaml:"average_package_size"`    // bytes
	SdeviationPackageSize float64  `yaml:"sdeviation_package_size"` // bytes
	CompressionAlgorithm  string   `yaml:"compression_algorithm"`   // NONE | ZIP | RAR
	CompressionPercentage float64  `yaml:"compression_percentage"`  // [0, 100]
}

// SinkConfig parameterises the sink task and its node.
type SinkConfig struct {
	Hardware NodeHardware `yaml:"hardware"`

	// DrainInterval is the pause after each received message.
	DrainInterval Duration `yaml:"drain_interval"`
}

// Default returns the stock compress-and-send scenario: a small fictive
// microcontroller with a low-power radio, a 3 V / 7200 C battery pack, and a
// 5 MB/s channel.
func Default() Config {
	hardware := NodeHardware{
		ProcessorModes: map[string]float64{
			"IDLE": 1.5e-6,
			"BUSY": 1.2e-3,
		},
		IopsPerSecond:  4.0323e6,
		FlopsPerSecond: 16.129e6,

		BatteryPotentialVolts: 3.0,
		BatteryChargeCoulombs: 7200.0, // ~2 Ah
		CommunicationModes: map[string]float64{
			"IDLE": 0.6e-6,
			"TX":   102e-3,
			"RX":   49.5e-3,
		},
	}
	return Config{
		Run: RunConfig{
			Duration:            Duration(100 * time.Second),
			Seed:                1,
			PowerSampleInterval: Duration(time.Second),
		},
		Channel: ChannelConfig{
			BandwidthBytesPerSec: 5 * 1 << 20, // 5 MB/s
		},
		Sensor: SensorConfig{
			Hardware:              hardware,
			SampleInterval:        Duration(5 * time.Second),
			AveragePackageSize:    5 * 1 << 20, // ~5 MB samples, e.g. an image
			SdeviationPackageSize: 0,
			CompressionAlgorithm:  "NONE",
			CompressionPercentage: 0,
		},
		Sink: SinkConfig{
			Hardware:      hardware,
			DrainInterval: Duration(100 * time.Millisecond),
		},
	}
}

// Load reads a YAML scenario from r, layered over Default so partial files
// only override what they mention.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("scenario: decode failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("scenario: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate rejects configurations that cannot form a runnable model.
// Unknown compression algorithm names are deliberately NOT rejected here:
// they degrade to no compression with a diagnostic at run time, preserving
// simulation continuity.
func (c Config) Validate() error {
	if c.Run.Duration <= 0 {
		return fmt.Errorf("scenario: run duration must be positive")
	}
	if c.Channel.BandwidthBytesPerSec <= 0 {
		return fmt.Errorf("scenario: channel bandwidth must be positive")
	}
	if err := c.Sensor.Hardware.validate("sensor"); err != nil {
		return err
	}
	if err := c.Sink.Hardware.validate("sink"); err != nil {
		return err
	}
	if c.Sensor.AveragePackageSize < 0 || c.Sensor.SdeviationPackageSize < 0 {
		return fmt.Errorf("scenario: sensor package size parameters must be non-negative")
	}
	if p := c.Sensor.CompressionPercentage; p < 0 || p > 100 {
		return fmt.Errorf("scenario: compression percentage %v outside [0, 100]", p)
	}
	return nil
}

func (h NodeHardware) validate(which string) error {
	if len(h.ProcessorModes) == 0 {
		return fmt.Errorf("scenario: %s processor has no modes", which)
	}
	if h.IopsPerSecond <= 0 || h.FlopsPerSecond <= 0 {
		return fmt.Errorf("scenario: %s processor throughput must be positive", which)
	}
	if len(h.CommunicationModes) == 0 {
		return fmt.Errorf("scenario: %s communication device has no modes", which)
	}
	if h.BatteryPotentialVolts <= 0 || h.BatteryChargeCoulombs <= 0 {
		return fmt.Errorf("scenario: %s battery parameters must be positive", which)
	}
	return nil
}
