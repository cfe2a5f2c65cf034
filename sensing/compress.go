// Package sensing assembles the stock compress-and-send scenario: a sensor
// node that periodically samples data, optionally compresses it, and radios
// it to a sink node over a shared channel, all under mode-based power
// accounting. It exists both as a usable example and as the regression
// surface for the behaviour engine.
package sensing

import (
	"context"
	"math"

	"github.com/signalsfoundry/sensornet-simulator/internal/logging"
)

// Context keys used by the sensor task's segments.
const (
	SensorDataKey   = "SENSOR_DATA"
	CompressDataKey = "COMPRESS_DATA"
)

// Supported compression algorithm names. Anything else degrades to
// AlgorithmNone with a diagnostic; an unrecognised name must never halt the
// simulation.
const (
	AlgorithmNone = "NONE"
	AlgorithmZip  = "ZIP"
	AlgorithmRar  = "RAR"
)

// compressionCost returns the size factor applied to the raw data and the
// per-byte floating point operation factor for an algorithm at a target
// percentage. Unknown algorithms behave exactly like AlgorithmNone and log a
// warning.
func compressionCost(algorithm string, percentage float64, log logging.Logger) (sizeFactor, flopsFactor float64) {
	switch algorithm {
	case AlgorithmZip:
		return zipSize(percentage), zipFlOps(percentage)
	case AlgorithmRar:
		return rarSize(percentage), rarFlOps(percentage)
	case AlgorithmNone:
		return 1.0, 0
	default:
		if log != nil {
			log.Warn(context.Background(), "unknown compression algorithm; no compression applied",
				logging.String("algorithm", algorithm))
		}
		return 1.0, 0
	}
}

// zipSize models the output-to-input size ratio of the fictive "ZIP"
// algorithm at a target compression percentage.
func zipSize(percentage float64) float64 {
	return 0.978 + 1.01*math.Cos((math.Pi*(percentage+120))/240)
}

// zipFlOps models the average floating point operations per input byte spent
// by "ZIP" at a target compression percentage.
func zipFlOps(percentage float64) float64 {
	const scale = 1.0e3
	bumpyPart := math.Cos(math.Pow(percentage/40.0, 1.6))
	return scale * (1/math.Pow(101-percentage, 0.45) + bumpyPart)
}

// rarSize models the output-to-input size ratio of the fictive "RAR"
// algorithm at a target compression percentage.
func rarSize(percentage float64) float64 {
	return 3/((percentage+61.0)/32.0) - .596
}

// rarFlOps models the average floating point operations per input byte spent
// by "RAR" at a target compression percentage.
func rarFlOps(percentage float64) float64 {
	const scale = 1.0e3
	bumpyPart := math.Sin(math.Pow(percentage/45.0, 1.3))
	return scale * (1/math.Pow(102-percentage, 0.39) + bumpyPart)
}
