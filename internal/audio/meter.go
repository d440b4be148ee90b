// Package audio implements the capture-side signal processing: an RMS
// energy meter and a hysteresis voice activity detector.
package audio

import "math"

// EnergyFloor is returned for blocks whose RMS is zero. log10(0) is
// undefined, so silent blocks report this sentinel instead of NaN/-Inf.
// Any measurable signal sits well above it.
const EnergyFloor = -120.0

// Energy computes the root-mean-square amplitude of the block and
// converts it to a decibel scale: 20*log10(rms). Amplitudes are
// conventionally in [-1, 1]. The result is clamped to EnergyFloor.
func Energy(samples []float32) float64 {
	if len(samples) == 0 {
		return EnergyFloor
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms <= 0 {
		return EnergyFloor
	}
	db := 20 * math.Log10(rms)
	if db < EnergyFloor {
		return EnergyFloor
	}
	return db
}
