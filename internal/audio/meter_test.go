package audio

import (
	"math"
	"testing"
)

func uniformBlock(amplitude float32, n int) []float32 {
	block := make([]float32, n)
	for i := range block {
		block[i] = amplitude
	}
	return block
}

func TestEnergyUniformAmplitude(t *testing.T) {
	// A block of constant amplitude a has rms == a, so the meter must
	// report 20*log10(a).
	tests := []struct {
		name      string
		amplitude float32
		want      float64
	}{
		{name: "full scale", amplitude: 1.0, want: 0},
		{name: "half scale", amplitude: 0.5, want: 20 * math.Log10(0.5)},
		{name: "tenth scale", amplitude: 0.1, want: -20},
		{name: "quiet", amplitude: 0.001, want: -60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Energy(uniformBlock(tt.amplitude, 1024))
			if math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("Expected %.4f dB, got %.4f dB", tt.want, got)
			}
		})
	}
}

func TestEnergyNegativeAmplitude(t *testing.T) {
	// Sign does not matter to RMS.
	got := Energy(uniformBlock(-0.5, 256))
	want := 20 * math.Log10(0.5)
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("Expected %.4f dB, got %.4f dB", want, got)
	}
}

func TestEnergySilentBlock(t *testing.T) {
	got := Energy(make([]float32, 1024))
	if got != EnergyFloor {
		t.Errorf("Expected floor %v for all-zero block, got %v", EnergyFloor, got)
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("Silent block produced non-finite energy: %v", got)
	}
}

func TestEnergyEmptyBlock(t *testing.T) {
	if got := Energy(nil); got != EnergyFloor {
		t.Errorf("Expected floor %v for empty block, got %v", EnergyFloor, got)
	}
}

func TestEnergyClampedToFloor(t *testing.T) {
	// Amplitudes far below the floor still report the floor, never less.
	got := Energy(uniformBlock(1e-9, 128))
	if got != EnergyFloor {
		t.Errorf("Expected clamp to %v, got %v", EnergyFloor, got)
	}
}
