package audio

import "time"

// Defaults for the detector and the capture pipeline that feeds it.
const (
	DefaultThresholdDB = -45.0
	DefaultPadding     = 300 * time.Millisecond
	DefaultBlockSize   = 1024
	DefaultSampleRate  = 44100
)

// Detector classifies a stream of energy readings as speaking or not.
// A reading above the threshold marks the stream as speech; once the
// signal drops, the speaking classification holds for the padding
// window so the tail of an utterance is not clipped. Given the same
// sequence of (time, energy) pairs the output is deterministic.
//
// Detector is not safe for concurrent use; the capture pipeline calls
// it serially, one block at a time.
type Detector struct {
	threshold float64
	padding   time.Duration

	now           func() time.Time
	lastVoiceTime time.Time
}

// NewDetector creates a detector with the given energy threshold in dB
// and hold-over padding.
func NewDetector(thresholdDB float64, padding time.Duration) *Detector {
	return &Detector{
		threshold: thresholdDB,
		padding:   padding,
		now:       time.Now,
	}
}

// Detect classifies one energy reading taken now.
func (d *Detector) Detect(energy float64) bool {
	return d.DetectAt(energy, d.now())
}

// DetectAt classifies one energy reading taken at the given time.
func (d *Detector) DetectAt(energy float64, now time.Time) bool {
	if energy > d.threshold {
		d.lastVoiceTime = now
		return true
	}
	if !d.lastVoiceTime.IsZero() && now.Sub(d.lastVoiceTime) < d.padding {
		return true
	}
	return false
}

// Reset clears the hold-over state, as when a capture session restarts.
func (d *Detector) Reset() {
	d.lastVoiceTime = time.Time{}
}
