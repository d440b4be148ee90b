package device

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Speaker plays mono float32 samples on the default output device. It
// implements the playback queue's Sink: Play returns once the block has
// been handed to the hardware in full, so the queue's one-at-a-time
// draining translates into gapless back-to-back playback.
type Speaker struct {
	device *malgo.Device

	mu      sync.Mutex
	cond    *sync.Cond
	pending []float32
	closed  bool
}

// NewSpeaker opens the default playback device at the given rate.
func (c *Context) NewSpeaker(sampleRate int) (*Speaker, error) {
	s := &Speaker{}
	s.cond = sync.NewCond(&s.mu)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)

	onSend := func(output, _ []byte, frameCount uint32) {
		s.mu.Lock()
		n := int(frameCount)
		if n > len(s.pending) {
			n = len(s.pending)
		}
		float32ToBytes(s.pending[:n], output)
		s.pending = s.pending[n:]
		if len(s.pending) == 0 {
			s.cond.Broadcast()
		}
		s.mu.Unlock()

		// Anything past the queued samples plays as silence.
		for i := 4 * n; i < len(output); i++ {
			output[i] = 0
		}
	}

	device, err := malgo.InitDevice(c.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onSend})
	if err != nil {
		return nil, fmt.Errorf("open playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start playback device: %w", err)
	}
	s.device = device
	return s, nil
}

// Play queues the block and waits until the device has consumed it.
func (s *Speaker) Play(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("speaker closed")
	}
	s.pending = append(s.pending, samples...)
	for len(s.pending) > 0 && !s.closed {
		s.cond.Wait()
	}
	return nil
}

// Close stops the device and unblocks any waiting Play.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.device.Uninit()
	return nil
}
