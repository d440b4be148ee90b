package device

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
)

// Microphone captures mono float32 samples from the default input
// device. It implements the capture pipeline's Source: Read blocks
// until a full block is available. When the miniaudio callback outruns
// the reader the oldest chunks are dropped; loss is acceptable for
// real-time capture.
type Microphone struct {
	device *malgo.Device
	chunks chan []float32

	leftover []float32

	closeOnce sync.Once
	done      chan struct{}
}

// NewMicrophone opens the default capture device at the given rate.
func (c *Context) NewMicrophone(sampleRate int) (*Microphone, error) {
	m := &Microphone{
		chunks: make(chan []float32, 16),
		done:   make(chan struct{}),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)

	onRecv := func(_, input []byte, frameCount uint32) {
		chunk := bytesToFloat32(input)
		select {
		case m.chunks <- chunk:
		default:
			// Reader is behind; drop rather than buffer unboundedly.
		}
	}

	device, err := malgo.InitDevice(c.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	m.device = device
	return m, nil
}

// Read fills block with the next samples, in capture order.
func (m *Microphone) Read(block []float32) error {
	n := 0
	for n < len(block) {
		if len(m.leftover) > 0 {
			c := copy(block[n:], m.leftover)
			n += c
			m.leftover = m.leftover[c:]
			continue
		}
		select {
		case chunk := <-m.chunks:
			m.leftover = chunk
		case <-m.done:
			return io.EOF
		}
	}
	return nil
}

// Close stops and releases the capture device.
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.device.Uninit()
	})
	return nil
}
