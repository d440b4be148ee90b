// Package device provides microphone and speaker adapters backed by
// miniaudio (via malgo). The capture pipeline and playback queue only
// see the Source/Sink interfaces, so everything above this package is
// testable without audio hardware.
package device

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// Context owns the miniaudio context shared by all devices.
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes miniaudio.
func NewContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Close tears the miniaudio context down. Devices must be closed first.
func (c *Context) Close() error {
	if err := c.ctx.Uninit(); err != nil {
		return err
	}
	c.ctx.Free()
	return nil
}

func bytesToFloat32(b []byte) []float32 {
	samples := make([]float32, len(b)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return samples
}

func float32ToBytes(samples []float32, out []byte) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(s))
	}
}
