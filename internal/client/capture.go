// Package client implements the capture pipeline, the playback queue
// and the websocket session that connects them to a relay server.
package client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/audio"
)

// Source delivers fixed-size blocks of mono float32 samples. Read
// blocks until a full block is available and returns io.EOF when the
// stream ends.
type Source interface {
	Read(block []float32) error
	Close() error
}

// Transmitter is the network side of the capture pipeline. The Client
// implements it.
type Transmitter interface {
	SendVoice(samples []float32) error
	SendSpeaking(speaking bool, energy float64) error
}

// MeterFunc receives the local energy reading for every block, keyed by
// the local identity. It backs the self meter display.
type MeterFunc func(id string, energy float64)

// speakState is the explicit two-state machine behind speaking-change
// notifications, so a state can never be announced twice in a row.
type speakState int

const (
	stateSilent speakState = iota
	stateSpeaking
)

// CaptureOptions configures a capture session.
type CaptureOptions struct {
	ThresholdDB float64
	Padding     time.Duration
	BlockSize   int
	Meter       MeterFunc // optional
}

// Capture reads blocks from a source, classifies them and transmits
// speech. Blocks are processed strictly in order: classification and
// network emission of block N finish before block N+1 is read.
type Capture struct {
	src       Source
	tx        Transmitter
	det       *audio.Detector
	meter     MeterFunc
	localID   func() string
	blockSize int
	state     speakState
	sessionID string
}

// NewCapture builds a capture pipeline. localID reports the identity
// assigned by the server, or "" while unassigned; blocks captured
// before assignment are dropped.
func NewCapture(src Source, tx Transmitter, localID func() string, opts CaptureOptions) *Capture {
	if opts.BlockSize <= 0 {
		opts.BlockSize = audio.DefaultBlockSize
	}
	return &Capture{
		src:       src,
		tx:        tx,
		det:       audio.NewDetector(opts.ThresholdDB, opts.Padding),
		meter:     opts.Meter,
		localID:   localID,
		blockSize: opts.BlockSize,
		state:     stateSilent,
		sessionID: uuid.NewString(),
	}
}

// Run processes blocks until the context is cancelled or the source
// ends, then releases the source. The loop is serial by construction.
func (c *Capture) Run(ctx context.Context) error {
	l := log.With().Str("capture_session", c.sessionID).Logger()
	l.Info().Int("block_size", c.blockSize).Msg("capture started")
	defer func() {
		if err := c.src.Close(); err != nil {
			l.Warn().Err(err).Msg("closing audio source")
		}
		l.Info().Msg("capture stopped")
	}()

	block := make([]float32, c.blockSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.src.Read(block); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		c.processBlock(block, time.Now())
	}
}

// processBlock runs meter, classifier and network emission for one
// block.
func (c *Capture) processBlock(block []float32, now time.Time) {
	energy := audio.Energy(block)
	speaking := c.det.DetectAt(energy, now)

	id := c.localID()
	if id == "" {
		// No identity yet: the server has not acknowledged a join.
		// Report and drop, never queue.
		log.Error().Str("capture_session", c.sessionID).Msg("no local identity, dropping captured block")
		return
	}

	if c.meter != nil {
		c.meter(id, energy)
	}

	if changed := c.transition(speaking); changed {
		if err := c.tx.SendSpeaking(speaking, energy); err != nil {
			log.Warn().Err(err).Msg("speaking-state send failed")
		}
	}
	if speaking {
		if err := c.tx.SendVoice(block); err != nil {
			log.Warn().Err(err).Msg("voice send failed")
		}
	}
}

// transition advances the speaking state machine and reports whether
// the state changed.
func (c *Capture) transition(speaking bool) bool {
	next := stateSilent
	if speaking {
		next = stateSpeaking
	}
	if next == c.state {
		return false
	}
	c.state = next
	return true
}
