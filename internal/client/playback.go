package client

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Sink plays one audio block to completion before returning. The
// malgo speaker adapter in internal/device implements it.
type Sink interface {
	Play(samples []float32) error
	Close() error
}

// PlaybackQueue plays received blocks one at a time, in strict enqueue
// order. Concurrent speakers interleave in arrival order; blocks are
// never mixed. A single consumer goroutine waits for the queue to be
// non-empty, so there is no self-chaining callback and at most one
// block is ever playing.
type PlaybackQueue struct {
	sink Sink

	mu      sync.Mutex
	cond    *sync.Cond
	pending [][]float32
	closed  bool

	wg sync.WaitGroup
}

// NewPlaybackQueue wraps a sink. Call Start before enqueueing.
func NewPlaybackQueue(sink Sink) *PlaybackQueue {
	q := &PlaybackQueue{sink: sink}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the consumer loop.
func (q *PlaybackQueue) Start() {
	q.wg.Add(1)
	go q.drain()
}

// Enqueue appends one block. Blocks arriving after Close are discarded.
func (q *PlaybackQueue) Enqueue(samples []float32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, samples)
	q.cond.Signal()
}

// Clear drops all pending blocks without stopping the queue. The block
// currently playing finishes.
func (q *PlaybackQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
}

// Len reports the number of blocks waiting to play.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close drains the remaining blocks, stops the consumer and closes the
// sink.
func (q *PlaybackQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
	return q.sink.Close()
}

func (q *PlaybackQueue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		head := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.sink.Play(head); err != nil {
			log.Warn().Err(err).Msg("playback failed, block skipped")
		}
	}
}
