package client

import (
	"log"
	"sync"
)

// AudioSink consumes one synthesized segment to completion. Implementations
// decode and play; the queue never inspects payload bytes.
type AudioSink interface {
	Play(segment []byte) error
}

// PlaybackQueue plays assistant audio segments strictly in enqueue order.
// A segment error counts as completion so one bad segment never wedges the
// rest of the conversation.
type PlaybackQueue struct {
	sink AudioSink

	mu      sync.Mutex
	pending [][]byte
	busy    bool
	closed  bool
	onIdle  func()
}

func NewPlaybackQueue(sink AudioSink, onIdle func()) *PlaybackQueue {
	return &PlaybackQueue{sink: sink, onIdle: onIdle}
}

// Enqueue appends a segment and starts the drain loop if it is not running.
func (q *PlaybackQueue) Enqueue(segment []byte) {
	if len(segment) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, segment)
	start := !q.busy
	if start {
		q.busy = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

func (q *PlaybackQueue) drain() {
	for {
		q.mu.Lock()
		if q.closed || len(q.pending) == 0 {
			q.busy = false
			idle := q.onIdle
			closed := q.closed
			q.mu.Unlock()
			if idle != nil && !closed {
				idle()
			}
			return
		}
		seg := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.sink.Play(seg); err != nil {
			log.Printf("[playback] segment error (continuing): %v", err)
		}
	}
}

// Busy reports whether audio is playing or queued. The capture loop pauses
// the VAD while this is true.
func (q *PlaybackQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy || len(q.pending) > 0
}

// Close drops queued segments. Idempotent.
func (q *PlaybackQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.mu.Unlock()
}
