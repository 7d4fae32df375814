// Package display hands frames from the acquisition loop to whatever
// renders them. Sinks take ownership of every frame they receive.
package display

import (
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Sink receives frames. The sink owns the frame and must Close it.
type Sink interface {
	Publish(frame gocv.Mat)
}

// Slot is a single-slot mailbox holding the most recent frame.
// Publish never blocks; an unconsumed frame is closed when a newer one
// replaces it. Once the slot is closed every published frame is released
// immediately.
type Slot struct {
	latest atomic.Pointer[gocv.Mat]
	ready  chan struct{}
	closed atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{ready: make(chan struct{}, 1)}
}

// Publish stores frame as the latest, last write wins.
func (s *Slot) Publish(frame gocv.Mat) {
	s.published.Add(1)
	if s.closed.Load() {
		frame.Close()
		s.dropped.Add(1)
		return
	}

	f := frame
	if old := s.latest.Swap(&f); old != nil {
		old.Close()
		s.dropped.Add(1)
	}
	// Close may have run between the check and the swap.
	if s.closed.Load() {
		s.discard()
		return
	}

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Take removes and returns the latest frame. The caller owns it.
func (s *Slot) Take() (gocv.Mat, bool) {
	p := s.latest.Swap(nil)
	if p == nil {
		return gocv.Mat{}, false
	}
	return *p, true
}

// Ready signals that a frame may be waiting. A signal can be stale;
// Take reports whether a frame was actually there.
func (s *Slot) Ready() <-chan struct{} {
	return s.ready
}

// Published returns the number of frames ever published.
func (s *Slot) Published() uint64 {
	return s.published.Load()
}

// Dropped returns the number of frames released without being taken.
func (s *Slot) Dropped() uint64 {
	return s.dropped.Load()
}

// Close discards any pending frame and releases every later one.
func (s *Slot) Close() {
	s.closed.Store(true)
	s.discard()
}

func (s *Slot) discard() {
	if p := s.latest.Swap(nil); p != nil {
		p.Close()
		s.dropped.Add(1)
	}
}

// Fanout publishes each frame to several sinks. All but the last receive
// a clone.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(frame gocv.Mat) {
	if len(f) == 0 {
		frame.Close()
		return
	}
	for _, s := range f[:len(f)-1] {
		s.Publish(frame.Clone())
	}
	f[len(f)-1].Publish(frame)
}

// Discard is a Sink that drops every frame.
type Discard struct{}

// Publish implements Sink.
func (Discard) Publish(frame gocv.Mat) {
	frame.Close()
}
