package web

import (
	"context"
	"sync/atomic"

	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/display"
	"github.com/teslashibe/go-facecam/pkg/hub"
	"gocv.io/x/gocv"
)

// Stream is the display sink behind the browser live view. Frames land in
// a single-slot mailbox and are JPEG-encoded by one goroutine, so a slow
// encoder drops frames instead of stalling the acquisition loop.
type Stream struct {
	slot    *display.Slot
	hub     *hub.Hub
	quality func() int

	latest  atomic.Pointer[[]byte]
	encoded atomic.Uint64
}

// NewStream creates a stream that broadcasts to h. quality is read for
// every frame.
func NewStream(h *hub.Hub, quality func() int) *Stream {
	return &Stream{
		slot:    display.NewSlot(),
		hub:     h,
		quality: quality,
	}
}

// Publish implements display.Sink.
func (s *Stream) Publish(frame gocv.Mat) {
	s.slot.Publish(frame)
}

// Latest returns the most recent JPEG, or nil before the first frame.
func (s *Stream) Latest() []byte {
	if p := s.latest.Load(); p != nil {
		return *p
	}
	return nil
}

// Encoded returns how many frames have been encoded.
func (s *Stream) Encoded() uint64 {
	return s.encoded.Load()
}

// Run encodes frames until ctx ends. Frames published after that are released.
func (s *Stream) Run(ctx context.Context) {
	defer s.slot.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.slot.Ready():
			frame, ok := s.slot.Take()
			if !ok {
				continue
			}
			s.encode(frame)
		}
	}
}

func (s *Stream) encode(frame gocv.Mat) {
	defer frame.Close()
	if frame.Empty() {
		return
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), s.quality()})
	if err != nil {
		log.Warn("frame encode failed", "error", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	s.latest.Store(&data)
	s.encoded.Add(1)
	if s.hub != nil && s.hub.ClientCount() > 0 {
		s.hub.BroadcastFrame(data)
	}
}
