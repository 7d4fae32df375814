package session

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// loop reads, annotates and publishes frames until ctx is cancelled,
// then releases dev. It sleeps delay after every iteration, so the
// effective rate drops when reads are slow.
func (c *Controller) loop(ctx context.Context, h *handle, delay time.Duration, done chan struct{}) {
	defer close(done)
	defer c.activeLoops.Add(-1)
	defer c.release(h)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			return
		}

		c.step(ctx, h)

		timer.Reset(delay)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// step runs one iteration. A failed read is counted and skipped.
func (c *Controller) step(ctx context.Context, h *handle) {
	frame := gocv.NewMat()
	if err := c.read(h, &frame); err != nil {
		frame.Close()
		if errors.Is(err, ErrReadFailed) {
			c.readFailures.Add(1)
		}
		return
	}

	if c.detect.Load() && c.detector != nil && c.detector.Enabled() {
		if anns := c.detector.Detect(&frame); len(anns) > 0 {
			c.facesDetected.Add(uint64(len(anns)))
		}
	}

	// Nothing is published once Stop has been requested.
	if ctx.Err() != nil {
		frame.Close()
		return
	}
	c.sink.Publish(frame)
	c.framesPublished.Add(1)
}

func (c *Controller) release(h *handle) {
	c.devMu.Lock()
	defer c.devMu.Unlock()
	h.released = true
	if err := h.dev.Close(); err != nil {
		c.logger.Warn("camera release failed", "error", err)
	}
}
