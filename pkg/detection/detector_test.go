package detection

import (
	"errors"
	"image"
	"sync"
	"testing"

	"gocv.io/x/gocv"
)

type stubBackend struct {
	anns       []Annotation
	err        error
	calls      int
	closed     bool
	afterClose bool
}

func (s *stubBackend) Find(gocv.Mat) ([]Annotation, error) {
	s.calls++
	if s.closed {
		s.afterClose = true
	}
	return s.anns, s.err
}

func (s *stubBackend) Close() error {
	s.closed = true
	return nil
}

func blackFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC3)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ConfidenceThresh != 0.5 {
		t.Errorf("ConfidenceThresh = %f, want 0.5", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth != 300 || cfg.InputHeight != 300 {
		t.Errorf("input = %dx%d, want 300x300", cfg.InputWidth, cfg.InputHeight)
	}
	if cfg.ProtoPath == "" || cfg.ModelPath == "" {
		t.Error("model paths should not be empty")
	}
}

func TestNew_MissingModelDisables(t *testing.T) {
	for _, backend := range []string{BackendSSD, BackendYuNet} {
		t.Run(backend, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = backend
			cfg.ProtoPath = "/nonexistent/deploy.prototxt"
			cfg.ModelPath = "/nonexistent/model.bin"

			d := New(cfg)
			if d.Enabled() {
				t.Fatal("detector should be disabled")
			}

			frame := blackFrame(64, 64)
			defer frame.Close()
			if anns := d.Detect(&frame); anns != nil {
				t.Errorf("disabled detector returned %v", anns)
			}
			if err := d.Close(); err != nil {
				t.Errorf("Close on disabled detector: %v", err)
			}
		})
	}
}

func TestNew_NoneBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendNone
	if New(cfg).Enabled() {
		t.Error("none backend should be disabled")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "haar"
	if New(cfg).Enabled() {
		t.Error("unknown backend should be disabled")
	}
}

func TestDetect_DrawsAnnotations(t *testing.T) {
	stub := &stubBackend{anns: []Annotation{
		{Confidence: 0.9, Box: image.Rect(20, 30, 80, 90)},
	}}
	d := NewWithBackend(stub)

	frame := blackFrame(100, 100)
	defer frame.Close()

	anns := d.Detect(&frame)
	if len(anns) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(anns))
	}

	// Top edge of the box is green (BGR order).
	px := frame.GetVecbAt(30, 50)
	if px[0] != 0 || px[1] != 255 || px[2] != 0 {
		t.Errorf("edge pixel = %v, want [0 255 0]", px)
	}
	// Interior is untouched.
	px = frame.GetVecbAt(60, 50)
	if px[0] != 0 || px[1] != 0 || px[2] != 0 {
		t.Errorf("interior pixel = %v, want black", px)
	}
}

func TestDetect_BackendErrorLeavesFrame(t *testing.T) {
	stub := &stubBackend{err: errors.New("forward failed")}
	d := NewWithBackend(stub)

	frame := blackFrame(32, 32)
	defer frame.Close()

	if anns := d.Detect(&frame); anns != nil {
		t.Errorf("expected nil annotations, got %v", anns)
	}
	for _, pt := range []image.Point{{0, 0}, {16, 16}, {31, 31}} {
		px := frame.GetVecbAt(pt.Y, pt.X)
		if px[0] != 0 || px[1] != 0 || px[2] != 0 {
			t.Errorf("pixel %v = %v, want black", pt, px)
		}
	}
}

func TestDetect_EmptyFrameSkipsBackend(t *testing.T) {
	stub := &stubBackend{}
	d := NewWithBackend(stub)

	empty := gocv.NewMat()
	defer empty.Close()

	d.Detect(&empty)
	if stub.calls != 0 {
		t.Errorf("backend called %d times for empty frame", stub.calls)
	}
}

func TestClose_ReleasesBackend(t *testing.T) {
	stub := &stubBackend{}
	d := NewWithBackend(stub)

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !stub.closed {
		t.Error("backend not closed")
	}
	if d.Enabled() {
		t.Error("detector should be disabled after Close")
	}
}

func TestClose_ConcurrentWithDetect(t *testing.T) {
	stub := &stubBackend{anns: []Annotation{{Confidence: 0.9, Box: image.Rect(2, 2, 10, 10)}}}
	d := NewWithBackend(stub)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame := blackFrame(16, 16)
			defer frame.Close()
			<-start
			for j := 0; j < 200; j++ {
				d.Enabled()
				d.Detect(&frame)
			}
		}()
	}

	close(start)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()

	if stub.afterClose {
		t.Error("backend used after Close")
	}
	if !stub.closed {
		t.Error("backend not closed")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	frame := blackFrame(16, 16)
	defer frame.Close()
	if anns := d.Detect(&frame); anns != nil {
		t.Errorf("Detect after Close = %v, want nil", anns)
	}
}
