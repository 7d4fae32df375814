// Package detection provides face detection using OpenCV's DNN module.
package detection

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-facecam/internal/log"
	"gocv.io/x/gocv"
)

// Annotation is a detected face in pixel coordinates.
type Annotation struct {
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Backend runs a face model over a frame without modifying it.
type Backend interface {
	Find(frame gocv.Mat) ([]Annotation, error)
	Close() error
}

// Backend names accepted by Config.Backend.
const (
	BackendSSD   = "ssd"
	BackendYuNet = "yunet"
	BackendNone  = "none"
)

// Config holds detector configuration
type Config struct {
	Backend          string
	ProtoPath        string  // Network topology (SSD only)
	ModelPath        string  // Weights file
	ConfidenceThresh float64 // Strict lower bound on kept confidences
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns defaults for the ResNet-10 SSD face model.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendSSD,
		ProtoPath:        "models/deploy.prototxt",
		ModelPath:        "models/res10_300x300_ssd_iter_140000.caffemodel",
		ConfidenceThresh: 0.5,
		InputWidth:       300,
		InputHeight:      300,
	}
}

// Drawing style for annotations.
var (
	BoxColor      = color.RGBA{0, 255, 0, 0}
	BoxThickness  = 2
	LabelScale    = 0.5
	LabelOffsetY  = 10
	LabelFontFace = gocv.FontHersheySimplex
)

// FaceDetector finds faces and draws them onto the frame.
// A detector whose model failed to load stays disabled for the life of
// the process; Detect is then a no-op.
type FaceDetector struct {
	backend Backend
	mu      sync.Mutex
	logger  *slog.Logger
}

// New loads the configured backend. It never fails: load problems are
// logged once and leave the detector disabled.
func New(cfg Config) *FaceDetector {
	d := &FaceDetector{logger: log.Component("detection")}

	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case BackendSSD, "":
		backend, err = NewSSD(cfg)
	case BackendYuNet:
		backend, err = NewYuNet(cfg)
	case BackendNone:
		d.logger.Info("face detection disabled by configuration")
		return d
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		d.logger.Error("face model unavailable, detection disabled", "backend", cfg.Backend, "error", err)
		return d
	}

	d.logger.Info("face model loaded", "backend", cfg.Backend, "model", cfg.ModelPath)
	d.backend = backend
	return d
}

// NewWithBackend wraps an already constructed backend.
func NewWithBackend(b Backend) *FaceDetector {
	return &FaceDetector{backend: b, logger: log.Component("detection")}
}

// Enabled reports whether a model is loaded.
func (d *FaceDetector) Enabled() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backend != nil
}

// Detect finds faces in frame and draws each one in place. It is a no-op
// once the detector is closed.
func (d *FaceDetector) Detect(frame *gocv.Mat) []Annotation {
	if d == nil || frame == nil || frame.Empty() {
		return nil
	}

	d.mu.Lock()
	if d.backend == nil {
		d.mu.Unlock()
		return nil
	}
	anns, err := d.backend.Find(*frame)
	d.mu.Unlock()
	if err != nil {
		d.logger.Debug("detection failed", "error", err)
		return nil
	}

	Draw(frame, anns)
	return anns
}

// Close releases the model. Safe to call concurrently with Detect and
// more than once.
func (d *FaceDetector) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend == nil {
		return nil
	}
	err := d.backend.Close()
	d.backend = nil
	return err
}

// Draw renders each annotation as a box with its confidence above the
// top-left corner.
func Draw(frame *gocv.Mat, anns []Annotation) {
	for _, a := range anns {
		gocv.Rectangle(frame, a.Box, BoxColor, BoxThickness)
		label := fmt.Sprintf("%.2f", a.Confidence)
		pt := image.Pt(a.Box.Min.X, a.Box.Min.Y-LabelOffsetY)
		gocv.PutText(frame, label, pt, LabelFontFace, LabelScale, BoxColor, BoxThickness)
	}
}
