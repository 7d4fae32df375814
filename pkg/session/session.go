// Package session owns the camera lifecycle: it opens the device, runs the
// acquisition loop that feeds the display, and takes snapshots.
//
// Lifecycle operations are serialized by a controller mutex. Device reads
// from the loop and from CaptureSnapshot are serialized by a second mutex
// so the two never interleave on one handle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/camera"
	"github.com/teslashibe/go-facecam/pkg/detection"
	"github.com/teslashibe/go-facecam/pkg/snapshot"
	"gocv.io/x/gocv"
)

// DefaultSaveDir is used when Options.SaveDir is empty.
const DefaultSaveDir = "capture_photo"

// Sink receives published frames and takes ownership of them.
type Sink interface {
	Publish(frame gocv.Mat)
}

// Detector annotates a frame in place.
type Detector interface {
	Enabled() bool
	Detect(frame *gocv.Mat) []detection.Annotation
}

// Saver writes a snapshot and returns its path.
type Saver interface {
	Save(dir string, frame gocv.Mat, quality int) (string, error)
}

// Options configures a Controller.
type Options struct {
	Camera   *camera.Manager // Defaults to camera.DefaultConfig()
	Open     camera.Opener   // Defaults to camera.Open
	Detector Detector        // Optional
	Sink     Sink            // Required
	Saver    Saver           // Defaults to snapshot.NewWriter()
	SaveDir  string
	Logger   *slog.Logger

	// FaceDetection is the initial state of the detection toggle.
	FaceDetection bool
}

// Stats counts loop activity across sessions.
type Stats struct {
	FramesPublished uint64 `json:"frames_published"`
	ReadFailures    uint64 `json:"read_failures"`
	FacesDetected   uint64 `json:"faces_detected"`
	Snapshots       uint64 `json:"snapshots"`
	ActiveLoops     int32  `json:"active_loops"`
}

// State is a point-in-time copy of the session.
type State struct {
	Running       bool          `json:"running"`
	FaceDetection bool          `json:"face_detection"`
	DetectorReady bool          `json:"detector_ready"`
	SaveDirectory string        `json:"save_directory"`
	SessionID     string        `json:"session_id,omitempty"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	Camera        camera.Config `json:"camera"`
	Stats         Stats         `json:"stats"`
}

// Controller implements start, stop, snapshot and the two settings.
type Controller struct {
	camera   *camera.Manager
	open     camera.Opener
	detector Detector
	sink     Sink
	saver    Saver
	logger   *slog.Logger

	mu        sync.Mutex // Serializes lifecycle operations
	dev       *handle
	devCfg    camera.Config
	cancel    context.CancelFunc
	done      chan struct{}
	sessionID string
	startedAt time.Time

	devMu sync.Mutex // Serializes reads and release of every handle

	running atomic.Bool
	detect  atomic.Bool

	dirMu   sync.RWMutex
	saveDir string

	framesPublished atomic.Uint64
	readFailures    atomic.Uint64
	facesDetected   atomic.Uint64
	snapshots       atomic.Uint64
	activeLoops     atomic.Int32
}

// New creates a stopped controller.
func New(opts Options) (*Controller, error) {
	if opts.Sink == nil {
		return nil, fmt.Errorf("session: sink is required")
	}
	if opts.Camera == nil {
		opts.Camera = camera.NewManager(camera.DefaultConfig())
	}
	if opts.Open == nil {
		opts.Open = camera.Open
	}
	if opts.Saver == nil {
		opts.Saver = snapshot.NewWriter()
	}
	if opts.SaveDir == "" {
		opts.SaveDir = DefaultSaveDir
	}
	if opts.Logger == nil {
		opts.Logger = log.Component("session")
	}

	c := &Controller{
		camera:   opts.Camera,
		open:     opts.Open,
		detector: opts.Detector,
		sink:     opts.Sink,
		saver:    opts.Saver,
		logger:   opts.Logger,
		saveDir:  filepath.Clean(opts.SaveDir),
	}
	c.detect.Store(opts.FaceDetection)
	return c, nil
}

// Start opens the camera and launches the acquisition loop.
// It is a no-op while a session is running.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		c.logger.Info("camera already running", "session", c.sessionID)
		return nil
	}
	if c.done != nil {
		select {
		case <-c.done:
		default:
			return ErrStillStopping
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := c.camera.GetConfig()
	dev, err := c.open(cfg)
	if err != nil {
		c.logger.Error("failed to open camera", "index", cfg.DeviceIndex, "error", err)
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	h := &handle{dev: dev, ctx: loopCtx}
	c.dev = h
	c.devCfg = cfg
	c.cancel = cancel
	c.done = make(chan struct{})
	c.sessionID = uuid.NewString()
	c.startedAt = time.Now()
	c.running.Store(true)

	c.activeLoops.Add(1)
	go c.loop(loopCtx, h, cfg.FrameDelay(), c.done)

	c.logger.Info("camera started", "session", c.sessionID, "config", cfg.String())
	return nil
}

// Stop ends the session and waits for the loop to release the device.
// It is a no-op when not running. If ctx ends first ErrStopTimeout is
// returned; the session is still considered stopped.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return nil
	}
	c.running.Store(false)
	c.cancel()
	c.dev = nil
	done := c.done

	select {
	case <-done:
		c.logger.Info("camera stopped", "session", c.sessionID)
		return nil
	case <-ctx.Done():
		c.logger.Warn("capture loop did not exit in time", "session", c.sessionID)
		return fmt.Errorf("%w: %v", ErrStopTimeout, ctx.Err())
	}
}

// CaptureSnapshot reads a fresh frame and writes it to the save
// directory. It returns the absolute path of the file. The read does not
// hold the lifecycle lock, so a stalled device never blocks Stop; a read
// still waiting when the session stops returns ErrNotRunning.
func (c *Controller) CaptureSnapshot(ctx context.Context) (string, error) {
	c.mu.Lock()
	h, cfg, id := c.dev, c.devCfg, c.sessionID
	running := c.running.Load()
	c.mu.Unlock()

	if !running || h == nil {
		return "", ErrNotRunning
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if err := c.read(h, &frame); err != nil {
		if errors.Is(err, ErrReadFailed) {
			c.logger.Warn("snapshot read failed", "session", id)
		}
		return "", err
	}

	dir := c.SaveDirectory()
	path, err := c.saver.Save(dir, frame, cfg.Quality)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	c.snapshots.Add(1)
	c.logger.Info("snapshot saved", "path", path)
	return path, nil
}

// SetSaveDirectory changes where snapshots go. The directory is created
// on the next snapshot.
func (c *Controller) SetSaveDirectory(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrInvalidDirectory
	}

	c.dirMu.Lock()
	c.saveDir = filepath.Clean(path)
	dir := c.saveDir
	c.dirMu.Unlock()

	c.logger.Info("save directory updated", "dir", dir)
	return nil
}

// SaveDirectory returns the current save directory.
func (c *Controller) SaveDirectory() string {
	c.dirMu.RLock()
	defer c.dirMu.RUnlock()
	return c.saveDir
}

// ToggleFaceDetection sets the detection flag. The loop picks the new
// value up on its next frame.
func (c *Controller) ToggleFaceDetection(enabled bool) {
	c.detect.Store(enabled)
	c.logger.Info("face detection toggled", "enabled", enabled)
}

// FaceDetection reports the detection flag.
func (c *Controller) FaceDetection() bool {
	return c.detect.Load()
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// State returns a snapshot of the controller state. It does not wait on
// lifecycle operations in progress.
func (c *Controller) State() State {
	s := State{
		Running:       c.running.Load(),
		FaceDetection: c.detect.Load(),
		DetectorReady: c.detector != nil && c.detector.Enabled(),
		SaveDirectory: c.SaveDirectory(),
		Camera:        c.camera.GetConfig(),
		Stats: Stats{
			FramesPublished: c.framesPublished.Load(),
			ReadFailures:    c.readFailures.Load(),
			FacesDetected:   c.facesDetected.Load(),
			Snapshots:       c.snapshots.Load(),
			ActiveLoops:     c.activeLoops.Load(),
		},
	}

	if c.mu.TryLock() {
		if s.Running {
			s.SessionID = c.sessionID
			started := c.startedAt
			s.StartedAt = &started
		}
		c.mu.Unlock()
	}
	return s
}

// Close stops the session. The detector is released if it supports it.
func (c *Controller) Close(ctx context.Context) error {
	err := c.Stop(ctx)
	if closer, ok := c.detector.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// handle is one session's open device. released and ctx are checked
// under devMu so no read reaches a stopped or closed device.
type handle struct {
	dev      camera.Device
	ctx      context.Context
	released bool
}

// read performs one device read under the handle mutex.
func (c *Controller) read(h *handle, dst *gocv.Mat) error {
	c.devMu.Lock()
	defer c.devMu.Unlock()
	if h.released || h.ctx.Err() != nil {
		return ErrNotRunning
	}
	if !h.dev.Read(dst) {
		return ErrReadFailed
	}
	return nil
}
