// Package web provides the browser control surface: start, stop, capture,
// save directory, detection toggle, and a live view of the camera.
package web

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/camera"
	"github.com/teslashibe/go-facecam/pkg/hub"
	"github.com/teslashibe/go-facecam/pkg/session"
)

//go:embed static/index.html
var static embed.FS

// Controls is the subset of the session controller the dashboard drives.
type Controls interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	CaptureSnapshot(ctx context.Context) (string, error)
	SetSaveDirectory(path string) error
	ToggleFaceDetection(enabled bool)
	State() session.State
}

// DefaultActionTimeout bounds Start, Stop and Capture requests.
const DefaultActionTimeout = 5 * time.Second

// statusInterval is how often the status feed refreshes while clients
// are connected.
const statusInterval = 500 * time.Millisecond

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	ctrl   Controls
	camera *camera.Manager
	stream *Stream

	statusHub *hub.Hub
	cameraHub *hub.Hub

	notice        atomic.Pointer[session.Notice]
	ActionTimeout time.Duration
}

// NewServer creates the dashboard. Frames reach it through Sink().
func NewServer(port string, ctrl Controls, cam *camera.Manager) *Server {
	s := &Server{
		port:          port,
		logger:        log.Component("web"),
		ctrl:          ctrl,
		camera:        cam,
		statusHub:     hub.New("status"),
		cameraHub:     hub.New("camera"),
		ActionTimeout: DefaultActionTimeout,
	}
	s.stream = NewStream(s.cameraHub, func() int { return cam.GetConfig().Quality })
	s.statusHub.OnRegister = func(c *hub.Client) {
		if msg, err := hub.Status(s.status()); err == nil {
			c.Send(msg)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "facecam",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Post("/capture", s.handleCapture)
	api.Put("/save-dir", s.handleSetSaveDir)
	api.Put("/detection", s.handleDetection)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleSetCamera)
	api.Get("/frame.jpg", s.handleFrame)
	api.Get("/snapshots", s.handleListSnapshots)
	api.Get("/snapshots/:name", s.handleGetSnapshot)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Sink returns the display sink feeding the live view.
func (s *Server) Sink() *Stream {
	return s.stream
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on the configured port until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs, the frame encoder and the HTTP server on ln until
// ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("web dashboard listening", "addr", ln.Addr().String())

	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.stream.Run(ctx)
	go s.statusLoop(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(2 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// statusLoop pushes the session state to status clients.
func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() > 0 {
				s.pushStatus()
			}
		}
	}
}

func (s *Server) pushStatus() {
	if err := s.statusHub.BroadcastStatus(s.status()); err != nil {
		s.logger.Warn("status encode failed", "error", err)
	}
}

// record stores the latest notice and pushes it to status clients.
func (s *Server) record(n session.Notice) {
	s.notice.Store(&n)
	s.pushStatus()
	switch n.Level {
	case session.LevelError:
		s.logger.Error(n.Message)
	case session.LevelWarning:
		s.logger.Warn(n.Message)
	default:
		s.logger.Info(n.Message)
	}
}
