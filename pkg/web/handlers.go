package web

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-facecam/pkg/camera"
	"github.com/teslashibe/go-facecam/pkg/hub"
	"github.com/teslashibe/go-facecam/pkg/session"
	"github.com/teslashibe/go-facecam/pkg/snapshot"
)

// StatusResponse is returned by GET /api/status and pushed on /ws/status.
type StatusResponse struct {
	State  session.State   `json:"state"`
	Notice *session.Notice `json:"notice,omitempty"`
	Viewer int             `json:"viewers"`
}

// ActionResponse is returned by every control endpoint.
type ActionResponse struct {
	Notice session.Notice `json:"notice"`
	Path   string         `json:"path,omitempty"`
	State  session.State  `json:"state"`
}

// SaveDirRequest is the body of PUT /api/save-dir.
type SaveDirRequest struct {
	Path string `json:"path"`
}

// DetectionRequest is the body of PUT /api/detection.
type DetectionRequest struct {
	Enabled bool `json:"enabled"`
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, session.ErrDeviceUnavailable), errors.Is(err, session.ErrReadFailed):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, session.ErrNotRunning), errors.Is(err, session.ErrStillStopping):
		return fiber.StatusConflict
	case errors.Is(err, session.ErrInvalidDirectory):
		return fiber.StatusBadRequest
	case errors.Is(err, session.ErrStopTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) respond(c *fiber.Ctx, err error, success, path string) error {
	n := session.NoticeFor(err, success)
	s.record(n)
	return c.Status(statusFor(err)).JSON(ActionResponse{
		Notice: n,
		Path:   path,
		State:  s.ctrl.State(),
	})
}

func (s *Server) actionContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), s.ActionTimeout)
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		State:  s.ctrl.State(),
		Notice: s.notice.Load(),
		Viewer: s.cameraHub.ClientCount(),
	}
}

// handleIndex serves the control page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		return err
	}
	c.Type("html")
	return c.Send(page)
}

// handleStatus returns the session state and the last notice
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	ctx, cancel := s.actionContext(c)
	defer cancel()
	return s.respond(c, s.ctrl.Start(ctx), "Camera started.", "")
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	ctx, cancel := s.actionContext(c)
	defer cancel()
	return s.respond(c, s.ctrl.Stop(ctx), "Camera stopped.", "")
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	ctx, cancel := s.actionContext(c)
	defer cancel()
	path, err := s.ctrl.CaptureSnapshot(ctx)
	return s.respond(c, err, "Photo saved: "+path, path)
}

func (s *Server) handleSetSaveDir(c *fiber.Ctx) error {
	var req SaveDirRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respond(c, fmt.Errorf("%w: %v", session.ErrInvalidDirectory, err), "", "")
	}
	err := s.ctrl.SetSaveDirectory(req.Path)
	return s.respond(c, err, "Save directory set to: "+s.ctrl.State().SaveDirectory, "")
}

func (s *Server) handleDetection(c *fiber.Ctx) error {
	var req DetectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.ctrl.ToggleFaceDetection(req.Enabled)

	msg := "Face detection off."
	if req.Enabled {
		msg = "Face detection on."
	}
	resp := ActionResponse{Notice: session.NoticeFor(nil, msg), State: s.ctrl.State()}
	if req.Enabled && !resp.State.DetectorReady {
		resp.Notice.Level = session.LevelWarning
		resp.Notice.Message = "Face model not loaded; detection has no effect."
	}
	s.record(resp.Notice)
	return c.JSON(resp)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.camera.View())
}

// handleSetCamera updates camera settings. They apply on the next start.
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	var u camera.Update
	if err := c.BodyParser(&u); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if _, err := s.camera.Apply(u); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.camera.View())
}

// handleFrame returns the latest encoded frame
func (s *Server) handleFrame(c *fiber.Ctx) error {
	data := s.stream.Latest()
	if data == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no frame yet"})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

func (s *Server) handleListSnapshots(c *fiber.Ctx) error {
	dir := s.ctrl.State().SaveDirectory
	names, err := snapshot.List(dir)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{"directory": dir, "files": names})
}

func (s *Server) handleGetSnapshot(c *fiber.Ctx) error {
	name := c.Params("name")
	if !snapshot.Pattern.MatchString(name) {
		return fiber.ErrNotFound
	}
	return c.SendFile(filepath.Join(s.ctrl.State().SaveDirectory, name))
}

// handleCameraWS streams JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}

// handleStatusWS streams status updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c).Run()
}
