package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facecam/pkg/camera"
	"github.com/teslashibe/go-facecam/pkg/session"
	"gocv.io/x/gocv"
)

type fakeControls struct {
	mu        sync.Mutex
	running   bool
	detect    bool
	ready     bool
	dir       string
	startErr  error
	stopErr   error
	snapErr   error
	snapPath  string
	stopCalls int
}

func (f *fakeControls) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeControls) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.running = false
	return f.stopErr
}

func (f *fakeControls) CaptureSnapshot(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return "", session.ErrNotRunning
	}
	if f.snapErr != nil {
		return "", f.snapErr
	}
	return f.snapPath, nil
}

func (f *fakeControls) SetSaveDirectory(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == "" {
		return session.ErrInvalidDirectory
	}
	f.dir = path
	return nil
}

func (f *fakeControls) ToggleFaceDetection(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detect = enabled
}

func (f *fakeControls) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return session.State{
		Running:       f.running,
		FaceDetection: f.detect,
		DetectorReady: f.ready,
		SaveDirectory: f.dir,
	}
}

func newTestServer(t *testing.T) (*Server, *fakeControls) {
	t.Helper()
	ctrl := &fakeControls{dir: t.TempDir(), ready: true}
	return NewServer("0", ctrl, camera.NewManager(camera.DefaultConfig())), ctrl
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*http.Response, ActionResponse) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)

	var out ActionResponse
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp, out
}

func TestIndexServesPage(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "/ws/camera")
}

func TestStartStop(t *testing.T) {
	s, ctrl := newTestServer(t)

	resp, out := doJSON(t, s, http.MethodPost, "/api/start", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, session.LevelInfo, out.Notice.Level)
	assert.True(t, out.State.Running)

	resp, out = doJSON(t, s, http.MethodPost, "/api/stop", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, out.State.Running)
	assert.Equal(t, 1, ctrl.stopCalls)
}

func TestStartDeviceUnavailable(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.startErr = fmt.Errorf("%w: no device", session.ErrDeviceUnavailable)

	resp, out := doJSON(t, s, http.MethodPost, "/api/start", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, session.LevelError, out.Notice.Level)
	assert.False(t, out.State.Running)
}

func TestStopTimeout(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.running = true
	ctrl.stopErr = fmt.Errorf("%w: deadline", session.ErrStopTimeout)

	resp, out := doJSON(t, s, http.MethodPost, "/api/stop", nil)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, session.LevelWarning, out.Notice.Level)
}

func TestCaptureNotRunning(t *testing.T) {
	s, _ := newTestServer(t)

	resp, out := doJSON(t, s, http.MethodPost, "/api/capture", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, session.LevelWarning, out.Notice.Level)
	assert.Empty(t, out.Path)
}

func TestCaptureReturnsPath(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.running = true
	ctrl.snapPath = "/tmp/capture_1700000000000.jpg"

	resp, out := doJSON(t, s, http.MethodPost, "/api/capture", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ctrl.snapPath, out.Path)
	assert.Contains(t, out.Notice.Message, ctrl.snapPath)
}

func TestCaptureReadFailed(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.running = true
	ctrl.snapErr = session.ErrReadFailed

	resp, out := doJSON(t, s, http.MethodPost, "/api/capture", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, session.LevelWarning, out.Notice.Level)
}

func TestSetSaveDirectory(t *testing.T) {
	s, ctrl := newTestServer(t)

	resp, out := doJSON(t, s, http.MethodPut, "/api/save-dir", SaveDirRequest{Path: "/data/photos"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/data/photos", out.State.SaveDirectory)
	assert.Equal(t, "/data/photos", ctrl.dir)

	resp, out = doJSON(t, s, http.MethodPut, "/api/save-dir", SaveDirRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, session.LevelWarning, out.Notice.Level)
	assert.Equal(t, "/data/photos", ctrl.dir)
}

func TestDetectionToggle(t *testing.T) {
	s, ctrl := newTestServer(t)

	_, out := doJSON(t, s, http.MethodPut, "/api/detection", DetectionRequest{Enabled: true})
	assert.True(t, out.State.FaceDetection)
	assert.Equal(t, session.LevelInfo, out.Notice.Level)

	ctrl.ready = false
	_, out = doJSON(t, s, http.MethodPut, "/api/detection", DetectionRequest{Enabled: true})
	assert.Equal(t, session.LevelWarning, out.Notice.Level)

	_, out = doJSON(t, s, http.MethodPut, "/api/detection", DetectionRequest{Enabled: false})
	assert.False(t, out.State.FaceDetection)
	assert.Equal(t, session.LevelInfo, out.Notice.Level)
}

func TestStatusIncludesLastNotice(t *testing.T) {
	s, _ := newTestServer(t)
	doJSON(t, s, http.MethodPost, "/api/capture", nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil), -1)
	require.NoError(t, err)

	var st StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.NotNil(t, st.Notice)
	assert.Equal(t, session.LevelWarning, st.Notice.Level)
}

func TestCameraConfig(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/camera", bytes.NewBufferString(`{"preset":"qvga"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cfg := s.camera.GetConfig()
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)

	req = httptest.NewRequest(http.MethodPut, "/api/camera", bytes.NewBufferString(`{"quality":0}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFrameBeforeFirstFrame(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/frame.jpg", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshotsListAndFetch(t *testing.T) {
	s, ctrl := newTestServer(t)
	name := "capture_1700000000000.jpg"
	require.NoError(t, os.WriteFile(filepath.Join(ctrl.dir, name), []byte("jpeg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ctrl.dir, "notes.txt"), []byte("x"), 0o644))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/snapshots", nil), -1)
	require.NoError(t, err)
	var list struct {
		Files []string `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, []string{name}, list.Files)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/api/snapshots/"+name, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/api/snapshots/notes.txt", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/ws/status", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestStatusAndCameraFeeds(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.running = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()
	defer func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(3 * time.Second):
			t.Error("server did not shut down")
		}
	}()

	base := "ws://" + ln.Addr().String()

	status, _, err := websocket.DefaultDialer.Dial(base+"/ws/status", nil)
	require.NoError(t, err)
	defer status.Close()

	require.NoError(t, status.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := status.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	var st StatusResponse
	require.NoError(t, json.Unmarshal(data, &st))
	assert.True(t, st.State.Running)

	cam, _, err := websocket.DefaultDialer.Dial(base+"/ws/camera", nil)
	require.NoError(t, err)
	defer cam.Close()

	require.Eventually(t, func() bool { return s.cameraHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 128, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	s.Sink().Publish(frame)

	require.NoError(t, cam.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err = cam.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
	assert.Equal(t, data, s.Sink().Latest())
}

func TestStreamReleasesFramesAfterShutdown(t *testing.T) {
	st := NewStream(nil, func() int { return 80 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}

	for i := 0; i < 3; i++ {
		st.Publish(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 8, 8, gocv.MatTypeCV8UC3))
	}

	_, ok := st.slot.Take()
	assert.False(t, ok, "frames published after shutdown should not be held")
	assert.Equal(t, uint64(3), st.slot.Dropped())
	assert.Zero(t, st.Encoded())
	assert.Nil(t, st.Latest())
}
