// facecamctl - command line client for a running facecam dashboard
//
// Usage:
//
//	facecamctl [-addr http://localhost:8080] start|stop|capture|status
//	facecamctl save-dir <path>
//	facecamctl faces on|off
//	facecamctl frame <file.jpg>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-facecam/internal/httpc"
)

type notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type state struct {
	Running       bool   `json:"running"`
	FaceDetection bool   `json:"face_detection"`
	DetectorReady bool   `json:"detector_ready"`
	SaveDirectory string `json:"save_directory"`
	SessionID     string `json:"session_id"`
	Stats         struct {
		FramesPublished uint64 `json:"frames_published"`
		ReadFailures    uint64 `json:"read_failures"`
		FacesDetected   uint64 `json:"faces_detected"`
		Snapshots       uint64 `json:"snapshots"`
	} `json:"stats"`
}

type actionResponse struct {
	Notice notice `json:"notice"`
	Path   string `json:"path"`
	State  state  `json:"state"`
}

type statusResponse struct {
	State  state   `json:"state"`
	Notice *notice `json:"notice"`
}

func main() {
	addr := flag.String("addr", envOr("FACECAM_ADDR", "http://localhost:8080"), "Dashboard base URL")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: facecamctl [-addr URL] start|stop|capture|status|save-dir <path>|faces on|off|frame <file>")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code := run(ctx, httpc.New(*addr), flag.Args(), os.Stdout)
	cancel()
	os.Exit(code)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, c *httpc.Client, args []string, out io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(out, "missing command")
		return 2
	}

	var (
		resp actionResponse
		err  error
	)
	switch args[0] {
	case "start":
		err = c.DoJSON(ctx, http.MethodPost, "/api/start", nil, &resp)
	case "stop":
		err = c.DoJSON(ctx, http.MethodPost, "/api/stop", nil, &resp)
	case "capture":
		err = c.DoJSON(ctx, http.MethodPost, "/api/capture", nil, &resp)
	case "save-dir":
		if len(args) < 2 {
			fmt.Fprintln(out, "save-dir needs a path")
			return 2
		}
		err = c.DoJSON(ctx, http.MethodPut, "/api/save-dir", map[string]string{"path": args[1]}, &resp)
	case "faces":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			fmt.Fprintln(out, "faces needs on or off")
			return 2
		}
		err = c.DoJSON(ctx, http.MethodPut, "/api/detection", map[string]bool{"enabled": args[1] == "on"}, &resp)
	case "status":
		return status(ctx, c, out)
	case "frame":
		if len(args) < 2 {
			fmt.Fprintln(out, "frame needs an output file")
			return 2
		}
		return frame(ctx, c, args[1], out)
	default:
		fmt.Fprintf(out, "unknown command %q\n", args[0])
		return 2
	}

	if resp.Notice.Message != "" {
		fmt.Fprintf(out, "[%s] %s\n", resp.Notice.Level, resp.Notice.Message)
	}
	var se *httpc.StatusError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &se):
		return 1
	default:
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
}

func status(ctx context.Context, c *httpc.Client, out io.Writer) int {
	var resp statusResponse
	if err := c.DoJSON(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	st := resp.State
	fmt.Fprintf(out, "running:        %v\n", st.Running)
	fmt.Fprintf(out, "face detection: %v (model loaded: %v)\n", st.FaceDetection, st.DetectorReady)
	fmt.Fprintf(out, "save directory: %s\n", st.SaveDirectory)
	if st.SessionID != "" {
		fmt.Fprintf(out, "session:        %s\n", st.SessionID)
	}
	fmt.Fprintf(out, "frames:         %d (read failures %d)\n", st.Stats.FramesPublished, st.Stats.ReadFailures)
	fmt.Fprintf(out, "faces:          %d\n", st.Stats.FacesDetected)
	fmt.Fprintf(out, "snapshots:      %d\n", st.Stats.Snapshots)
	if resp.Notice != nil {
		fmt.Fprintf(out, "last notice:    [%s] %s\n", resp.Notice.Level, resp.Notice.Message)
	}
	return 0
}

func frame(ctx context.Context, c *httpc.Client, path string, out io.Writer) int {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	n, err := c.Download(ctx, "/api/frame.jpg", f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "wrote %s (%d bytes)\n", path, n)
	return 0
}
