// facecam - camera preview with optional face detection
//
// Opens a capture device, annotates faces with a DNN detector, and shows
// the feed in a browser dashboard, a native window, or both.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/teslashibe/go-facecam/internal/config"
	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/internal/opencv"
	"github.com/teslashibe/go-facecam/pkg/camera"
	"github.com/teslashibe/go-facecam/pkg/detection"
	"github.com/teslashibe/go-facecam/pkg/display"
	"github.com/teslashibe/go-facecam/pkg/session"
	"github.com/teslashibe/go-facecam/pkg/web"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// HighGUI must run on the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	cfg, opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		log.Error("facecam exited", "error", err)
		os.Exit(1)
	}
}

// runOptions are flags with no environment equivalent.
type runOptions struct {
	autoStart bool
	faces     bool
	preset    string
}

// parseFlags applies flags on top of environment configuration.
func parseFlags(fs *flag.FlagSet, args []string) (config.App, runOptions, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, runOptions{}, err
	}
	var opts runOptions

	fs.IntVar(&cfg.CameraIndex, "camera", cfg.CameraIndex, "Camera device index (overrides FACECAM_CAMERA_INDEX)")
	fs.StringVar(&cfg.SaveDir, "save-dir", cfg.SaveDir, "Snapshot directory (overrides FACECAM_SAVE_DIR)")
	fs.StringVar(&cfg.ModelDir, "models", cfg.ModelDir, "Face model directory (overrides FACECAM_MODEL_DIR)")
	fs.StringVar(&cfg.Detector, "detector", cfg.Detector, "Face detector: ssd, yunet, none")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "Web dashboard port (overrides FACECAM_PORT)")
	fs.StringVar(&cfg.Display, "display", cfg.Display, "Display: web, window, both")
	fs.StringVar(&opts.preset, "preset", "", "Camera preset: "+fmt.Sprint(camera.PresetNames()))
	fs.BoolVar(&opts.faces, "faces", true, "Enable face detection at startup")
	fs.BoolVar(&opts.autoStart, "start", false, "Start the camera immediately")
	debug := fs.Bool("debug", false, "Enable verbose debug logging")

	if err := fs.Parse(args); err != nil {
		return cfg, opts, err
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if _, ok := camera.GetPreset(opts.preset); opts.preset != "" && !ok {
		return cfg, opts, &config.Error{Field: "preset", Message: fmt.Sprintf("unknown preset %q", opts.preset)}
	}
	return cfg, opts, cfg.Validate()
}

func detectorConfig(cfg config.App) detection.Config {
	dc := detection.DefaultConfig()
	dc.Backend = cfg.Detector
	switch cfg.Detector {
	case detection.BackendYuNet:
		dc.ModelPath = cfg.ModelPath(config.YuNetFile)
	default:
		dc.ProtoPath = cfg.ModelPath(config.SSDProtoFile)
		dc.ModelPath = cfg.ModelPath(config.SSDModelFile)
	}
	return dc
}

func cameraConfig(cfg config.App, preset string) camera.Config {
	cc := camera.DefaultConfig()
	if p, ok := camera.GetPreset(preset); ok {
		cc = p
	}
	cc.DeviceIndex = cfg.CameraIndex
	return cc
}

func run(ctx context.Context, cfg config.App, opts runOptions) error {
	info := opencv.Init()
	log.Info("starting facecam",
		"display", cfg.Display,
		"detector", cfg.Detector,
		"camera", cfg.CameraIndex,
		"opencv", info.OpenCV,
	)

	cam := camera.NewManager(cameraConfig(cfg, opts.preset))
	cam.OnConfigChange = func(c camera.Config) error {
		log.Info("camera config updated; applies on next start", "config", c.String())
		return nil
	}

	var (
		sinks  display.Fanout
		server *web.Server
		window *display.Window
	)

	// The controller is created after the sinks, but sinks need it to
	// drive actions. A forwarding value breaks the cycle.
	fwd := &controls{}

	if cfg.WantsWeb() {
		server = web.NewServer(cfg.Port, fwd, cam)
		sinks = append(sinks, server.Sink())
	}
	if cfg.WantsWindow() {
		window = display.NewWindow("facecam", fwd, shutdownTimeout)
		sinks = append(sinks, window)
	}

	ctrl, err := session.New(session.Options{
		Camera:        cam,
		Detector:      detection.New(detectorConfig(cfg)),
		Sink:          sinks,
		SaveDir:       cfg.SaveDir,
		FaceDetection: opts.faces,
	})
	if err != nil {
		return err
	}
	fwd.Controller = ctrl

	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := ctrl.Close(sctx); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
	}()

	if opts.autoStart {
		if err := ctrl.Start(ctx); err != nil {
			log.Warn("auto-start failed", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if server != nil {
		g.Go(func() error { return server.Run(gctx) })
	}

	if window != nil {
		// The window owns the main goroutine; closing it ends the process.
		err := window.Run(gctx)
		cancel()
		if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
			return werr
		}
		return err
	}

	return g.Wait()
}

// controls forwards UI actions to the controller once it exists.
type controls struct {
	*session.Controller
}
