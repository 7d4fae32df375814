package display

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/session"
	"gocv.io/x/gocv"
)

// Controls is what the window's keys drive.
type Controls interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	CaptureSnapshot(ctx context.Context) (string, error)
	SetSaveDirectory(path string) error
	ToggleFaceDetection(enabled bool)
	State() session.State
}

// Action is a window command bound to a key.
type Action int

// Window actions.
const (
	ActionNone Action = iota
	ActionStart
	ActionStop
	ActionCapture
	ActionToggleDetection
	ActionSetSaveDir
	ActionQuit
)

const (
	keyEsc = 27

	// bannerDuration is how long a notice stays on screen.
	bannerDuration = 3 * time.Second

	// waitKeyMs is the HighGUI event pump interval.
	waitKeyMs = 10

	placeholderWidth  = 640
	placeholderHeight = 480
)

var (
	infoColor    = color.RGBA{R: 40, G: 140, B: 40, A: 0}
	warningColor = color.RGBA{R: 200, G: 140, B: 0, A: 0}
	errorColor   = color.RGBA{R: 190, G: 30, B: 30, A: 0}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

func actionForKey(key int) Action {
	if key < 0 {
		return ActionNone
	}
	switch key & 0xFF {
	case 's', 'S':
		return ActionStart
	case 'x', 'X':
		return ActionStop
	case 'c', 'C':
		return ActionCapture
	case 'f', 'F':
		return ActionToggleDetection
	case 'd', 'D':
		return ActionSetSaveDir
	case 'q', 'Q', keyEsc:
		return ActionQuit
	}
	return ActionNone
}

// PromptFunc asks the user for a line of text. An empty answer means the
// user cancelled.
type PromptFunc func(label string) (string, error)

// StdinPrompt reads the answer from the terminal that started the process.
func StdinPrompt(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Window shows the live feed in an OpenCV HighGUI window. Publish may be
// called from any goroutine; Run must be called from the main goroutine
// with the OS thread locked.
type Window struct {
	title   string
	slot    *Slot
	ctrl    Controls
	timeout time.Duration
	now     func() time.Time

	// Prompt asks for the save directory. The window stops repainting
	// while it waits.
	Prompt PromptFunc

	current     gocv.Mat
	hasFrame    bool
	banner      session.Notice
	bannerUntil time.Time
}

// NewWindow creates a window bound to ctrl. Actions are bounded by timeout.
func NewWindow(title string, ctrl Controls, timeout time.Duration) *Window {
	return &Window{
		title:   title,
		slot:    NewSlot(),
		ctrl:    ctrl,
		timeout: timeout,
		now:     time.Now,
		Prompt:  StdinPrompt,
	}
}

// Publish implements Sink.
func (w *Window) Publish(frame gocv.Mat) {
	w.slot.Publish(frame)
}

// Run pumps the window until ctx ends, the user quits, or the window is
// closed.
func (w *Window) Run(ctx context.Context) error {
	win := gocv.NewWindow(w.title)
	defer win.Close()
	defer w.reset()
	defer w.slot.Close()

	w.notify(session.NoticeFor(nil, "s start  x stop  c capture  f faces  d folder  q quit"))

	for {
		if ctx.Err() != nil {
			return nil
		}

		img := w.render(w.ctrl.State())
		win.IMShow(img)
		img.Close()

		if w.dispatch(ctx, actionForKey(win.WaitKey(waitKeyMs))) {
			return nil
		}
		if win.GetWindowProperty(gocv.WindowPropertyVisible) < 1 {
			return nil
		}
	}
}

// dispatch runs one action and reports whether the window should close.
func (w *Window) dispatch(ctx context.Context, a Action) bool {
	if a == ActionNone {
		return false
	}
	actx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	switch a {
	case ActionStart:
		w.notify(session.NoticeFor(w.ctrl.Start(actx), "Camera started."))
	case ActionStop:
		w.notify(session.NoticeFor(w.ctrl.Stop(actx), "Camera stopped."))
	case ActionCapture:
		path, err := w.ctrl.CaptureSnapshot(actx)
		w.notify(session.NoticeFor(err, "Photo saved: "+path))
	case ActionToggleDetection:
		st := w.ctrl.State()
		enabled := !st.FaceDetection
		w.ctrl.ToggleFaceDetection(enabled)
		n := session.NoticeFor(nil, "Face detection off.")
		if enabled {
			n.Message = "Face detection on."
			if !st.DetectorReady {
				n.Level = session.LevelWarning
				n.Message = "Face model not loaded; detection has no effect."
			}
		}
		w.notify(n)
	case ActionSetSaveDir:
		w.setSaveDir()
	case ActionQuit:
		return true
	}
	return false
}

func (w *Window) setSaveDir() {
	path, err := w.Prompt("Save directory (currently " + w.ctrl.State().SaveDirectory + ")")
	if err != nil {
		w.notify(session.NoticeFor(err, ""))
		return
	}
	if path == "" {
		w.notify(session.NoticeFor(nil, "Save directory unchanged."))
		return
	}
	err = w.ctrl.SetSaveDirectory(path)
	w.notify(session.NoticeFor(err, "Save directory set to: "+w.ctrl.State().SaveDirectory))
}

func (w *Window) notify(n session.Notice) {
	w.banner = n
	w.bannerUntil = w.now().Add(bannerDuration)
	log.Debug("window notice", "level", n.Level, "message", n.Message)
}

// render returns the image to show. The caller owns it.
func (w *Window) render(st session.State) gocv.Mat {
	if frame, ok := w.slot.Take(); ok {
		if w.hasFrame {
			w.current.Close()
		}
		w.current = frame
		w.hasFrame = true
	}

	var img gocv.Mat
	if st.Running && w.hasFrame && !w.current.Empty() {
		img = w.current.Clone()
	} else {
		img = placeholder("Camera stopped")
	}

	if w.now().Before(w.bannerUntil) {
		drawBanner(&img, w.banner)
	}
	return img
}

func (w *Window) reset() {
	if w.hasFrame {
		w.current.Close()
		w.hasFrame = false
	}
}

func placeholder(text string) gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 30, 30, 0), placeholderHeight, placeholderWidth, gocv.MatTypeCV8UC3)
	gocv.PutText(&img, text, image.Pt(placeholderWidth/2-110, placeholderHeight/2), gocv.FontHersheySimplex, 0.8, textColor, 2)
	return img
}

// drawBanner paints n across the top of img.
func drawBanner(img *gocv.Mat, n session.Notice) {
	bg := infoColor
	switch n.Level {
	case session.LevelWarning:
		bg = warningColor
	case session.LevelError:
		bg = errorColor
	}
	gocv.Rectangle(img, image.Rect(0, 0, img.Cols(), 28), bg, -1)
	gocv.PutText(img, n.Message, image.Pt(8, 20), gocv.FontHersheySimplex, 0.55, textColor, 1)
}
