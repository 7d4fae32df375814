// Package opencv performs the process-wide OpenCV runtime check.
// The native library is linked through cgo, so there is nothing to load;
// Init only records which versions are in use, exactly once.
package opencv

import (
	"sync"

	"github.com/teslashibe/go-facecam/internal/log"
	"gocv.io/x/gocv"
)

// Info describes the linked OpenCV runtime.
type Info struct {
	GoCV   string `json:"gocv"`
	OpenCV string `json:"opencv"`
}

var (
	info Info
	once sync.Once
)

// Init records the runtime versions. Safe to call from any goroutine.
// There is no teardown.
func Init() Info {
	once.Do(func() {
		info = Info{
			GoCV:   gocv.Version(),
			OpenCV: gocv.OpenCVVersion(),
		}
		log.Info("opencv runtime ready", "gocv", info.GoCV, "opencv", info.OpenCV)
	})
	return info
}
