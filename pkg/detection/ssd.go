package detection

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// ssdStride is the width of one SSD output row:
// batch, class, confidence, left, top, right, bottom.
const ssdStride = 7

// ssdMean is the per-channel (BGR) mean subtracted by the res10 model.
var ssdMean = gocv.NewScalar(104.0, 177.0, 123.0, 0)

// SSDDetector runs the ResNet-10 SSD Caffe face model.
type SSDDetector struct {
	net       gocv.Net
	config    Config
	inputSize image.Point
}

// NewSSD loads the Caffe topology and weights named in cfg.
func NewSSD(cfg Config) (*SSDDetector, error) {
	for _, p := range []string{cfg.ProtoPath, cfg.ModelPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model file not found: %s", p)
		}
	}

	net := gocv.ReadNetFromCaffe(cfg.ProtoPath, cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load SSD model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &SSDDetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Find runs a forward pass and returns faces above the threshold.
func (d *SSDDetector) Find(frame gocv.Mat) ([]Annotation, error) {
	blob := gocv.BlobFromImage(frame, 1.0, d.inputSize, ssdMean, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	// Output shape is [1, 1, N, 7].
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	return ParseSSD(data, frame.Cols(), frame.Rows(), d.config.ConfidenceThresh), nil
}

// Close releases the network.
func (d *SSDDetector) Close() error {
	return d.net.Close()
}

// ParseSSD interprets a flat SSD output. Corners are fractions of the
// frame and are scaled to cols x rows. Only rows with confidence strictly
// above thresh are kept. A trailing partial row is ignored.
func ParseSSD(data []float32, cols, rows int, thresh float64) []Annotation {
	var anns []Annotation
	for i := 0; i+ssdStride <= len(data); i += ssdStride {
		confidence := float64(data[i+2])
		if !(confidence > thresh) {
			continue
		}
		x1 := int(float64(data[i+3]) * float64(cols))
		y1 := int(float64(data[i+4]) * float64(rows))
		x2 := int(float64(data[i+5]) * float64(cols))
		y2 := int(float64(data[i+6]) * float64(rows))

		anns = append(anns, Annotation{
			Confidence: confidence,
			Box:        image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)},
		})
	}
	return anns
}
