package detection

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// YuNetDetector uses OpenCV's FaceDetectorYN.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
}

// NewYuNet creates a YuNet face detector from an ONNX model.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Find returns faces in pixel coordinates.
func (d *YuNetDetector) Find(frame gocv.Mat) ([]Annotation, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	d.detector.SetInputSize(image.Pt(frame.Cols(), frame.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(frame, &faces)

	var anns []Annotation
	for r := 0; r < faces.Rows(); r++ {
		// 0-3: x, y, w, h; 4-13: landmarks; 14: score
		score := float64(faces.GetFloatAt(r, 14))
		if !(score > d.config.ConfidenceThresh) {
			continue
		}
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))

		anns = append(anns, Annotation{
			Confidence: score,
			Box:        image.Rect(x, y, x+w, y+h),
		})
	}

	return anns, nil
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.detector.Close()
	return nil
}
