package grading

import "github.com/example/card-grader/internal/inference"

// Presence verification thresholds.
const (
	ConfThreshold = 0.50
	AreaFracMin   = 0.20
)

// verifyPresence checks that a detection with the expected side label covers
// enough of the frame with enough confidence. Among detections matching the
// target label the single highest-confidence one wins; its bounding-box area
// fraction is compared against the minimum. No matching detection leaves
// both values at zero, which fails the check.
func verifyPresence(detections []inference.Detection, target string, imgWidth, imgHeight int) (bool, PresenceInfo) {
	info := PresenceInfo{Target: target}

	imgArea := float64(imgWidth) * float64(imgHeight)
	for _, det := range detections {
		if det.Label != target {
			continue
		}
		if det.Confidence <= info.BestConf {
			continue
		}
		info.BestConf = det.Confidence
		if imgArea > 0 {
			info.BestAreaFrac = det.Box.Area() / imgArea
		}
	}

	ok := info.BestConf >= ConfThreshold && info.BestAreaFrac >= AreaFracMin
	return ok, info
}
