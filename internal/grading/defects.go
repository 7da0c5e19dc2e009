package grading

import "github.com/example/card-grader/internal/inference"

// DefectConfThreshold is the confidence floor for the defect detector.
const DefectConfThreshold = 0.40

// Per-instance penalty points by defect class.
const (
	TearPenalty   = 15
	CreasePenalty = 5
)

// aggregateDefects converts detections on one card side into penalty points.
// Tears and creases cost points per instance; anything else costs nothing
// but still shows up in the diagnostic list.
func aggregateDefects(detections []inference.Detection, tearLabel, creaseLabel string) (int, DefectReport) {
	penalty := 0
	report := DefectReport{Detections: make([]DetectionInfo, 0, len(detections))}

	for _, det := range detections {
		switch det.Label {
		case tearLabel:
			penalty += TearPenalty
		case creaseLabel:
			penalty += CreasePenalty
		}
		report.Detections = append(report.Detections, DetectionInfo{
			Type: det.Label,
			Conf: det.Confidence,
			Box:  [4]float64{det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2},
		})
	}
	return penalty, report
}
