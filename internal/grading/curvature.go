package grading

import (
	"math"

	"github.com/example/card-grader/internal/inference"
)

const (
	// minBoundaryPoints guards the PCA against degenerate contours.
	minBoundaryPoints = 10
	// lengthEpsilon treats near-zero long-axis extents as flat.
	lengthEpsilon = 1e-6
	// maxPenaltyPerImage caps the bowing penalty of a single edge photo.
	maxPenaltyPerImage = 6
	// maxBendPenaltyTotal caps the combined bowing penalty.
	maxBendPenaltyTotal = 4
)

// CurvatureMeasurement is the diagnostic result of measuring one edge photo.
type CurvatureMeasurement struct {
	Percent       float64
	HasMask       bool
	SelectedIndex int
	MaskArea      int
}

// MeasureCurvature picks the largest predicted mask and computes its bowing
// percentage. No masks, an empty mask, or a degenerate contour all measure
// as flat.
func MeasureCurvature(masks []inference.Mask) CurvatureMeasurement {
	if len(masks) == 0 {
		return CurvatureMeasurement{}
	}

	selected := 0
	for i, m := range masks {
		if m.Area > masks[selected].Area {
			selected = i
		}
	}
	if masks[selected].Area == 0 {
		// All-background masks carry no edge to measure.
		return CurvatureMeasurement{}
	}

	m := CurvatureMeasurement{
		HasMask:       true,
		SelectedIndex: selected,
		MaskArea:      masks[selected].Area,
	}
	m.Percent = bowingPercent(largestRegionBoundary(masks[selected].Bitmap))
	return m
}

// bowingPercent measures how far the contour bows away from its own long
// axis: project the centered points onto the principal axes, take the
// long-axis extent as the length and the largest orthogonal deviation as the
// bow, and report their ratio as a percentage.
func bowingPercent(pts []point) float64 {
	if len(pts) < minBoundaryPoints {
		return 0
	}

	var meanX, meanY float64
	for _, p := range pts {
		meanX += p.x
		meanY += p.y
	}
	n := float64(len(pts))
	meanX /= n
	meanY /= n

	var sxx, sxy, syy float64
	for _, p := range pts {
		dx := p.x - meanX
		dy := p.y - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	sxx /= n
	sxy /= n
	syy /= n

	longAxis := principalAxis(sxx, sxy, syy)
	orthAxis := point{x: -longAxis.y, y: longAxis.x}

	minLong, maxLong := math.Inf(1), math.Inf(-1)
	maxOrth := 0.0
	for _, p := range pts {
		dx := p.x - meanX
		dy := p.y - meanY
		long := dx*longAxis.x + dy*longAxis.y
		orth := dx*orthAxis.x + dy*orthAxis.y
		if long < minLong {
			minLong = long
		}
		if long > maxLong {
			maxLong = long
		}
		if a := math.Abs(orth); a > maxOrth {
			maxOrth = a
		}
	}

	length := maxLong - minLong
	if length <= lengthEpsilon {
		return 0
	}
	return maxOrth / length * 100
}

// principalAxis returns the unit eigenvector of the larger eigenvalue of the
// 2x2 covariance matrix [[sxx sxy] [sxy syy]].
func principalAxis(sxx, sxy, syy float64) point {
	if sxy == 0 {
		if sxx >= syy {
			return point{x: 1, y: 0}
		}
		return point{x: 0, y: 1}
	}

	half := (sxx - syy) / 2
	root := math.Sqrt(half*half + sxy*sxy)
	lambda := (sxx+syy)/2 + root

	v := point{x: sxy, y: lambda - sxx}
	norm := math.Hypot(v.x, v.y)
	if norm == 0 {
		return point{x: 1, y: 0}
	}
	return point{x: v.x / norm, y: v.y / norm}
}

// CurvaturePenaltyPoints maps a curvature percentage onto penalty points:
// flat cards (<= 0.5%) cost nothing, then every started 0.5% step costs 2
// points up to the per-image cap.
func CurvaturePenaltyPoints(curvePercent float64) int {
	if curvePercent <= 0.5 {
		return 0
	}
	steps := int(math.Ceil((curvePercent - 0.5) / 0.5))
	penalty := steps * 2
	if penalty > maxPenaltyPerImage {
		return maxPenaltyPerImage
	}
	return penalty
}

// BendPenaltyTotal combines the per-image penalties: only the two worst
// edges count, and their sum is capped.
func BendPenaltyTotal(perImage []int) int {
	first, second := 0, 0
	for _, p := range perImage {
		if p > first {
			first, second = p, first
		} else if p > second {
			second = p
		}
	}
	total := first + second
	if total > maxBendPenaltyTotal {
		return maxBendPenaltyTotal
	}
	return total
}
