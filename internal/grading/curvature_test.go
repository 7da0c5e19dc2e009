package grading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/card-grader/internal/inference"
)

// stripMask builds a 1-pixel-tall horizontal strip of the given length.
func stripMask(length int) inference.Mask {
	row := make([]uint8, length)
	for i := range row {
		row[i] = 1
	}
	return inference.Mask{Area: length, Bitmap: [][]uint8{row}}
}

// bowedMask draws a 1-pixel-thick parabolic arc: length wide, peaking at
// amplitude in the middle.
func bowedMask(length, amplitude int) inference.Mask {
	height := amplitude + 1
	bitmap := make([][]uint8, height)
	for y := range bitmap {
		bitmap[y] = make([]uint8, length)
	}
	area := 0
	half := float64(length-1) / 2
	for x := 0; x < length; x++ {
		t := (float64(x) - half) / half
		y := int(math.Round(float64(amplitude) * (1 - t*t)))
		bitmap[y][x] = 1
		area++
	}
	return inference.Mask{Area: area, Bitmap: bitmap}
}

func TestCurvaturePenaltyPoints(t *testing.T) {
	require.Equal(t, 0, CurvaturePenaltyPoints(0))
	require.Equal(t, 0, CurvaturePenaltyPoints(0.3))
	require.Equal(t, 0, CurvaturePenaltyPoints(0.5))
	require.Equal(t, 2, CurvaturePenaltyPoints(0.6))
	require.Equal(t, 2, CurvaturePenaltyPoints(1.0))
	require.Equal(t, 4, CurvaturePenaltyPoints(1.1))
	require.Equal(t, 6, CurvaturePenaltyPoints(2.0))

	for _, c := range []float64{3, 10, 100, 1e9} {
		require.LessOrEqual(t, CurvaturePenaltyPoints(c), 6)
	}
}

func TestBendPenaltyTotalCountsTwoWorstEdges(t *testing.T) {
	require.Equal(t, 4, BendPenaltyTotal([]int{6, 6, 2, 0}))
	require.Equal(t, 4, BendPenaltyTotal([]int{2, 2, 2, 2}))
	require.Equal(t, 2, BendPenaltyTotal([]int{2, 0, 0, 0}))
	require.Equal(t, 0, BendPenaltyTotal([]int{0, 0, 0, 0}))
	require.Equal(t, 4, BendPenaltyTotal([]int{6, 0, 0, 0}))
}

func TestMeasureCurvatureNoMask(t *testing.T) {
	m := MeasureCurvature(nil)
	require.False(t, m.HasMask)
	require.Zero(t, m.Percent)
}

func TestMeasureCurvatureEmptyMask(t *testing.T) {
	bitmap := [][]uint8{make([]uint8, 20), make([]uint8, 20)}
	m := MeasureCurvature([]inference.Mask{{Area: 0, Bitmap: bitmap}})
	require.False(t, m.HasMask)
	require.Zero(t, m.Percent)
}

func TestMeasureCurvatureStraightStripIsFlat(t *testing.T) {
	m := MeasureCurvature([]inference.Mask{stripMask(300)})
	require.True(t, m.HasMask)
	require.Equal(t, 300, m.MaskArea)
	require.Zero(t, m.Percent)
}

func TestMeasureCurvatureTooFewPointsIsFlat(t *testing.T) {
	m := MeasureCurvature([]inference.Mask{stripMask(5)})
	require.True(t, m.HasMask)
	require.Zero(t, m.Percent)
}

func TestMeasureCurvatureBowedStrip(t *testing.T) {
	// A parabola of amplitude 20 over length 401 deviates roughly 2/3 of
	// the amplitude from its principal axis: about 3.3%.
	m := MeasureCurvature([]inference.Mask{bowedMask(401, 20)})
	require.True(t, m.HasMask)
	require.Greater(t, m.Percent, 2.0)
	require.Less(t, m.Percent, 5.0)
	require.Equal(t, 6, CurvaturePenaltyPoints(m.Percent))
}

func TestMeasureCurvaturePicksLargestMask(t *testing.T) {
	small := bowedMask(101, 10)
	large := stripMask(400)
	m := MeasureCurvature([]inference.Mask{small, large})
	require.True(t, m.HasMask)
	require.Equal(t, 1, m.SelectedIndex)
	require.Equal(t, 400, m.MaskArea)
	require.Zero(t, m.Percent)
}

func TestBowingPercentDegenerateCluster(t *testing.T) {
	// A dozen coincident points have no extent along any axis.
	pts := make([]point, 12)
	for i := range pts {
		pts[i] = point{x: 5, y: 5}
	}
	require.Zero(t, bowingPercent(pts))
}
