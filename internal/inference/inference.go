package inference

import (
	"context"
	"errors"
)

// ErrModelUnavailable reports that an inference model was not loaded or the
// model service cannot be reached. Callers treat it as fatal for the request.
var ErrModelUnavailable = errors.New("inference model unavailable")

// Box is a detection bounding box in pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Area returns the box area, treating inverted coordinates as zero extent.
func (b Box) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return w * h
}

// Detection is a single detected object.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Mask is a binary segmentation mask. Bitmap rows hold 0/1 values; Area is
// the foreground pixel count reported by the model.
type Mask struct {
	Area   int       `json:"area"`
	Bitmap [][]uint8 `json:"bitmap"`
}

// Engine exposes the subset of model capabilities the grading flow uses.
// Implementations must be safe for concurrent use.
type Engine interface {
	Detect(ctx context.Context, image []byte, confFloor float64) ([]Detection, error)
	Segment(ctx context.Context, image []byte) ([]Mask, error)
}
