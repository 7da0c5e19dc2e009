package grading

import (
	"bytes"
	"image"
	"net/http"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Intake gate thresholds.
const (
	MinWidth      = 800
	MinHeight     = 800
	BrightnessMin = 30.0
	BrightnessMax = 225.0
)

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// ImageAsset is a decoded upload plus its derived intake statistics. The raw
// bytes are kept for the inference calls and discarded with the request.
type ImageAsset struct {
	Slot      string
	Filename  string
	Data      []byte
	Width     int
	Height    int
	Luminance float64
}

func extOK(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := allowedExtensions[ext]
	return ok
}

// checkFormats scans every slot before any decoding happens. All six are
// inspected; the first offending slot (in evaluation order) is reported.
func checkFormats(uploads map[string]Upload) *StageFailure {
	var failure *StageFailure
	for _, slot := range SlotKeys {
		up := uploads[slot]
		if extOK(up.Filename) {
			continue
		}
		if failure == nil {
			failure = newFailure(StageIntake, KindInvalidFormat, http.StatusBadRequest,
				"%s: unsupported file extension %q (allowed: png, jpg, jpeg, webp)",
				slot, strings.ToLower(filepath.Ext(up.Filename)))
		}
	}
	return failure
}

// decodeAssets decodes every upload and computes the intake statistics.
func decodeAssets(uploads map[string]Upload) (map[string]*ImageAsset, *StageFailure) {
	assets := make(map[string]*ImageAsset, len(SlotKeys))
	for _, slot := range SlotKeys {
		up := uploads[slot]
		if len(up.Data) == 0 {
			return nil, newFailure(StageIntake, KindInvalidImage, http.StatusBadRequest,
				"%s: file is empty", slot)
		}
		img, _, err := image.Decode(bytes.NewReader(up.Data))
		if err != nil {
			return nil, newFailure(StageIntake, KindInvalidImage, http.StatusBadRequest,
				"%s: not a valid image", slot)
		}
		bounds := img.Bounds()
		assets[slot] = &ImageAsset{
			Slot:      slot,
			Filename:  up.Filename,
			Data:      up.Data,
			Width:     bounds.Dx(),
			Height:    bounds.Dy(),
			Luminance: meanLuminance(img),
		}
	}
	return assets, nil
}

// checkSizeBrightness applies the dimension and brightness gates to every
// decoded asset, in evaluation order.
func checkSizeBrightness(assets map[string]*ImageAsset) *StageFailure {
	for _, slot := range SlotKeys {
		a := assets[slot]
		if a.Width < MinWidth || a.Height < MinHeight {
			return newFailure(StageIntake, KindSizeTooSmall, http.StatusBadRequest,
				"%s: image must be at least %dx%d (got: %dx%d)",
				slot, MinWidth, MinHeight, a.Width, a.Height)
		}
		if a.Luminance < BrightnessMin || a.Luminance > BrightnessMax {
			return newFailure(StageIntake, KindBrightnessOutOfRange, http.StatusBadRequest,
				"%s: image is too dark or too bright (brightness: %.2f, allowed range: %.0f~%.0f)",
				slot, a.Luminance, BrightnessMin, BrightnessMax)
		}
	}
	return nil
}

// meanLuminance averages the grayscale channel using the ITU-R 601-2 weights.
func meanLuminance(img image.Image) float64 {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return sum / float64(total)
}
