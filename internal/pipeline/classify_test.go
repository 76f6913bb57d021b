package pipeline

import (
	"image"
	"image/color"
	"testing"
)

// uniformImage builds a flat image of the given color, used to probe
// the classification gate's brightness/variance signals in isolation.
func uniformImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestClassifyDocumentUniformBlankImageScoresLow(t *testing.T) {
	img := uniformImage(400, 600, color.White)
	result := ClassifyDocument(img)
	if result.IsDocument {
		t.Errorf("a blank uniform image should not pass the document gate on text/edge signals alone, got confidence %v", result.Confidence)
	}
}

func TestClassifyDocumentSquareAspectScoresNoHigherThanTall(t *testing.T) {
	square := uniformImage(300, 300, color.White)
	tall := uniformImage(300, 900, color.White)
	squareResult := ClassifyDocument(square)
	tallResult := ClassifyDocument(tall)
	if squareResult.AspectScore > tallResult.AspectScore {
		t.Errorf("a 1:1 image should not score higher on aspect than a 1:3 receipt-like image; square=%v tall=%v", squareResult.AspectScore, tallResult.AspectScore)
	}
}

func TestClassifyDocumentConfidenceInRange(t *testing.T) {
	img := uniformImage(200, 300, color.Gray{Y: 250})
	result := ClassifyDocument(img)
	if result.Confidence < 0 || result.Confidence > 1.5 {
		t.Errorf("confidence out of plausible combined range: %v", result.Confidence)
	}
}
