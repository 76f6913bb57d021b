package pipeline

import (
	"image"
	"image/color"
	"testing"
)

// receiptImage draws a dark rectangle over a light background, centered
// right-of-middle, approximating a handheld receipt photo.
func receiptImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	rx0, ry0 := w/3, h/6
	rx1, ry1 := w-w/8, h-h/6
	for y := ry0; y < ry1; y++ {
		for x := rx0; x < rx1; x++ {
			img.Set(x, y, color.Gray{Y: 30})
		}
	}
	return img
}

func TestDetectBoundaryFindsCandidateOnStructuredImage(t *testing.T) {
	img := receiptImage(600, 900)
	candidate, stage, ok := DetectBoundary(img)
	if !ok {
		t.Fatal("expected a boundary candidate on a clearly bounded dark region")
	}
	if candidate.Total <= 0 {
		t.Errorf("expected a positive total score, got %v", candidate.Total)
	}
	if stage == "" {
		t.Error("expected a named cascade stage")
	}
}

func TestDetectBoundaryFallsThroughOnUniformImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.White)
		}
	}
	_, _, ok := DetectBoundary(img)
	if ok {
		t.Error("expected no candidate on a fully uniform image")
	}
}

func TestScoreCandidateWeights(t *testing.T) {
	blk := darkBlock{area: 200 * 300, bounds: image.Rect(120, 100, 420, 700)}
	c := scoreCandidate(blk, image.Rect(0, 0, 600, 900))
	if c.Total < 0 || c.Total > 1.01 {
		t.Errorf("total score out of [0,1] range: %v", c.Total)
	}
	expected := c.Position*0.25 + c.Aspect*0.20 + c.Size*0.20 + c.Compactness*0.20 + c.Border*0.15
	if diff := c.Total - expected; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("total score %v does not match weighted sum %v", c.Total, expected)
	}
}
