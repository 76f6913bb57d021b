package pipeline

import (
	"image"
	"image/color"
	"testing"
)

func documentLikeImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	// Scatter horizontal dark runs to read as text-like content under
	// the classification gate's run-length scan.
	for y := 4; y < h-4; y += 6 {
		for x := 2; x < w-2; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

func TestRunStageDegradationDenoiseSkippedOnTinyImage(t *testing.T) {
	img := documentLikeImage(15, 15)
	res := Run("job-degrade", img, "", 0)

	for _, applied := range res.OperationsApplied {
		if applied == "gaussian_blur" {
			t.Fatalf("expected denoise to be skipped on a tiny image, but it applied")
		}
	}

	foundDenoiseFailure := false
	for _, f := range res.OperationsFailed {
		if f.Stage == "denoise" {
			foundDenoiseFailure = true
		}
	}
	if !foundDenoiseFailure {
		t.Error("expected operations_failed to contain a denoise entry")
	}

	if res.Quality != QualityGood && res.Quality != QualityAcceptable {
		t.Errorf("expected processing_quality in {good, acceptable}, got %v", res.Quality)
	}
}

func TestRunSkipsRestOfPipelineOnNonDocumentImage(t *testing.T) {
	blank := image.NewRGBA(image.Rect(0, 0, 200, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 200; x++ {
			blank.Set(x, y, color.White)
		}
	}
	res := Run("job-nondoc", blank, "", 0)
	if !res.SkippedDocument {
		t.Error("expected a blank image to fail the document classification gate")
	}
}

func TestGradeQualityThresholds(t *testing.T) {
	cases := []struct {
		applied []string
		want    ProcessingQuality
	}{
		{[]string{"resize", "enhance_contrast", "threshold"}, QualityGood},
		{[]string{"resize"}, QualityAcceptable},
		{[]string{"sharpen"}, QualityPoor},
	}
	for _, c := range cases {
		if got := gradeQuality(c.applied); got != c.want {
			t.Errorf("gradeQuality(%v) = %v, want %v", c.applied, got, c.want)
		}
	}
}
