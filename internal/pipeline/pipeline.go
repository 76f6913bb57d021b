package pipeline

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// ProcessingQuality mirrors job.ProcessingQuality's three grades,
// computed from how many of the three critical stages (resize,
// enhance_contrast, threshold) actually applied.
type ProcessingQuality string

const (
	QualityGood       ProcessingQuality = "good"
	QualityAcceptable ProcessingQuality = "acceptable"
	QualityPoor       ProcessingQuality = "poor"
)

var criticalStages = map[string]bool{
	"resize":            true,
	"enhance_contrast":  true,
	"threshold":         true,
}

// Result is the Image Pipeline's output: the final image plus the
// bookkeeping the spec's OCRMetadata surfaces to callers.
type Result struct {
	Image             image.Image
	OperationsApplied []string
	OperationsFailed  []StageFailure
	Quality           ProcessingQuality
	Classification    ClassificationResult
	SkippedDocument   bool
}

// StageFailure names one stage and why it fell back or was skipped,
// matching the original's failed_operations list of (stage, reason) tuples.
type StageFailure struct {
	Stage  string
	Reason string
}

// Run executes the nine ordered stages against img: resize, a document-
// classification gate, crop_invoice, denoise, enhance_contrast,
// perspective_correct, deskew, sharpen, threshold. debugDir, when
// non-empty, receives a numbered snapshot after every stage, matching
// the teacher's save_debug_image calls. maxDimension bounds the resize
// stage's longer side (the "maximum image dimensions" configuration
// knob); <= 0 falls back to defaultMaxDimension.
func Run(jobID string, img image.Image, debugDir string, maxDimension int) Result {
	jc := NewJobContext(jobID)
	res := Result{Image: img}
	var succeeded []string

	jc.StartStage("resize")
	resized, outcome := Resize(res.Image, maxDimension)
	res.Image = resized
	recordOutcome(&res, outcome)
	if !outcome.Skipped {
		succeeded = append(succeeded, outcome.Name)
	}
	jc.EndStage(outcomeStatus(outcome), outcome.Reason)
	saveDebug(debugDir, jobID, "01_resized", res.Image)

	jc.StartStage("document_classification")
	classification := ClassifyDocument(res.Image)
	res.Classification = classification
	jc.EndStage("success", "")
	if !classification.IsDocument {
		res.SkippedDocument = true
		res.Quality = gradeQuality(succeeded)
		return res
	}

	type stageFn struct {
		name string
		run  func(image.Image) (image.Image, StageOutcome)
		file string
	}
	stages := []stageFn{
		{"crop_invoice", CropInvoice, "02_cropped"},
		{"denoise", Denoise, "03_denoised"},
		{"enhance_contrast", EnhanceContrast, "04_contrast"},
		{"perspective_correct", PerspectiveCorrect, "05_perspective"},
		{"deskew", Deskew, "06_deskewed"},
		{"sharpen", Sharpen, "07_sharpened"},
		{"threshold", Threshold, "08_threshold"},
	}

	for _, s := range stages {
		jc.StartStage(s.name)
		out, outcome := s.run(res.Image)
		res.Image = out
		recordOutcome(&res, outcome)
		if !outcome.Skipped {
			succeeded = append(succeeded, outcome.Name)
		}
		jc.EndStage(outcomeStatus(outcome), outcome.Reason)
		saveDebug(debugDir, jobID, s.file, res.Image)
	}

	res.Quality = gradeQuality(succeeded)
	_ = jc.Summary()
	return res
}

func recordOutcome(res *Result, outcome StageOutcome) {
	if outcome.Skipped {
		res.OperationsFailed = append(res.OperationsFailed, StageFailure{Stage: outcome.Name, Reason: outcome.Reason})
		return
	}
	res.OperationsApplied = append(res.OperationsApplied, outcome.Applied)
	if outcome.Reason != "" {
		// Applied via a fallback path: still a success, but worth keeping the reason.
		res.OperationsFailed = append(res.OperationsFailed, StageFailure{Stage: outcome.Name, Reason: outcome.Reason})
	}
}

func outcomeStatus(outcome StageOutcome) string {
	if outcome.Skipped {
		return "skipped"
	}
	return "success"
}

// gradeQuality grades good when at least two of the three critical
// stages applied, acceptable at one, poor at zero. applied holds stage
// names (e.g. "enhance_contrast"), not the technique names recorded in
// OperationsApplied.
func gradeQuality(applied []string) ProcessingQuality {
	count := 0
	for _, a := range applied {
		if criticalStages[a] {
			count++
		}
	}
	switch {
	case count >= 2:
		return QualityGood
	case count == 1:
		return QualityAcceptable
	default:
		return QualityPoor
	}
}

func saveDebug(dir, jobID, name string, img image.Image) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.jpg", jobID, name))
	_ = imaging.Save(img, path)
}
