// Package recognizer wraps a pluggable text-detection engine: the
// Recognizer component. The engine itself is external (per the
// specification's scope, the OCR recognizer is a collaborator); this
// package owns language tagging, dual-pass reconciliation, and overall
// confidence.
package recognizer

import (
	"context"
	"image"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

// TextDetector is the pluggable capability the teacher's
// internal/ai.OCRProvider interface generalizes to: a raw text-region
// detector with no knowledge of invoices or accounting.
type TextDetector interface {
	Detect(ctx context.Context, img image.Image, confidenceThreshold float64) ([]job.TextRegion, error)
	Name() string
}

// Recognizer wraps one or two TextDetectors (dual-pass mode) and applies
// language tagging plus IoU-based merge.
type Recognizer struct {
	primary     TextDetector
	secondary   TextDetector
	dualPass    bool
}

// New builds a Recognizer. secondary may be nil; dualPass is ignored if
// secondary is nil.
func New(primary, secondary TextDetector, dualPass bool) *Recognizer {
	return &Recognizer{primary: primary, secondary: secondary, dualPass: dualPass && secondary != nil}
}

// Extract runs the primary (and, in dual-pass mode, the secondary)
// detector, tags every region's script, merges by IoU when dual-pass is
// enabled, and returns the reconciled region list.
func (r *Recognizer) Extract(ctx context.Context, img image.Image, confidenceThreshold float64) ([]job.TextRegion, error) {
	primaryRegions, err := r.primary.Detect(ctx, img, confidenceThreshold)
	if err != nil {
		return nil, err
	}
	for i := range primaryRegions {
		primaryRegions[i].SourcePass = job.PassPrimary
		primaryRegions[i].Script = DetectScript(primaryRegions[i].Text)
		primaryRegions[i].AboveThreshold = primaryRegions[i].Confidence >= confidenceThreshold
	}

	if !r.dualPass {
		return primaryRegions, nil
	}

	secondaryRegions, err := r.secondary.Detect(ctx, img, confidenceThreshold)
	if err != nil {
		// The secondary pass is an enhancement, not a requirement;
		// degrade to primary-only rather than failing the job.
		return primaryRegions, nil
	}
	for i := range secondaryRegions {
		secondaryRegions[i].SourcePass = job.PassSecondary
		secondaryRegions[i].Script = DetectScript(secondaryRegions[i].Text)
		secondaryRegions[i].AboveThreshold = secondaryRegions[i].Confidence >= confidenceThreshold
	}

	return MergeDualPass(primaryRegions, secondaryRegions), nil
}

// PrimaryName reports the primary detector's descriptor, surfaced on
// OCRMetadata.ModelDescriptor.
func (r *Recognizer) PrimaryName() string {
	return r.primary.Name()
}

// OverallConfidence is re-exported for callers that only have a region
// list (e.g. after field extraction has consumed Extract's output).
func OverallConfidence(regions []job.TextRegion) float64 {
	return job.OverallConfidence(regions)
}
