package job

import "math"

const (
	maxLineItems  = 10
	maxRawRegions = 20
)

// Field is the `{value, confidence}` wrapper used by every extracted
// field. Absence is represented by a zero-value Field (Value == nil,
// Confidence == 0), never by an omitted key — callers that serialize a
// Field must always emit both members.
type Field struct {
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"`
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// NewField builds a Field, clamping confidence into [0,1].
func NewField(value interface{}, confidence float64) Field {
	return Field{Value: value, Confidence: clampConfidence(confidence)}
}

// LineItem is one extracted invoice line.
type LineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Confidence  float64 `json:"confidence"`
}

// Script is the detected language tag for a text region.
type Script string

const (
	ScriptThai    Script = "th"
	ScriptEnglish Script = "en"
	ScriptMixed   Script = "mixed"
	ScriptNumeric Script = "numeric"
	ScriptUnknown Script = "unknown"
)

// Pass labels which recognizer pass produced a region.
type Pass string

const (
	PassPrimary   Pass = "primary"
	PassSecondary Pass = "secondary"
)

// Point is an integer vertex of a bounding polygon.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TextRegion is one recognizer output tuple: a simple quadrilateral, the
// text it bounds, a confidence score, and provenance tags.
type TextRegion struct {
	Polygon          [4]Point `json:"polygon"`
	Text             string   `json:"text"`
	Confidence       float64  `json:"confidence"`
	Script           Script   `json:"script"`
	SourcePass       Pass     `json:"source_pass"`
	AboveThreshold   bool     `json:"above_threshold"`
	DualPassImproved bool     `json:"dual_pass_improved,omitempty"`
}

// ProcessingQuality grades how much of the image pipeline succeeded.
type ProcessingQuality string

const (
	QualityGood       ProcessingQuality = "good"
	QualityAcceptable ProcessingQuality = "acceptable"
	QualityPoor       ProcessingQuality = "poor"
)

// StageFailure records one image-pipeline stage that fell back or was
// skipped, with the reason, never the cause of a pipeline-wide failure.
type StageFailure struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// OCRMetadata carries the image pipeline's operational record alongside
// the recognizer's model descriptor.
type OCRMetadata struct {
	PreprocessingApplied []string           `json:"preprocessing_applied"`
	OperationsFailed     []StageFailure     `json:"operations_failed"`
	QualityBefore        float64            `json:"quality_before"`
	QualityAfter         float64            `json:"quality_after"`
	ProcessingQuality    ProcessingQuality  `json:"processing_quality"`
	ModelDescriptor      string             `json:"model_descriptor"`
	StageTimingsMS       map[string]int64   `json:"stage_timings_ms"`
}

// OCRResult is the one-per-completed-job record persisted by the Result
// Store Adapter.
type OCRResult struct {
	JobID string `json:"job_id" bson:"job_id"`

	Vendor        Field `json:"vendor" bson:"vendor"`
	InvoiceNumber Field `json:"invoice_number" bson:"invoice_number"`
	Date          Field `json:"date" bson:"date"`
	TotalAmount   Field `json:"total_amount" bson:"total_amount"`

	LineItems []LineItem `json:"line_items" bson:"line_items"`

	RawRegions []TextRegion `json:"raw_regions" bson:"raw_regions"`

	OverallConfidence float64     `json:"overall_confidence" bson:"overall_confidence"`
	Metadata          OCRMetadata `json:"ocr_metadata" bson:"ocr_metadata"`

	SubmitterID string `json:"submitter_id" bson:"submitter_id"`
	CreatedAt   int64  `json:"created_at" bson:"created_at"`
}

// NewOCRResult builds a result record, clamping list sizes and
// recomputing overall confidence from the (already clamped) raw regions
// so the derived invariant in the specification's testable properties
// holds by construction.
func NewOCRResult(jobID, submitterID string, vendor, invoiceNumber, date, total Field, items []LineItem, regions []TextRegion, meta OCRMetadata) *OCRResult {
	if len(items) > maxLineItems {
		items = items[:maxLineItems]
	}
	if len(regions) > maxRawRegions {
		regions = regions[:maxRawRegions]
	}
	return &OCRResult{
		JobID:             jobID,
		SubmitterID:       submitterID,
		Vendor:            vendor,
		InvoiceNumber:     invoiceNumber,
		Date:              date,
		TotalAmount:       total,
		LineItems:         items,
		RawRegions:        regions,
		OverallConfidence: OverallConfidence(regions),
		Metadata:          meta,
	}
}

// OverallConfidence computes the length-weighted mean of per-region
// confidences, weight = max(1.0, len(text)/10), as specified for the
// Recognizer's overall confidence and restated here so the Result Store
// can recompute it from persisted regions (testable property 7).
func OverallConfidence(regions []TextRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	var weightedSum, weightSum float64
	for _, r := range regions {
		w := float64(len([]rune(r.Text))) / 10.0
		if w < 1.0 {
			w = 1.0
		}
		weightedSum += r.Confidence * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

// BlobReference points at a stored blob; the public URL is durable as
// long as the blob exists, and deletion invalidates the reference.
type BlobReference struct {
	Provider  string `json:"provider" bson:"provider"`
	Key       string `json:"key" bson:"key"`
	PublicURL string `json:"public_url" bson:"public_url"`
}
