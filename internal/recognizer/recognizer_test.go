package recognizer

import (
	"context"
	"image"
	"testing"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

type stubDetector struct {
	regions []job.TextRegion
}

func (s *stubDetector) Name() string { return "stub" }

func (s *stubDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]job.TextRegion, error) {
	return s.regions, nil
}

func rect(x0, y0, x1, y1 int) [4]job.Point {
	return [4]job.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestMergeDualPassKeepsHigherConfidenceEnglish(t *testing.T) {
	primary := []job.TextRegion{{Polygon: rect(0, 0, 100, 20), Text: "Invoce", Confidence: 0.6}}
	secondary := []job.TextRegion{{Polygon: rect(0, 0, 100, 20), Text: "Invoice", Confidence: 0.9}}

	merged := MergeDualPass(primary, secondary)
	if len(merged) != 1 {
		t.Fatalf("expected one merged region, got %d", len(merged))
	}
	if merged[0].Text != "Invoice" || !merged[0].DualPassImproved {
		t.Fatalf("expected secondary 'Invoice' to win with DualPassImproved=true, got %+v", merged[0])
	}
}

func TestMergeDualPassIsIdempotent(t *testing.T) {
	regions := []job.TextRegion{
		{Polygon: rect(0, 0, 50, 10), Text: "รวม", Confidence: 0.8},
		{Polygon: rect(60, 0, 120, 10), Text: "245.50", Confidence: 0.95},
	}
	merged := MergeDualPass(regions, regions)
	if len(merged) != len(regions) {
		t.Fatalf("merging a set with itself should not change its size: got %d want %d", len(merged), len(regions))
	}
	for i := range regions {
		if merged[i].Text != regions[i].Text || merged[i].Confidence != regions[i].Confidence {
			t.Fatalf("merge-with-self changed region %d: %+v vs %+v", i, merged[i], regions[i])
		}
	}
}

func TestMergeDualPassAppendsUnmatchedSecondary(t *testing.T) {
	primary := []job.TextRegion{{Polygon: rect(0, 0, 10, 10), Text: "a", Confidence: 0.5}}
	secondary := []job.TextRegion{{Polygon: rect(500, 500, 510, 510), Text: "b", Confidence: 0.5}}

	merged := MergeDualPass(primary, secondary)
	if len(merged) != 2 {
		t.Fatalf("expected both a disjoint primary and secondary region, got %d", len(merged))
	}
}

func TestDetectScriptThresholds(t *testing.T) {
	cases := []struct {
		text string
		want job.Script
	}{
		{"ใบกำกับภาษี", job.ScriptThai},
		{"Invoice Number", job.ScriptEnglish},
		{"245.50", job.ScriptNumeric},
		{"ร้านอาหาร Shop", job.ScriptMixed},
	}
	for _, c := range cases {
		if got := DetectScript(c.text); got != c.want {
			t.Errorf("DetectScript(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestOverallConfidenceIsLengthWeighted(t *testing.T) {
	regions := []job.TextRegion{
		{Text: "hi", Confidence: 1.0},        // len 2 -> weight max(1, 0.2)=1
		{Text: "a much longer region", Confidence: 0.5}, // len 20 -> weight 2.0
	}
	got := OverallConfidence(regions)
	want := (1.0*1.0 + 0.5*2.0) / (1.0 + 2.0)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("OverallConfidence = %v, want %v", got, want)
	}
}

func TestRecognizerExtractSinglePass(t *testing.T) {
	primary := &stubDetector{regions: []job.TextRegion{{Polygon: rect(0, 0, 10, 10), Text: "total", Confidence: 0.9}}}
	r := New(primary, nil, true)
	regions, err := r.Extract(context.Background(), nil, 0.3)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(regions) != 1 || regions[0].SourcePass != job.PassPrimary {
		t.Fatalf("unexpected regions: %+v", regions)
	}
}
