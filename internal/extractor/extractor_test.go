package extractor

import (
	"testing"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

func region(text string, confidence float64) job.TextRegion {
	return job.TextRegion{Text: text, Confidence: confidence}
}

func TestExtractHappyPath(t *testing.T) {
	regions := []job.TextRegion{
		region("ร้านอาหารดีใจ", 0.95),
		region("เลขที่ INV-2026-001", 0.9),
		region("วันที่ 15/03/2026", 0.85),
		region("รวมทั้งสิ้น 245.50 บาท", 0.92),
	}

	vendor, invoiceNumber, date, total, _ := Extract(regions)

	if vendor.Value != "ร้านอาหารดีใจ" {
		t.Errorf("vendor = %v, want ร้านอาหารดีใจ", vendor.Value)
	}
	if invoiceNumber.Value == nil {
		t.Error("expected an invoice number match")
	}
	if date.Value != "15/03/2026" {
		t.Errorf("date = %v, want 15/03/2026", date.Value)
	}
	if total.Value != 245.50 {
		t.Errorf("total = %v, want 245.50", total.Value)
	}
}

func TestExtractTotalAmountRejectsOutOfRange(t *testing.T) {
	regions := []job.TextRegion{region("รวม 99999999.00", 0.9)}
	_, _, _, total, _ := Extract(regions)
	if total.Value != nil {
		t.Errorf("expected amounts above 1e6 to be rejected, got %v", total.Value)
	}
}

func TestExtractAbsentFieldIsNullObjectNotMissingKey(t *testing.T) {
	vendor, invoiceNumber, date, total, items := Extract(nil)
	for name, f := range map[string]job.Field{
		"vendor": vendor, "invoiceNumber": invoiceNumber, "date": date, "total": total,
	} {
		if f.Value != nil || f.Confidence != 0 {
			t.Errorf("%s: expected null-object absence, got %+v", name, f)
		}
	}
	if items != nil {
		t.Errorf("expected no line items for empty input, got %v", items)
	}
}

func TestExtractLineItemsClampedToTen(t *testing.T) {
	var regions []job.TextRegion
	for i := 0; i < 15; i++ {
		regions = append(regions, region("item 10.00", 0.8))
	}
	_, _, _, _, items := Extract(regions)
	if len(items) != 10 {
		t.Fatalf("expected line items clamped to 10, got %d", len(items))
	}
}

func TestExtractVendorDesperateFallbackScalesConfidenceLow(t *testing.T) {
	regions := []job.TextRegion{
		region("รวม 10.00", 0.9),
		region("ภาษี 1.00", 0.9),
		region("เลขที่ 123", 0.9),
		region("some long descriptive text here", 0.7),
	}
	vendor, _, _, _, _ := Extract(regions)
	if vendor.Confidence < 0.3 || vendor.Confidence > 0.4 {
		t.Errorf("expected desperate fallback confidence in [0.3,0.4], got %v", vendor.Confidence)
	}
}
