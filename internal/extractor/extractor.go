// Package extractor implements the Field Extractor: ranked regex
// patterns applied to a recognizer's text regions, producing the four
// scalar invoice fields and a clamped line-item list.
package extractor

import (
	"regexp"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

const maxLineItems = 10

// rankedPattern is one entry in a field's priority table; the
// first-matched-highest-ranked pattern wins (rank is the table index).
type rankedPattern struct {
	re *regexp.Regexp
}

func confidenceForRank(regionConfidence float64, rank int) float64 {
	return regionConfidence * (1 - 0.05*float64(rank))
}

// Extract runs every field's regex table against regions, in region
// order, and returns the four scalar fields plus the line-item list.
// Absent fields are represented by job.Field{Value: nil, Confidence: 0},
// never by an omitted result.
func Extract(regions []job.TextRegion) (vendor, invoiceNumber, date, total job.Field, lineItems []job.LineItem) {
	vendor = extractVendor(regions)
	invoiceNumber = extractFirstMatch(regions, invoiceNumberPatterns)
	date = extractFirstMatch(regions, datePatterns)
	total = extractTotalAmount(regions)
	lineItems = extractLineItems(regions)
	return
}

// extractFirstMatch is the generic ranked-pattern scan shared by
// invoice-number and date extraction: the first pattern (by rank) that
// matches any region wins, with confidence scaled by rank.
func extractFirstMatch(regions []job.TextRegion, patterns []rankedPattern) job.Field {
	for rank, p := range patterns {
		for _, r := range regions {
			if loc := p.re.FindString(r.Text); loc != "" {
				return job.NewField(loc, confidenceForRank(r.Confidence, rank))
			}
		}
	}
	return job.Field{Value: nil, Confidence: 0}
}

var invoiceNumberPatterns = []rankedPattern{
	{re: regexp.MustCompile(`(?:เลขที่|หมายเลข|INV|No\.?)[:\s]*([A-Z0-9\-/]{3,20})`)},
	{re: regexp.MustCompile(`[A-Z0-9\-/]{3,20}`)},
}

var datePatterns = []rankedPattern{
	{re: regexp.MustCompile(`\d{1,2}\s*(?:มกราคม|กุมภาพันธ์|มีนาคม|เมษายน|พฤษภาคม|มิถุนายน|กรกฎาคม|สิงหาคม|กันยายน|ตุลาคม|พฤศจิกายน|ธันวาคม)\s*\d{2,4}`)},
	{re: regexp.MustCompile(`\d{1,2}\s*(?:ม\.?ค\.?|ก\.?พ\.?|มี\.?ค\.?|เม\.?ย\.?|พ\.?ค\.?|มิ\.?ย\.?|ก\.?ค\.?|ส\.?ค\.?|ก\.?ย\.?|ต\.?ค\.?|พ\.?ย\.?|ธ\.?ค\.?)\s*\d{2,4}`)},
	{re: regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)},
	{re: regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`)},
	{re: regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`)},
	{re: regexp.MustCompile(`\d{1,2}\s*(?:January|February|March|April|May|June|July|August|September|October|November|December)\s*\d{2,4}`)},
}
