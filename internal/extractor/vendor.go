package extractor

import (
	"regexp"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
	"github.com/100starsco/invoice-ocr-pipeline/internal/recognizer"
)

// vendorPrefixes/vendorSuffixes are the Thai company-name affixes ported
// from internal/processor/vendor_matcher.go's normalizeVendorName, reused
// here to recognize (rather than strip) vendor-line markers.
var vendorPrefixes = regexp.MustCompile(`(ร้าน|บริษัท|ห้างหุ้นส่วน|ห้าง|ผู้ขาย)[\s]*([^\n]{2,60})`)
var vendorSuffixes = regexp.MustCompile(`([^\n]{2,60}?)\s*(Company|Corp|Inc|Ltd)\b`)

// vendorKeywordPattern marks a region as an unlikely vendor candidate (totals,
// dates, tax IDs) for the desperate-fallback path.
var vendorKeywordPattern = regexp.MustCompile(`(รวม|ยอด|ภาษี|เลขที่|วันที่|[0-9]{6,})`)

// extractVendor applies the prefix/suffix patterns first; absent a
// match, falls back to the highest-confidence short non-keyword region
// among the first three detected regions; absent that, to the region
// maximizing length*confidence with confidence scaled into [0.3, 0.4].
func extractVendor(regions []job.TextRegion) job.Field {
	for _, r := range regions {
		if m := vendorPrefixes.FindStringSubmatch(r.Text); len(m) > 0 {
			// The whole match is prefix+name (e.g. "ร้านอาหารดีใจ"); the
			// prefix word is part of the vendor name, not noise to strip.
			return job.NewField(m[0], confidenceForRank(r.Confidence, 0))
		}
	}
	for _, r := range regions {
		if m := vendorSuffixes.FindStringSubmatch(r.Text); len(m) > 0 {
			// Group 1 is the name; group 2 is the legal-entity keyword
			// itself (Company/Corp/...), which is not part of the name.
			return job.NewField(m[1], confidenceForRank(r.Confidence, 1))
		}
	}

	if field, ok := shortNonKeywordFallback(regions); ok {
		return field
	}

	return desperateVendorFallback(regions)
}

func shortNonKeywordFallback(regions []job.TextRegion) (job.Field, bool) {
	limit := 3
	if len(regions) < limit {
		limit = len(regions)
	}
	best := -1.0
	var bestText string
	found := false
	for _, r := range regions[:limit] {
		if vendorKeywordPattern.MatchString(r.Text) || recognizer.HasThaiInvoiceKeyword(r.Text) {
			continue
		}
		if len([]rune(r.Text)) > 60 {
			continue
		}
		if r.Confidence > best {
			best = r.Confidence
			bestText = r.Text
			found = true
		}
	}
	if !found {
		return job.Field{}, false
	}
	return job.NewField(bestText, best), true
}

func desperateVendorFallback(regions []job.TextRegion) job.Field {
	if len(regions) == 0 {
		return job.Field{Value: nil, Confidence: 0}
	}
	bestScore := -1.0
	bestIdx := 0
	for i, r := range regions {
		score := float64(len([]rune(r.Text))) * r.Confidence
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	// Scale confidence down into [0.3, 0.4] since this is a last-resort guess.
	scaled := 0.3 + 0.1*regions[bestIdx].Confidence
	return job.NewField(regions[bestIdx].Text, scaled)
}
