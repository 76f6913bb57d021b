package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

const (
	minAmount = 0.0
	maxAmount = 1_000_000.0
)

var amountNumberPattern = regexp.MustCompile(`[\d,]+\.?\d*`)

// totalAmountLabels is ranked highest-priority first, exactly as
// specified: รวมทั้งสิ้น > ยอดสุทธิ > ราคารวม > รวม > ทั้งหมด > เป็นเงิน,
// then currency markers, then a bare numeric format as the last resort.
var totalAmountLabels = []*regexp.Regexp{
	regexp.MustCompile(`รวมทั้งสิ้น[:\s]*([\d,]+\.?\d*)`),
	regexp.MustCompile(`ยอดสุทธิ[:\s]*([\d,]+\.?\d*)`),
	regexp.MustCompile(`ราคารวม[:\s]*([\d,]+\.?\d*)`),
	regexp.MustCompile(`รวม[:\s]*([\d,]+\.?\d*)`),
	regexp.MustCompile(`ทั้งหมด[:\s]*([\d,]+\.?\d*)`),
	regexp.MustCompile(`เป็นเงิน[:\s]*([\d,]+\.?\d*)`),
	regexp.MustCompile(`฿\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`([\d,]+\.?\d*)\s*(?:บาท|THB)`),
	regexp.MustCompile(`([\d,]+\.\d{2})`),
}

type amountCandidate struct {
	value      float64
	confidence float64
	score      float64
}

// extractTotalAmount scans every labeled pattern in priority order
// across every region, collects all valid matches, and picks the one
// with the highest score = confidence * (1 - 0.05*rank); ties go to the
// higher-ranked (earlier) pattern since candidates are scanned in rank
// order and only a strictly greater score replaces the incumbent.
func extractTotalAmount(regions []job.TextRegion) job.Field {
	var best *amountCandidate

	for rank, pattern := range totalAmountLabels {
		for _, r := range regions {
			m := pattern.FindStringSubmatch(r.Text)
			if len(m) < 2 {
				continue
			}
			value, ok := parseAmount(m[1])
			if !ok {
				continue
			}
			score := confidenceForRank(r.Confidence, rank)
			if best == nil || score > best.score {
				best = &amountCandidate{value: value, confidence: confidenceForRank(r.Confidence, rank), score: score}
			}
		}
	}

	if best == nil {
		return job.Field{Value: nil, Confidence: 0}
	}
	return job.NewField(best.value, best.confidence)
}

// parseAmount strips comma grouping and rejects values outside (0, 1e6].
func parseAmount(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if v <= minAmount || v > maxAmount {
		return 0, false
	}
	return v, true
}

// extractLineItems emits an entry for every region containing an
// amount-like token with confidence >= 0.6, clamped to 10 entries.
func extractLineItems(regions []job.TextRegion) []job.LineItem {
	var items []job.LineItem
	for _, r := range regions {
		if r.Confidence < 0.6 {
			continue
		}
		loc := amountNumberPattern.FindStringIndex(r.Text)
		if loc == nil {
			continue
		}
		amountStr := r.Text[loc[0]:loc[1]]
		value, ok := parseAmount(amountStr)
		if !ok {
			continue
		}
		description := strings.TrimSpace(r.Text[:loc[0]] + r.Text[loc[1]:])
		items = append(items, job.LineItem{
			Description: description,
			Amount:      value,
			Confidence:  r.Confidence,
		})
		if len(items) == maxLineItems {
			break
		}
	}
	return items
}
