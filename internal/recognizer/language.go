package recognizer

import (
	"strings"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

// scriptRatioSet holds the character-class ratios used for language
// detection, ported from original_source/app/utils/language_detector.py's
// detect_text_language.
type scriptRatioSet struct {
	thai    float64
	english float64
	digit   float64
}

func scriptRatios(text string) scriptRatioSet {
	runes := []rune(text)
	total := 0
	var thai, english, digit int
	for _, r := range runes {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			continue
		case r >= 0x0E00 && r <= 0x0E7F:
			thai++
			total++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			english++
			total++
		case (r >= '0' && r <= '9') || (r >= 0x0E50 && r <= 0x0E59):
			digit++
			total++
		default:
			total++
		}
	}
	if total == 0 {
		return scriptRatioSet{}
	}
	return scriptRatioSet{
		thai:    float64(thai) / float64(total),
		english: float64(english) / float64(total),
		digit:   float64(digit) / float64(total),
	}
}

// DetectScript classifies text's dominant script, porting the thresholds
// from the original language detector: Thai > 30% is "th" (or "mixed" if
// Latin also exceeds 20%); Latin > 50% is "en"; digits > 60% is
// "numeric"; otherwise "unknown".
func DetectScript(text string) job.Script {
	r := scriptRatios(text)
	switch {
	case r.thai > 0.3:
		if r.english > 0.2 {
			return job.ScriptMixed
		}
		return job.ScriptThai
	case r.english > 0.5:
		return job.ScriptEnglish
	case r.digit > 0.6:
		return job.ScriptNumeric
	default:
		return job.ScriptUnknown
	}
}

// thaiInvoiceKeywords are the fixed Thai invoice keywords from
// original_source/app/utils/language_detector.py's
// has_thai_invoice_keywords (SPEC_FULL.md §C.4). The Field Extractor
// excludes regions containing them from the vendor short-region
// fallback; the total-amount path does not consult them.
var thaiInvoiceKeywords = []string{
	"ใบเสร็จ", "ใบกำกับภาษี", "บริษัท", "ร้าน", "ราคา",
	"รวม", "บาท", "ยอดรวม", "เลขที่", "วันที่", "ภาษี",
}

// HasThaiInvoiceKeyword reports whether text contains any of the fixed
// Thai invoice keywords.
func HasThaiInvoiceKeyword(text string) bool {
	for _, kw := range thaiInvoiceKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
