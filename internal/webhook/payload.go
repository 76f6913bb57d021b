package webhook

import (
	"fmt"
	"time"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

// CompletedPayload builds the job.completed event body per the
// specification's external-interfaces section.
func CompletedPayload(j *job.Job, result *job.OCRResult) map[string]interface{} {
	lineItems := make([]map[string]interface{}, 0, len(result.LineItems))
	for _, li := range result.LineItems {
		lineItems = append(lineItems, map[string]interface{}{
			"description": li.Description,
			"amount":      li.Amount,
			"confidence":  li.Confidence,
		})
	}
	return map[string]interface{}{
		"event":           string(EventCompleted),
		"job_id":          j.JobID,
		"user_id":         j.SubmitterID,
		"message_id":      j.MessageID,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"processing_time": j.ProcessingTime.Seconds(),
		"result": map[string]interface{}{
			"vendor":           result.Vendor.Value,
			"amount":           result.TotalAmount.Value,
			"date":             result.Date.Value,
			"invoice_number":   result.InvoiceNumber.Value,
			"confidence_score": result.OverallConfidence,
			"invoice_summary":  fmt.Sprintf("%v - %v฿", result.Vendor.Value, result.TotalAmount.Value),
			"line_items":       lineItems,
			"ocr_metadata":     result.Metadata,
		},
	}
}

// FailedPayload builds the job.failed event body, optionally carrying
// diagnostic fields (e.g. document-classification sub-scores).
func FailedPayload(j *job.Job, diagnostics map[string]interface{}) map[string]interface{} {
	p := map[string]interface{}{
		"event":      string(EventFailed),
		"job_id":     j.JobID,
		"user_id":    j.SubmitterID,
		"message_id": j.MessageID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"error":      j.ErrorMessage,
		"stage":      string(j.ErrorStage),
	}
	for k, v := range diagnostics {
		p[k] = v
	}
	return p
}
