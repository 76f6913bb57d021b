// Package pipeline implements the Image Pipeline and the Job
// Orchestrator that drives a job through it: download, preprocess,
// recognize, extract, store, and notify.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/100starsco/invoice-ocr-pipeline/internal/extractor"
	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
	"github.com/100starsco/invoice-ocr-pipeline/internal/recognizer"
	"github.com/100starsco/invoice-ocr-pipeline/internal/webhook"
)

// JobTimeout bounds the whole orchestrator run, per the specification's
// job-level timeout. A run exceeding it fails with the error kind of the
// step that sees the expired context: ErrorTransient for the download or
// the result store, ErrorRecognizerUnavailable for the recognizer.
const JobTimeout = 300 * time.Second

// ResultStore is the capability the Job Orchestrator needs from the
// Result Store Adapter: persist one completed result.
type ResultStore interface {
	Store(ctx context.Context, result *job.OCRResult) error
}

// BlobStore is the capability the Job Orchestrator needs from the Blob
// Store Adapter: persist the source image and return a reference.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*job.BlobReference, error)
}

// StatusStore is where the lease holder commits j after every stage
// transition, so status queries can read it without contending for the
// lease.
type StatusStore interface {
	Set(ctx context.Context, j *job.Job) error
}

// Orchestrator drives one job through every stage in sequence, advancing
// job.Stage forward-only and never regressing it, per the job model's
// invariant.
type Orchestrator struct {
	Recognizer          *recognizer.Recognizer
	Dispatcher          *webhook.Dispatcher
	Results             ResultStore
	Blobs               BlobStore
	Status              StatusStore
	ConfidenceThreshold float64
	HTTPClient          *http.Client
	DebugImageDir       string
	MaxImageDimension   int
}

func (o *Orchestrator) commit(ctx context.Context, j *job.Job) {
	if o.Status == nil {
		return
	}
	_ = o.Status.Set(ctx, j)
}

// Run drives j from initializing through completed (or failed),
// returning the terminal job state. Every stage transition is committed
// to the StatusStore; JobContext records only a failure, a failed
// job.completed delivery, and completion. A failure at any stage
// short-circuits straight to the job.failed webhook.
func (o *Orchestrator) Run(ctx context.Context, j *job.Job) *job.Job {
	ctx, cancel := context.WithTimeout(ctx, JobTimeout)
	defer cancel()

	jc := NewJobContext(j.JobID)
	j.Start()
	o.commit(ctx, j)

	imgBytes, contentType, err := o.download(ctx, j)
	if err != nil {
		return o.fail(ctx, jc, j, job.ErrorTransient, fmt.Sprintf("download failed: %v", err))
	}
	if err := j.AdvanceStage(job.StageDownloading); err != nil {
		return o.fail(ctx, jc, j, job.ErrorInternal, err.Error())
	}
	o.commit(ctx, j)

	decoded, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return o.fail(ctx, jc, j, job.ErrorInvalidInput, fmt.Sprintf("decode failed: %v", err))
	}

	if err := j.AdvanceStage(job.StagePreprocessing); err != nil {
		return o.fail(ctx, jc, j, job.ErrorInternal, err.Error())
	}
	o.commit(ctx, j)
	pipelineResult := Run(j.JobID, decoded, o.DebugImageDir, o.MaxImageDimension)
	if pipelineResult.SkippedDocument {
		return o.failWithDiagnostics(ctx, jc, j, job.ErrorNonDocument, "image failed document classification gate",
			classificationDiagnostics(pipelineResult.Classification))
	}

	if err := j.AdvanceStage(job.StageOCRExtraction); err != nil {
		return o.fail(ctx, jc, j, job.ErrorInternal, err.Error())
	}
	o.commit(ctx, j)
	regions, err := o.Recognizer.Extract(ctx, pipelineResult.Image, o.ConfidenceThreshold)
	if err != nil {
		return o.fail(ctx, jc, j, job.ErrorRecognizerUnavailable, fmt.Sprintf("recognizer failed: %v", err))
	}

	if err := j.AdvanceStage(job.StageFieldExtraction); err != nil {
		return o.fail(ctx, jc, j, job.ErrorInternal, err.Error())
	}
	o.commit(ctx, j)
	vendor, invoiceNumber, date, total, lineItems := extractor.Extract(regions)

	if err := j.AdvanceStage(job.StagePreparingResult); err != nil {
		return o.fail(ctx, jc, j, job.ErrorInternal, err.Error())
	}
	o.commit(ctx, j)
	meta := job.OCRMetadata{
		PreprocessingApplied: pipelineResult.OperationsApplied,
		OperationsFailed:     toJobStageFailures(pipelineResult.OperationsFailed),
		QualityBefore:        pipelineResult.Classification.Confidence,
		QualityAfter:         ClassifyDocument(pipelineResult.Image).Confidence,
		ProcessingQuality:    job.ProcessingQuality(pipelineResult.Quality),
		ModelDescriptor:      o.Recognizer.PrimaryName(),
		StageTimingsMS:       jc.StageTimingsMS(),
	}
	result := job.NewOCRResult(j.JobID, j.SubmitterID, vendor, invoiceNumber, date, total, lineItems, regions, meta)

	if o.Blobs != nil {
		if ref, err := o.Blobs.Put(ctx, j.JobID, imgBytes, contentType); err == nil {
			j.BlobRef = ref
		}
	}

	if err := j.AdvanceStage(job.StageStoringResult); err != nil {
		return o.fail(ctx, jc, j, job.ErrorInternal, err.Error())
	}
	o.commit(ctx, j)
	if err := o.Results.Store(ctx, result); err != nil {
		return o.fail(ctx, jc, j, job.ErrorTransient, fmt.Sprintf("result store failed: %v", err))
	}

	if err := j.AdvanceStage(job.StageSendingWebhook); err != nil {
		return o.fail(ctx, jc, j, job.ErrorInternal, err.Error())
	}
	o.commit(ctx, j)
	j.Complete(result.JobID)
	o.commit(ctx, j)
	if j.CallbackURL != "" {
		payload := webhook.CompletedPayload(j, result)
		if _, err := o.Dispatcher.Deliver(ctx, j.CallbackURL, webhook.EventCompleted, payload); err != nil {
			// Delivery is best-effort: the job itself is already complete.
			jc.StartStage("sending_webhook")
			jc.EndStage("failed", err.Error())
		}
	}
	jc.StartStage("completed")
	jc.EndStage("success", "")
	_ = jc.Summary()
	return j
}

func (o *Orchestrator) fail(ctx context.Context, jc *JobContext, j *job.Job, kind job.ErrorKind, message string) *job.Job {
	return o.failWithDiagnostics(ctx, jc, j, kind, message, nil)
}

// failWithDiagnostics is fail plus extra fields folded into the
// job.failed webhook body (e.g. the document classifier's sub-scores
// for ErrorNonDocument), per the specification's classification_details
// requirement.
func (o *Orchestrator) failWithDiagnostics(ctx context.Context, jc *JobContext, j *job.Job, kind job.ErrorKind, message string, extra map[string]interface{}) *job.Job {
	j.Fail(kind, message)
	o.commit(ctx, j)
	jc.StartStage("failed")
	jc.EndStage("failed", message)
	if j.CallbackURL != "" {
		diagnostics := map[string]interface{}{
			"error_kind":  string(kind),
			"error_stage": string(j.ErrorStage),
		}
		for k, v := range extra {
			diagnostics[k] = v
		}
		payload := webhook.FailedPayload(j, diagnostics)
		// Best-effort: a dead callback must not mask the underlying failure.
		_, _ = o.Dispatcher.Deliver(ctx, j.CallbackURL, webhook.EventFailed, payload)
	}
	return j
}

// classificationDiagnostics builds the classification_details map the
// job.failed webhook carries for ErrorNonDocument, per spec §4.2.1/S2.
func classificationDiagnostics(c ClassificationResult) map[string]interface{} {
	return map[string]interface{}{
		"classification_details": map[string]interface{}{
			"text_score":       c.TextScore,
			"edge_score":       c.EdgeScore,
			"rect_score":       c.RectScore,
			"brightness_score": c.BrightnessScore,
			"aspect_score":     c.AspectScore,
			"confidence":       c.Confidence,
		},
	}
}

func (o *Orchestrator) download(ctx context.Context, j *job.Job) ([]byte, string, error) {
	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.ImageURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d fetching image", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return body, contentType, nil
}

func toJobStageFailures(failures []StageFailure) []job.StageFailure {
	out := make([]job.StageFailure, len(failures))
	for i, f := range failures {
		out[i] = job.StageFailure{Stage: f.Stage, Reason: f.Reason}
	}
	return out
}
