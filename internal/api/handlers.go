// Package api implements the Job Submission Service's HTTP surface:
// job submission, status polling, and a health check.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
	"github.com/100starsco/invoice-ocr-pipeline/internal/queue"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// estimatedProcessingSeconds is returned on submission; it is a fixed
// heuristic rather than a computed queue-depth estimate.
const estimatedProcessingSeconds = 60

// JobLookup is the capability handlers need to answer status queries:
// read-only, no lease involved, matching the specification's
// "status queries never take a lease" rule.
type JobLookup interface {
	Get(ctx context.Context, jobID string) (*job.Job, error)
}

// Pinger is the connectivity-check capability the health endpoint needs
// from the queue substrate and the result store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the API's collaborators.
type Handlers struct {
	Queue   *queue.Queue
	Lookup  JobLookup
	Results Pinger
	APIKey  string
}

// processInvoiceRequest is the submission endpoint's JSON body.
type processInvoiceRequest struct {
	ImageURL    string `json:"image_url"`
	UserID      string `json:"user_id"`
	MessageID   string `json:"message_id"`
	WebhookURL  string `json:"webhook_url"`
	Priority    string `json:"priority,omitempty"`
}

// RequireAPIKey rejects requests missing a valid X-API-Key header. When
// no API key is configured, every request is let through.
func (h *Handlers) RequireAPIKey(c *gin.Context) {
	if h.APIKey == "" {
		c.Next()
		return
	}
	if c.GetHeader("X-API-Key") != h.APIKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid API key"})
		return
	}
	c.Next()
}

// ProcessInvoice handles POST /api/v1/jobs/process-invoice: validates
// the request, enqueues a new job, and returns its tracking id.
func (h *Handlers) ProcessInvoice(c *gin.Context) {
	var req processInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.ImageURL == "" || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_url and user_id are required"})
		return
	}

	j := job.New(uuid.NewString(), req.ImageURL, req.UserID, req.MessageID, req.WebhookURL)
	if req.Priority != "" {
		j.Priority = job.Priority(req.Priority)
	}

	payload, err := json.Marshal(j)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode job payload"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.Queue.Enqueue(ctx, j.JobID, j.Priority, payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":         j.JobID,
		"status":         string(job.StatusQueued),
		"estimated_time": estimatedProcessingSeconds,
	})
}

// JobStatus handles GET /api/v1/jobs/:job_id/status.
func (h *Handlers) JobStatus(c *gin.Context) {
	jobID := c.Param("job_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	j, err := h.Lookup.Get(ctx, jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	resp := gin.H{
		"job_id":   j.JobID,
		"status":   j.Status,
		"progress": j.Progress,
	}
	if j.Status == job.StatusCompleted {
		resp["result_id"] = j.ResultID
	}
	if j.Status == job.StatusFailed {
		resp["error"] = gin.H{"kind": j.ErrorKind, "message": j.ErrorMessage, "stage": j.ErrorStage}
	}
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /healthz: reports queue and result-store
// connectivity with ping latency, per the health-check surface's
// contract.
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	queueCheck := pingCheck(ctx, h.Queue)
	resultStoreCheck := pingCheck(ctx, h.Results)

	status := http.StatusOK
	overall := "ok"
	if queueCheck["status"] != "ok" || resultStoreCheck["status"] != "ok" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":       overall,
		"service":      "invoice-ocr-pipeline",
		"queue":        queueCheck,
		"result_store": resultStoreCheck,
	})
}

func pingCheck(ctx context.Context, p Pinger) gin.H {
	if p == nil {
		return gin.H{"status": "unconfigured"}
	}
	start := time.Now()
	err := p.Ping(ctx)
	latencyMS := time.Since(start).Milliseconds()
	if err != nil {
		return gin.H{"status": "unreachable", "error": err.Error(), "latency_ms": latencyMS}
	}
	return gin.H{"status": "ok", "latency_ms": latencyMS}
}

// QueueStats handles GET /api/v1/queue/stats: pending/active/completed/
// failed counts, read without taking any lease.
func (h *Handlers) QueueStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Queue.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue stats: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
