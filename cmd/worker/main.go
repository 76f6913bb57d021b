// main.go - standalone worker process: dequeues jobs and drives each
// through the Job Orchestrator until told to stop.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/100starsco/invoice-ocr-pipeline/internal/config"
	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
	"github.com/100starsco/invoice-ocr-pipeline/internal/pipeline"
	"github.com/100starsco/invoice-ocr-pipeline/internal/queue"
	"github.com/100starsco/invoice-ocr-pipeline/internal/recognizer"
	"github.com/100starsco/invoice-ocr-pipeline/internal/store"
	"github.com/100starsco/invoice-ocr-pipeline/internal/webhook"
	"github.com/redis/go-redis/v9"
)

// pollDelay is how long a worker sleeps after finding every priority
// band empty, before asking the queue again.
const pollDelay = 500 * time.Millisecond

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func main() {
	config.Load()

	opts, err := redis.ParseURL(config.QueueURL)
	if err != nil {
		log.Fatalf("invalid QUEUE_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	q := queue.New(rdb, "invoice-ocr", time.Duration(config.VisibilityTimeoutSeconds)*time.Second, config.MaxRetries)
	status := queue.NewStatusStore(rdb, "invoice-ocr")

	ctx, cancel := context.WithCancel(context.Background())
	resultStore, err := store.Connect(ctx, config.MongoURI, config.MongoDBName)
	if err != nil {
		log.Fatalf("failed to connect to result store: %v", err)
	}

	blobStore, err := store.NewBlobStore(config.LocalBlobDir, nil)
	if err != nil {
		log.Fatalf("failed to initialize blob store: %v", err)
	}

	primary := recognizer.NewGeminiDetector(config.GeminiAPIKey, config.GeminiModel)
	var secondary recognizer.TextDetector
	if config.DualPassEnabled {
		secondary = recognizer.NewGeminiDetector(config.GeminiAPIKey, config.GeminiModel)
	}
	rec := recognizer.New(primary, secondary, config.DualPassEnabled)

	dispatcher := webhook.New(config.WebhookSecret, webhook.DefaultRetryConfig)

	orch := &pipeline.Orchestrator{
		Recognizer:          rec,
		Dispatcher:          dispatcher,
		Results:             resultStore,
		Blobs:               blobStore,
		Status:              status,
		ConfidenceThreshold: config.ConfidenceThreshold,
		DebugImageDir:       config.DebugImageDir,
		MaxImageDimension:   maxOf(config.MaxImageWidth, config.MaxImageHeight),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("worker: shutdown signal received, draining current job...")
		cancel()
	}()

	log.Println("worker: polling invoice-ocr queue")
	runLoop(ctx, q, orch)
	log.Println("worker: exited")
}

func runLoop(ctx context.Context, q *queue.Queue, orch *pipeline.Orchestrator) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lease, payload, err := q.Dequeue(ctx)
		if err != nil {
			log.Printf("worker: dequeue failed: %v", err)
			time.Sleep(pollDelay)
			continue
		}
		if lease == nil {
			time.Sleep(pollDelay)
			continue
		}

		var j job.Job
		if err := json.Unmarshal(payload, &j); err != nil {
			log.Printf("worker: job %s: malformed payload, discarding: %v", lease.JobID, err)
			_ = q.Complete(ctx, lease, queue.OutcomeFailure)
			continue
		}

		// The in-flight job runs detached from the shutdown signal so it
		// can drain; Run still bounds it with JobTimeout.
		jobCtx := context.WithoutCancel(ctx)
		result := orch.Run(jobCtx, &j)

		outcome := queue.OutcomeSuccess
		if result.Status == job.StatusFailed && (result.ErrorKind == job.ErrorTransient || result.ErrorKind == job.ErrorRecognizerUnavailable) {
			outcome = queue.OutcomeFailure
		}
		if err := q.Complete(jobCtx, lease, outcome); err != nil {
			log.Printf("worker: job %s: completing lease: %v", lease.JobID, err)
		}
	}
}
