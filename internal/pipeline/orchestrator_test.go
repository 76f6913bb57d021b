package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
	"github.com/100starsco/invoice-ocr-pipeline/internal/recognizer"
	"github.com/100starsco/invoice-ocr-pipeline/internal/webhook"
)

type stubDetector struct {
	regions []job.TextRegion
	err     error
}

func (d *stubDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]job.TextRegion, error) {
	return d.regions, d.err
}
func (d *stubDetector) Name() string { return "stub-detector" }

type stubResultStore struct {
	stored *job.OCRResult
}

func (s *stubResultStore) Store(ctx context.Context, result *job.OCRResult) error {
	s.stored = result
	return nil
}

func jpegServer(t *testing.T, w, h int) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := 4; y < h-4; y += 6 {
		for x := 2; x < w-2; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "image/jpeg")
		_ = jpeg.Encode(rw, img, nil)
	}))
}

func TestOrchestratorRunCompletesHappyPath(t *testing.T) {
	imgServer := jpegServer(t, 600, 900)
	defer imgServer.Close()

	var callbackHit bool
	callbackServer := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		callbackHit = true
		rw.WriteHeader(http.StatusOK)
	}))
	defer callbackServer.Close()

	detector := &stubDetector{regions: []job.TextRegion{
		{Text: "ร้านอาหารดีใจ", Confidence: 0.95},
		{Text: "รวมทั้งสิ้น 120.00 บาท", Confidence: 0.9},
	}}
	store := &stubResultStore{}
	dispatcher := webhook.New("test-secret", webhook.RetryConfig{MaxAttempts: 1, Delays: []time.Duration{0}, Timeout: 5 * time.Second})

	o := &Orchestrator{
		Recognizer:          recognizer.New(detector, nil, false),
		Dispatcher:          dispatcher,
		Results:             store,
		ConfidenceThreshold: 0.5,
	}

	j := job.New("job-1", imgServer.URL, "user-1", "msg-1", callbackServer.URL)
	result := o.Run(context.Background(), j)

	if result.Status != job.StatusCompleted {
		t.Fatalf("expected job to complete, got status=%v error=%v", result.Status, result.ErrorMessage)
	}
	if store.stored == nil {
		t.Fatal("expected the result store to receive a result")
	}
	if !callbackHit {
		t.Error("expected the completed webhook to be delivered")
	}
}

func TestOrchestratorRunFailsOnRecognizerError(t *testing.T) {
	imgServer := jpegServer(t, 600, 900)
	defer imgServer.Close()

	detector := &stubDetector{err: context.DeadlineExceeded}
	store := &stubResultStore{}
	dispatcher := webhook.New("test-secret", webhook.RetryConfig{MaxAttempts: 1, Delays: []time.Duration{0}, Timeout: 5 * time.Second})

	o := &Orchestrator{
		Recognizer:          recognizer.New(detector, nil, false),
		Dispatcher:          dispatcher,
		Results:             store,
		ConfidenceThreshold: 0.5,
	}

	j := job.New("job-2", imgServer.URL, "user-1", "msg-1", "")
	result := o.Run(context.Background(), j)

	if result.Status != job.StatusFailed {
		t.Fatalf("expected job to fail, got status=%v", result.Status)
	}
	if result.ErrorKind != job.ErrorRecognizerUnavailable {
		t.Errorf("expected ErrorRecognizerUnavailable, got %v", result.ErrorKind)
	}
	if store.stored != nil {
		t.Error("expected no result to be stored on failure")
	}
}
