// Package webhook implements the Webhook Dispatcher: signed POST delivery
// with bounded exponential-backoff retry and a per-callback-host circuit
// breaker.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// RetryConfig mirrors the teacher's internal/ai/gemini_retry.go
// RetryConfig shape, adapted from AI-call retries to webhook delivery:
// up to 4 attempts total (1 initial + 3 retries) with delays {0,1,2,4}s.
type RetryConfig struct {
	MaxAttempts int
	Delays      []time.Duration
	Timeout     time.Duration
}

// DefaultRetryConfig is the delivery policy from the specification's
// Webhook Dispatcher section.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 4,
	Delays:      []time.Duration{0, 1 * time.Second, 2 * time.Second, 4 * time.Second},
	Timeout:     30 * time.Second,
}

// Event names the two webhook payload kinds.
type Event string

const (
	EventCompleted Event = "job.completed"
	EventFailed    Event = "job.failed"
)

// Result records what happened to one delivery, including the exact body
// and signature header sent on every attempt.
type Result struct {
	Delivered    bool
	Attempts     int
	LastStatus   int
	LastErr      error
	RequestBody  []byte
	SignatureHdr string
}

// Dispatcher delivers signed webhooks with retry/backoff and a circuit
// breaker per callback host, so a single dead receiver cannot burn the
// full per-job retry budget on every subsequent job targeting the same
// host (adapted from the teacher's primary/fallback provider selection
// idiom in internal/ai/factory.go, generalized to "stop calling a host
// that's clearly down").
type Dispatcher struct {
	client *http.Client
	secret string
	config RetryConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a Dispatcher. secret is the shared HMAC key; an empty
// secret means signing fails fast (ErrNoSecret) rather than sending
// unsigned payloads.
func New(secret string, config RetryConfig) *Dispatcher {
	return &Dispatcher{
		client:   &http.Client{Timeout: config.Timeout},
		secret:   secret,
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (d *Dispatcher) breakerFor(host string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.breakers[host]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook:" + host,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	d.breakers[host] = b
	return b
}

// Deliver POSTs payload to target with up to config.MaxAttempts
// attempts. Retryable failures (transport timeouts and HTTP 5xx) are
// retried after the configured delay; HTTP 4xx is treated as
// non-retryable (signature rejected or bad payload) and returned
// immediately. The circuit breaker short-circuits delivery entirely
// (counted as a single failed attempt) when the target host has been
// consistently failing.
func (d *Dispatcher) Deliver(ctx context.Context, target string, event Event, payload map[string]interface{}) (*Result, error) {
	body, err := Canonicalize(payload)
	if err != nil {
		return nil, fmt.Errorf("webhook: canonicalizing payload: %w", err)
	}
	sigHeader, err := Sign(d.secret, body)
	if err != nil {
		return nil, err
	}

	host := hostOf(target)
	breaker := d.breakerFor(host)

	res := &Result{RequestBody: body, SignatureHdr: sigHeader}

	for attempt := 0; attempt < d.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.config.Delays[min(attempt, len(d.config.Delays)-1)]
			select {
			case <-ctx.Done():
				res.LastErr = ctx.Err()
				return res, res.LastErr
			case <-time.After(delay):
			}
		}
		res.Attempts = attempt + 1

		status, sendErr := breaker.Execute(func() (interface{}, error) {
			return d.send(ctx, target, event, body, sigHeader)
		})

		if sendErr == nil {
			res.LastStatus = status.(int)
			res.Delivered = true
			return res, nil
		}

		res.LastErr = sendErr
		if !retryable(sendErr) {
			log.Printf("webhook: non-retryable delivery failure to %s: %v", target, sendErr)
			return res, sendErr
		}
		log.Printf("webhook: attempt %d/%d to %s failed (retryable): %v", attempt+1, d.config.MaxAttempts, target, sendErr)
	}

	log.Printf("webhook: delivery to %s exhausted after %d attempts, logging as failed", target, res.Attempts)
	return res, res.LastErr
}

func (d *Dispatcher) send(ctx context.Context, target string, event Event, body []byte, sigHeader string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, &deliveryError{retryable: false, err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "OCR-Service/1.0")
	req.Header.Set("X-Webhook-Signature", sigHeader)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &deliveryError{retryable: true, err: err} // transport timeout / connection failure
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &deliveryError{retryable: true, err: fmt.Errorf("server error: %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, &deliveryError{retryable: false, err: fmt.Errorf("client error: %d", resp.StatusCode)}
	}
	return resp.StatusCode, nil
}

type deliveryError struct {
	retryable bool
	err       error
}

func (e *deliveryError) Error() string { return e.err.Error() }
func (e *deliveryError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var de *deliveryError
	if ok := asDeliveryError(err, &de); ok {
		return de.retryable
	}
	// gobreaker.ErrOpenState / ErrTooManyRequests are not retryable: an
	// open breaker ends the delivery after one attempt, and the breaker
	// itself lets a probe through once its timeout elapses.
	return false
}

func asDeliveryError(err error, target **deliveryError) bool {
	de, ok := err.(*deliveryError)
	if ok {
		*target = de
	}
	return ok
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Host
}
