package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	body, err := Canonicalize(map[string]interface{}{"b": 1, "a": "x"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(body) != `{"a":"x","b":1}` {
		t.Fatalf("unexpected canonical form: %s", body)
	}
	sig, err := Sign("secret", body)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify("secret", body, sig) {
		t.Fatal("expected signature to verify")
	}
	if Verify("wrong-secret", body, sig) {
		t.Fatal("expected signature verification to fail with wrong secret")
	}
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	var calls int32
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		bodies = append(bodies, buf)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New("test-secret", RetryConfig{
		MaxAttempts: 4,
		Delays:      []time.Duration{0, 0, 0, 0},
		Timeout:     time.Second,
	})

	res, err := d.Deliver(context.Background(), srv.URL, EventCompleted, map[string]interface{}{"job_id": "j1"})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !res.Delivered || res.Attempts != 3 {
		t.Fatalf("expected delivery to succeed on the 3rd attempt, got %+v", res)
	}
}

func TestDeliverNonRetryableStopsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := New("test-secret", RetryConfig{
		MaxAttempts: 4,
		Delays:      []time.Duration{0, 0, 0, 0},
		Timeout:     time.Second,
	})

	res, err := d.Deliver(context.Background(), srv.URL, EventCompleted, map[string]interface{}{"job_id": "j1"})
	if err == nil {
		t.Fatal("expected an error for a non-retryable 4xx response")
	}
	if res.Attempts != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable failure, got %d", res.Attempts)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one HTTP call, got %d", calls)
	}
}
