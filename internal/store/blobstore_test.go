package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubCloud struct {
	fail bool
	data map[string][]byte
}

func (c *stubCloud) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if c.fail {
		return "", errors.New("cloud unavailable")
	}
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (c *stubCloud) Get(ctx context.Context, key string) ([]byte, error) {
	if c.fail {
		return nil, errors.New("cloud unavailable")
	}
	data, ok := c.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestBlobStorePutLocalOnly(t *testing.T) {
	dir := t.TempDir()
	bs, err := NewBlobStore(dir, nil)
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	key := Key("job-1", "enhanced", "jpg")
	ref, err := bs.Put(context.Background(), key, []byte("data"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref.Provider != "local" {
		t.Errorf("expected provider local, got %v", ref.Provider)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); err != nil {
		t.Errorf("expected local file to exist: %v", err)
	}
}

func TestBlobStorePutCloudAuthoritativeWithLocalCopy(t *testing.T) {
	dir := t.TempDir()
	cloud := &stubCloud{}
	bs, err := NewBlobStore(dir, cloud)
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	key := Key("job-2", "enhanced", "jpg")
	ref, err := bs.Put(context.Background(), key, []byte("data"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref.Provider != "cloud" {
		t.Errorf("expected provider cloud, got %v", ref.Provider)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); err != nil {
		t.Errorf("expected a local inspection copy to also exist: %v", err)
	}
}

func TestBlobStorePutFallsBackToLocalOnCloudFailure(t *testing.T) {
	dir := t.TempDir()
	cloud := &stubCloud{fail: true}
	bs, err := NewBlobStore(dir, cloud)
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	key := Key("job-3", "enhanced", "jpg")
	ref, err := bs.Put(context.Background(), key, []byte("data"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref.Provider != "local" {
		t.Errorf("expected fallback provider local, got %v", ref.Provider)
	}
}
