package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
	"github.com/google/uuid"
)

// CloudBackend is the out-of-process object store a deployment may wire
// in behind BlobStore; no concrete implementation ships in this module
// (see DESIGN.md's Result & Blob Adapters entry for why no cloud SDK is
// hard-wired). A deployment that needs one plugs it in here.
type CloudBackend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (publicURL string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// BlobStore is the Blob Store Adapter: a local directory, and an
// optional cloud backend written to first when configured. Cloud is
// authoritative on success; a cloud failure falls back to the local
// write and records provider "local" on the resulting reference.
type BlobStore struct {
	localDir string
	cloud    CloudBackend
}

// NewBlobStore builds a BlobStore rooted at localDir. cloud may be nil,
// in which case every write is local-only.
func NewBlobStore(localDir string, cloud CloudBackend) (*BlobStore, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local blob directory: %w", err)
	}
	return &BlobStore{localDir: localDir, cloud: cloud}, nil
}

// Key builds the enhanced-images/{job_id}_{type}_{random}.{ext} key the
// specification's Blob Store section names.
func Key(jobID, blobType, ext string) string {
	return fmt.Sprintf("enhanced-images/%s_%s_%s.%s", jobID, blobType, uuid.NewString()[:8], ext)
}

// Put writes data under key. When a cloud backend is configured, it is
// tried first and, on success, also written locally for inspection
// (cloud authoritative); a cloud failure falls back to a local-only
// write, with provider recorded as "local" on the returned reference.
func (b *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (*job.BlobReference, error) {
	localPath := filepath.Join(b.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob subdirectory: %w", err)
	}

	if b.cloud != nil {
		publicURL, err := b.cloud.Put(ctx, key, data, contentType)
		if err == nil {
			// Cloud write succeeded; also keep a local copy for inspection.
			_ = os.WriteFile(localPath, data, 0o644)
			return &job.BlobReference{Provider: "cloud", Key: key, PublicURL: publicURL}, nil
		}
	}

	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write local blob: %w", err)
	}
	return &job.BlobReference{Provider: "local", Key: key, PublicURL: "/blobs/" + key}, nil
}

// Get retrieves a blob by key, preferring the cloud backend when
// configured and falling back to the local copy.
func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if b.cloud != nil {
		if data, err := b.cloud.Get(ctx, key); err == nil {
			return data, nil
		}
	}
	localPath := filepath.Join(b.localDir, filepath.FromSlash(key))
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("blob not found: %w", err)
	}
	return data, nil
}
