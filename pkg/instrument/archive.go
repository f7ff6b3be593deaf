package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/tencentyun/cos-go-sdk-v5"

	apperrors "github.com/perf-analysis/pkg/errors"
)

// ArchiveConfig configures ObjectStorageSink, mirroring
// internal/storage.COSConfig field-for-field since both build the same
// cos.Client.
type ArchiveConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string
	Scheme    string

	// BatchSize is how many events accumulate before Record flushes them
	// as one object. 0 or less means 500.
	BatchSize int
}

// ObjectStorageSink batches TraceEvents as newline-delimited JSON objects
// uploaded to Tencent Cloud COS, grounded on internal/storage.COSStorage.
type ObjectStorageSink struct {
	client *cos.Client
	bucket string

	mu      sync.Mutex
	buf     []TraceEvent
	batch   int
	flushed int
}

// NewObjectStorageSink builds an ObjectStorageSink from cfg.
func NewObjectStorageSink(cfg ArchiveConfig) (*ObjectStorageSink, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "bucket and region are required for archive sink")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "credentials are required for archive sink")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, cfg.Bucket, cfg.Region, domain))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to parse archive bucket URL", err)
	}
	serviceURL, err := url.Parse(fmt.Sprintf("%s://cos.%s.%s", scheme, cfg.Region, domain))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to parse archive service URL", err)
	}

	client := cos.NewClient(&cos.BaseURL{
		BucketURL:  bucketURL,
		ServiceURL: serviceURL,
	}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}

	return &ObjectStorageSink{client: client, bucket: cfg.Bucket, batch: batch}, nil
}

// Record buffers ev, flushing the whole buffer as one object once it
// reaches the configured batch size.
func (s *ObjectStorageSink) Record(ctx context.Context, ev TraceEvent) error {
	s.mu.Lock()
	s.buf = append(s.buf, ev)
	full := len(s.buf) >= s.batch
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush uploads every buffered event as one newline-delimited-JSON
// object and clears the buffer.
func (s *ObjectStorageSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	events := s.buf
	s.buf = nil
	s.flushed++
	key := fmt.Sprintf("traces/batch-%05d.ndjson", s.flushed)
	s.mu.Unlock()

	if len(events) == 0 {
		return nil
	}

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "failed to encode trace event batch", err)
		}
	}

	if _, err := s.client.Object.Put(ctx, key, &out, nil); err != nil {
		return apperrors.Wrap(apperrors.CodeUploadError, "failed to upload trace event batch to COS", err)
	}
	return nil
}

// Close flushes any remaining buffered events.
func (s *ObjectStorageSink) Close() error {
	return s.Flush(context.Background())
}
