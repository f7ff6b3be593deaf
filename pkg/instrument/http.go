package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/perf-analysis/pkg/errors"
)

// httpTraceRequest is the JSON body HTTPSink POSTs, shaped the same way
// internal/scheduler/source.HTTPTaskRequest wraps a single domain object
// plus free-form metadata.
type httpTraceRequest struct {
	Event TraceEvent `json:"event"`
}

// HTTPSink POSTs each TraceEvent as JSON to a collector endpoint.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSink builds an HTTPSink posting to endpoint.
func NewHTTPSink(endpoint string) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Record POSTs ev as JSON to the configured endpoint.
func (s *HTTPSink) Record(ctx context.Context, ev TraceEvent) error {
	body, err := json.Marshal(httpTraceRequest{Event: ev})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "failed to marshal trace event", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeTimeout, "failed to build trace request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeTimeout, "failed to post trace event", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apperrors.New(apperrors.CodeTimeout, fmt.Sprintf("trace sink endpoint returned status %d", resp.StatusCode))
	}
	return nil
}

// Close is a no-op; HTTPSink's client owns no resources that outlive a
// single request.
func (s *HTTPSink) Close() error { return nil }
