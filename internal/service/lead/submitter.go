package lead

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Submitter hands a captured lead to the contact-form collaborator.
type Submitter interface {
	Submit(ctx context.Context, req Request) error
}

// HTTPSubmitter posts leads as JSON to an external endpoint. Any 2xx is success.
type HTTPSubmitter struct {
	client   *resty.Client
	endpoint string
}

// NewHTTPSubmitter creates a submitter for endpoint with a bounded timeout.
func NewHTTPSubmitter(endpoint string, timeout time.Duration) *HTTPSubmitter {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPSubmitter{client: client, endpoint: endpoint}
}

// Submit posts {name, email, company, message}. No retries.
func (s *HTTPSubmitter) Submit(ctx context.Context, req Request) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("post lead: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post lead: unexpected status %d", resp.StatusCode())
	}
	return nil
}
