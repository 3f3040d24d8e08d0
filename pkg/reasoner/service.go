package reasoner

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"curator/internal/models"
)

// ServiceReasoner posts the request as JSON to a reasoning service that
// answers with the classification schema directly.
type ServiceReasoner struct {
	client *resty.Client
}

// NewServiceReasoner builds a client for the endpoint at url.
func NewServiceReasoner(url, apiKey string, timeout time.Duration) (*ServiceReasoner, error) {
	if url == "" {
		return nil, fmt.Errorf("reasoning service url can't be empty")
	}
	client := resty.New().
		SetBaseURL(url).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &ServiceReasoner{client: client}, nil
}

func (s *ServiceReasoner) Name() string { return "service" }

func (s *ServiceReasoner) Analyze(ctx context.Context, req Request) (models.ClassificationResult, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("")
	if err != nil {
		if ctx.Err() != nil {
			return models.ClassificationResult{}, ctx.Err()
		}
		return models.ClassificationResult{}, fmt.Errorf("reasoning service request failed: %w", err)
	}
	if resp.IsError() {
		return models.ClassificationResult{}, fmt.Errorf("reasoning service returned status %d", resp.StatusCode())
	}
	parsed, err := Parse(resp.Body(), "reasoning:"+s.Name())
	if err != nil {
		return models.ClassificationResult{}, err
	}
	return ApplyVulnerabilityRules(parsed, req.Content, req.userContext()), nil
}
