package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"curator/internal/models"
)

// Dimensions a remote classifier can report.
const (
	DimensionSafety      = "safety"
	DimensionScam        = "scam"
	DimensionEducational = "educational"
)

// RemoteConfig describes an HTTP classifier endpoint.
type RemoteConfig struct {
	Name       string        `mapstructure:"name"`
	URL        string        `mapstructure:"url"`
	Dimension  string        `mapstructure:"dimension"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
	APIKey     string        `mapstructure:"api_key"`
}

type remoteRequest struct {
	Text string `json:"text"`
}

type remoteResponse struct {
	Score      *float64 `json:"score"`
	Confidence *float64 `json:"confidence"`
	Warnings   []string `json:"warnings"`
	Label      string   `json:"label"`
}

// RemoteClassifier posts text to an external scoring service and maps the
// score onto one dimension.
type RemoteClassifier struct {
	name      string
	dimension string
	client    *resty.Client
}

// NewRemoteClassifier validates cfg and builds the HTTP client.
func NewRemoteClassifier(cfg RemoteConfig) (*RemoteClassifier, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("remote classifier name can't be empty")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote classifier %q: url can't be empty", cfg.Name)
	}
	dim := strings.ToLower(cfg.Dimension)
	switch dim {
	case DimensionSafety, DimensionScam, DimensionEducational:
	default:
		return nil, fmt.Errorf("remote classifier %q: unsupported dimension %q", cfg.Name, cfg.Dimension)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &RemoteClassifier{name: cfg.Name, dimension: dim, client: client.SetBaseURL(cfg.URL)}, nil
}

func (r *RemoteClassifier) Name() string { return r.name }

func (r *RemoteClassifier) Classify(ctx context.Context, text string) (models.ClassificationResult, float64, error) {
	var out remoteResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(remoteRequest{Text: text}).
		SetResult(&out).
		Post("")
	if err != nil {
		if ctx.Err() != nil {
			return models.ClassificationResult{}, 0, ctx.Err()
		}
		return models.ClassificationResult{}, 0, fmt.Errorf("remote classifier %s request failed: %w", r.name, err)
	}
	if resp.IsError() {
		return models.ClassificationResult{}, 0, fmt.Errorf("remote classifier %s returned status %d", r.name, resp.StatusCode())
	}
	if out.Score == nil || out.Confidence == nil {
		return models.ClassificationResult{}, 0, &models.ContractViolationError{Field: "score", Reason: "remote classifier " + r.name + " omitted score or confidence"}
	}
	score, conf := *out.Score, *out.Confidence
	if score < 0 || score > 1 {
		return models.ClassificationResult{}, 0, &models.ContractViolationError{Field: "score", Reason: fmt.Sprintf("%v out of range", score)}
	}
	if conf < 0 || conf > 1 {
		return models.ClassificationResult{}, 0, &models.ContractViolationError{Field: "confidence", Reason: fmt.Sprintf("%v out of range", conf)}
	}

	var res models.ClassificationResult
	switch r.dimension {
	case DimensionSafety:
		res.Safety = &models.SafetyDimension{Score: score, Warnings: out.Warnings, Confidence: conf}
	case DimensionScam:
		// score is the probability the text is a scam
		res.Scam = &models.ScamDimension{IsScam: score >= 0.7, ScamConfidence: score, Indicators: out.Warnings, Confidence: conf}
		if res.Scam.IsScam {
			res.Scam.ScamType = models.ScamOther
			if t := models.ScamType(out.Label); t.Valid() {
				res.Scam.ScamType = t
			}
		}
	case DimensionEducational:
		res.Educational = &models.EducationalDimension{Score: score, Confidence: conf, CognitiveLevel: models.CognitiveRemember}
	}
	return res, conf, nil
}
