package reasoner

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"curator/internal/config"
	"curator/internal/costtracker"
	"curator/internal/models"
)

// ContentGenerator is the part of a genai.GenerativeModel the reasoner needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiReasoner calls Gemini with a JSON response MIME type.
type GeminiReasoner struct {
	client         *genai.Client
	model          ContentGenerator
	modelName      string
	promptTemplate string

	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewGeminiReasoner creates a Gemini client for modelName.
func NewGeminiReasoner(ctx context.Context, apiKey, modelName, prompt string, costTracker costtracker.CostTracker, pricing map[string]config.PricingInfo) (*GeminiReasoner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key not provided")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	gm := client.GenerativeModel(modelName)
	gm.ResponseMIMEType = "application/json"
	gm.SetTemperature(0)

	r := newGeminiWithGenerator(gm, modelName, prompt, costTracker, pricing)
	r.client = client
	return r, nil
}

func newGeminiWithGenerator(gen ContentGenerator, modelName, prompt string, costTracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *GeminiReasoner {
	return &GeminiReasoner{
		model:          gen,
		modelName:      modelName,
		promptTemplate: prompt,
		costTracker:    costTracker,
		pricing:        pricing,
	}
}

func (r *GeminiReasoner) Name() string { return "gemini" }

func (r *GeminiReasoner) Analyze(ctx context.Context, req Request) (models.ClassificationResult, error) {
	resp, err := r.model.GenerateContent(ctx, genai.Text(BuildPrompt(r.promptTemplate, req)))
	if err != nil {
		return models.ClassificationResult{}, fmt.Errorf("gemini generate content failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return models.ClassificationResult{}, &models.ContractViolationError{Field: "candidates", Reason: "no candidates returned from Gemini"}
	}
	if r.costTracker != nil && resp.UsageMetadata != nil {
		recordUsage(ctx, r.costTracker, r.pricing, r.Name(), r.modelName,
			int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	parsed, err := Parse([]byte(sb.String()), "reasoning:"+r.Name())
	if err != nil {
		return models.ClassificationResult{}, err
	}
	return ApplyVulnerabilityRules(parsed, req.Content, req.userContext()), nil
}

// Close releases the underlying client.
func (r *GeminiReasoner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
