package reasoner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"curator/internal/config"
	"curator/internal/costtracker"
	"curator/internal/models"
)

// ChatCompletionCreator is the part of the OpenAI client the reasoner needs.
type ChatCompletionCreator interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIReasoner calls an OpenAI-compatible chat completion endpoint with a
// JSON response format.
type OpenAIReasoner struct {
	client         ChatCompletionCreator
	model          string
	promptTemplate string

	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewOpenAIReasoner builds a reasoner around an OpenAI-compatible client.
// costTracker and pricing may be nil.
func NewOpenAIReasoner(client ChatCompletionCreator, model, prompt string, costTracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *OpenAIReasoner {
	return &OpenAIReasoner{
		client:         client,
		model:          model,
		promptTemplate: prompt,
		costTracker:    costTracker,
		pricing:        pricing,
	}
}

func (r *OpenAIReasoner) Name() string { return "openai" }

func (r *OpenAIReasoner) Analyze(ctx context.Context, req Request) (models.ClassificationResult, error) {
	if r.client == nil {
		return models.ClassificationResult{}, fmt.Errorf("openai reasoner is not initialized with a client")
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(r.promptTemplate, req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return models.ClassificationResult{}, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.ClassificationResult{}, &models.ContractViolationError{Field: "choices", Reason: "no choices returned from OpenAI"}
	}

	r.recordCost(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	parsed, err := Parse([]byte(content), "reasoning:"+r.Name())
	if err != nil {
		log.WithError(err).WithField("model", r.model).Debugf("rejected reasoning response: %s", content)
		return models.ClassificationResult{}, err
	}
	return ApplyVulnerabilityRules(parsed, req.Content, req.userContext()), nil
}

func (r *OpenAIReasoner) recordCost(ctx context.Context, inputTokens, outputTokens int) {
	if r.costTracker == nil || inputTokens+outputTokens == 0 {
		return
	}
	recordUsage(ctx, r.costTracker, r.pricing, r.Name(), r.model, inputTokens, outputTokens)
}

// recordUsage prices a call and records it. Missing pricing is logged and
// skipped.
func recordUsage(ctx context.Context, ct costtracker.CostTracker, pricing map[string]config.PricingInfo, provider, model string, inputTokens, outputTokens int) {
	price, ok := pricing[model]
	if !ok {
		log.Warnf("Pricing info not found for model '%s'. Cannot record cost for reasoning.", model)
		return
	}
	event := costtracker.CostEvent{
		Operation: "reasoning",
		Provider:  provider,
		AmountUSD: float64(inputTokens)*price.InputPerToken + float64(outputTokens)*price.OutputPerToken,
		Details: map[string]interface{}{
			"model_name":    model,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := ct.RecordCost(ctx, event); err != nil {
		log.Errorf("Failed to record AI usage for reasoning: %v", err)
		return
	}
	log.WithFields(log.Fields{
		"provider":      provider,
		"model":         model,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
		"cost":          event.AmountUSD,
	}).Debug("recorded reasoning cost")
}
