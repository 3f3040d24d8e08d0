// Package reasoner asks an external language model for a structured
// classification of content the cheaper layers could not settle.
package reasoner

import (
	"context"

	"curator/internal/models"
)

// LayerName is the name recorded in LayersInvoked and LayerErrors.
const LayerName = "reasoning"

// Reasoner produces a full classification for one request. Implementations
// return a ContractViolationError for responses that do not match the schema.
type Reasoner interface {
	Name() string
	Analyze(ctx context.Context, req Request) (models.ClassificationResult, error)
}

// Request is the wire request sent to a reasoning service.
type Request struct {
	Content     string         `json:"content"`
	UserContext RequestContext `json:"userContext"`
}

// RequestContext carries the user fields the reasoning service may see.
// Parental control settings stay local to the policy engine.
type RequestContext struct {
	AgeCategory          models.AgeCategory           `json:"ageCategory"`
	Jurisdiction         string                       `json:"jurisdiction,omitempty"`
	VulnerabilityFactors []models.VulnerabilityFactor `json:"vulnerabilityFactors"`
	SensitivityLevel     models.SensitivityLevel      `json:"sensitivityLevel"`
}

// NewRequest builds a request from content text and a user context.
func NewRequest(text string, uc models.UserContext) Request {
	uc = uc.Normalize()
	factors := uc.VulnerabilityFactors
	if factors == nil {
		factors = []models.VulnerabilityFactor{}
	}
	return Request{
		Content: text,
		UserContext: RequestContext{
			AgeCategory:          uc.AgeCategory,
			Jurisdiction:         uc.Jurisdiction,
			VulnerabilityFactors: factors,
			SensitivityLevel:     uc.SensitivityLevel,
		},
	}
}

// userContext turns the request context back into a models.UserContext for
// the local scam rules.
func (r Request) userContext() models.UserContext {
	return models.UserContext{
		AgeCategory:          r.UserContext.AgeCategory,
		Jurisdiction:         r.UserContext.Jurisdiction,
		VulnerabilityFactors: r.UserContext.VulnerabilityFactors,
		SensitivityLevel:     r.UserContext.SensitivityLevel,
	}.Normalize()
}
