package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentItem_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		item    ContentItem
		wantErr bool
	}{
		{name: "plain text", item: ContentItem{Text: "hello"}},
		{name: "explicit text type", item: ContentItem{Text: "hello", ContentType: ContentTypeText}},
		{name: "empty", item: ContentItem{Text: ""}, wantErr: true},
		{name: "whitespace only", item: ContentItem{Text: "  \n\t"}, wantErr: true},
		{name: "invalid utf8", item: ContentItem{Text: string([]byte{0xff, 0xfe})}, wantErr: true},
		{name: "image ref", item: ContentItem{Text: "img://1", ContentType: ContentTypeImageRef}, wantErr: true},
		{name: "unknown type", item: ContentItem{Text: "x", ContentType: "audio"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.item.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUserContext_NormalizeIsCanonical(t *testing.T) {
	a := UserContext{
		AgeCategory:          "Adult",
		Jurisdiction:         " us ",
		VulnerabilityFactors: []VulnerabilityFactor{FactorInvestmentScamTarget, FactorElderly, FactorElderly},
	}
	b := UserContext{
		AgeCategory:          AgeAdult,
		Jurisdiction:         "US",
		VulnerabilityFactors: []VulnerabilityFactor{FactorElderly, FactorInvestmentScamTarget},
		SensitivityLevel:     SensitivityMedium,
		ParentalControlLevel: ParentalNone,
	}

	na, nb := a.Normalize(), b.Normalize()
	assert.Equal(t, nb, na)
	assert.Equal(t, []VulnerabilityFactor{FactorElderly, FactorInvestmentScamTarget}, na.VulnerabilityFactors)
	assert.True(t, na.ElderOrCognitive())
	require.NoError(t, na.Validate())
}

func TestUserContext_ValidateRejectsUnknownEnums(t *testing.T) {
	bad := []UserContext{
		{AgeCategory: "toddler"},
		{AgeCategory: AgeAdult, SensitivityLevel: "extreme"},
		{AgeCategory: AgeAdult, ParentalControlLevel: "total"},
		{AgeCategory: AgeAdult, VulnerabilityFactors: []VulnerabilityFactor{"gullible"}},
	}
	for i, uc := range bad {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			err := uc.Normalize().Validate()
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestMergePessimistic(t *testing.T) {
	a := ClassificationResult{
		Safety: &SafetyDimension{Score: 0.9, Warnings: []string{"mild_language"}, AgeAppropriateFloor: 7, Confidence: 0.9, Source: "toxicity"},
		Scam:   &ScamDimension{ScamConfidence: 0.2, Confidence: 0.8, Source: "scam"},
	}
	b := ClassificationResult{
		Safety:      &SafetyDimension{Score: 0.5, Warnings: []string{"sexual_content"}, AgeAppropriateFloor: 17, Confidence: 0.7, Source: "explicit"},
		Educational: &EducationalDimension{Score: 0.6, Confidence: 0.75, Source: "educational"},
		Scam:        &ScamDimension{IsScam: true, ScamConfidence: 0.85, ScamType: ScamInvestment, Indicators: []string{"urgency"}, Confidence: 0.9, Source: "other"},
	}

	merged := MergePessimistic(a, b)

	require.NotNil(t, merged.Safety)
	assert.Equal(t, 0.5, merged.Safety.Score)
	assert.Equal(t, "explicit", merged.Safety.Source)
	assert.Equal(t, 17, merged.Safety.AgeAppropriateFloor)
	assert.Equal(t, 0.7, merged.Safety.Confidence)
	assert.ElementsMatch(t, []string{"mild_language", "sexual_content"}, merged.Safety.Warnings)

	require.NotNil(t, merged.Educational)
	assert.Equal(t, 0.6, merged.Educational.Score)

	require.NotNil(t, merged.Scam)
	assert.True(t, merged.Scam.IsScam)
	assert.Equal(t, 0.85, merged.Scam.ScamConfidence)
	assert.Equal(t, ScamInvestment, merged.Scam.ScamType)
	assert.Equal(t, 0.8, merged.Scam.Confidence)

	assert.Equal(t, 0.7, merged.MinConfidence())

	// inputs are untouched
	assert.Equal(t, 0.9, a.Safety.Score)
	assert.Equal(t, []string{"mild_language"}, a.Safety.Warnings)
}

func TestOverlay_KeepsHigherScamConfidence(t *testing.T) {
	base := ClassificationResult{
		Safety: &SafetyDimension{Score: 0.5, Confidence: 0.5, Source: "classifiers"},
		Scam:   &ScamDimension{IsScam: true, ScamConfidence: 0.9, ScamType: ScamInvestment, Confidence: 0.6},
	}
	deeper := ClassificationResult{
		Safety: &SafetyDimension{Score: 0.95, Confidence: 0.9, Source: "reasoning"},
		Scam:   &ScamDimension{IsScam: false, ScamConfidence: 0.1, Confidence: 0.9},
	}

	out := Overlay(base, deeper)
	assert.Equal(t, 0.95, out.Safety.Score)
	assert.Equal(t, "reasoning", out.Safety.Source)
	assert.True(t, out.Scam.IsScam)
	assert.Equal(t, 0.9, out.Scam.ScamConfidence)
}

func TestCurationResult_CloneIsIndependent(t *testing.T) {
	orig := CurationResult{
		Action:        ActionCaution,
		LayersInvoked: []string{"fast_filter", "classifiers"},
		Classification: ClassificationResult{
			Safety: &SafetyDimension{Score: 0.6, Warnings: []string{"a"}},
		},
		LayerErrors: []LayerError{{Layer: "reasoning", Kind: "timeout"}},
	}
	cp := orig.Clone()
	cp.LayersInvoked[0] = "changed"
	cp.Classification.Safety.Score = 0.1
	cp.Classification.Safety.Warnings[0] = "b"
	cp.LayerErrors[0].Kind = "failure"

	assert.Equal(t, "fast_filter", orig.LayersInvoked[0])
	assert.Equal(t, 0.6, orig.Classification.Safety.Score)
	assert.Equal(t, "a", orig.Classification.Safety.Warnings[0])
	assert.Equal(t, "timeout", orig.LayerErrors[0].Kind)
}

func TestErrorTaxonomy(t *testing.T) {
	contract := &ContractViolationError{Field: "safety.score", Reason: "out of range"}
	failure := fmt.Errorf("reasoning: %w", &LayerFailureError{Layer: "reasoning", Err: contract})

	assert.ErrorIs(t, failure, ErrLayerFailure)
	assert.ErrorIs(t, failure, ErrContractViolation)

	var cv *ContractViolationError
	require.True(t, errors.As(failure, &cv))
	assert.Equal(t, "safety.score", cv.Field)

	cancelled := &CancelledError{Err: context.Canceled}
	assert.ErrorIs(t, cancelled, ErrCancelled)
	assert.ErrorIs(t, cancelled, context.Canceled)

	exhausted := &PipelineExhaustedError{LayerErrors: []LayerError{{Layer: "classifiers", Message: "boom"}}}
	assert.ErrorIs(t, exhausted, ErrPipelineExhausted)
	assert.Contains(t, exhausted.Error(), "classifiers: boom")
}

func TestPriority_TextRoundTrip(t *testing.T) {
	p, ok := ParsePriority("critical")
	require.True(t, ok)
	assert.Equal(t, PriorityCritical, p)

	var q Priority
	require.NoError(t, q.UnmarshalText([]byte("low")))
	assert.Equal(t, PriorityLow, q)
	assert.Error(t, q.UnmarshalText([]byte("urgent")))
}
