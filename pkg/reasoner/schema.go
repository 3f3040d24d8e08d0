package reasoner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"curator/internal/models"
	"curator/internal/textsignals"
)

const maxAgeFloor = 18

type wireSafety struct {
	Score               *float64 `json:"score"`
	Warnings            []string `json:"warnings"`
	AgeAppropriateFloor *int     `json:"ageAppropriateFloor"`
	Confidence          *float64 `json:"confidence"`
}

type wireEducational struct {
	Score          *float64 `json:"score"`
	SubjectAreas   []string `json:"subjectAreas"`
	CognitiveLevel string   `json:"cognitiveLevel"`
	Confidence     *float64 `json:"confidence"`
}

type wireViewpoint struct {
	PoliticalLeaning string   `json:"politicalLeaning"`
	BiasScore        *float64 `json:"biasScore"`
	Credibility      *float64 `json:"credibility"`
	Confidence       *float64 `json:"confidence"`
}

type wireScam struct {
	IsScam         *bool    `json:"isScam"`
	ScamConfidence *float64 `json:"scamConfidence"`
	ScamType       string   `json:"scamType"`
	Indicators     []string `json:"indicators"`
	Confidence     *float64 `json:"confidence"`
}

// Response is the structured output every provider must return.
type Response struct {
	Safety      *wireSafety      `json:"safety"`
	Educational *wireEducational `json:"educational"`
	Viewpoint   *wireViewpoint   `json:"viewpoint"`
	Scam        *wireScam        `json:"scam"`
	Reasoning   string           `json:"reasoning,omitempty"`
}

// Parse decodes and validates a provider response. Unknown fields, missing
// dimensions and out-of-range values are contract violations; nothing is
// coerced into range.
func Parse(raw []byte, source string) (models.ClassificationResult, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	var resp Response
	if err := dec.Decode(&resp); err != nil {
		return models.ClassificationResult{}, &models.ContractViolationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return resp.toClassification(source)
}

func (r Response) toClassification(source string) (models.ClassificationResult, error) {
	var v validator
	var out models.ClassificationResult

	if r.Safety == nil {
		v.fail("safety", "missing")
	} else {
		s := &models.SafetyDimension{
			Score:      v.unit("safety.score", r.Safety.Score),
			Warnings:   r.Safety.Warnings,
			Confidence: v.unit("safety.confidence", r.Safety.Confidence),
			Source:     source,
		}
		switch {
		case r.Safety.AgeAppropriateFloor == nil:
			v.fail("safety.ageAppropriateFloor", "missing")
		case *r.Safety.AgeAppropriateFloor < 0 || *r.Safety.AgeAppropriateFloor > maxAgeFloor:
			v.fail("safety.ageAppropriateFloor", fmt.Sprintf("%d outside [0, %d]", *r.Safety.AgeAppropriateFloor, maxAgeFloor))
		default:
			s.AgeAppropriateFloor = *r.Safety.AgeAppropriateFloor
		}
		out.Safety = s
	}

	if r.Educational == nil {
		v.fail("educational", "missing")
	} else {
		level := models.CognitiveLevel(r.Educational.CognitiveLevel)
		if !level.Valid() {
			v.fail("educational.cognitiveLevel", fmt.Sprintf("unknown level %q", r.Educational.CognitiveLevel))
		}
		out.Educational = &models.EducationalDimension{
			Score:          v.unit("educational.score", r.Educational.Score),
			SubjectAreas:   r.Educational.SubjectAreas,
			CognitiveLevel: level,
			Confidence:     v.unit("educational.confidence", r.Educational.Confidence),
			Source:         source,
		}
	}

	if r.Viewpoint == nil {
		v.fail("viewpoint", "missing")
	} else {
		leaning := models.PoliticalLeaning(r.Viewpoint.PoliticalLeaning)
		if !leaning.Valid() {
			v.fail("viewpoint.politicalLeaning", fmt.Sprintf("unknown leaning %q", r.Viewpoint.PoliticalLeaning))
		}
		out.Viewpoint = &models.ViewpointDimension{
			PoliticalLeaning: leaning,
			BiasScore:        v.unit("viewpoint.biasScore", r.Viewpoint.BiasScore),
			Credibility:      v.unit("viewpoint.credibility", r.Viewpoint.Credibility),
			Confidence:       v.unit("viewpoint.confidence", r.Viewpoint.Confidence),
			Source:           source,
		}
	}

	if r.Scam == nil {
		v.fail("scam", "missing")
	} else {
		s := &models.ScamDimension{
			ScamConfidence: v.unit("scam.scamConfidence", r.Scam.ScamConfidence),
			Indicators:     r.Scam.Indicators,
			Confidence:     v.unit("scam.confidence", r.Scam.Confidence),
			Source:         source,
		}
		if r.Scam.IsScam == nil {
			v.fail("scam.isScam", "missing")
		} else {
			s.IsScam = *r.Scam.IsScam
		}
		if r.Scam.ScamType != "" {
			s.ScamType = models.ScamType(r.Scam.ScamType)
			if !s.ScamType.Valid() {
				v.fail("scam.scamType", fmt.Sprintf("unknown type %q", r.Scam.ScamType))
			}
		} else if s.IsScam {
			v.fail("scam.scamType", "required when isScam is true")
		}
		out.Scam = s
	}

	if v.err != nil {
		return models.ClassificationResult{}, v.err
	}
	return out, nil
}

// validator keeps the first violation found.
type validator struct {
	err *models.ContractViolationError
}

func (v *validator) fail(field, reason string) {
	if v.err == nil {
		v.err = &models.ContractViolationError{Field: field, Reason: reason}
	}
}

func (v *validator) unit(field string, p *float64) float64 {
	if p == nil {
		v.fail(field, "missing")
		return 0
	}
	if math.IsNaN(*p) || *p < 0 || *p > 1 {
		v.fail(field, fmt.Sprintf("%v outside [0, 1]", *p))
		return 0
	}
	return *p
}

// Per-indicator scam confidence boost, and the extra boost when the user has
// any vulnerability factor.
const (
	indicatorBoost  = 0.1
	vulnerableBoost = 0.1
	scamFlagLevel   = 0.8
)

// ApplyVulnerabilityRules raises the scam confidence of a parsed result for
// every pressure tactic found in the text. The boost is larger for users with
// vulnerability factors. The model's own reading is never lowered.
func ApplyVulnerabilityRules(c models.ClassificationResult, text string, uc models.UserContext) models.ClassificationResult {
	indicators := textsignals.Scan(text).ScamIndicators()
	if len(indicators) == 0 {
		return c
	}
	out := c.Clone()
	if out.Scam == nil {
		out.Scam = &models.ScamDimension{}
	}
	step := indicatorBoost
	if len(uc.VulnerabilityFactors) > 0 {
		step += vulnerableBoost
	}
	boosted := math.Min(1, out.Scam.ScamConfidence+step*float64(len(indicators)))
	out.Scam.ScamConfidence = math.Round(boosted*1000) / 1000
	out.Scam.Indicators = appendMissing(out.Scam.Indicators, indicators)
	if out.Scam.ScamConfidence >= scamFlagLevel {
		out.Scam.IsScam = true
		if out.Scam.ScamType == "" {
			out.Scam.ScamType = models.ScamOther
		}
	}
	return out
}

func appendMissing(list, add []string) []string {
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range add {
		if !seen[strings.ToLower(s)] {
			list = append(list, s)
			seen[strings.ToLower(s)] = true
		}
	}
	return list
}
