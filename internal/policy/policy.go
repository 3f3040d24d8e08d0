// Package policy maps a classification and a user's safety profile to a final
// action. Everything here is pure: no clock, no network, no shared state.
package policy

import (
	"fmt"
	"math"
	"strings"

	"curator/internal/models"
)

// Rule names identify which policy rule produced a decision.
const (
	RuleScamVulnerable   = "scam_vulnerable_user"
	RuleNoSafety         = "no_safety_assessment"
	RuleSafetyFloor      = "safety_below_floor"
	RuleAgeRating        = "age_rating_exceeded"
	RuleCautionBand      = "safety_caution_band"
	RuleEducationalOnly  = "educational_only"
	RuleDefaultAllow     = "default_allow"
	maxAdjustedFloor     = 0.9
	defaultCautionBand   = 0.2
	defaultBlockFloor    = 0.4
	defaultSufficient    = 0.8
	defaultScamBlock     = 0.8
	defaultEducationalMn = 0.5
)

// RatingMinimumAge maps a content rating ceiling to the minimum viewer age.
var RatingMinimumAge = map[string]int{
	"G":     0,
	"PG":    7,
	"PG-13": 13,
	"R":     17,
}

// Thresholds are the per-strategy knobs the policy reads.
type Thresholds struct {
	// SufficientConfidence is the confidence at which a layer's answer is final.
	SufficientConfidence float64 `json:"sufficientConfidence" mapstructure:"sufficient_confidence"`
	// BlockThreshold is the base safety floor before adjustments.
	BlockThreshold float64 `json:"blockThreshold" mapstructure:"block_threshold"`
	// CautionBand is the width of the caution band above the floor.
	CautionBand float64 `json:"cautionBand" mapstructure:"caution_band"`
	// ScamBlockConfidence blocks likely scams for elder/cognitive users.
	ScamBlockConfidence float64 `json:"scamBlockConfidence" mapstructure:"scam_block_confidence"`
	// EducationalOnly lets only educational content pass.
	EducationalOnly    bool    `json:"educationalOnly" mapstructure:"educational_only"`
	EducationalMinimum float64 `json:"educationalMinimum" mapstructure:"educational_minimum"`
	// JurisdictionFloors overrides the base floor per jurisdiction code.
	JurisdictionFloors map[string]float64 `json:"jurisdictionFloors,omitempty" mapstructure:"jurisdiction_floors"`
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SufficientConfidence: defaultSufficient,
		BlockThreshold:       defaultBlockFloor,
		CautionBand:          defaultCautionBand,
		ScamBlockConfidence:  defaultScamBlock,
		EducationalMinimum:   defaultEducationalMn,
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	Action     models.Action
	Reason     string
	Confidence float64
	Rule       string
	Floor      float64
}

// Decide applies the policy rules in priority order.
func Decide(c models.ClassificationResult, uc models.UserContext, t Thresholds) Decision {
	uc = uc.Normalize()
	floor := AdjustedFloor(uc, t)

	if c.Scam != nil && c.Scam.ScamConfidence >= t.ScamBlockConfidence && uc.ElderOrCognitive() {
		reason := fmt.Sprintf("likely scam (confidence %.2f) targeting a vulnerable user", c.Scam.ScamConfidence)
		if len(c.Scam.Indicators) > 0 {
			reason += ": " + strings.Join(c.Scam.Indicators, ", ")
		}
		return Decision{Action: models.ActionBlock, Reason: reason, Confidence: c.Scam.Confidence, Rule: RuleScamVulnerable, Floor: floor}
	}

	if c.Safety == nil {
		return Decision{Action: models.ActionCaution, Reason: "no safety assessment available", Confidence: 0, Rule: RuleNoSafety, Floor: floor}
	}
	safety := c.Safety

	if safety.Score < floor {
		return Decision{
			Action:     models.ActionBlock,
			Reason:     fmt.Sprintf("safety score %.2f below floor %.2f%s", safety.Score, floor, warningSuffix(safety.Warnings)),
			Confidence: safety.Confidence,
			Rule:       RuleSafetyFloor,
			Floor:      floor,
		}
	}
	if ceiling, limited := RatingCeiling(uc.AgeCategory); limited && safety.AgeAppropriateFloor > ceiling {
		return Decision{
			Action:     models.ActionBlock,
			Reason:     fmt.Sprintf("content suited to ages %d+, above the %s limit of %d", safety.AgeAppropriateFloor, uc.AgeCategory, ceiling),
			Confidence: safety.Confidence,
			Rule:       RuleAgeRating,
			Floor:      floor,
		}
	}
	if safety.Score < round3(floor+t.CautionBand) {
		return Decision{
			Action:     models.ActionCaution,
			Reason:     fmt.Sprintf("safety score %.2f within caution band above floor %.2f%s", safety.Score, floor, warningSuffix(safety.Warnings)),
			Confidence: safety.Confidence,
			Rule:       RuleCautionBand,
			Floor:      floor,
		}
	}

	confidence := safety.Confidence
	if EducationalOnly(uc, t) {
		if c.Educational == nil {
			return Decision{Action: models.ActionBlock, Reason: "educational-only profile and no educational assessment", Confidence: 0, Rule: RuleEducationalOnly, Floor: floor}
		}
		confidence = math.Min(confidence, c.Educational.Confidence)
		if c.Educational.Score < t.EducationalMinimum {
			return Decision{
				Action:     models.ActionBlock,
				Reason:     fmt.Sprintf("educational score %.2f below minimum %.2f for educational-only profile", c.Educational.Score, t.EducationalMinimum),
				Confidence: confidence,
				Rule:       RuleEducationalOnly,
				Floor:      floor,
			}
		}
	}

	return Decision{Action: models.ActionAllow, Reason: "content meets the safety profile", Confidence: confidence, Rule: RuleDefaultAllow, Floor: floor}
}

// AdjustedFloor is the safety floor for a user: the jurisdiction base raised by
// age, sensitivity and parental control adjustments, clamped to [0, 0.9].
func AdjustedFloor(uc models.UserContext, t Thresholds) float64 {
	floor := t.BlockThreshold
	if jf, ok := t.JurisdictionFloors[strings.ToUpper(uc.Jurisdiction)]; ok && jf > floor {
		floor = jf
	}

	switch uc.AgeCategory {
	case models.AgeUnder13:
		floor += 0.2
	case models.AgeUnder16:
		floor += 0.1
	case models.AgeUnder18:
		floor += 0.05
	}

	switch uc.SensitivityLevel {
	case models.SensitivityHigh:
		floor += 0.05
	case models.SensitivityLow:
		floor -= 0.05
	}

	switch uc.ParentalControlLevel {
	case models.ParentalStrict:
		floor += 0.05
	case models.ParentalComplete:
		floor += 0.1
	}

	return round3(clamp(floor, 0, maxAdjustedFloor))
}

// RatingCeiling returns the highest content minimum age a user may see, and
// false when the category has no limit.
func RatingCeiling(age models.AgeCategory) (int, bool) {
	switch age {
	case models.AgeUnder13:
		return RatingMinimumAge["PG"], true
	case models.AgeUnder16:
		return RatingMinimumAge["PG-13"], true
	case models.AgeUnder18:
		return RatingMinimumAge["R"], true
	}
	return 0, false
}

// EducationalOnly reports whether only educational content may pass for uc.
func EducationalOnly(uc models.UserContext, t Thresholds) bool {
	return t.EducationalOnly || uc.ParentalControlLevel == models.ParentalComplete
}

// Sufficient reports whether a confidence is high enough to stop escalating
// to deeper layers.
func Sufficient(confidence float64, t Thresholds) bool {
	return confidence >= t.SufficientConfidence
}

func warningSuffix(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	return " (" + strings.Join(warnings, ", ") + ")"
}

// round3 keeps threshold sums like 0.4+0.2 from drifting past their intended value.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
