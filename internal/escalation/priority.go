package escalation

import "curator/internal/models"

// Scam confidence levels that raise the review priority.
const (
	criticalScamConfidence = 0.8
	highScamConfidence     = 0.5
	lowPrioritySafety      = 0.6
)

// DerivePriority ranks an escalation by who is exposed and how bad the
// partial classification looks.
func DerivePriority(uc models.UserContext, c models.ClassificationResult) models.Priority {
	uc = uc.Normalize()
	scam := 0.0
	if c.Scam != nil {
		scam = c.Scam.ScamConfidence
	}
	switch {
	case scam >= criticalScamConfidence && uc.ElderOrCognitive():
		return models.PriorityCritical
	case len(uc.VulnerabilityFactors) > 0 && scam >= highScamConfidence:
		return models.PriorityHigh
	case uc.AgeCategory == models.AgeUnder13:
		return models.PriorityHigh
	case uc.AgeCategory == models.AgeAdult && len(uc.VulnerabilityFactors) == 0 && c.Safety != nil && c.Safety.Score >= lowPrioritySafety:
		return models.PriorityLow
	default:
		return models.PriorityNormal
	}
}
