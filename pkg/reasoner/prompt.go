package reasoner

import (
	"strings"
	"unicode/utf8"

	"curator/internal/models"
)

// maxPromptContentRunes bounds the content embedded in a prompt.
const maxPromptContentRunes = 2000

// DefaultPromptTemplate is used when no prompt file is configured.
const DefaultPromptTemplate = `You are a content safety analyst protecting vulnerable users.

Audience: age category {{AGE_CATEGORY}}, sensitivity {{SENSITIVITY}}, vulnerability factors: {{VULNERABILITY_FACTORS}}.
{{AUDIENCE_GUIDANCE}}{{JURISDICTION_NOTE}}

Content:
"""
{{CONTENT}}
"""

Pay particular attention to scam tactics: urgency, unrealistic guarantees, requests for secrecy, and requests for money or credentials. Elderly and cognitively impaired users are the most exposed.

Respond with a single JSON object and nothing else:
{
  "safety": {"score": 0-1 (1 is fully safe), "warnings": [string], "ageAppropriateFloor": 0-18, "confidence": 0-1},
  "educational": {"score": 0-1, "subjectAreas": [string], "cognitiveLevel": "remember|understand|apply|analyze|evaluate|create", "confidence": 0-1},
  "viewpoint": {"politicalLeaning": "left|center_left|neutral|center_right|right|unknown", "biasScore": 0-1, "credibility": 0-1, "confidence": 0-1},
  "scam": {"isScam": bool, "scamConfidence": 0-1, "scamType": "investment|romance|phishing|lottery|impersonation|tech_support|other" (omit when not a scam), "indicators": [string], "confidence": 0-1},
  "reasoning": "one short paragraph"
}`

var audienceGuidance = map[models.AgeCategory]string{
	models.AgeUnder13: "This is a child. Weigh age-inappropriate themes, disturbing descriptions, emotional content beyond their stage and negative behavioral modeling.",
	models.AgeUnder16: "This is a young teen. Weigh age-inappropriate themes, disturbing descriptions, emotional content beyond their stage and negative behavioral modeling.",
	models.AgeUnder18: "This is a teenager. Weigh peer pressure, promotion of risky behavior, mental health impact and identity development.",
	models.AgeAdult:   "This is an adult. Weigh misinformation, radicalization risk, financial scams and fraud, privacy risks and source credibility.",
}

var jurisdictionNotes = map[string]string{
	"EU": "\nRegulatory context: apply GDPR privacy principles and DSA systemic risk assessment.",
	"US": "\nRegulatory context: COPPA applies to under-13 users; consider state social media restrictions.",
	"IN": "\nRegulatory context: DPDPA consent rules apply to under-18 users; no behavioral targeting of minors.",
	"CN": "\nRegulatory context: Minor Mode restrictions and content supervision standards apply.",
}

// BuildPrompt fills the placeholders of template from req.
func BuildPrompt(template string, req Request) string {
	if template == "" {
		template = DefaultPromptTemplate
	}
	factors := "none"
	if len(req.UserContext.VulnerabilityFactors) > 0 {
		parts := make([]string, 0, len(req.UserContext.VulnerabilityFactors))
		for _, f := range req.UserContext.VulnerabilityFactors {
			parts = append(parts, string(f))
		}
		factors = strings.Join(parts, ", ")
	}
	r := strings.NewReplacer(
		"{{AGE_CATEGORY}}", string(req.UserContext.AgeCategory),
		"{{SENSITIVITY}}", string(req.UserContext.SensitivityLevel),
		"{{VULNERABILITY_FACTORS}}", factors,
		"{{AUDIENCE_GUIDANCE}}", audienceGuidance[req.UserContext.AgeCategory],
		"{{JURISDICTION_NOTE}}", jurisdictionNotes[strings.ToUpper(req.UserContext.Jurisdiction)],
		"{{CONTENT}}", truncateRunes(req.Content, maxPromptContentRunes),
	)
	return r.Replace(template)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
