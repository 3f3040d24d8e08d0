package models

// Centralized enum values. Keeping them here avoids magic strings across layers.

type AgeCategory string

const (
	AgeUnder13 AgeCategory = "under13"
	AgeUnder16 AgeCategory = "under16"
	AgeUnder18 AgeCategory = "under18"
	AgeAdult   AgeCategory = "adult"
)

func (a AgeCategory) Valid() bool {
	switch a {
	case AgeUnder13, AgeUnder16, AgeUnder18, AgeAdult:
		return true
	}
	return false
}

// Minor reports whether the category covers a child or teenager.
func (a AgeCategory) Minor() bool {
	return a == AgeUnder13 || a == AgeUnder16 || a == AgeUnder18
}

type SensitivityLevel string

const (
	SensitivityLow    SensitivityLevel = "low"
	SensitivityMedium SensitivityLevel = "medium"
	SensitivityHigh   SensitivityLevel = "high"
)

func (s SensitivityLevel) Valid() bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}

type ParentalControlLevel string

const (
	ParentalNone     ParentalControlLevel = "none"
	ParentalMinimal  ParentalControlLevel = "minimal"
	ParentalModerate ParentalControlLevel = "moderate"
	ParentalStrict   ParentalControlLevel = "strict"
	ParentalComplete ParentalControlLevel = "complete"
)

func (p ParentalControlLevel) Valid() bool {
	switch p {
	case ParentalNone, ParentalMinimal, ParentalModerate, ParentalStrict, ParentalComplete:
		return true
	}
	return false
}

type VulnerabilityFactor string

const (
	FactorElderly              VulnerabilityFactor = "elderly"
	FactorCognitiveImpairment  VulnerabilityFactor = "cognitiveImpairment"
	FactorInvestmentScamTarget VulnerabilityFactor = "investmentScamTarget"
	FactorRecentLoss           VulnerabilityFactor = "recentLoss"
	FactorFinancialStress      VulnerabilityFactor = "financialStress"
	FactorIsolationRisk        VulnerabilityFactor = "isolationRisk"
	FactorFrequentNewsConsumer VulnerabilityFactor = "frequentNewsConsumer"
)

func (f VulnerabilityFactor) Valid() bool {
	switch f {
	case FactorElderly, FactorCognitiveImpairment, FactorInvestmentScamTarget, FactorRecentLoss,
		FactorFinancialStress, FactorIsolationRisk, FactorFrequentNewsConsumer:
		return true
	}
	return false
}

// Action is the final curation verdict.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionCaution Action = "caution"
	ActionBlock   Action = "block"
)

func (a Action) Valid() bool {
	return a == ActionAllow || a == ActionCaution || a == ActionBlock
}

type CognitiveLevel string

const (
	CognitiveRemember   CognitiveLevel = "remember"
	CognitiveUnderstand CognitiveLevel = "understand"
	CognitiveApply      CognitiveLevel = "apply"
	CognitiveAnalyze    CognitiveLevel = "analyze"
	CognitiveEvaluate   CognitiveLevel = "evaluate"
	CognitiveCreate     CognitiveLevel = "create"
)

func (c CognitiveLevel) Valid() bool {
	switch c {
	case CognitiveRemember, CognitiveUnderstand, CognitiveApply, CognitiveAnalyze, CognitiveEvaluate, CognitiveCreate:
		return true
	}
	return false
}

type PoliticalLeaning string

const (
	LeaningLeft        PoliticalLeaning = "left"
	LeaningCenterLeft  PoliticalLeaning = "center_left"
	LeaningNeutral     PoliticalLeaning = "neutral"
	LeaningCenterRight PoliticalLeaning = "center_right"
	LeaningRight       PoliticalLeaning = "right"
	LeaningUnknown     PoliticalLeaning = "unknown"
)

func (p PoliticalLeaning) Valid() bool {
	switch p {
	case LeaningLeft, LeaningCenterLeft, LeaningNeutral, LeaningCenterRight, LeaningRight, LeaningUnknown:
		return true
	}
	return false
}

type ScamType string

const (
	ScamInvestment    ScamType = "investment"
	ScamRomance       ScamType = "romance"
	ScamPhishing      ScamType = "phishing"
	ScamLottery       ScamType = "lottery"
	ScamImpersonation ScamType = "impersonation"
	ScamTechSupport   ScamType = "tech_support"
	ScamOther         ScamType = "other"
)

func (s ScamType) Valid() bool {
	switch s {
	case ScamInvestment, ScamRomance, ScamPhishing, ScamLottery, ScamImpersonation, ScamTechSupport, ScamOther:
		return true
	}
	return false
}

// Priority orders escalation bands; lower value is served first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// NumPriorities is the number of escalation bands.
const NumPriorities = 4

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	}
	return "unknown"
}

// ParsePriority maps a band name back to its Priority.
func ParsePriority(s string) (Priority, bool) {
	for p := PriorityCritical; p <= PriorityLow; p++ {
		if p.String() == s {
			return p, true
		}
	}
	return PriorityNormal, false
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, ok := ParsePriority(string(b))
	if !ok {
		return &InvalidInputError{Field: "priority", Reason: "unknown value " + string(b)}
	}
	*p = parsed
	return nil
}
