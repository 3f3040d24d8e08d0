package models

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// ContentType identifies what kind of payload a ContentItem carries.
// Only ContentTypeText is processed by the pipeline.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImageRef ContentType = "image-ref"
	ContentTypeVideoRef ContentType = "video-ref"
)

// ContentItem is a single piece of content submitted for curation.
type ContentItem struct {
	ID          string      `json:"id,omitempty"`
	Text        string      `json:"text"`
	ContentType ContentType `json:"contentType,omitempty"`
	SourceHint  string      `json:"sourceHint,omitempty"` // e.g. the originating domain
}

// Validate rejects content the pipeline cannot process.
func (c ContentItem) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return &InvalidInputError{Field: "text", Reason: "must not be empty"}
	}
	if !utf8.ValidString(c.Text) {
		return &InvalidInputError{Field: "text", Reason: "must be valid UTF-8"}
	}
	switch c.ContentType {
	case "", ContentTypeText:
	case ContentTypeImageRef, ContentTypeVideoRef:
		return &InvalidInputError{Field: "contentType", Reason: "only text content is processed, got " + string(c.ContentType)}
	default:
		return &InvalidInputError{Field: "contentType", Reason: "unknown content type " + string(c.ContentType)}
	}
	return nil
}

// UserContext is the safety profile a decision is made for.
type UserContext struct {
	AgeCategory          AgeCategory           `json:"ageCategory"`
	Jurisdiction         string                `json:"jurisdiction,omitempty"`
	VulnerabilityFactors []VulnerabilityFactor `json:"vulnerabilityFactors,omitempty"`
	SensitivityLevel     SensitivityLevel      `json:"sensitivityLevel,omitempty"`
	ParentalControlLevel ParentalControlLevel  `json:"parentalControlLevel,omitempty"`
}

// Normalize returns a canonical copy: defaults filled in, jurisdiction upper-cased,
// factors sorted and de-duplicated. Two contexts that mean the same thing normalize
// to equal values, which is what the fingerprint relies on.
func (u UserContext) Normalize() UserContext {
	out := UserContext{
		AgeCategory:          AgeCategory(strings.ToLower(strings.TrimSpace(string(u.AgeCategory)))),
		Jurisdiction:         strings.ToUpper(strings.TrimSpace(u.Jurisdiction)),
		SensitivityLevel:     SensitivityLevel(strings.ToLower(strings.TrimSpace(string(u.SensitivityLevel)))),
		ParentalControlLevel: ParentalControlLevel(strings.ToLower(strings.TrimSpace(string(u.ParentalControlLevel)))),
	}
	if out.AgeCategory == "" {
		out.AgeCategory = AgeAdult
	}
	if out.SensitivityLevel == "" {
		out.SensitivityLevel = SensitivityMedium
	}
	if out.ParentalControlLevel == "" {
		out.ParentalControlLevel = ParentalNone
	}

	seen := make(map[VulnerabilityFactor]struct{}, len(u.VulnerabilityFactors))
	for _, f := range u.VulnerabilityFactors {
		f = VulnerabilityFactor(strings.TrimSpace(string(f)))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out.VulnerabilityFactors = append(out.VulnerabilityFactors, f)
	}
	sort.Slice(out.VulnerabilityFactors, func(i, j int) bool {
		return out.VulnerabilityFactors[i] < out.VulnerabilityFactors[j]
	})
	return out
}

// Validate checks every enum field. Call it on a normalized context.
func (u UserContext) Validate() error {
	if !u.AgeCategory.Valid() {
		return &InvalidInputError{Field: "ageCategory", Reason: "unknown value " + string(u.AgeCategory)}
	}
	if !u.SensitivityLevel.Valid() {
		return &InvalidInputError{Field: "sensitivityLevel", Reason: "unknown value " + string(u.SensitivityLevel)}
	}
	if !u.ParentalControlLevel.Valid() {
		return &InvalidInputError{Field: "parentalControlLevel", Reason: "unknown value " + string(u.ParentalControlLevel)}
	}
	for _, f := range u.VulnerabilityFactors {
		if !f.Valid() {
			return &InvalidInputError{Field: "vulnerabilityFactors", Reason: "unknown value " + string(f)}
		}
	}
	return nil
}

// HasFactor reports whether the context carries the given vulnerability factor.
func (u UserContext) HasFactor(f VulnerabilityFactor) bool {
	for _, have := range u.VulnerabilityFactors {
		if have == f {
			return true
		}
	}
	return false
}

// ElderOrCognitive reports whether the strongest scam protections apply.
func (u UserContext) ElderOrCognitive() bool {
	return u.HasFactor(FactorElderly) || u.HasFactor(FactorCognitiveImpairment)
}

// LayerError records an absorbed per-layer failure on a CurationResult.
type LayerError struct {
	Layer   string `json:"layer"`
	Kind    string `json:"kind"` // "timeout" or "failure"
	Message string `json:"message"`
}

// CurationResult is the single decision produced by one Curate call.
type CurationResult struct {
	Action           Action               `json:"action"`
	Reason           string               `json:"reason"`
	Confidence       float64              `json:"confidence"`
	StrategyUsed     string               `json:"strategyUsed"`
	LayersInvoked    []string             `json:"layersInvoked"`
	ProcessingTimeMs int64                `json:"processingTimeMs"`
	Classification   ClassificationResult `json:"classification"`
	LayerErrors      []LayerError         `json:"layerErrors,omitempty"`
	Escalated        bool                 `json:"escalated"`
}

// Clone returns a deep copy that shares no slices or pointers with r.
func (r CurationResult) Clone() CurationResult {
	out := r
	out.LayersInvoked = cloneStrings(r.LayersInvoked)
	out.Classification = r.Classification.Clone()
	if r.LayerErrors != nil {
		out.LayerErrors = append([]LayerError(nil), r.LayerErrors...)
	}
	return out
}

// Degraded reports whether any layer failed while producing r.
func (r CurationResult) Degraded() bool {
	return len(r.LayerErrors) > 0
}

// DecisionRecord is the audit trail entry written for every decision.
type DecisionRecord struct {
	ID               string    `json:"id"`
	Fingerprint      string    `json:"fingerprint"`
	ContentID        string    `json:"contentId,omitempty"`
	Action           Action    `json:"action"`
	Reason           string    `json:"reason"`
	Confidence       float64   `json:"confidence"`
	Strategy         string    `json:"strategy"`
	Layers           []string  `json:"layers"`
	Escalated        bool      `json:"escalated"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	CreatedAt        time.Time `json:"createdAt"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
