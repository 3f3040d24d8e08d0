package models

// SafetyDimension scores how safe content is. Score 1.0 is fully safe.
type SafetyDimension struct {
	Score               float64  `json:"score"`
	Warnings            []string `json:"warnings"`
	AgeAppropriateFloor int      `json:"ageAppropriateFloor"`
	Confidence          float64  `json:"confidence"`
	Source              string   `json:"source"`
}

type EducationalDimension struct {
	Score          float64        `json:"score"`
	SubjectAreas   []string       `json:"subjectAreas"`
	CognitiveLevel CognitiveLevel `json:"cognitiveLevel"`
	Confidence     float64        `json:"confidence"`
	Source         string         `json:"source"`
}

type ViewpointDimension struct {
	PoliticalLeaning PoliticalLeaning `json:"politicalLeaning"`
	BiasScore        float64          `json:"biasScore"`
	Credibility      float64          `json:"credibility"`
	Confidence       float64          `json:"confidence"`
	Source           string           `json:"source"`
}

type ScamDimension struct {
	IsScam         bool     `json:"isScam"`
	ScamConfidence float64  `json:"scamConfidence"`
	ScamType       ScamType `json:"scamType,omitempty"` // empty when not a scam
	Indicators     []string `json:"indicators,omitempty"`
	Confidence     float64  `json:"confidence"`
	Source         string   `json:"source"`
}

// ClassificationResult holds per-dimension results. A nil dimension means no
// layer produced it.
type ClassificationResult struct {
	Safety      *SafetyDimension      `json:"safety,omitempty"`
	Educational *EducationalDimension `json:"educational,omitempty"`
	Viewpoint   *ViewpointDimension   `json:"viewpoint,omitempty"`
	Scam        *ScamDimension        `json:"scam,omitempty"`
}

// Empty reports whether no dimension is present.
func (c ClassificationResult) Empty() bool {
	return c.Safety == nil && c.Educational == nil && c.Viewpoint == nil && c.Scam == nil
}

// Clone deep-copies every present dimension.
func (c ClassificationResult) Clone() ClassificationResult {
	var out ClassificationResult
	if c.Safety != nil {
		s := *c.Safety
		s.Warnings = cloneStrings(c.Safety.Warnings)
		out.Safety = &s
	}
	if c.Educational != nil {
		e := *c.Educational
		e.SubjectAreas = cloneStrings(c.Educational.SubjectAreas)
		out.Educational = &e
	}
	if c.Viewpoint != nil {
		v := *c.Viewpoint
		out.Viewpoint = &v
	}
	if c.Scam != nil {
		s := *c.Scam
		s.Indicators = cloneStrings(c.Scam.Indicators)
		out.Scam = &s
	}
	return out
}

// MinConfidence returns the lowest confidence among present dimensions, or 0
// when none is present.
func (c ClassificationResult) MinConfidence() float64 {
	lowest, seen := 1.0, false
	consider := func(conf float64) {
		if !seen || conf < lowest {
			lowest = conf
		}
		seen = true
	}
	if c.Safety != nil {
		consider(c.Safety.Confidence)
	}
	if c.Educational != nil {
		consider(c.Educational.Confidence)
	}
	if c.Viewpoint != nil {
		consider(c.Viewpoint.Confidence)
	}
	if c.Scam != nil {
		consider(c.Scam.Confidence)
	}
	if !seen {
		return 0
	}
	return lowest
}

// MergePessimistic folds other into c, keeping the more cautious reading of
// every dimension present in both: lowest safety score, highest age floor,
// highest scam confidence, and the lower confidence of the pair.
func MergePessimistic(c, other ClassificationResult) ClassificationResult {
	out := c.Clone()
	other = other.Clone()

	switch {
	case out.Safety == nil:
		out.Safety = other.Safety
	case other.Safety != nil:
		if other.Safety.Score < out.Safety.Score {
			out.Safety.Score = other.Safety.Score
			out.Safety.Source = other.Safety.Source
		}
		out.Safety.Warnings = unionStrings(out.Safety.Warnings, other.Safety.Warnings)
		out.Safety.AgeAppropriateFloor = maxInt(out.Safety.AgeAppropriateFloor, other.Safety.AgeAppropriateFloor)
		out.Safety.Confidence = minFloat(out.Safety.Confidence, other.Safety.Confidence)
	}

	switch {
	case out.Educational == nil:
		out.Educational = other.Educational
	case other.Educational != nil:
		if other.Educational.Score < out.Educational.Score {
			out.Educational.Score = other.Educational.Score
			out.Educational.CognitiveLevel = other.Educational.CognitiveLevel
			out.Educational.Source = other.Educational.Source
		}
		out.Educational.SubjectAreas = unionStrings(out.Educational.SubjectAreas, other.Educational.SubjectAreas)
		out.Educational.Confidence = minFloat(out.Educational.Confidence, other.Educational.Confidence)
	}

	switch {
	case out.Viewpoint == nil:
		out.Viewpoint = other.Viewpoint
	case other.Viewpoint != nil:
		if other.Viewpoint.BiasScore > out.Viewpoint.BiasScore {
			out.Viewpoint.BiasScore = other.Viewpoint.BiasScore
			out.Viewpoint.PoliticalLeaning = other.Viewpoint.PoliticalLeaning
			out.Viewpoint.Source = other.Viewpoint.Source
		}
		out.Viewpoint.Credibility = minFloat(out.Viewpoint.Credibility, other.Viewpoint.Credibility)
		out.Viewpoint.Confidence = minFloat(out.Viewpoint.Confidence, other.Viewpoint.Confidence)
	}

	out.Scam = mergeScam(out.Scam, other.Scam, true)
	return out
}

// Overlay lays a deeper analysis over an earlier one. Dimensions present in
// deeper replace the earlier reading, except scam, where the higher scam
// confidence always wins so a later layer can never clear an earlier alarm.
func Overlay(base, deeper ClassificationResult) ClassificationResult {
	out := base.Clone()
	deeper = deeper.Clone()
	if deeper.Safety != nil {
		if out.Safety != nil {
			deeper.Safety.Warnings = unionStrings(out.Safety.Warnings, deeper.Safety.Warnings)
		}
		out.Safety = deeper.Safety
	}
	if deeper.Educational != nil {
		out.Educational = deeper.Educational
	}
	if deeper.Viewpoint != nil {
		out.Viewpoint = deeper.Viewpoint
	}
	out.Scam = mergeScam(out.Scam, deeper.Scam, false)
	return out
}

func mergeScam(a, b *ScamDimension, minConfidence bool) *ScamDimension {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	out := *a
	if b.ScamConfidence > a.ScamConfidence {
		out = *b
	}
	out.IsScam = a.IsScam || b.IsScam
	if out.ScamType == "" {
		if a.ScamType != "" {
			out.ScamType = a.ScamType
		} else {
			out.ScamType = b.ScamType
		}
	}
	out.Indicators = unionStrings(a.Indicators, b.Indicators)
	if minConfidence {
		out.Confidence = minFloat(a.Confidence, b.Confidence)
	}
	return &out
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
