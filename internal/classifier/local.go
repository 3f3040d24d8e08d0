package classifier

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"curator/internal/models"
	"curator/internal/textsignals"
	"curator/internal/util"
)

// Built-in classifier names.
const (
	NameToxicity    = "toxicity"
	NameExplicit    = "explicit"
	NameScam        = "scam"
	NameEducational = "educational"
	NameViewpoint   = "viewpoint"
)

const (
	clearConfidence     = 0.85
	uncertainConfidence = 0.6
)

var (
	toxicRe    = wordSet("hate", "hateful", "kill", "stupid", "idiot", "idiots", "moron", "loser", "dumb", "shut up", "worthless", "threat", "disgusting")
	explicitRe = wordSet("sex", "sexual", "porn", "naked", "nude", "nudity", "explicit", "xxx", "erotic", "adult only")
	lotteryRe  = wordSet("lottery", "prize", "winner", "you won", "you have won", "jackpot", "sweepstakes", "claim your")
	phishRe    = wordSet("password", "verify your account", "confirm your account", "login details", "account number", "pin number", "social security", "credit card number")
	reasonRe   = wordSet("why", "because", "explain", "explains", "how does", "how do")
	analyzeRe  = wordSet("compare", "contrast", "analyze", "analyse", "evidence", "cause", "effect")
	evaluateRe = wordSet("evaluate", "argue", "judge", "assess", "critique")
	createRe   = wordSet("design", "build", "create", "invent", "experiment", "experiments")
)

var subjectAreas = map[string]string{
	"photosynthesis": "biology",
	"biology":        "biology",
	"cells":          "biology",
	"chemistry":      "chemistry",
	"physics":        "physics",
	"energy":         "physics",
	"math":           "mathematics",
	"mathematics":    "mathematics",
	"history":        "history",
	"geography":      "geography",
	"planet":         "astronomy",
	"science":        "science",
	"scientific":     "science",
	"experiment":     "science",
}

func wordSet(words ...string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

func distinct(re *regexp.Regexp, norm string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range re.FindAllString(norm, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// lexical adapts a pure scoring function to the Classifier interface.
type lexical struct {
	name  string
	score func(text string) (models.ClassificationResult, float64)
}

func (l *lexical) Name() string { return l.name }

func (l *lexical) Classify(ctx context.Context, text string) (models.ClassificationResult, float64, error) {
	if err := ctx.Err(); err != nil {
		return models.ClassificationResult{}, 0, err
	}
	res, conf := l.score(text)
	return res, conf, nil
}

// NewToxicityClassifier scores insults, hostility and violent language.
func NewToxicityClassifier() Classifier {
	return &lexical{name: NameToxicity, score: func(text string) (models.ClassificationResult, float64) {
		norm := util.NormalizeForMatching(text)
		toxic := distinct(toxicRe, norm)
		violent := textsignals.Scan(text).Count(textsignals.CueViolence)
		tox := math.Min(1, 0.2*float64(len(toxic))+0.1*float64(violent))

		safety := &models.SafetyDimension{Score: round2(1 - tox)}
		if len(toxic) > 0 {
			safety.Warnings = append(safety.Warnings, "toxic_language")
		}
		if violent > 0 {
			safety.Warnings = append(safety.Warnings, "violence")
		}
		if violent > 0 || tox >= 0.4 {
			safety.AgeAppropriateFloor = 13
		}
		conf := uncertainConfidence
		if tox == 0 || tox >= 0.6 {
			conf = clearConfidence
		}
		safety.Confidence = conf
		return models.ClassificationResult{Safety: safety}, conf
	}}
}

// NewExplicitClassifier scores sexual and adult-only content.
func NewExplicitClassifier() Classifier {
	return &lexical{name: NameExplicit, score: func(text string) (models.ClassificationResult, float64) {
		hits := distinct(explicitRe, util.NormalizeForMatching(text))
		score := math.Min(1, 0.25*float64(len(hits)))

		safety := &models.SafetyDimension{Score: round2(1 - score)}
		switch {
		case score >= 0.5:
			safety.AgeAppropriateFloor = 17
		case score > 0:
			safety.AgeAppropriateFloor = 13
		}
		if score > 0 {
			safety.Warnings = []string{"sexual_content"}
		}
		conf := uncertainConfidence
		if score == 0 || score >= 0.5 {
			conf = clearConfidence
		}
		safety.Confidence = conf
		return models.ClassificationResult{Safety: safety}, conf
	}}
}

// NewScamClassifier looks for the pressure tactics scams rely on: urgency,
// guarantees, secrecy and requests for money or credentials.
func NewScamClassifier() Classifier {
	return &lexical{name: NameScam, score: func(text string) (models.ClassificationResult, float64) {
		sig := textsignals.Scan(text)
		indicators := sig.ScamIndicators()
		k := len(indicators)

		scam := &models.ScamDimension{Indicators: indicators}
		if k > 0 {
			scam.ScamConfidence = round2(math.Min(0.95, 0.3+0.2*float64(k)))
		}
		scam.IsScam = scam.ScamConfidence >= 0.7
		if scam.IsScam {
			scam.ScamType = scamType(text, sig)
		}

		safety := &models.SafetyDimension{Score: round2(1 - 0.5*scam.ScamConfidence)}
		if k > 0 {
			safety.Warnings = []string{"possible_scam"}
		}

		conf := 0.65
		if k == 0 || k >= 3 {
			conf = clearConfidence
		}
		scam.Confidence, safety.Confidence = conf, conf
		return models.ClassificationResult{Safety: safety, Scam: scam}, conf
	}}
}

func scamType(text string, sig textsignals.Signals) models.ScamType {
	norm := util.NormalizeForMatching(text)
	switch {
	case phishRe.MatchString(norm):
		return models.ScamPhishing
	case lotteryRe.MatchString(norm):
		return models.ScamLottery
	case sig.Has(textsignals.CueFinancial) || sig.Has(textsignals.CueGuarantee):
		return models.ScamInvestment
	default:
		return models.ScamOther
	}
}

// NewEducationalClassifier estimates educational value, subject areas and the
// cognitive level the text asks of its reader.
func NewEducationalClassifier() Classifier {
	return &lexical{name: NameEducational, score: func(text string) (models.ClassificationResult, float64) {
		cues := textsignals.Scan(text)[textsignals.CueEducation]
		norm := util.NormalizeForMatching(text)
		if createRe.MatchString(norm) && len(cues) > 0 && !contains(cues, "experiment") {
			// plural and verb forms count once, alongside the topic words
			cues = append(cues, "experiment")
		}

		edu := &models.EducationalDimension{CognitiveLevel: cognitiveLevel(norm)}
		if len(cues) > 0 {
			edu.Score = round2(math.Min(0.95, 0.2+0.15*float64(len(cues))))
		}
		areas := map[string]bool{}
		for _, c := range cues {
			if a, ok := subjectAreas[c]; ok && !areas[a] {
				areas[a] = true
				edu.SubjectAreas = append(edu.SubjectAreas, a)
			}
		}
		sort.Strings(edu.SubjectAreas)

		conf := 0.8
		if len(cues) == 1 {
			conf = 0.65
		}
		edu.Confidence = conf
		return models.ClassificationResult{Educational: edu}, conf
	}}
}

func cognitiveLevel(norm string) models.CognitiveLevel {
	switch {
	case evaluateRe.MatchString(norm):
		return models.CognitiveEvaluate
	case analyzeRe.MatchString(norm):
		return models.CognitiveAnalyze
	case createRe.MatchString(norm):
		return models.CognitiveApply
	case reasonRe.MatchString(norm):
		return models.CognitiveUnderstand
	default:
		return models.CognitiveRemember
	}
}

// NewViewpointClassifier flags political framing and one-sided persuasion.
// Lexical cues cannot place a text on the political spectrum, so any political
// content is reported with an unknown leaning and low confidence.
func NewViewpointClassifier() Classifier {
	return &lexical{name: NameViewpoint, score: func(text string) (models.ClassificationResult, float64) {
		sig := textsignals.Scan(text)
		political, persuasive := sig.Count(textsignals.CuePolitical), sig.Count(textsignals.CuePersuasive)
		if political == 0 && persuasive == 0 {
			vp := &models.ViewpointDimension{PoliticalLeaning: models.LeaningNeutral, Credibility: 0.8, Confidence: 0.8}
			return models.ClassificationResult{Viewpoint: vp}, 0.8
		}
		vp := &models.ViewpointDimension{
			PoliticalLeaning: models.LeaningUnknown,
			BiasScore:        round2(math.Min(1, 0.15*float64(political)+0.2*float64(persuasive))),
			Credibility:      round2(math.Max(0.2, 0.8-0.15*float64(persuasive))),
			Confidence:       0.5,
		}
		if political == 0 {
			vp.PoliticalLeaning = models.LeaningNeutral
		}
		return models.ClassificationResult{Viewpoint: vp}, 0.5
	}}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
