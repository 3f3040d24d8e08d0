package textsignals

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
)

// Reasons the complexity heuristic can give for sending content to reasoning.
const (
	TriggerPersuasive      = "persuasive_or_urgent_language"
	TriggerArgumentation   = "multi_clause_argumentation"
	TriggerPolitical       = "political_framing"
	TriggerVulnerableMoney = "vulnerability_with_financial_language"
	TriggerScamPressure    = "scam_pressure_for_vulnerable_user"
	TriggerLongText        = "long_text"
	TriggerManyQuestions   = "many_questions"
	TriggerYoungNuance     = "nuanced_topic_for_young_audience"
)

const (
	longTextRunes       = 500
	questionMarkLimit   = 2
	argumentativeNeeded = 2
)

var connectiveRe = regexp.MustCompile(`\b(because|therefore|however|although|whereas|thus|consequently|hence|nevertheless|moreover|so that|which means)\b`)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

// Sentences splits text into sentences with the English punkt model, falling
// back to terminal punctuation if the model cannot load.
func Sentences(text string) []string {
	tokenizerOnce.Do(func() {
		tk, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			log.WithError(err).Warn("failed to load sentence tokenizer, falling back to punctuation split")
			return
		}
		tokenizer = tk
	})

	var out []string
	if tokenizer == nil {
		for _, s := range strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' }) {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	for _, s := range tokenizer.Tokenize(text) {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ReasoningTriggers is the lightweight complexity heuristic. It returns every
// reason the content needs contextual judgment for this user; an empty result
// means classifier output may be trusted on its own.
func ReasoningTriggers(text string, uc models.UserContext) []string {
	sig := Scan(text)
	var triggers []string

	if sig.Has(CueUrgency) || sig.Has(CuePersuasive) {
		triggers = append(triggers, TriggerPersuasive)
	}

	argumentative := 0
	for _, s := range Sentences(text) {
		if connectiveRe.MatchString(strings.ToLower(s)) {
			argumentative++
		}
	}
	if argumentative >= argumentativeNeeded {
		triggers = append(triggers, TriggerArgumentation)
	}

	if sig.Has(CuePolitical) {
		triggers = append(triggers, TriggerPolitical)
	}
	if len(uc.VulnerabilityFactors) > 0 && (sig.Has(CueFinancial) || sig.Has(CueFunds)) {
		triggers = append(triggers, TriggerVulnerableMoney)
	}
	if uc.ElderOrCognitive() && len(sig.ScamIndicators()) > 0 {
		triggers = append(triggers, TriggerScamPressure)
	}
	if utf8.RuneCountInString(text) > longTextRunes {
		triggers = append(triggers, TriggerLongText)
	}
	if strings.Count(text, "?") > questionMarkLimit {
		triggers = append(triggers, TriggerManyQuestions)
	}
	if (uc.AgeCategory == models.AgeUnder13 || uc.AgeCategory == models.AgeUnder16) && sig.Has(CueNuanced) {
		triggers = append(triggers, TriggerYoungNuance)
	}
	return triggers
}
