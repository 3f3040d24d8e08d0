// Package textsignals finds the lexical cues that several layers share: scam
// pressure tactics, persuasive and political framing, and topics that need
// contextual judgment for young audiences.
package textsignals

import (
	"regexp"
	"sort"
	"strings"

	"curator/internal/util"
)

// Cue categories.
const (
	CueUrgency    = "urgency"
	CueGuarantee  = "guarantee"
	CueSecrecy    = "secrecy"
	CueFunds      = "funds_or_credentials"
	CueFinancial  = "financial"
	CuePolitical  = "political"
	CuePersuasive = "persuasive"
	CueNuanced    = "nuanced_topic"
	CueEducation  = "educational"
	CueViolence   = "violence"
)

var lexicons = map[string][]string{
	CueUrgency: {
		"act now", "act fast", "urgent", "urgently", "immediately", "right now", "hurry", "limited time",
		"today only", "last chance", "expires", "expiring", "don't miss", "before it's too late",
		"only a few spots", "within 24 hours", "deadline",
	},
	CueGuarantee: {
		"guaranteed", "guarantee", "risk-free", "risk free", "no risk", "can't lose", "cannot lose",
		"double your money", "double your", "get rich", "100% safe", "zero risk", "sure thing",
		"instant profit", "passive income",
	},
	CueSecrecy: {
		"don't tell", "do not tell", "dont tell", "keep this between us", "keep it secret", "keep this secret",
		"tell no one", "between you and me", "don't mention", "our little secret", "don't let anyone know",
	},
	CueFunds: {
		"wire transfer", "wire the", "gift card", "gift cards", "bitcoin", "crypto wallet", "send money",
		"send me", "bank details", "account number", "routing number", "password", "pin number",
		"social security", "verify your account", "confirm your account", "western union", "moneygram",
		"processing fee", "upfront fee", "login details", "credit card number",
	},
	CueFinancial: {
		"invest", "investment", "investing", "returns", "profit", "profits", "trading", "crypto",
		"stock", "stocks", "portfolio", "savings", "retirement", "pension", "loan", "money", "fund", "funds",
	},
	CuePolitical: {
		"political", "politics", "controversial", "election", "government", "policy", "party", "vote",
		"voting", "liberal", "conservative", "left-wing", "right-wing", "immigration", "abortion",
		"debate", "propaganda", "regime", "protest",
	},
	CuePersuasive: {
		"you must", "everyone knows", "they don't want you to know", "wake up", "the truth about",
		"the only way", "believe me", "trust me", "obviously", "no one is telling you", "open your eyes",
		"you need to", "share before", "mainstream media",
	},
	CueNuanced: {
		"cultural", "religious", "religion", "philosophical", "ethical", "moral", "values", "belief",
		"beliefs", "opinion", "perspective", "death", "war", "sexuality", "drugs", "suicide", "grief",
	},
	CueEducation: {
		"learn", "learning", "education", "educational", "teaching", "study", "studies", "research",
		"science", "scientific", "school", "academic", "knowledge", "experiment", "history",
		"mathematics", "math", "biology", "chemistry", "physics", "geography", "lesson", "explain",
		"discover", "photosynthesis", "energy", "planet", "cells",
	},
	CueViolence: {
		"violence", "violent", "weapon", "weapons", "gun", "guns", "blood", "attack", "fight", "shooting",
		"stab", "bomb", "torture",
	},
}

var (
	compiled     = compileLexicons(lexicons)
	bigReturnsRe = regexp.MustCompile(`\b\d{3,}\s?%\s*(returns?|profits?|gains?|interest)`)
)

func compileLexicons(in map[string][]string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(in))
	for cat, phrases := range in {
		quoted := make([]string, 0, len(phrases))
		for _, p := range phrases {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
		// longest first so "double your money" wins over "double your"
		sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
		out[cat] = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return out
}

// Signals lists the distinct cues found per category.
type Signals map[string][]string

// Scan normalizes text and collects every matching cue.
func Scan(text string) Signals {
	norm := util.NormalizeForMatching(text)
	sig := make(Signals)
	for cat, re := range compiled {
		seen := map[string]bool{}
		for _, m := range re.FindAllStringSubmatch(norm, -1) {
			if len(m) > 1 && !seen[m[1]] {
				seen[m[1]] = true
				sig[cat] = append(sig[cat], m[1])
			}
		}
	}
	if m := bigReturnsRe.FindString(norm); m != "" {
		sig[CueGuarantee] = append(sig[CueGuarantee], m)
	}
	for cat := range sig {
		sort.Strings(sig[cat])
	}
	return sig
}

// Has reports whether any cue of the category matched.
func (s Signals) Has(cat string) bool { return len(s[cat]) > 0 }

// Count returns the number of distinct cues of a category.
func (s Signals) Count(cat string) int { return len(s[cat]) }

// ScamIndicators returns the vulnerability-aware scam tactics present, in a
// stable order.
func (s Signals) ScamIndicators() []string {
	var out []string
	if s.Has(CueUrgency) {
		out = append(out, "urgency language")
	}
	if s.Has(CueGuarantee) {
		out = append(out, "unrealistic guarantees")
	}
	if s.Has(CueSecrecy) {
		out = append(out, "request for secrecy")
	}
	if s.Has(CueFunds) {
		out = append(out, "request for funds or credentials")
	}
	return out
}
