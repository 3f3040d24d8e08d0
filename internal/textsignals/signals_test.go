package textsignals

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"curator/internal/models"
)

func TestScan_ScamTactics(t *testing.T) {
	sig := Scan("Guaranteed 500% returns, act now, don't tell your family,")

	assert.True(t, sig.Has(CueGuarantee))
	assert.True(t, sig.Has(CueUrgency))
	assert.True(t, sig.Has(CueSecrecy))
	assert.False(t, sig.Has(CueFunds))
	assert.Equal(t, []string{"urgency language", "unrealistic guarantees", "request for secrecy"}, sig.ScamIndicators())
}

func TestScan_WordBoundaries(t *testing.T) {
	// "warning" must not match the nuanced cue "war", "invested" is not "invest"
	sig := Scan("Weather warning: the investors stayed home.")
	assert.False(t, sig.Has(CueNuanced))
	assert.False(t, sig.Has(CueFinancial))
}

func TestScan_Obfuscation(t *testing.T) {
	sig := Scan("ＡＣＴ ＮＯＷ and send a GIFT CARD")
	assert.True(t, sig.Has(CueUrgency))
	assert.Contains(t, sig[CueFunds], "gift card")
}

func TestReasoningTriggers(t *testing.T) {
	adult := models.UserContext{AgeCategory: models.AgeAdult}.Normalize()
	elder := models.UserContext{AgeCategory: models.AgeAdult, VulnerabilityFactors: []models.VulnerabilityFactor{models.FactorElderly}}.Normalize()
	child := models.UserContext{AgeCategory: models.AgeUnder13}.Normalize()

	testCases := []struct {
		name string
		text string
		uc   models.UserContext
		want []string
	}{
		{name: "plain text", text: "The cat sat on the mat.", uc: adult, want: nil},
		{name: "urgency", text: "Hurry, this offer ends soon.", uc: adult, want: []string{TriggerPersuasive}},
		{name: "political", text: "The election results were announced.", uc: adult, want: []string{TriggerPolitical}},
		{
			name: "elder scam pressure",
			text: "Guaranteed 500% returns, act now, don't tell your family,",
			uc:   elder,
			want: []string{TriggerPersuasive, TriggerVulnerableMoney, TriggerScamPressure},
		},
		{name: "questions", text: "Why? How? When? Where?", uc: adult, want: []string{TriggerManyQuestions}},
		{name: "young audience nuance", text: "Different religious beliefs about the afterlife.", uc: child, want: []string{TriggerYoungNuance}},
		{name: "same nuance for adult", text: "Different religious beliefs about the afterlife.", uc: adult, want: nil},
		{
			name: "argumentation",
			text: "Taxes should fall because growth matters. However, services need funding. Therefore we must choose.",
			uc:   adult,
			want: []string{TriggerArgumentation},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReasoningTriggers(tc.text, tc.uc))
		})
	}

	long := strings.Repeat("a calm sentence about gardens. ", 30)
	assert.Contains(t, ReasoningTriggers(long, adult), TriggerLongText)
}

func TestSentences(t *testing.T) {
	got := Sentences("First sentence here. Second one follows! Is this the third?")
	assert.Len(t, got, 3)
}
