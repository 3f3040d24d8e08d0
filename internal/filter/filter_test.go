package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
)

func newDefaultFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New(Config{UseDefaults: true})
	require.NoError(t, err)
	return f
}

func TestEvaluate_DefaultRules(t *testing.T) {
	f := newDefaultFilter(t)

	testCases := []struct {
		name         string
		item         models.ContentItem
		wantBlocked  bool
		wantCategory string
	}{
		{name: "clean", item: models.ContentItem{Text: "Plants turn sunlight into energy."}},
		{name: "profanity", item: models.ContentItem{Text: "What the SHIT is this"}, wantBlocked: true, wantCategory: "profanity"},
		{name: "threat", item: models.ContentItem{Text: "I will kill   you tomorrow"}, wantBlocked: true, wantCategory: "threat"},
		{name: "group hate", item: models.ContentItem{Text: "we should hate all outsiders"}, wantBlocked: true, wantCategory: "hate_speech"},
		{name: "short link", item: models.ContentItem{Text: "click bit.ly/AbC123 now"}, wantBlocked: true, wantCategory: "suspicious_link"},
		{name: "onion", item: models.ContentItem{Text: "visit abcdefgh.onion for deals"}, wantBlocked: true, wantCategory: "darknet_link"},
		{name: "blocklisted phrase", item: models.ContentItem{Text: "Where to buy cocaine cheap"}, wantBlocked: true, wantCategory: "blocklisted_term"},
		{name: "blocked source", item: models.ContentItem{Text: "harmless words", SourceHint: "https://www.PornHub.com/view"}, wantBlocked: true, wantCategory: "blocked_domain"},
		{name: "blocked sub-domain", item: models.ContentItem{Text: "harmless words", SourceHint: "de.xvideos.com"}, wantBlocked: true, wantCategory: "blocked_domain"},
		{name: "lookalike domain passes", item: models.ContentItem{Text: "harmless words", SourceHint: "notxvideos.com.example.org"}},
		{name: "word boundary", item: models.ContentItem{Text: "Scunthorpe shitake mushrooms are tasty"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := f.Evaluate(context.Background(), tc.item)
			require.NoError(t, err)
			assert.Equal(t, tc.wantBlocked, v.Blocked, v.String())
			if tc.wantBlocked {
				assert.Equal(t, tc.wantCategory, v.Category)
				assert.NotEmpty(t, v.Rule)
			}
		})
	}
}

func TestEvaluate_LinkedDomainInText(t *testing.T) {
	f, err := New(Config{BlockedDomains: []string{"scam-bank.co.uk"}})
	require.NoError(t, err)

	v, err := f.Evaluate(context.Background(), models.ContentItem{Text: "Log in at https://secure.scam-bank.co.uk/login to confirm"})
	require.NoError(t, err)
	assert.True(t, v.Blocked)
	assert.Equal(t, "domain:secure.scam-bank.co.uk", v.Rule)
}

func TestEvaluate_Expressions(t *testing.T) {
	f, err := New(Config{Expressions: []ExpressionRule{
		{Name: "shouting_link", Category: "spam", Expression: `raw.matches("[A-Z]{10,}") && text.contains("http")`},
		{Name: "untrusted_long", Expression: `source == "pastebin.com" && length > 20`},
	}})
	require.NoError(t, err)

	v, err := f.Evaluate(context.Background(), models.ContentItem{Text: "FREEEEEEEEEE STUFF http://x.example"})
	require.NoError(t, err)
	assert.True(t, v.Blocked)
	assert.Equal(t, "spam", v.Category)

	v, err = f.Evaluate(context.Background(), models.ContentItem{Text: "a fairly long paste of text", SourceHint: "pastebin.com"})
	require.NoError(t, err)
	assert.True(t, v.Blocked)
	assert.Equal(t, "expression", v.Category)

	v, err = f.Evaluate(context.Background(), models.ContentItem{Text: "short", SourceHint: "pastebin.com"})
	require.NoError(t, err)
	assert.False(t, v.Blocked)
}

func TestNew_RejectsBadRules(t *testing.T) {
	_, err := New(Config{Patterns: []PatternRule{{Name: "broken", Pattern: `(`}}})
	assert.Error(t, err)

	_, err = New(Config{Expressions: []ExpressionRule{{Name: "not_bool", Expression: `length + 1`}}})
	assert.Error(t, err)

	_, err = New(Config{Expressions: []ExpressionRule{{Name: "bad_syntax", Expression: `text ==`}}})
	assert.Error(t, err)
}

func TestEvaluate_CancelledContext(t *testing.T) {
	f := newDefaultFilter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Evaluate(ctx, models.ContentItem{Text: "anything"})
	assert.ErrorIs(t, err, context.Canceled)
}
