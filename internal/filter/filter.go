// Package filter is the fast, deterministic first layer. It can only say
// "block" or "pass"; a pass carries no claim that content is safe.
package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"curator/internal/models"
	"curator/internal/util"
)

// LayerName is the name recorded in LayersInvoked and LayerErrors.
const LayerName = "fast_filter"

// Verdict is the outcome of a fast filter evaluation.
type Verdict struct {
	Blocked  bool
	Rule     string
	Category string
	Reason   string
}

// Pass is the verdict for content no rule matched.
var Pass = Verdict{}

// PatternRule is a named regular expression evaluated against normalized text.
type PatternRule struct {
	Name     string `mapstructure:"name"`
	Category string `mapstructure:"category"`
	Pattern  string `mapstructure:"pattern"`
}

// ExpressionRule is a named CEL expression that must evaluate to a bool.
// Available variables: text (normalized), raw, source, length.
type ExpressionRule struct {
	Name       string `mapstructure:"name"`
	Category   string `mapstructure:"category"`
	Expression string `mapstructure:"expression"`
}

// Config lists the rule sets for a Filter.
type Config struct {
	Blocklist      []string
	Patterns       []PatternRule
	BlockedDomains []string
	Expressions    []ExpressionRule
	UseDefaults    bool
}

type compiledPattern struct {
	name     string
	category string
	re       *regexp.Regexp
}

// Filter holds compiled rules. It is immutable after New and safe for
// concurrent use.
type Filter struct {
	terms       []compiledPattern
	patterns    []compiledPattern
	domains     *domainBlocklist
	expressions []*expressionRule
}

// New compiles every configured rule. A rule that fails to compile is a
// configuration error.
func New(cfg Config) (*Filter, error) {
	f := &Filter{}

	blocklist := cfg.Blocklist
	patterns := cfg.Patterns
	domains := cfg.BlockedDomains
	if cfg.UseDefaults {
		blocklist = append(append([]string{}, defaultBlocklist...), blocklist...)
		patterns = append(append([]PatternRule{}, defaultPatterns...), patterns...)
		domains = append(append([]string{}, defaultBlockedDomains...), domains...)
	}

	for _, term := range blocklist {
		term = util.NormalizeForMatching(term)
		if term == "" {
			continue
		}
		f.terms = append(f.terms, compiledPattern{
			name:     "blocklist:" + term,
			category: "blocklisted_term",
			re:       regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`),
		})
	}

	for _, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile filter pattern %q: %w", p.Name, err)
		}
		category := p.Category
		if category == "" {
			category = "pattern"
		}
		f.patterns = append(f.patterns, compiledPattern{name: p.Name, category: category, re: re})
	}

	f.domains = newDomainBlocklist(domains)

	for _, e := range cfg.Expressions {
		rule, err := compileExpression(e)
		if err != nil {
			return nil, err
		}
		f.expressions = append(f.expressions, rule)
	}

	log.WithFields(log.Fields{
		"terms":       len(f.terms),
		"patterns":    len(f.patterns),
		"domains":     f.domains.size(),
		"expressions": len(f.expressions),
	}).Debug("fast filter compiled")
	return f, nil
}

// Evaluate runs every rule against the item. It never blocks on I/O; the
// context is only checked between rule groups so a cancelled call stops early.
func (f *Filter) Evaluate(ctx context.Context, item models.ContentItem) (Verdict, error) {
	text := util.NormalizeForMatching(item.Text)

	for _, group := range [][]compiledPattern{f.terms, f.patterns} {
		if err := ctx.Err(); err != nil {
			return Pass, err
		}
		for _, p := range group {
			if m := p.re.FindString(text); m != "" {
				return Verdict{Blocked: true, Rule: p.name, Category: p.category, Reason: fmt.Sprintf("matched %s rule", p.category)}, nil
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return Pass, err
	}
	if v := f.domains.check(item.SourceHint, text); v.Blocked {
		return v, nil
	}

	for _, rule := range f.expressions {
		if err := ctx.Err(); err != nil {
			return Pass, err
		}
		matched, err := rule.eval(text, item)
		if err != nil {
			// a broken expression must not take the whole layer down
			log.WithError(err).WithField("rule", rule.name).Warn("filter expression failed")
			continue
		}
		if matched {
			return Verdict{Blocked: true, Rule: rule.name, Category: rule.category, Reason: fmt.Sprintf("matched %s rule", rule.category)}, nil
		}
	}
	return Pass, nil
}

// RuleCount reports how many rules are loaded, for diagnostics.
func (f *Filter) RuleCount() int {
	return len(f.terms) + len(f.patterns) + f.domains.size() + len(f.expressions)
}

func (v Verdict) String() string {
	if !v.Blocked {
		return "pass"
	}
	return strings.TrimSpace(fmt.Sprintf("block %s %s", v.Category, v.Rule))
}
