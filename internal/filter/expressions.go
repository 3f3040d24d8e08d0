package filter

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/cel-go/cel"

	"curator/internal/models"
)

type expressionRule struct {
	name     string
	category string
	program  cel.Program
}

func compileExpression(rule ExpressionRule) (*expressionRule, error) {
	if rule.Name == "" {
		return nil, fmt.Errorf("filter expression name can't be empty")
	}
	if rule.Expression == "" {
		return nil, fmt.Errorf("filter expression %q can't be empty", rule.Name)
	}

	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("raw", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("length", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}

	ast, issues := env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling filter expression %q: %w", rule.Name, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter expression %q must evaluate to bool, got %s", rule.Name, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating program for filter expression %q: %w", rule.Name, err)
	}

	category := rule.Category
	if category == "" {
		category = "expression"
	}
	return &expressionRule{name: rule.Name, category: category, program: prg}, nil
}

func (r *expressionRule) eval(normalized string, item models.ContentItem) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		"text":   normalized,
		"raw":    item.Text,
		"source": item.SourceHint,
		"length": int64(utf8.RuneCountInString(item.Text)),
	})
	if err != nil {
		return false, fmt.Errorf("error evaluating filter expression: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter expression returned %T, want bool", out.Value())
	}
	return matched, nil
}
