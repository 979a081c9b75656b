package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"

	"matrixci/internal/trigger"
)

// ExprContext is the variable scope visible to step conditions and to
// ${{ ... }} interpolation inside run bodies and env values.
type ExprContext struct {
	Matrix   map[string]string
	RunnerOS string
	Env      map[string]string
	Event    trigger.Event
}

func (c ExprContext) scope() map[string]any {
	matrix := make(map[string]any, len(c.Matrix))
	for k, v := range c.Matrix {
		matrix[k] = v
	}
	env := make(map[string]any, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	inputs := make(map[string]any, len(c.Event.Inputs))
	for k, v := range c.Event.Inputs {
		inputs[k] = v
	}
	return map[string]any{
		"matrix": matrix,
		"runner": map[string]any{"os": c.RunnerOS},
		"env":    env,
		"event": map[string]any{
			"type":   string(c.Event.Type),
			"branch": c.Event.Branch,
			"inputs": inputs,
		},
	}
}

// EvalCondition evaluates a step's `if` expression. An empty condition is
// true. Non-boolean results are an error rather than a truthiness guess.
func (c ExprContext) EvalCondition(cond string) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}
	out, err := expr.Eval(cond, c.scope())
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", cond, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q: result is %T, not bool", cond, out)
	}
	return b, nil
}

var interpPattern = regexp.MustCompile(`\$\{\{(.*?)\}\}`)

// Interpolate substitutes every ${{ expression }} occurrence in s with the
// expression's value rendered as a string.
func (c ExprContext) Interpolate(s string) (string, error) {
	if !strings.Contains(s, "${{") {
		return s, nil
	}
	scope := c.scope()
	var evalErr error
	result := interpPattern.ReplaceAllStringFunc(s, func(match string) string {
		if evalErr != nil {
			return match
		}
		inner := strings.TrimSpace(interpPattern.FindStringSubmatch(match)[1])
		out, err := expr.Eval(inner, scope)
		if err != nil {
			evalErr = fmt.Errorf("interpolate %q: %w", inner, err)
			return match
		}
		return fmt.Sprint(out)
	})
	if evalErr != nil {
		return "", evalErr
	}
	return result, nil
}

// OSFromLabel maps a runs-on label to the value `runner.os` exposes.
// Unknown labels pass through unchanged.
func OSFromLabel(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.HasPrefix(l, "ubuntu"), strings.HasPrefix(l, "linux"):
		return "Linux"
	case strings.HasPrefix(l, "macos"), strings.HasPrefix(l, "darwin"):
		return "macOS"
	case strings.HasPrefix(l, "windows"):
		return "Windows"
	}
	return label
}
