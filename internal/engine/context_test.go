package engine

import (
	"testing"

	"matrixci/internal/trigger"
)

func testExprContext() ExprContext {
	return ExprContext{
		Matrix:   map[string]string{"python-version": "3.9"},
		RunnerOS: "Linux",
		Env:      map[string]string{"CONDA_ENV_NAME": "bcpandas-dev"},
		Event: trigger.Event{
			Type:   trigger.EventPush,
			Branch: "master",
			Inputs: map[string]string{"reason": "smoke"},
		},
	}
}

func TestEvalCondition(t *testing.T) {
	ctx := testExprContext()

	tests := []struct {
		cond string
		want bool
	}{
		{"", true},
		{"runner.os == 'Linux'", true},
		{"runner.os == 'Windows'", false},
		{`matrix["python-version"] == "3.9"`, true},
		{`env.CONDA_ENV_NAME == "bcpandas-dev"`, true},
		{"event.type == 'push' && event.branch == 'master'", true},
		{"event.inputs.reason == 'smoke'", true},
	}
	for _, tt := range tests {
		got, err := ctx.EvalCondition(tt.cond)
		if err != nil {
			t.Errorf("EvalCondition(%q) error: %v", tt.cond, err)
			continue
		}
		if got != tt.want {
			t.Errorf("EvalCondition(%q) = %v, want %v", tt.cond, got, tt.want)
		}
	}
}

func TestEvalConditionErrors(t *testing.T) {
	ctx := testExprContext()

	if _, err := ctx.EvalCondition("runner.os"); err == nil {
		t.Error("non-boolean condition should error")
	}
	if _, err := ctx.EvalCondition("this is not an expression"); err == nil {
		t.Error("unparsable condition should error")
	}
}

func TestInterpolate(t *testing.T) {
	ctx := testExprContext()

	got, err := ctx.Interpolate(`docker pull image:${{ matrix["python-version"] }}`)
	if err != nil {
		t.Fatalf("interpolate failed: %v", err)
	}
	if got != "docker pull image:3.9" {
		t.Errorf("got %q", got)
	}

	plain, err := ctx.Interpolate("no templates here")
	if err != nil || plain != "no templates here" {
		t.Errorf("plain string changed: %q, %v", plain, err)
	}

	if _, err := ctx.Interpolate("${{ bogus( }}"); err == nil {
		t.Error("invalid expression should error")
	}
}

func TestOSFromLabel(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"ubuntu-latest", "Linux"},
		{"ubuntu-20.04", "Linux"},
		{"macos-14", "macOS"},
		{"windows-2022", "Windows"},
		{"self-hosted-arm", "self-hosted-arm"},
	}
	for _, tt := range tests {
		if got := OSFromLabel(tt.label); got != tt.want {
			t.Errorf("OSFromLabel(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
