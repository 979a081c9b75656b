// Package workflow defines the declarative pipeline model and its YAML
// parser. A workflow names its triggers, a process-wide environment, and a
// set of jobs; each job owns a build matrix and an ordered list of steps.
package workflow

// Workflow is a parsed pipeline definition.
type Workflow struct {
	Name string         `yaml:"name"`
	On   Triggers       `yaml:"on"`
	Env  map[string]string `yaml:"env,omitempty"`
	Jobs map[string]Job `yaml:"jobs"`
}

// Triggers declares which events start the workflow.
type Triggers struct {
	Push        *PushTrigger     `yaml:"push,omitempty"`
	PullRequest *PushTrigger     `yaml:"pull_request,omitempty"`
	Dispatch    *DispatchTrigger `yaml:"workflow_dispatch,omitempty"`
}

// PushTrigger filters push and pull_request events by branch and changed
// paths. Empty lists match everything.
type PushTrigger struct {
	Branches []string `yaml:"branches,omitempty"`
	Paths    []string `yaml:"paths,omitempty"`
}

// DispatchTrigger declares a manual trigger and its input fields. Inputs are
// documentation-only; they never change execution.
type DispatchTrigger struct {
	Inputs map[string]DispatchInput `yaml:"inputs,omitempty"`
}

// DispatchInput is one free-text field on a manual trigger.
type DispatchInput struct {
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Default     string `yaml:"default,omitempty"`
}

// Job is one entry in the jobs map. Its matrix is expanded into independent
// job instances before execution.
type Job struct {
	Name      string            `yaml:"name,omitempty"`
	RunsOn    string            `yaml:"runs-on"`
	Strategy  *Strategy         `yaml:"strategy,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Artifacts []Artifact        `yaml:"artifacts,omitempty"`
	Steps     []Step            `yaml:"steps"`
}

// Strategy controls matrix expansion and sibling cancellation.
type Strategy struct {
	Matrix   map[string][]string `yaml:"matrix,omitempty"`
	FailFast *bool               `yaml:"fail-fast,omitempty"`
}

// FailFastEnabled reports whether a job failure cancels sibling jobs.
// The default is true, matching the hosted-CI behavior this schema mirrors.
func (s *Strategy) FailFastEnabled() bool {
	if s == nil || s.FailFast == nil {
		return true
	}
	return *s.FailFast
}

// Artifact is a path collected from the job workspace after the job
// succeeds. Required artifacts fail the job when missing.
type Artifact struct {
	Path     string `yaml:"path"`
	Required bool   `yaml:"required,omitempty"`
}

// Step is a single instruction inside a job. The condition is evaluated once
// per job instance; a false condition skips the step without failing the job.
type Step struct {
	Name       string            `yaml:"name,omitempty"`
	If         string            `yaml:"if,omitempty"`
	Run        string            `yaml:"run"`
	Env        map[string]string `yaml:"env,omitempty"`
	Shell      string            `yaml:"shell,omitempty"`
	WorkingDir string            `yaml:"working-directory,omitempty"`
	TimeoutMin int               `yaml:"timeout-minutes,omitempty"`
}

// Label returns the step's display name, falling back to its run body.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Run
}
