package workflow

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Shells accepted by a step's shell override.
const (
	ShellVirtual = "virtual"
	ShellNative  = "native"
)

// Parse decodes YAML content into a Workflow and validates it.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Load reads a workflow file and returns the parsed Workflow.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	return Parse(data)
}

// Validate checks the structural invariants the runner depends on.
func (w *Workflow) Validate() error {
	if len(w.Jobs) == 0 {
		return fmt.Errorf("workflow %q has no jobs", w.Name)
	}
	for _, id := range w.JobIDs() {
		job := w.Jobs[id]
		if len(job.Steps) == 0 {
			return fmt.Errorf("job %q has no steps", id)
		}
		if job.Strategy != nil {
			for axis, values := range job.Strategy.Matrix {
				if len(values) == 0 {
					return fmt.Errorf("job %q: matrix axis %q has no values", id, axis)
				}
			}
		}
		for i, step := range job.Steps {
			if step.Run == "" {
				return fmt.Errorf("job %q: step %d (%s) has no run body", id, i+1, step.Label())
			}
			switch step.Shell {
			case "", ShellVirtual, ShellNative:
			default:
				return fmt.Errorf("job %q: step %d: unknown shell %q", id, i+1, step.Shell)
			}
		}
		for _, a := range job.Artifacts {
			if a.Path == "" {
				return fmt.Errorf("job %q: artifact with empty path", id)
			}
		}
	}
	return nil
}

// JobIDs returns the job identifiers in sorted order so expansion and
// execution reports are deterministic.
func (w *Workflow) JobIDs() []string {
	ids := make([]string, 0, len(w.Jobs))
	for id := range w.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
