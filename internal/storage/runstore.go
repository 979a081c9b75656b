// Package storage persists run workspaces, per-step logs, and run results
// on the local filesystem.
//
// Layout under the base directory:
//
//	runs/<run-id>/result.json
//	runs/<run-id>/<job>/workspace/
//	runs/<run-id>/<job>/logs/NN_<step>.log
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RunStore manages the on-disk state of runs.
type RunStore struct {
	base string
}

// NewRunStore creates a store rooted at baseDir.
func NewRunStore(baseDir string) *RunStore {
	return &RunStore{base: baseDir}
}

// RunDir returns the directory that holds everything for a run.
func (s *RunStore) RunDir(runID string) string {
	return filepath.Join(s.base, "runs", runID)
}

// MkWorkspace creates and returns the isolated workspace directory for one
// job instance.
func (s *RunStore) MkWorkspace(runID, jobName string) (string, error) {
	dir := filepath.Join(s.RunDir(runID), Sanitize(jobName), "workspace")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// RemoveWorkspace deletes a job's workspace, keeping its logs.
func (s *RunStore) RemoveWorkspace(runID, jobName string) error {
	return os.RemoveAll(filepath.Join(s.RunDir(runID), Sanitize(jobName), "workspace"))
}

// SaveStepLog writes a step's combined output and returns the log path.
// Step logs are numbered so the job's execution order survives on disk.
func (s *RunStore) SaveStepLog(runID, jobName string, stepIndex int, stepName, output string) (string, error) {
	dir := filepath.Join(s.RunDir(runID), Sanitize(jobName), "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%02d_%s.log", stepIndex+1, Sanitize(stepName)))
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", fmt.Errorf("write step log: %w", err)
	}
	return path, nil
}

// ReadStepLog returns the log of the step whose sanitized name matches.
func (s *RunStore) ReadStepLog(runID, jobName, stepName string) ([]byte, error) {
	dir := filepath.Join(s.RunDir(runID), Sanitize(jobName), "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	want := Sanitize(stepName) + ".log"
	for _, e := range entries {
		name := e.Name()
		if i := strings.Index(name, "_"); i >= 0 && name[i+1:] == want {
			return os.ReadFile(filepath.Join(dir, name))
		}
	}
	return nil, fmt.Errorf("no log for step %q in job %q", stepName, jobName)
}

// SaveResult writes the run's result document as JSON.
func (s *RunStore) SaveResult(runID string, v any) error {
	if err := os.MkdirAll(s.RunDir(runID), 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	return os.WriteFile(filepath.Join(s.RunDir(runID), "result.json"), data, 0o644)
}

// LoadResult reads a run's result document into v.
func (s *RunStore) LoadResult(runID string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), "result.json"))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ListRuns returns the stored run IDs, sorted.
func (s *RunStore) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.base, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Sanitize reduces a job or step name to characters safe in a filename.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "step"
	}
	return b.String()
}
