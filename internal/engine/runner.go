// Package engine executes workflows: it expands the build matrix into job
// instances, runs them in parallel with fail-fast cancellation, and runs the
// steps inside each job strictly in order.
package engine

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"matrixci/internal/artifact"
	"matrixci/internal/ledger"
	"matrixci/internal/storage"
	"matrixci/internal/trigger"
	"matrixci/internal/workflow"
	"matrixci/pkg/hashutil"
)

// errFailFast signals the errgroup to cancel sibling jobs. It never reaches
// callers.
var errFailFast = errors.New("fail-fast")

// Runner ties together the store, the ledger, the executors, and the
// artifact uploader.
type Runner struct {
	Store     *storage.RunStore
	Ledger    *ledger.Ledger    // nil disables result recording
	Artifacts artifact.Uploader // nil disables artifact upload
	Executors map[string]Executor
	Logger    *log.Logger

	// MaxParallel bounds concurrently running jobs; zero means unbounded.
	MaxParallel int
	// DefaultShell picks the executor for steps without a shell override.
	DefaultShell string
	// DefaultTimeout applies to steps without timeout-minutes.
	DefaultTimeout time.Duration
	// KeepWorkspace leaves job workspaces on disk after the run.
	KeepWorkspace bool
	// RunnerID identifies this host in ledger records.
	RunnerID string

	SigningKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// NewRunner returns a runner with the default executors and settings.
func NewRunner(store *storage.RunStore, logger *log.Logger) *Runner {
	host, _ := os.Hostname()
	if host == "" {
		host = "local"
	}
	return &Runner{
		Store:          store,
		Executors:      DefaultExecutors(),
		Logger:         logger,
		DefaultShell:   workflow.ShellVirtual,
		DefaultTimeout: 30 * time.Minute,
		RunnerID:       host,
	}
}

// Run executes every matrix instance of every job and returns the aggregate
// result. The result is also persisted in the run store. Run itself only
// fails when the run cannot be set up; job and step failures are reported
// through the result's status.
func (r *Runner) Run(ctx context.Context, runID string, wf *workflow.Workflow, ev trigger.Event) (*RunResult, error) {
	instances := wf.ExpandAll()
	if len(instances) == 0 {
		return nil, fmt.Errorf("workflow %q expanded to no jobs", wf.Name)
	}

	r.Logger.Info("run started", "run", runID, "workflow", wf.Name, "jobs", len(instances))

	result := &RunResult{
		RunID:     runID,
		Workflow:  wf.Name,
		Event:     ev,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
		Jobs:      make([]JobResult, len(instances)),
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.MaxParallel > 0 {
		g.SetLimit(r.MaxParallel)
	}
	for i, inst := range instances {
		g.Go(func() error {
			jr := r.runJob(gctx, runID, wf, inst, ev)
			result.Jobs[i] = jr
			if jr.Status == StatusFailure && inst.Job.Strategy.FailFastEnabled() {
				return errFailFast
			}
			return nil
		})
	}
	// The only error jobs return is the fail-fast sentinel; the failure
	// itself is already recorded in the job result.
	_ = g.Wait()

	result.Status = StatusSuccess
	for _, jr := range result.Jobs {
		switch jr.Status {
		case StatusFailure:
			result.Status = StatusFailure
		case StatusCancelled:
			if result.Status != StatusFailure {
				result.Status = StatusCancelled
			}
		}
	}
	result.FinishedAt = time.Now().UTC()

	if err := r.Store.SaveResult(runID, result); err != nil {
		r.Logger.Warn("cannot save run result", "run", runID, "err", err)
	}
	r.Logger.Info("run finished", "run", runID, "status", result.Status,
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

func (r *Runner) runJob(ctx context.Context, runID string, wf *workflow.Workflow, inst workflow.JobInstance, ev trigger.Event) JobResult {
	jr := JobResult{ID: inst.ID, Name: inst.Name, Matrix: inst.Matrix}
	logger := r.Logger.With("run", runID, "job", inst.Name)

	workspace, err := r.Store.MkWorkspace(runID, inst.Name)
	if err != nil {
		jr.Status = StatusFailure
		jr.Error = err.Error()
		return jr
	}
	if !r.KeepWorkspace {
		defer func() {
			if err := r.Store.RemoveWorkspace(runID, inst.Name); err != nil {
				logger.Warn("cannot remove workspace", "err", err)
			}
		}()
	}

	exprCtx := ExprContext{
		Matrix:   inst.Matrix,
		RunnerOS: OSFromLabel(inst.Job.RunsOn),
		Event:    ev,
	}
	declaredEnv, err := resolveEnv(exprCtx, wf.Env, inst.Job.Env)
	if err != nil {
		jr.Status = StatusFailure
		jr.Error = err.Error()
		return jr
	}
	exprCtx.Env = declaredEnv

	var failed, cancelled bool
	for i, step := range inst.Job.Steps {
		var sr StepResult
		switch {
		case cancelled || ctx.Err() != nil:
			cancelled = true
			sr = StepResult{Name: step.Label(), Status: StatusCancelled, StartedAt: time.Now().UTC()}
		case failed:
			sr = StepResult{Name: step.Label(), Status: StatusSkipped, StartedAt: time.Now().UTC()}
		default:
			sr = r.runStep(ctx, runID, inst, i, step, workspace, declaredEnv, exprCtx, logger)
			switch sr.Status {
			case StatusFailure:
				failed = true
			case StatusCancelled:
				cancelled = true
			}
		}
		jr.Steps = append(jr.Steps, sr)
	}

	switch {
	case failed:
		jr.Status = StatusFailure
	case cancelled:
		jr.Status = StatusCancelled
	default:
		jr.Status = StatusSuccess
	}

	if jr.Status == StatusSuccess {
		if err := r.collectArtifacts(ctx, runID, inst, workspace, exprCtx, logger); err != nil {
			jr.Status = StatusFailure
			jr.Error = err.Error()
		}
	}

	logger.Info("job finished", "status", jr.Status)
	return jr
}

func (r *Runner) runStep(ctx context.Context, runID string, inst workflow.JobInstance, index int, step workflow.Step, workspace string, declaredEnv map[string]string, exprCtx ExprContext, logger *log.Logger) StepResult {
	sr := StepResult{Name: step.Label(), StartedAt: time.Now().UTC()}
	fail := func(err error) StepResult {
		sr.Status = StatusFailure
		sr.Error = err.Error()
		logger.Error("step failed", "step", sr.Name, "err", err)
		return sr
	}

	// Conditions are evaluated exactly once, before the step starts.
	ok, err := exprCtx.EvalCondition(step.If)
	if err != nil {
		return fail(err)
	}
	if !ok {
		sr.Status = StatusSkipped
		logger.Info("step skipped", "step", sr.Name)
		return sr
	}

	script, err := exprCtx.Interpolate(step.Run)
	if err != nil {
		return fail(err)
	}
	stepEnv, err := resolveEnv(exprCtx, step.Env)
	if err != nil {
		return fail(err)
	}

	dir := workspace
	if step.WorkingDir != "" {
		wd, err := exprCtx.Interpolate(step.WorkingDir)
		if err != nil {
			return fail(err)
		}
		if !filepath.IsAbs(wd) {
			wd = filepath.Join(workspace, wd)
		}
		dir = wd
	}

	shell := step.Shell
	if shell == "" {
		shell = r.DefaultShell
	}
	exec, ok2 := r.Executors[shell]
	if !ok2 {
		return fail(fmt.Errorf("no executor for shell %q", shell))
	}

	timeout := r.DefaultTimeout
	if step.TimeoutMin > 0 {
		timeout = time.Duration(step.TimeoutMin) * time.Minute
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spec := StepSpec{
		Script: script,
		Dir:    dir,
		Env: overlayEnviron(os.Environ(), declaredEnv, stepEnv, map[string]string{
			"CI":                 "true",
			"MATRIXCI_RUN_ID":    runID,
			"MATRIXCI_JOB":       inst.Name,
			"MATRIXCI_RUNNER_OS": exprCtx.RunnerOS,
		}),
	}

	logger.Info("step started", "step", sr.Name, "shell", shell)
	output, code, runErr := exec.Run(stepCtx, spec)
	sr.Duration = time.Since(sr.StartedAt)
	sr.ExitCode = code

	if logPath, err := r.Store.SaveStepLog(runID, inst.Name, index, sr.Name, output); err != nil {
		logger.Warn("cannot save step log", "step", sr.Name, "err", err)
	} else {
		sr.LogPath = logPath
	}

	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		sr.Status = StatusCancelled
		logger.Warn("step cancelled", "step", sr.Name)
	case runErr != nil && errors.Is(runErr, context.DeadlineExceeded):
		sr.Status = StatusFailure
		sr.Error = fmt.Sprintf("timed out after %s", timeout)
		logger.Error("step timed out", "step", sr.Name, "timeout", timeout)
	case runErr != nil:
		sr.Status = StatusFailure
		sr.Error = runErr.Error()
		logger.Error("step failed", "step", sr.Name, "err", runErr)
	case code != 0:
		sr.Status = StatusFailure
		logger.Error("step failed", "step", sr.Name, "exit", code)
	default:
		sr.Status = StatusSuccess
		logger.Info("step completed", "step", sr.Name, "duration", sr.Duration)
	}

	r.record(runID, inst.Name, sr.Name, string(sr.Status), output, logger)
	return sr
}

// record appends the step result to the ledger. Recording is best-effort:
// a ledger problem is logged but never fails the step.
func (r *Runner) record(runID, job, step, status, output string, logger *log.Logger) {
	if r.Ledger == nil || len(r.SigningKey) == 0 {
		return
	}
	rec, err := r.Ledger.AppendResult(runID, job, step, status, hashutil.String(output), r.RunnerID, r.SigningKey, r.PublicKey)
	if err != nil {
		logger.Warn("cannot append ledger record", "err", err)
		return
	}
	logger.Debug("ledger record appended", "index", rec.Index, "hash", rec.Hash[:16])
}

func (r *Runner) collectArtifacts(ctx context.Context, runID string, inst workflow.JobInstance, workspace string, exprCtx ExprContext, logger *log.Logger) error {
	if r.Artifacts == nil || len(inst.Job.Artifacts) == 0 {
		return nil
	}
	for _, a := range inst.Job.Artifacts {
		rel, err := exprCtx.Interpolate(a.Path)
		if err != nil {
			return err
		}
		local := filepath.Join(workspace, rel)
		if _, err := os.Stat(local); err != nil {
			if a.Required {
				return fmt.Errorf("required artifact %q missing", rel)
			}
			logger.Warn("artifact missing, skipping", "path", rel)
			continue
		}
		digest, err := hashutil.File(local)
		if err != nil {
			return err
		}
		location, err := r.Artifacts.Upload(ctx, runID, inst.Name, local, rel)
		if err != nil {
			return err
		}
		logger.Info("artifact uploaded", "path", rel, "location", location, "sha256", digest)
	}
	return nil
}
