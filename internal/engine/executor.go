package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"matrixci/internal/workflow"
)

// StepSpec is a fully resolved step command, ready to execute: the script
// body with all interpolation done, the job workspace (or step override) as
// working directory, and the complete environment.
type StepSpec struct {
	Script string
	Dir    string
	Env    []string
}

// Executor runs one step command and reports its combined output and exit
// code. A non-nil error means the step could not be started at all; command
// failures surface through the exit code.
type Executor interface {
	Name() string
	Run(ctx context.Context, spec StepSpec) (output string, exitCode int, err error)
}

// VirtualExecutor interprets the step script with an in-process POSIX shell,
// so workflows behave the same on hosts without /bin/sh.
type VirtualExecutor struct{}

func (VirtualExecutor) Name() string { return workflow.ShellVirtual }

func (VirtualExecutor) Run(ctx context.Context, spec StepSpec) (string, int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(spec.Script), "step")
	if err != nil {
		return "", 0, fmt.Errorf("parse step script: %w", err)
	}

	var out bytes.Buffer
	runner, err := interp.New(
		interp.Dir(spec.Dir),
		interp.Env(expand.ListEnviron(spec.Env...)),
		interp.StdIO(nil, &out, &out),
	)
	if err != nil {
		return "", 0, fmt.Errorf("create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return out.String(), int(status), nil
		}
		if ctx.Err() != nil {
			return out.String(), -1, ctx.Err()
		}
		return out.String(), 1, nil
	}
	return out.String(), 0, nil
}

// NativeExecutor shells out to the system shell. Use it for steps that need
// shell features or tools the virtual interpreter does not cover.
type NativeExecutor struct{}

func (NativeExecutor) Name() string { return workflow.ShellNative }

func (NativeExecutor) Run(ctx context.Context, spec StepSpec) (string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Script)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	// The step runs in its own process group so cancellation reaches every
	// child, not just the shell. Children inherit the output pipe; WaitDelay
	// keeps Wait from blocking on a child that survived the kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	// A cancelled or timed-out step must report as such even when the shell
	// died with an exit status.
	if ctx.Err() != nil {
		return out.String(), -1, ctx.Err()
	}
	if err == nil {
		return out.String(), 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out.String(), exitErr.ExitCode(), nil
	}
	return out.String(), 0, fmt.Errorf("start step: %w", err)
}

// DefaultExecutors returns the executors the runner knows about, keyed by
// shell name.
func DefaultExecutors() map[string]Executor {
	return map[string]Executor{
		workflow.ShellVirtual: VirtualExecutor{},
		workflow.ShellNative:  NativeExecutor{},
	}
}
