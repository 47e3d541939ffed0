// Package procexec runs external tools with explicit argv, captured output
// and a hard timeout, and classifies each run into a small set of outcomes.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// Outcome classifies a finished invocation.
type Outcome string

const (
	// Success means the process exited with status zero.
	Success Outcome = "success"
	// ToolFailure means the process could not start or exited non-zero.
	ToolFailure Outcome = "tool_failure"
	// Timeout means the process was killed after exceeding its deadline.
	Timeout Outcome = "timeout"
)

// TimeoutReason is reported as the failure reason of a timed-out run.
const TimeoutReason = "Timeout expired"

// waitDelay bounds how long Wait blocks on inherited pipes after a kill.
const waitDelay = 5 * time.Second

// Spec describes one invocation.
type Spec struct {
	// Tool is a short label used in logs and metrics ("git", "analyzer").
	Tool    string
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// String renders the command line for logs.
func (s Spec) String() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// Result is the captured outcome of a run.
type Result struct {
	Outcome  Outcome
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// OK reports whether the run succeeded.
func (r Result) OK() bool {
	return r.Outcome == Success
}

// Reason returns a human readable failure reason: the timeout marker, the
// tool's stderr, or the start error.
func (r Result) Reason() string {
	switch {
	case r.Outcome == Timeout:
		return TimeoutReason
	case strings.TrimSpace(r.Stderr) != "":
		return strings.TrimSpace(r.Stderr)
	case r.Err != nil:
		return r.Err.Error()
	default:
		return ""
	}
}

// Excerpt returns at most n bytes of Reason, cut at a rune boundary.
func (r Result) Excerpt(n int) string {
	reason := r.Reason()
	if n <= 0 || len(reason) <= n {
		return reason
	}

	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}

	return reason[:n]
}

// Runner executes a Spec.
type Runner interface {
	Run(ctx context.Context, spec Spec) Result
}

// Observer is notified after every run.
type Observer func(ctx context.Context, spec Spec, res Result)

// ExecRunner runs processes with os/exec.
type ExecRunner struct {
	Observer Observer
}

// NewExecRunner returns a runner that reports each run to observer, which
// may be nil.
func NewExecRunner(observer Observer) *ExecRunner {
	return &ExecRunner{Observer: observer}
}

// Run starts the process and waits for it, killing it when spec.Timeout
// elapses. It never returns an error; failures are encoded in Result.
func (er *ExecRunner) Run(ctx context.Context, spec Spec) Result {
	runCtx := ctx

	if spec.Timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.WaitDelay = waitDelay

	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		ExitCode: -1,
	}

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Outcome = Timeout
		res.Err = fmt.Errorf("%s: %w", spec.Tool, context.DeadlineExceeded)
	case err != nil:
		res.Outcome = ToolFailure
		res.Err = fmt.Errorf("%s: %w", spec.Tool, err)
	default:
		res.Outcome = Success
	}

	if er.Observer != nil {
		er.Observer(ctx, spec, res)
	}

	return res
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, spec Spec) Result

// Run calls f(ctx, spec).
func (f RunnerFunc) Run(ctx context.Context, spec Spec) Result {
	return f(ctx, spec)
}
