package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"

	"github.com/rs/zerolog"
)

// DefaultBinary is the OpenTofu executable resolved from PATH.
const DefaultBinary = "tofu"

// Verb is a tool subcommand the runner is allowed to drive.
type Verb string

const (
	VerbPlan  Verb = "plan"
	VerbApply Verb = "apply"
)

// State tracks one run through its lifecycle.
type State string

const (
	StateInit      State = "init"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Step is one command in the fixed execution sequence.
type Step struct {
	Name string
	Args []string
}

// Result describes a completed (or short-circuited) run. Read-only after
// creation.
type Result struct {
	State    State
	ExitCode int
	Executed []Step
}

// ToolExitError carries the failing step's exit code, which the CLI surface
// propagates to the operator unchanged.
type ToolExitError struct {
	Step string
	Code int
}

func (e *ToolExitError) Error() string {
	return fmt.Sprintf("tofu %s exited with code %d", e.Step, e.Code)
}

// AutoApproveError is a caller-side precondition failure: apply ran without
// the explicit auto-approve flag. Raised before any subprocess starts.
type AutoApproveError struct{}

func (e *AutoApproveError) Error() string {
	return "apply requires the explicit auto-approve flag; rerun with --auto-approve to confirm non-interactive changes"
}

// MissingBinaryError reports that the tool executable is not installed.
type MissingBinaryError struct {
	Binary string
}

func (e *MissingBinaryError) Error() string {
	return fmt.Sprintf("OpenTofu binary %q was not found in PATH", e.Binary)
}

// Steps builds the ordered command sequence for a verb. When backendConfig
// is empty, init runs against local state. Extra arguments are appended
// verbatim after the verb.
func Steps(verb Verb, backendConfig string, extra []string) ([]Step, error) {
	if verb != VerbPlan && verb != VerbApply {
		return nil, fmt.Errorf("unsupported verb %q", verb)
	}
	if verb == VerbApply && !hasAutoApprove(extra) {
		return nil, &AutoApproveError{}
	}

	initArgs := []string{"init", "-input=false"}
	if backendConfig != "" {
		initArgs = append(initArgs, "-backend-config="+backendConfig)
	}

	verbArgs := append([]string{string(verb)}, extra...)

	return []Step{
		{Name: "version", Args: []string{"version"}},
		{Name: "init", Args: initArgs},
		{Name: string(verb), Args: verbArgs},
	}, nil
}

func hasAutoApprove(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-auto-approve", "--auto-approve", "-auto-approve=true", "--auto-approve=true":
			return true
		}
	}
	return false
}

// Runner executes the step sequence inside a workspace tool directory.
type Runner struct {
	// Binary is the tool executable; defaults to DefaultBinary.
	Binary string

	// Dir is the working directory for every step.
	Dir string

	// Env is the complete subprocess environment. When nil the process
	// environment is inherited. Values are never logged.
	Env map[string]string

	Stdout io.Writer
	Stderr io.Writer

	Log zerolog.Logger
}

// Run executes the sequence for verb, streaming tool output live. The first
// non-zero exit stops the run and surfaces as a ToolExitError.
func (r *Runner) Run(ctx context.Context, verb Verb, backendConfig string, extra []string) (*Result, error) {
	result := &Result{State: StateInit}

	steps, err := Steps(verb, backendConfig, extra)
	if err != nil {
		result.State = StateFailed
		return result, err
	}

	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	result.State = StateRunning
	for _, step := range steps {
		r.Log.Debug().Str("step", step.Name).Strs("args", step.Args).Msg("running tool step")

		cmd := exec.CommandContext(ctx, binary, step.Args...)
		cmd.Dir = r.Dir
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		cmd.Env = r.flattenEnv()

		runErr := cmd.Run()
		result.Executed = append(result.Executed, step)
		if runErr == nil {
			continue
		}

		result.State = StateFailed
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &ToolExitError{Step: step.Name, Code: result.ExitCode}
		}
		if errors.Is(runErr, exec.ErrNotFound) {
			return result, &MissingBinaryError{Binary: binary}
		}
		return result, fmt.Errorf("failed to run %s %s: %w", binary, step.Name, runErr)
	}

	result.State = StateSucceeded
	return result, nil
}

// flattenEnv converts the explicit environment map into the form exec
// expects, sorted for determinism. A nil map inherits the process
// environment.
func (r *Runner) flattenEnv() []string {
	if r.Env == nil {
		return nil
	}
	keys := make([]string, 0, len(r.Env))
	for key := range r.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+r.Env[key])
	}
	return env
}
