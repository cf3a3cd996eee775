package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStepsWithBackendConfig(t *testing.T) {
	steps, err := Steps(VerbPlan, "backend/df12.tfbackend", nil)
	if err != nil {
		t.Fatalf("Steps returned error: %v", err)
	}

	want := []Step{
		{Name: "version", Args: []string{"version"}},
		{Name: "init", Args: []string{"init", "-input=false", "-backend-config=backend/df12.tfbackend"}},
		{Name: "plan", Args: []string{"plan"}},
	}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i := range want {
		if steps[i].Name != want[i].Name {
			t.Errorf("step %d name = %q, want %q", i, steps[i].Name, want[i].Name)
		}
		if strings.Join(steps[i].Args, " ") != strings.Join(want[i].Args, " ") {
			t.Errorf("step %d args = %v, want %v", i, steps[i].Args, want[i].Args)
		}
	}
}

func TestStepsWithoutBackendConfig(t *testing.T) {
	steps, err := Steps(VerbPlan, "", []string{"-target=module.repos"})
	if err != nil {
		t.Fatalf("Steps returned error: %v", err)
	}
	if got := strings.Join(steps[1].Args, " "); got != "init -input=false" {
		t.Errorf("init args = %q, want local-state init", got)
	}
	if got := strings.Join(steps[2].Args, " "); got != "plan -target=module.repos" {
		t.Errorf("extra args not appended verbatim: %q", got)
	}
}

func TestApplyRequiresAutoApprove(t *testing.T) {
	_, err := Steps(VerbApply, "", nil)
	var autoErr *AutoApproveError
	if !errors.As(err, &autoErr) {
		t.Fatalf("expected AutoApproveError, got %v", err)
	}
	if !strings.Contains(err.Error(), "auto-approve") {
		t.Errorf("error message missing auto-approve: %q", err.Error())
	}

	if _, err := Steps(VerbApply, "", []string{"-auto-approve"}); err != nil {
		t.Errorf("Steps with -auto-approve failed: %v", err)
	}
}

func TestRunApplyWithoutAutoApproveStartsNoSubprocess(t *testing.T) {
	r := &Runner{Binary: "/nonexistent/tofu"}
	result, err := r.Run(context.Background(), VerbApply, "", nil)
	var autoErr *AutoApproveError
	if !errors.As(err, &autoErr) {
		t.Fatalf("expected AutoApproveError, got %v", err)
	}
	if len(result.Executed) != 0 {
		t.Errorf("subprocess started despite precondition failure: %v", result.Executed)
	}
	if result.State != StateFailed {
		t.Errorf("state = %q, want %q", result.State, StateFailed)
	}
}

func TestStepsRejectsUnknownVerb(t *testing.T) {
	if _, err := Steps(Verb("destroy"), "", nil); err == nil {
		t.Fatal("expected error for unsupported verb")
	}
}

// writeFakeTool creates a shell script standing in for the tofu binary. It
// appends each invocation's arguments to a log file and exits non-zero when
// the first argument matches failOn.
func writeFakeTool(t *testing.T, logPath, failOn string, code int) string {
	t.Helper()

	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"" + logPath + "\"\n"
	if failOn != "" {
		script += "if [ \"$1\" = \"" + failOn + "\" ]; then exit " + itoa(code) + "; fi\n"
	}
	script += "exit 0\n"

	path := filepath.Join(t.TempDir(), "tofu")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake tool: %v", err)
	}
	return path
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func readInvocations(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read invocation log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRunExecutesOrderedSequence(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "calls.log")
	r := &Runner{
		Binary: writeFakeTool(t, logPath, "", 0),
		Dir:    t.TempDir(),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}

	result, err := r.Run(context.Background(), VerbPlan, "backend/df12.tfbackend", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.State != StateSucceeded || result.ExitCode != 0 {
		t.Errorf("result = %+v, want succeeded/0", result)
	}

	calls := readInvocations(t, logPath)
	want := []string{
		"version",
		"init -input=false -backend-config=backend/df12.tfbackend",
		"plan",
	}
	if len(calls) != len(want) {
		t.Fatalf("got %d invocations %v, want %d", len(calls), calls, len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestRunShortCircuitsOnFailure(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "calls.log")
	r := &Runner{
		Binary: writeFakeTool(t, logPath, "init", 2),
		Dir:    t.TempDir(),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}

	result, err := r.Run(context.Background(), VerbPlan, "", nil)
	var exitErr *ToolExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ToolExitError, got %v", err)
	}
	if exitErr.Code != 2 || exitErr.Step != "init" {
		t.Errorf("exit error = %+v, want init/2", exitErr)
	}
	if result.ExitCode != 2 {
		t.Errorf("result exit code = %d, want 2", result.ExitCode)
	}
	if len(result.Executed) != 2 {
		t.Errorf("executed %d steps, want short-circuit after init", len(result.Executed))
	}
}

func TestRunPropagatesVerbExitCode(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "calls.log")
	r := &Runner{
		Binary: writeFakeTool(t, logPath, "plan", 3),
		Dir:    t.TempDir(),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}

	_, err := r.Run(context.Background(), VerbPlan, "", nil)
	var exitErr *ToolExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ToolExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3 (wrapped tool's code, verbatim)", exitErr.Code)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := &Runner{Binary: "definitely-not-a-real-tool-binary"}
	_, err := r.Run(context.Background(), VerbPlan, "", nil)
	var missing *MissingBinaryError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingBinaryError, got %v", err)
	}
	if !strings.Contains(err.Error(), "was not found in PATH") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestFlattenEnvDeterministic(t *testing.T) {
	r := &Runner{Env: map[string]string{"B": "2", "A": "1", "C": "3"}}
	got := strings.Join(r.flattenEnv(), ";")
	if got != "A=1;B=2;C=3" {
		t.Errorf("flattenEnv = %q, want sorted", got)
	}

	r = &Runner{}
	if r.flattenEnv() != nil {
		t.Error("nil env should inherit the process environment")
	}
}
