// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner executes whitelisted commands for exec-mode capabilities.
// Commands run without a shell, with credentials injected through the
// environment and scrubbed from the captured output.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/janee-ai/janee/pkg/errors"
	"github.com/janee-ai/janee/pkg/redact"
)

const (
	// defaultTimeout bounds a subprocess when the capability sets none.
	defaultTimeout = 30 * time.Second

	// defaultWorkDir is used when the capability sets no workDir.
	defaultWorkDir = "/tmp/janee-exec"

	// spawnFailureExitCode mirrors the shell convention for "command not
	// found".
	spawnFailureExitCode = 127
)

// metacharPattern rejects anything a shell would interpret. Commands run
// without a shell, but arguments are still forwarded to the child verbatim.
var metacharPattern = regexp.MustCompile("[;&|`$(){}\\\\<>]")

// Spec describes one command execution. Env holds the already-substituted
// overlay from the capability; Scrub lists the secret values to redact from
// captured output, in redaction order.
type Spec struct {
	Command       []string
	Stdin         string
	Env           map[string]string
	WorkDir       string
	Timeout       time.Duration
	AllowCommands []string
	Scrub         []string
}

// Result is the captured outcome of a command.
type Result struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	ExecutionTimeMs int64
}

// Runner spawns whitelisted subprocesses.
type Runner struct{}

// New creates a Runner.
func New() *Runner {
	return &Runner{}
}

// Run validates the command, spawns it and returns the scrubbed result.
// A subprocess that fails to start yields exit code 127 rather than an
// error; only validation problems error out.
func (*Runner) Run(ctx context.Context, spec *Spec) (*Result, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workDir := spec.WorkDir
	if workDir == "" {
		workDir = defaultWorkDir
		if err := os.MkdirAll(workDir, 0700); err != nil {
			return nil, errors.NewInternalError(
				fmt.Sprintf("failed to create work directory %s", workDir), err)
		}
	}

	env := os.Environ()
	for name, value := range spec.Env {
		env = append(env, name+"="+value)
	}
	// Keep credentials out of shell history files even if the child is a
	// shell-adjacent tool.
	env = append(env, "HISTFILE=/dev/null", "LESSHISTFILE=/dev/null")

	//nolint:gosec // argv comes from the capability whitelist, not the agent
	cmd := exec.CommandContext(runCtx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = workDir
	cmd.Env = env
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	result := &Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExecutionTimeMs: elapsed,
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(runErr, &exitErr) {
			// Includes the timeout kill, which reports -1.
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = spawnFailureExitCode
			result.Stderr = fmt.Sprintf("Failed to execute command: %v", runErr)
		}
	}

	result.Stdout = redact.String(result.Stdout, spec.Scrub...)
	result.Stderr = redact.String(result.Stderr, spec.Scrub...)
	return result, nil
}

// validate enforces the basename whitelist and the metacharacter filter
// over every argv element.
func validate(spec *Spec) error {
	if len(spec.Command) == 0 {
		return errors.NewSecurityError("empty command", nil)
	}

	base := filepath.Base(spec.Command[0])
	allowed := false
	for _, name := range spec.AllowCommands {
		if base == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.NewSecurityError(
			fmt.Sprintf("command %q is not in the allowed list", base), nil)
	}

	for _, arg := range spec.Command {
		if metacharPattern.MatchString(arg) {
			return errors.NewSecurityError(
				fmt.Sprintf("argument %q contains a shell metacharacter", arg), nil)
		}
	}
	return nil
}
