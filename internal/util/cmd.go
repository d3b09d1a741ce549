// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// This package holds the exec.Command related calls and the terminal
// Printer.
package util

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ShellRunner executes composed command lines through the system shell.
// The build pipeline hands it full lines like `env && cmake ...` that
// must run inside one child.
type ShellRunner struct {
	// Stdout and Stderr receive the child's streams for Run. Nil means
	// the process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// exitCode splits a Run error into the child's exit code and a real
// failure to start or wait.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return exit.ExitCode(), nil
	}
	return 0, err
}

// Capture runs the command and returns its combined output.
func (r ShellRunner) Capture(ctx context.Context, command string) (string, int, error) {
	cmd := shellCommand(ctx, command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	code, err := exitCode(cmd.Run())
	return strings.TrimRight(buf.String(), "\n"), code, err
}

// Run streams the command's output to the configured writers.
func (r ShellRunner) Run(ctx context.Context, command string) (int, error) {
	cmd := shellCommand(ctx, command)
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return exitCode(cmd.Run())
}
