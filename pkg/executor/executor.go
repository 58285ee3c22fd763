// Package executor runs a single external tool invocation to completion:
// spawn, drain stdout/stderr concurrently so neither pipe can stall the
// other, enforce a timeout, and report a structured result or
// types.ExecError on failure.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"ipcrawler/pkg/errors"
	"ipcrawler/pkg/log"
	"ipcrawler/pkg/types"
)

// Result is a successful tool invocation's captured output.
type Result struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
	PID        int
}

// stderrTailLines is the number of trailing stderr lines kept in an
// ExecError when a command exits non-zero.
const stderrTailLines = 10

// Execute spawns tool with args in cwd, waits up to timeout (0 means no
// deadline), and returns a Result on success or a wrapped types.ExecError
// (via pkg/errors.Exec) on spawn failure, timeout, or non-zero exit.
func Execute(ctx context.Context, tool string, args []string, cwd string, timeout time.Duration) (Result, error) {
	start := time.Now()
	logger := log.WithComponent("executor")
	logger.Debug().Str("tool", tool).Strs("args", args).Str("cwd", cwd).Msg("executing")

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, tool, args...)
	cmd.Dir = cwd

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, errors.Exec("failed to spawn "+tool, types.ExecError{
			Tool: tool, Args: args, Cwd: cwd,
			StderrTail: fmt.Sprintf("Process error: %v", err),
			DurationMS: time.Since(start).Milliseconds(),
		})
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, errors.Exec("failed to spawn "+tool, types.ExecError{
			Tool: tool, Args: args, Cwd: cwd,
			StderrTail: fmt.Sprintf("Process error: %v", err),
			DurationMS: time.Since(start).Milliseconds(),
		})
	}

	if err := cmd.Start(); err != nil {
		return Result{}, errors.Exec("failed to spawn "+tool, types.ExecError{
			Tool: tool, Args: args, Cwd: cwd,
			StderrTail: fmt.Sprintf("Process error: %v", err),
			DurationMS: time.Since(start).Milliseconds(),
		})
	}
	pid := cmd.Process.Pid

	stdoutCh := make(chan string, 1)
	stderrCh := make(chan string, 1)
	go func() { stdoutCh <- readLines(stdoutPipe) }()
	go func() { stderrCh <- readLines(stderrPipe) }()

	// Both pipes are drained before Wait, which closes them once the
	// process exits and would otherwise discard unread output.
	stdout := <-stdoutCh
	stderr := <-stderrCh
	waitErr := cmd.Wait()
	durationMS := time.Since(start).Milliseconds()

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{}, errors.Exec("command timed out", types.ExecError{
			Tool: tool, Args: args, Cwd: cwd,
			StderrTail: fmt.Sprintf("Command timed out after %dms", timeout.Milliseconds()),
			DurationMS: durationMS,
		})
	}

	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return Result{}, errors.Exec("process error", types.ExecError{
				Tool: tool, Args: args, Cwd: cwd,
				StderrTail: fmt.Sprintf("Process error: %v", waitErr),
				DurationMS: durationMS,
			})
		}
		code := exitErr.ExitCode()
		return Result{}, errors.Exec("command exited non-zero", types.ExecError{
			Tool: tool, Args: args, Cwd: cwd,
			ExitCode:   &code,
			StderrTail: tailLines(stderr, stderrTailLines),
			DurationMS: durationMS,
		})
	}

	return Result{
		Stdout:     stdout,
		Stderr:     stderr,
		ExitCode:   0,
		DurationMS: durationMS,
		PID:        pid,
	}, nil
}

// readLines drains r line by line and rejoins with \n, matching the
// original executor's behavior of returning captured output as a single
// newline-joined string rather than raw bytes.
func readLines(r interface {
	Read(p []byte) (n int, err error)
}) string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return strings.Join(lines, "\n")
}

// tailLines returns the last n lines of s joined by \n.
func tailLines(s string, n int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
